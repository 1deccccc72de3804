// Package githubdispatch hands triggered builds over to GitHub Actions by
// sending repository_dispatch events.
package githubdispatch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/simplesurance/regtrigger/internal/action"
	"github.com/simplesurance/regtrigger/internal/env"
	"github.com/simplesurance/regtrigger/internal/logfields"
	"github.com/simplesurance/regtrigger/internal/maputils"
)

const DefaultEventType = "registry_notification"

const loggerName = "action.githubdispatch"

// Config is the configuration of a repository dispatch action.
type Config struct {
	clt        Client
	owner      string
	repository string
	eventType  string
	logger     *zap.Logger
}

func NewConfigFromMap(clt Client, m map[string]any) (*Config, error) {
	owner, err := maputils.StrVal(m, "owner")
	if err != nil {
		return nil, err
	}

	if owner == "" {
		return nil, errors.New("owner must be set")
	}

	repository, err := maputils.StrVal(m, "repository")
	if err != nil {
		return nil, err
	}

	if repository == "" {
		return nil, errors.New("repository must be set")
	}

	eventType, err := maputils.StrVal(m, "event_type")
	if err != nil {
		return nil, err
	}

	if eventType == "" {
		eventType = DefaultEventType
	}

	return &Config{
		clt:        clt,
		owner:      owner,
		repository: repository,
		eventType:  eventType,
		logger:     zap.L().Named(loggerName),
	}, nil
}

func (c *Config) Render(build action.Build, renderFunc func(string) (string, error)) (action.Runner, error) {
	var err error
	newConfig := *c

	newConfig.owner, err = renderFunc(c.owner)
	if err != nil {
		return nil, fmt.Errorf("templating owner failed: %w", err)
	}

	newConfig.repository, err = renderFunc(c.repository)
	if err != nil {
		return nil, fmt.Errorf("templating repository failed: %w", err)
	}

	newConfig.eventType, err = renderFunc(c.eventType)
	if err != nil {
		return nil, fmt.Errorf("templating event_type failed: %w", err)
	}

	return &Runner{
		Config: &newConfig,
		payload: ClientPayload{
			Job:         build.Job(),
			RunID:       build.RunID(),
			Environment: build.Environment(),
		},
	}, nil
}

func (c *Config) String() string {
	return fmt.Sprintf("github repository dispatch: %s/%s", c.owner, c.repository)
}

func (c *Config) DetailedString() string {
	return fmt.Sprintf(
		"github-dispatch:\n  owner: %s\n  repository: %s\n  event_type: %s\n",
		c.owner, c.repository, c.eventType,
	)
}

// ClientPayload is sent as client_payload of the dispatch event.
// GitHub accepts at most 10 top-level properties, the environment is
// therefore nested.
type ClientPayload struct {
	Job         string   `json:"job"`
	RunID       string   `json:"run_id"`
	Environment env.Vars `json:"env"`
}

type Runner struct {
	*Config
	payload ClientPayload
}

func (r *Runner) Run(ctx context.Context) error {
	err := r.clt.Dispatch(ctx, r.owner, r.repository, r.eventType, &r.payload)
	if err != nil {
		return err
	}

	r.logger.Info(
		"repository dispatch event sent",
		append(r.LogFields(), logfields.Event("github_repository_dispatch_sent"))...,
	)

	return nil
}

func (r *Runner) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("action", "githubdispatch"),
		zap.String("github.repository", r.owner+"/"+r.repository),
		zap.String("github.dispatch_event_type", r.eventType),
		logfields.Job(r.payload.Job),
		logfields.RunID(r.payload.RunID),
	}
}
