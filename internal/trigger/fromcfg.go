package trigger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/simplesurance/regtrigger/internal/action"
	"github.com/simplesurance/regtrigger/internal/action/githubdispatch"
	"github.com/simplesurance/regtrigger/internal/action/httprequest"
	"github.com/simplesurance/regtrigger/internal/cfg"
	"github.com/simplesurance/regtrigger/internal/env"
	"github.com/simplesurance/regtrigger/internal/eventtype"
	"github.com/simplesurance/regtrigger/internal/maputils"
)

// FromCfg instantiates the triggers of all jobs defined in the configuration.
// ghClient is used by githubdispatch actions.
func FromCfg(config *cfg.Config, ghClient githubdispatch.Client) ([]*Trigger, error) {
	result := make([]*Trigger, 0, len(config.Jobs))
	seen := make(map[string]struct{}, len(config.Jobs))

	for _, job := range config.Jobs {
		if job.Name == "" {
			return nil, errors.New("job: missing field: 'name'")
		}

		if _, exist := seen[job.Name]; exist {
			return nil, fmt.Errorf("job %s: defined multiple times", job.Name)
		}
		seen[job.Name] = struct{}{}

		eventTypes, err := eventtype.ParseList(job.EventTypes)
		if err != nil {
			return nil, fmt.Errorf("job %s: event_types: %w", job.Name, err)
		}

		actions, err := actionsFromCfg(job, ghClient)
		if err != nil {
			return nil, err
		}

		t, err := New(job.Name, eventTypes, job.FilterQuery, env.Vars(job.Env), actions)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", job.Name, err)
		}

		result = append(result, t)
	}

	return result, nil
}

func actionsFromCfg(job *cfg.Job, ghClient githubdispatch.Client) ([]action.Config, error) {
	result := make([]action.Config, 0, len(job.Actions))

	for _, cfgAction := range job.Actions {
		actionName, err := maputils.StrVal(cfgAction, "action")
		if err != nil {
			return nil, fmt.Errorf("job %s: action: %w", job.Name, err)
		}

		if actionName == "" {
			return nil, fmt.Errorf("job %s: action: missing string field 'action'", job.Name)
		}

		switch strings.ToLower(actionName) {
		case "httprequest":
			c, err := httprequest.NewConfigFromMap(cfgAction)
			if err != nil {
				return nil, fmt.Errorf("job %s: action %s: parsing failed: %w", job.Name, actionName, err)
			}

			result = append(result, c)

		case "githubdispatch":
			if ghClient == nil {
				return nil, fmt.Errorf("job %s: action %s: no github client available", job.Name, actionName)
			}

			c, err := githubdispatch.NewConfigFromMap(ghClient, cfgAction)
			if err != nil {
				return nil, fmt.Errorf("job %s: action %s: parsing failed: %w", job.Name, actionName, err)
			}

			result = append(result, c)

		default:
			return nil, fmt.Errorf("job %s: unsupported action: %q", job.Name, actionName)
		}
	}

	return result, nil
}
