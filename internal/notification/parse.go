package notification

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/webhooks/v6/docker"
	"go.uber.org/zap"

	"github.com/simplesurance/regtrigger/internal/logfields"
	"github.com/simplesurance/regtrigger/internal/triggererr"
)

const dockerHubEventType = "push"

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", triggererr.ErrMalformedPayload, fmt.Sprintf(format, args...))
}

// Parse detects the registry kind of the payload and parses it.
func Parse(raw []byte, opts ...Option) (*PushNotification, error) {
	var fields map[string]json.RawMessage

	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, malformed("unmarshaling json failed: %s", err)
	}

	if _, exist := fields["push_data"]; exist {
		return ParseDockerHub(raw, opts...)
	}

	_, hasType := fields["type"]
	_, hasContents := fields["contents"]
	if hasType && hasContents {
		return ParseDTR(raw, opts...)
	}

	return nil, malformed("payload is neither a docker hub nor a dtr notification")
}

// dockerHubPushedAt is decoded separately, docker.BuildPayload stores
// pushed_at as float32 which can not represent current unix timestamps
// exactly.
type dockerHubPushedAt struct {
	PushData struct {
		PushedAt json.Number `json:"pushed_at"`
	} `json:"push_data"`
	Repository struct {
		IsPrivate *bool `json:"is_private"`
	} `json:"repository"`
}

// ParseDockerHub parses a Docker Hub repository webhook payload.
func ParseDockerHub(raw []byte, opts ...Option) (*PushNotification, error) {
	var pl docker.BuildPayload
	var extra dockerHubPushedAt

	if err := json.Unmarshal(raw, &pl); err != nil {
		return nil, malformed("unmarshaling docker hub payload failed: %s", err)
	}

	if err := json.Unmarshal(raw, &extra); err != nil {
		return nil, malformed("unmarshaling docker hub payload failed: %s", err)
	}

	if pl.Repository.RepoName == "" {
		return nil, malformed("missing field: 'repository.repo_name'")
	}

	data := Data{
		Registry:     RegistryDockerHub,
		EventRawType: dockerHubEventType,
		Namespace:    pl.Repository.Namespace,
		RepoName:     pl.Repository.RepoName,
		Tag:          pl.PushData.Tag,
		Pusher:       pl.PushData.Pusher,
		Host:         DefaultDockerHubHost,
		CallbackURL:  pl.CallbackURL,
		IsPrivate:    extra.Repository.IsPrivate,
	}

	if data.Tag == "" {
		data.Tag = "latest"
	}

	if data.Namespace == "" {
		if ns, _, found := strings.Cut(data.RepoName, "/"); found {
			data.Namespace = ns
		}
	}

	if pl.Repository.RepoURL != "" {
		u, err := url.Parse(pl.Repository.RepoURL)
		switch {
		case err != nil:
			// the url only determines the host, the notification is
			// still usable with the default one
			zap.L().Named("notification").Warn(
				"parsing docker hub repository url failed, using default host",
				logfields.Event("docker_hub_repo_url_invalid"),
				logfields.Registry(string(RegistryDockerHub)),
				zap.String("repo_url", pl.Repository.RepoURL),
				zap.String("host", DefaultDockerHubHost),
				zap.Error(err),
			)

		case u.Host != "":
			data.Host = u.Host
		}
	}

	if extra.PushData.PushedAt != "" {
		ts, err := extra.PushData.PushedAt.Float64()
		if err != nil {
			return nil, malformed("push_data.pushed_at: %s", err)
		}

		data.PushedAt = time.Unix(int64(ts), 0).UTC()
	}

	return New(data, raw, opts...), nil
}

type dtrScanSummary struct {
	Critical       int `json:"critical"`
	Major          int `json:"major"`
	Minor          int `json:"minor"`
	LastScanStatus any `json:"last_scan_status"`
}

type dtrContents struct {
	Namespace        string          `json:"namespace"`
	Repository       string          `json:"repository"`
	Tag              string          `json:"tag"`
	Digest           string          `json:"digest"`
	ImageName        string          `json:"imageName"`
	OS               string          `json:"os"`
	Architecture     string          `json:"architecture"`
	Author           string          `json:"author"`
	PushedAt         string          `json:"pushedAt"`
	ScanSummary      *dtrScanSummary `json:"scanSummary"`
	SourceRepository string          `json:"sourceRepository"`
	SourceTag        string          `json:"sourceTag"`
}

type dtrPayload struct {
	Type      string       `json:"type"`
	CreatedAt string       `json:"createdAt"`
	Location  string       `json:"location"`
	Contents  *dtrContents `json:"contents"`
}

// ParseDTR parses a Docker Trusted Registry webhook payload.
// DTR payloads do not contain the registry host, it can be set via WithHost().
func ParseDTR(raw []byte, opts ...Option) (*PushNotification, error) {
	var pl dtrPayload

	if err := json.Unmarshal(raw, &pl); err != nil {
		return nil, malformed("unmarshaling dtr payload failed: %s", err)
	}

	if strings.TrimSpace(pl.Type) == "" {
		return nil, malformed("missing field: 'type'")
	}

	c := pl.Contents
	if c == nil {
		return nil, malformed("missing field: 'contents'")
	}

	if c.Namespace == "" {
		return nil, malformed("missing field: 'contents.namespace'")
	}

	if c.Repository == "" {
		return nil, malformed("missing field: 'contents.repository'")
	}

	data := Data{
		Registry:     RegistryDTR,
		EventRawType: pl.Type,
		Namespace:    c.Namespace,
		RepoName:     c.Namespace + "/" + c.Repository,
		Tag:          c.Tag,
		Pusher:       c.Author,
		Digest:       c.Digest,
		ImageName:    c.ImageName,
		OS:           c.OS,
		Architecture: c.Architecture,
	}

	pushedAt := c.PushedAt
	if pushedAt == "" {
		pushedAt = pl.CreatedAt
	}

	if pushedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, pushedAt)
		if err != nil {
			return nil, malformed("parsing timestamp %q failed: %s", pushedAt, err)
		}

		data.PushedAt = t.UTC()
	}

	if c.ScanSummary != nil {
		data.Scan = &ScanSummary{
			Critical: c.ScanSummary.Critical,
			Major:    c.ScanSummary.Major,
			Minor:    c.ScanSummary.Minor,
		}

		if c.ScanSummary.LastScanStatus != nil {
			data.Scan.Status = fmt.Sprint(c.ScanSummary.LastScanStatus)
		}
	}

	if c.SourceRepository != "" {
		data.Promotion = &Promotion{
			SourceRepository: c.SourceRepository,
			SourceTag:        c.SourceTag,
		}
	}

	return New(data, raw, opts...), nil
}

// IsMalformed returns true if err was caused by an invalid payload.
func IsMalformed(err error) bool {
	return errors.Is(err, triggererr.ErrMalformedPayload)
}
