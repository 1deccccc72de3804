package githubdispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v43/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/simplesurance/regtrigger/internal/logfields"
	"github.com/simplesurance/regtrigger/internal/triggererr"
)

const DefaultHTTPClientTimeout = time.Minute

//go:generate mockgen -destination=mocks/client.go -package=mocks . Client

// Client sends repository_dispatch events to GitHub.
type Client interface {
	Dispatch(ctx context.Context, owner, repo, eventType string, clientPayload any) error
}

// GithubClient is a Client for the GitHub REST API.
// Dispatch returns a triggererr.RetryableError when the operation can be
// retried, e.g. when the API rate limit is exceeded.
type GithubClient struct {
	restClt *github.Client
	logger  *zap.Logger
}

// NewGithubClient returns a client that authenticates with oauthAPIToken.
// If the token is empty, requests are sent unauthenticated.
func NewGithubClient(oauthAPIToken string) *GithubClient {
	return &GithubClient{
		restClt: github.NewClient(newHTTPClient(oauthAPIToken)),
		logger:  zap.L().Named("github_client"),
	}
}

func newHTTPClient(apiToken string) *http.Client {
	if apiToken == "" {
		return &http.Client{
			Timeout: DefaultHTTPClientTimeout,
		}
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: apiToken},
	)

	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = DefaultHTTPClientTimeout

	return tc
}

func (clt *GithubClient) Dispatch(ctx context.Context, owner, repo, eventType string, clientPayload any) error {
	payload, err := json.Marshal(clientPayload)
	if err != nil {
		return fmt.Errorf("marshaling client payload failed: %w", err)
	}

	rawPayload := json.RawMessage(payload)

	_, _, err = clt.restClt.Repositories.Dispatch(ctx, owner, repo, github.DispatchRequestOptions{
		EventType:     eventType,
		ClientPayload: &rawPayload,
	})

	return clt.wrapRetryableErrors(err)
}

func (clt *GithubClient) wrapRetryableErrors(err error) error {
	switch v := err.(type) {
	case *github.RateLimitError:
		clt.logger.Info(
			"rate limit exceeded",
			logfields.Event("github_api_rate_limit_exceeded"),
			zap.Int("github_api_rate_limit", v.Rate.Limit),
			zap.Time("github_api_rate_limit_reset_time", v.Rate.Reset.Time),
		)

		return triggererr.NewRetryableError(err, v.Rate.Reset.Time)

	case *github.AbuseRateLimitError:
		if v.RetryAfter != nil {
			return triggererr.NewRetryableError(err, time.Now().Add(*v.RetryAfter))
		}

		return triggererr.NewRetryableAnytimeError(err)

	case *github.ErrorResponse:
		if v.Response != nil && v.Response.StatusCode >= 500 && v.Response.StatusCode < 600 {
			return triggererr.NewRetryableAnytimeError(err)
		}
	}

	return err
}
