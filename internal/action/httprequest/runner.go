package httprequest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/regtrigger/internal/action"
	"github.com/simplesurance/regtrigger/internal/logfields"
	"github.com/simplesurance/regtrigger/internal/triggererr"
)

const DefaultHTTPClientTimeout = time.Minute

// Runner executes a http request.
type Runner struct {
	*Config
	client *http.Client
	runID  string
	job    string
}

// NewRunner returns a new Runner struct.
// The HTTPClient of the runner uses a timeout of DefaultHTTPClientTimeout.
func NewRunner(cfg *Config, build action.Build) *Runner {
	return &Runner{
		Config: cfg,
		client: &http.Client{
			Timeout: DefaultHTTPClientTimeout,
		},
		runID: build.RunID(),
		job:   build.Job(),
	}
}

// Run sends the http request.
// Transport errors and responses with a non-2xx status code are returned
// as triggererr.RetryableError.
func (h *Runner) Run(ctx context.Context) error {
	logger := h.logger.With(h.LogFields()...)

	var body io.Reader
	if h.data != "" {
		body = bytes.NewBufferString(h.data)
	}

	req, err := http.NewRequestWithContext(ctx, h.method, h.url, body)
	if err != nil {
		return err
	}

	if h.user != "" || h.password != "" {
		req.SetBasicAuth(h.user, h.password)
	}

	for k, v := range h.headers {
		req.Header.Add(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return triggererr.NewRetryableAnytimeError(err)
	}

	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Warn(
			"reading http response body failed",
			logfields.Event("http_reading_response_body_failed"),
			zap.Int("http_response_code", resp.StatusCode),
		)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return triggererr.NewRetryableAnytimeError(&ErrorHTTPRequest{
			Body:   respBody,
			Status: resp.StatusCode,
		})
	}

	logger.Debug(
		fmt.Sprintf("http response: %s", string(respBody)),
		logfields.Event("http_request_sent"),
	)

	return nil
}

// LogFields returns fields that should be used when logging messages related
// to the action.
func (h *Runner) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("action", "httprequest"),
		zap.String("http_url", h.url),
		zap.String("http_method", h.method),
		logfields.Job(h.job),
		logfields.RunID(h.runID),
	}
}
