// Package provider receives registry webhook http-requests, converts them
// to push notifications and forwards them to a notification channel.
package provider

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/simplesurance/regtrigger/internal/logfields"
	"github.com/simplesurance/regtrigger/internal/metrics"
	"github.com/simplesurance/regtrigger/internal/notification"
)

// MaxBodySize is the maximum accepted size of a webhook request body.
const MaxBodySize = 1 << 20

const (
	// TokenQueryParameter is the name of the URL query parameter that
	// can carry the webhook token.
	TokenQueryParameter = "token"
	// TokenHeader is the name of the http-header that can carry the
	// webhook token.
	TokenHeader = "X-Regtrigger-Token"
)

// ParseFunc converts a webhook body to a PushNotification.
type ParseFunc func(raw []byte, opts ...notification.Option) (*notification.PushNotification, error)

// Provider listens for webhook http-requests of a registry at a
// http-server handler, validates and converts the requests to
// PushNotifications and forwards them to a channel.
type Provider struct {
	registry  notification.Registry
	logger    *zap.Logger
	parse     ParseFunc
	token     []byte
	parseOpts []notification.Option
	c         chan<- *notification.PushNotification
}

type Option func(*Provider)

// WithToken requires that requests carry token, either in the token URL
// query parameter or in the X-Regtrigger-Token header.
// An empty token disables the check.
func WithToken(token string) Option {
	return func(p *Provider) {
		p.token = []byte(token)
	}
}

// WithNotificationOptions passes opts to the parser of every request.
func WithNotificationOptions(opts ...notification.Option) Option {
	return func(p *Provider) {
		p.parseOpts = append(p.parseOpts, opts...)
	}
}

func New(registry notification.Registry, parse ParseFunc, ch chan<- *notification.PushNotification, opts ...Option) *Provider {
	p := Provider{
		registry: registry,
		parse:    parse,
		c:        ch,
	}

	for _, o := range opts {
		o(&p)
	}

	if p.logger == nil {
		p.logger = zap.L().Named(string(registry) + "-provider").With(logfields.Registry(string(registry)))
	}

	return &p
}

func (p *Provider) Registry() notification.Registry {
	return p.registry
}

func (p *Provider) authorized(req *http.Request) bool {
	if len(p.token) == 0 {
		return true
	}

	reqToken := req.Header.Get(TokenHeader)
	if reqToken == "" {
		reqToken = req.URL.Query().Get(TokenQueryParameter)
	}

	return subtle.ConstantTimeCompare([]byte(reqToken), p.token) == 1
}

func (p *Provider) HTTPHandler(resp http.ResponseWriter, req *http.Request) {
	logger := p.logger.With(zap.String("http.remote_addr", req.RemoteAddr))

	logger.Debug("received a http request", logfields.Event("webhook_request_received"))

	if req.Method != http.MethodPost {
		logger.Info(
			"received http request with unsupported method",
			logfields.Event("webhook_request_method_not_allowed"),
			zap.String("http.method", req.Method),
		)

		resp.Header().Set("Allow", http.MethodPost)
		http.Error(resp, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !p.authorized(req) {
		logger.Info(
			"received http request with invalid token",
			logfields.Event("webhook_request_unauthorized"),
		)

		http.Error(resp, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(resp, req.Body, MaxBodySize))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			logger.Info(
				"received http request with too large body",
				logfields.Event("webhook_request_body_too_large"),
				zap.Int64("limit", maxBytesErr.Limit),
			)

			http.Error(resp, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}

		logger.Info(
			"reading http request body failed",
			logfields.Event("webhook_request_body_read_failed"),
			zap.Error(err),
		)

		http.Error(resp, "reading body failed", http.StatusBadRequest)
		return
	}

	logger.Debug(
		"received http request",
		logfields.Event("webhook_request_body_read"),
		zap.ByteString("http_body", body),
	)

	n, err := p.parse(body, p.parseOpts...)
	if err != nil {
		if notification.IsMalformed(err) {
			logger.Info(
				"received invalid http request, parsing payload failed",
				logfields.Event("webhook_payload_malformed"),
				zap.Error(err),
			)

			http.Error(resp, err.Error(), http.StatusBadRequest)
			return
		}

		logger.Error(
			"parsing payload failed",
			logfields.Event("webhook_payload_parsing_failed"),
			zap.Error(err),
		)

		http.Error(resp, "internal error", http.StatusInternalServerError)
		return
	}

	logger = logger.With(
		logfields.EventJSONType(n.EventJSONType()),
		logfields.Repository(n.RepoName()),
		logfields.Tag(n.Tag()),
	)
	metrics.NotificationReceivedInc(string(p.registry))

	select {
	case p.c <- n:
		logger.Debug(
			"notification forwarded to channel",
			logfields.Event("notification_forwarded"),
		)

	default:
		logger.Warn(
			"notification lost, forwarding notification to channel failed",
			zap.String("error", "could not forward notification to channel, send would have blocked"),
			logfields.Event("notification_forwarding_failed"),
		)

		http.Error(resp, "queue full", http.StatusServiceUnavailable)
		return
	}
}
