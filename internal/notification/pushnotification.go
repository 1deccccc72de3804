// Package notification provides the normalized representation of registry
// webhook payloads.
package notification

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/regtrigger/internal/logfields"
)

// Registry is the kind of registry that sent a notification.
type Registry string

const (
	RegistryDockerHub Registry = "dockerhub"
	RegistryDTR       Registry = "dtr"
)

const DefaultDockerHubHost = "registry.hub.docker.com"

const (
	ParamRepoName  = "DOCKER_TRIGGER_REPO_NAME"
	ParamHost      = "DOCKER_TRIGGER_DOCKER_HUB_HOST"
	ParamTag       = "DOCKER_TRIGGER_TAG"
	ParamPusher    = "DOCKER_TRIGGER_PUSHER"
	ParamNamespace = "DOCKER_TRIGGER_NAMESPACE"
	ParamRegistry  = "DOCKER_TRIGGER_REGISTRY"
	ParamPushedAt  = "DOCKER_TRIGGER_PUSHED_AT"
	ParamIsPrivate = "DOCKER_TRIGGER_IS_PRIVATE"
)

// ScanSummary is the vulnerability scan result reported by a registry.
type ScanSummary struct {
	Critical int
	Major    int
	Minor    int
	Status   string
}

// Promotion describes the source of a promoted image.
type Promotion struct {
	SourceRepository string
	SourceTag        string
}

// Data is the registry independent content of a push notification.
type Data struct {
	Registry Registry
	// EventRawType is the event type label as it was sent by the registry.
	EventRawType string

	Namespace string
	// RepoName is the full repository name, usually <namespace>/<name>.
	RepoName     string
	Tag          string
	Pusher       string
	Host         string
	Digest       string
	ImageName    string
	OS           string
	Architecture string
	CallbackURL  string
	PushedAt     time.Time
	// IsPrivate is nil if the registry does not report the visibility.
	IsPrivate *bool

	Scan      *ScanSummary
	Promotion *Promotion
}

// PushNotification is the normalized form of a received registry webhook.
// It is not modified after creation.
type PushNotification struct {
	data          Data
	eventJSONType string
	json          []byte
	receivedAt    time.Time
	params        []Parameter
}

type Option func(*PushNotification)

// WithReceivedAt sets the time when the notification was received. The
// default is the time New() was called.
func WithReceivedAt(t time.Time) Option {
	return func(n *PushNotification) {
		n.receivedAt = t
	}
}

// WithHost overwrites the registry host of the notification.
func WithHost(host string) Option {
	return func(n *PushNotification) {
		if host != "" {
			n.data.Host = host
		}
	}
}

// WithParameters adds additional run parameters. Parameters with the same
// name as a parameter derived from the notification data replace it.
func WithParameters(params ...Parameter) Option {
	return func(n *PushNotification) {
		n.params = append(n.params, params...)
	}
}

// New creates a PushNotification from data, rawJSON is the unmodified
// webhook body.
func New(data Data, rawJSON []byte, opts ...Option) *PushNotification {
	n := PushNotification{
		data:       data,
		receivedAt: time.Now(),
	}

	if data.Scan != nil {
		scan := *data.Scan
		n.data.Scan = &scan
	}

	if data.Promotion != nil {
		promotion := *data.Promotion
		n.data.Promotion = &promotion
	}

	if data.IsPrivate != nil {
		isPrivate := *data.IsPrivate
		n.data.IsPrivate = &isPrivate
	}

	if rawJSON != nil {
		n.json = append([]byte(nil), rawJSON...)
	}

	for _, opt := range opts {
		opt(&n)
	}

	// parameters added via options replace the derived ones
	extraParams := n.params

	n.eventJSONType = strings.ToLower(strings.TrimSpace(n.data.EventRawType))
	n.params = parameterSet(append(n.derivedParameters(), extraParams...))

	return &n
}

func (n *PushNotification) derivedParameters() []Parameter {
	result := make([]Parameter, 0, 8)

	addStr := func(name, val string) {
		if val != "" {
			result = append(result, NewStringParameter(name, val))
		}
	}

	addStr(ParamRepoName, n.data.RepoName)
	addStr(ParamHost, n.data.Host)
	addStr(ParamTag, n.data.Tag)
	addStr(ParamPusher, n.data.Pusher)
	addStr(ParamNamespace, n.data.Namespace)
	addStr(ParamRegistry, string(n.data.Registry))

	if !n.data.PushedAt.IsZero() {
		result = append(result, NewNumberParameter(ParamPushedAt, float64(n.data.PushedAt.Unix())))
	}

	if n.data.IsPrivate != nil {
		result = append(result, NewBoolParameter(ParamIsPrivate, *n.data.IsPrivate))
	}

	return result
}

func (n *PushNotification) Registry() Registry { return n.data.Registry }

// EventRawType returns the event type label as it was received.
func (n *PushNotification) EventRawType() string { return n.data.EventRawType }

// EventJSONType returns the normalized event type discriminator that is
// used to match event types.
func (n *PushNotification) EventJSONType() string { return n.eventJSONType }

func (n *PushNotification) Namespace() string    { return n.data.Namespace }
func (n *PushNotification) RepoName() string     { return n.data.RepoName }
func (n *PushNotification) Tag() string          { return n.data.Tag }
func (n *PushNotification) Pusher() string       { return n.data.Pusher }
func (n *PushNotification) Host() string         { return n.data.Host }
func (n *PushNotification) Digest() string       { return n.data.Digest }
func (n *PushNotification) ImageName() string    { return n.data.ImageName }
func (n *PushNotification) OS() string           { return n.data.OS }
func (n *PushNotification) Architecture() string { return n.data.Architecture }
func (n *PushNotification) CallbackURL() string  { return n.data.CallbackURL }
func (n *PushNotification) PushedAt() time.Time  { return n.data.PushedAt }
func (n *PushNotification) ReceivedAt() time.Time {
	return n.receivedAt
}

// ScanSummary returns the scan result, the bool is false if the
// notification does not contain one.
func (n *PushNotification) ScanSummary() (ScanSummary, bool) {
	if n.data.Scan == nil {
		return ScanSummary{}, false
	}

	return *n.data.Scan, true
}

// Promotion returns the promotion source, the bool is false if the
// notification does not contain one.
func (n *PushNotification) Promotion() (Promotion, bool) {
	if n.data.Promotion == nil {
		return Promotion{}, false
	}

	return *n.data.Promotion, true
}

// JSON returns a copy of the raw webhook body.
func (n *PushNotification) JSON() []byte {
	return append([]byte(nil), n.json...)
}

// RunParameters returns the parameters of the notification, sorted by name.
func (n *PushNotification) RunParameters() []Parameter {
	return append([]Parameter(nil), n.params...)
}

// Identifiable returns true when the notification carries a push timestamp or
// a digest. Without either, different pushes of the same tag can not be told
// apart from redeliveries and Fingerprint must not be used for deduplication.
func (n *PushNotification) Identifiable() bool {
	return !n.data.PushedAt.IsZero() || n.data.Digest != ""
}

// Fingerprint returns a hash that identifies the registry event. Repeated
// deliveries of the same event have the same fingerprint.
func (n *PushNotification) Fingerprint() string {
	h := sha256.New()

	for _, s := range []string{
		string(n.data.Registry),
		n.eventJSONType,
		n.data.Host,
		n.data.RepoName,
		n.data.Tag,
		n.data.Digest,
		n.data.Pusher,
		n.data.CallbackURL,
		strconv.FormatInt(n.data.PushedAt.UnixNano(), 10),
	} {
		// the separator prevents that different field values
		// concatenate to the same string
		h.Write([]byte(s))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}

func (n *PushNotification) String() string {
	return fmt.Sprintf("%s/%s %s:%s", n.data.Registry, n.eventJSONType, n.data.RepoName, n.data.Tag)
}

func (n *PushNotification) LogFields() []zap.Field {
	fields := make([]zap.Field, 0, 5)

	fields = append(fields,
		logfields.Registry(string(n.data.Registry)),
		logfields.EventJSONType(n.eventJSONType),
	)

	if n.data.RepoName != "" {
		fields = append(fields, logfields.Repository(n.data.RepoName))
	}

	if n.data.Tag != "" {
		fields = append(fields, logfields.Tag(n.data.Tag))
	}

	if n.data.Digest != "" {
		fields = append(fields, logfields.Digest(n.data.Digest))
	}

	return fields
}
