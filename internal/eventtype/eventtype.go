// Package eventtype implements the registry event categories a trigger can
// subscribe to. Every event type decides if it accepts a notification type
// and contributes its own environment variables to a triggered build.
package eventtype

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/simplesurance/regtrigger/internal/env"
	"github.com/simplesurance/regtrigger/internal/notification"
)

const (
	EnvEvent               = "DOCKER_TRIGGER_EVENT"
	EnvDigest              = "DOCKER_TRIGGER_DIGEST"
	EnvImageName           = "DOCKER_TRIGGER_IMAGE_NAME"
	EnvOS                  = "DOCKER_TRIGGER_OS"
	EnvArchitecture        = "DOCKER_TRIGGER_ARCHITECTURE"
	EnvDeletedTag          = "DOCKER_TRIGGER_DELETED_TAG"
	EnvScanStatus          = "DOCKER_TRIGGER_SCAN_STATUS"
	EnvScanCritical        = "DOCKER_TRIGGER_SCAN_CRITICAL"
	EnvScanMajor           = "DOCKER_TRIGGER_SCAN_MAJOR"
	EnvScanMinor           = "DOCKER_TRIGGER_SCAN_MINOR"
	EnvPromotionSourceRepo = "DOCKER_TRIGGER_PROMOTION_SOURCE_REPO"
	EnvPromotionSourceTag  = "DOCKER_TRIGGER_PROMOTION_SOURCE_TAG"
)

// EventType is a category of registry events.
type EventType interface {
	// Name returns the identifier that is used in the configuration.
	Name() string
	// Accepts returns true if notifications with the event type
	// discriminator rawType belong to the category.
	Accepts(rawType string) bool
	// BuildEnvironment adds the variables of the event type to vars.
	BuildEnvironment(vars env.Vars, n *notification.PushNotification) error
}

var (
	Push      EventType = &push{names: newNameMatcher("push", "tag_push", "manifest_push")}
	Delete    EventType = &deleteEv{names: newNameMatcher("delete", "tag_delete", "manifest_delete")}
	Scan      EventType = &scan{names: newPatternMatcher(`^scan_(completed|failed)$`)}
	Promotion EventType = &promotion{names: newNameMatcher("promotion")}
	Mirroring EventType = &mirroring{names: newPatternMatcher(`_mirroring$`)}
)

// All contains every supported event type.
var All = []EventType{Push, Delete, Scan, Promotion, Mirroring}

// FromString returns the event type with the given name, the comparison
// is case-insensitive.
func FromString(name string) (EventType, error) {
	for _, et := range All {
		if strings.EqualFold(et.Name(), strings.TrimSpace(name)) {
			return et, nil
		}
	}

	return nil, fmt.Errorf("unsupported event type: %q", name)
}

// ParseList resolves names to event types, the order is preserved.
// Unknown and duplicate names are rejected.
func ParseList(names []string) ([]EventType, error) {
	if len(names) == 0 {
		return nil, errors.New("event type list is empty")
	}

	result := make([]EventType, 0, len(names))
	seen := make(map[EventType]struct{}, len(names))

	for _, name := range names {
		et, err := FromString(name)
		if err != nil {
			return nil, err
		}

		if _, exist := seen[et]; exist {
			return nil, fmt.Errorf("event type %s is listed multiple times", et.Name())
		}

		seen[et] = struct{}{}
		result = append(result, et)
	}

	return result, nil
}

// Names returns the names of the event types.
func Names(eventTypes []EventType) []string {
	result := make([]string, 0, len(eventTypes))

	for _, et := range eventTypes {
		result = append(result, et.Name())
	}

	return result
}

func setIfNotEmpty(vars env.Vars, key, val string) error {
	if val == "" {
		return nil
	}

	return vars.Override(key, val)
}

type push struct {
	names matcher
}

func (*push) Name() string { return "PUSH" }

func (p *push) Accepts(rawType string) bool { return p.names.match(rawType) }

func (p *push) BuildEnvironment(vars env.Vars, n *notification.PushNotification) error {
	if err := vars.Override(EnvEvent, p.Name()); err != nil {
		return err
	}

	for _, kv := range [...][2]string{
		{EnvDigest, n.Digest()},
		{EnvImageName, n.ImageName()},
		{EnvOS, n.OS()},
		{EnvArchitecture, n.Architecture()},
	} {
		if err := setIfNotEmpty(vars, kv[0], kv[1]); err != nil {
			return err
		}
	}

	return nil
}

type deleteEv struct {
	names matcher
}

func (*deleteEv) Name() string { return "DELETE" }

func (d *deleteEv) Accepts(rawType string) bool { return d.names.match(rawType) }

func (d *deleteEv) BuildEnvironment(vars env.Vars, n *notification.PushNotification) error {
	if err := vars.Override(EnvEvent, d.Name()); err != nil {
		return err
	}

	return setIfNotEmpty(vars, EnvDeletedTag, n.Tag())
}

type scan struct {
	names matcher
}

func (*scan) Name() string { return "SCAN" }

func (s *scan) Accepts(rawType string) bool { return s.names.match(rawType) }

func (s *scan) BuildEnvironment(vars env.Vars, n *notification.PushNotification) error {
	summary, ok := n.ScanSummary()
	if !ok {
		return errors.New("notification contains no scan summary")
	}

	for _, kv := range [...][2]string{
		{EnvEvent, s.Name()},
		{EnvScanCritical, strconv.Itoa(summary.Critical)},
		{EnvScanMajor, strconv.Itoa(summary.Major)},
		{EnvScanMinor, strconv.Itoa(summary.Minor)},
	} {
		if err := vars.Override(kv[0], kv[1]); err != nil {
			return err
		}
	}

	return setIfNotEmpty(vars, EnvScanStatus, summary.Status)
}

type promotion struct {
	names matcher
}

func (*promotion) Name() string { return "PROMOTION" }

func (p *promotion) Accepts(rawType string) bool { return p.names.match(rawType) }

func (p *promotion) BuildEnvironment(vars env.Vars, n *notification.PushNotification) error {
	src, ok := n.Promotion()
	if !ok {
		return errors.New("notification contains no promotion source")
	}

	if err := vars.Override(EnvEvent, p.Name()); err != nil {
		return err
	}

	if err := vars.Override(EnvPromotionSourceRepo, src.SourceRepository); err != nil {
		return err
	}

	return setIfNotEmpty(vars, EnvPromotionSourceTag, src.SourceTag)
}

type mirroring struct {
	names matcher
}

func (*mirroring) Name() string { return "MIRRORING" }

func (m *mirroring) Accepts(rawType string) bool { return m.names.match(rawType) }

func (m *mirroring) BuildEnvironment(vars env.Vars, _ *notification.PushNotification) error {
	return vars.Override(EnvEvent, m.Name())
}
