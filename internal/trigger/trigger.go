// Package trigger provides the per-job webhook trigger configuration and the
// registry that maps jobs to their triggers.
package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"

	"github.com/simplesurance/regtrigger/internal/action"
	"github.com/simplesurance/regtrigger/internal/env"
	"github.com/simplesurance/regtrigger/internal/eventtype"
	"github.com/simplesurance/regtrigger/internal/notification"
)

// Trigger defines for a job which registry events start a build, the
// base environment of the builds and the actions that hand the build over
// to the executor.
// A Trigger is not modified after creation.
type Trigger struct {
	job         string
	eventTypes  []eventtype.EventType
	filterQuery *gojq.Query
	env         env.Vars
	actions     []action.Config
}

// New creates a Trigger. jqQuery is optional, if it is not empty it must
// evaluate to a boolean for the JSON payload of a notification.
func New(job string, eventTypes []eventtype.EventType, jqQuery string, baseEnv env.Vars, actions []action.Config) (*Trigger, error) {
	if job == "" {
		return nil, errors.New("job name is empty")
	}

	if len(eventTypes) == 0 {
		return nil, errors.New("no event types defined")
	}

	for k := range baseEnv {
		if err := env.ValidateName(k); err != nil {
			return nil, err
		}
	}

	t := Trigger{
		job:        job,
		eventTypes: append([]eventtype.EventType(nil), eventTypes...),
		env:        baseEnv.Clone(),
		actions:    append([]action.Config(nil), actions...),
	}

	if strings.TrimSpace(jqQuery) != "" {
		query, err := gojq.Parse(jqQuery)
		if err != nil {
			return nil, fmt.Errorf("parsing filter query failed: %w", err)
		}

		t.filterQuery = query
	}

	return &t, nil
}

func (t *Trigger) Job() string { return t.job }

// EventTypes returns the event types in registration order.
func (t *Trigger) EventTypes() []eventtype.EventType {
	return append([]eventtype.EventType(nil), t.eventTypes...)
}

// BaseEnv returns a copy of the environment that builds start with.
func (t *Trigger) BaseEnv() env.Vars {
	return t.env.Clone()
}

func (t *Trigger) Actions() []action.Config {
	return append([]action.Config(nil), t.actions...)
}

// FilterQuery returns the jq filter query, it is empty if none is defined.
func (t *Trigger) FilterQuery() string {
	if t.filterQuery == nil {
		return ""
	}

	return t.filterQuery.String()
}

// Accepts returns true if one of the event types of the trigger accepts the
// event type of the notification.
func (t *Trigger) Accepts(n *notification.PushNotification) bool {
	for _, et := range t.eventTypes {
		if et.Accepts(n.EventJSONType()) {
			return true
		}
	}

	return false
}

// Match returns Match if one of the event types accepts the notification
// and the filter query evaluates to true for the JSON payload.
func (t *Trigger) Match(ctx context.Context, n *notification.PushNotification) (MatchResult, error) {
	if !t.Accepts(n) {
		return EventTypeMismatch, nil
	}

	if t.filterQuery == nil {
		return Match, nil
	}

	return t.evalFilter(ctx, n.JSON())
}

func goJQIterToSlice(iter gojq.Iter) ([]any, []error) {
	var result []any
	var errs []error

	for {
		res, ok := iter.Next()
		if !ok {
			return result, errs
		}

		if err, isErr := res.(error); isErr {
			errs = append(errs, err)
			continue
		}

		result = append(result, res)
	}
}

func errString(errs []error) string {
	var result strings.Builder

	for i, err := range errs {
		if i > 0 {
			result.WriteString("; ")
		}

		result.WriteString(fmt.Sprintf("error %d: %s", i, err))
	}

	return result.String()
}

func (t *Trigger) evalFilter(ctx context.Context, payload []byte) (MatchResult, error) {
	var evUn any

	if len(payload) == 0 {
		return MatchResultUndefined, errors.New("json payload of notification is empty")
	}

	if err := json.Unmarshal(payload, &evUn); err != nil {
		return MatchResultUndefined, fmt.Errorf("unmarshaling json failed: %w", err)
	}

	result, errs := goJQIterToSlice(t.filterQuery.RunWithContext(ctx, evUn))
	if len(errs) != 0 {
		return MatchResultUndefined, fmt.Errorf("json query returned errors, query: %q, errors: %s", t.filterQuery.String(), errString(errs))
	}

	if len(result) == 0 {
		return MatchResultUndefined, fmt.Errorf("json query returned 0 results, expected 1, query: %q", t.filterQuery.String())
	}

	if len(result) > 1 {
		return MatchResultUndefined, fmt.Errorf("json query returned multiple results, expected 1, query: %q, result: '%+v'", t.filterQuery.String(), result)
	}

	val, ok := result[0].(bool)
	if !ok {
		return MatchResultUndefined, fmt.Errorf(
			"json query returned non-bool result: %+v (%T), query: %q",
			result[0], result[0], t.filterQuery.String(),
		)
	}

	if val {
		return Match, nil
	}

	return FilterMismatch, nil
}

func (t *Trigger) String() string {
	return t.job
}

func (t *Trigger) DetailedString() string {
	var result strings.Builder

	result.WriteString(fmt.Sprintf("Job: %s\nEventTypes: %s\n", t.job, strings.Join(eventtype.Names(t.eventTypes), ", ")))

	if t.filterQuery != nil {
		result.WriteString(fmt.Sprintf("FilterQuery: %s\n", t.filterQuery))
	}

	for i, a := range t.actions {
		if i == 0 {
			result.WriteString("Actions:\n")
		}

		result.WriteString(indent(a.DetailedString(), "  "))
	}

	return result.String()
}

// indent prefixes each non-empty line of str with prefix.
func indent(str, prefix string) string {
	lines := strings.SplitAfter(str, "\n")

	var result strings.Builder
	for _, l := range lines {
		if l == "" {
			continue
		}

		result.WriteString(prefix)
		result.WriteString(l)
	}

	return result.String()
}
