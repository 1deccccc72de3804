// Package triggererr defines the errors shared between the ingestion,
// matching and environment projection components.
package triggererr

import (
	"errors"
	"fmt"
)

// ErrMalformedPayload is returned when a webhook body can not be parsed or
// misses required fields.
var ErrMalformedPayload = errors.New("malformed payload")

// ParameterError is reported when applying a single run parameter to the
// build environment failed.
type ParameterError struct {
	Name string
	Err  error
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("applying parameter %q failed: %s", e.Name, e.Err)
}

func (e *ParameterError) Unwrap() error {
	return e.Err
}

// EventTypeError is reported when the environment projection of a single
// event type failed.
type EventTypeError struct {
	EventType string
	Err       error
}

func (e *EventTypeError) Error() string {
	return fmt.Sprintf("building environment for event type %s failed: %s", e.EventType, e.Err)
}

func (e *EventTypeError) Unwrap() error {
	return e.Err
}

// PanicError converts a recovered panic value into an error.
func PanicError(recovered any) error {
	if err, ok := recovered.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}

	return fmt.Errorf("panic: %v", recovered)
}
