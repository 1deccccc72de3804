// Package action defines how triggered builds are handed over to the
// build executor.
package action

import (
	"context"

	"go.uber.org/zap"

	"github.com/simplesurance/regtrigger/internal/env"
)

// Runner executes a rendered action.
type Runner interface {
	Run(ctx context.Context) error
	String() string
	LogFields() []zap.Field
}

// Build is the triggered build that an action is rendered for.
type Build interface {
	RunID() string
	Job() string
	// Environment returns a copy of the projected build environment.
	Environment() env.Vars
}

// Config is the configuration of an action that is executed when a
// trigger fires.
type Config interface {
	// Render runs renderFunc for all configuration options of the
	// action that are templated and returns a runnable action.
	Render(build Build, renderFunc func(string) (string, error)) (Runner, error)
	// String returns a short representation of the Config.
	String() string
	// DetailedString returns a formatted detailed description.
	DetailedString() string
}
