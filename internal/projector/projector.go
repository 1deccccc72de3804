// Package projector composes the build environment of a run from the push
// notification that caused it and the event types of the job's trigger.
package projector

import (
	"errors"

	"go.uber.org/zap"

	"github.com/simplesurance/regtrigger/internal/build"
	"github.com/simplesurance/regtrigger/internal/env"
	"github.com/simplesurance/regtrigger/internal/logfields"
	"github.com/simplesurance/regtrigger/internal/metrics"
	"github.com/simplesurance/regtrigger/internal/notification"
	"github.com/simplesurance/regtrigger/internal/trigger"
	"github.com/simplesurance/regtrigger/internal/triggererr"
)

const loggerName = "projector"

// TriggerLookup returns the trigger that is configured for a job.
type TriggerLookup interface {
	TriggerFor(job string) (*trigger.Trigger, bool)
}

// Result summarizes a projection.
type Result struct {
	// NoCause is true when the run was not triggered by a webhook and the
	// environment was not modified.
	NoCause bool
	// NoTrigger is true when no trigger is configured for the job of the
	// run, only the run parameters were applied.
	NoTrigger bool
	// AppliedParameters contains the names of the successfully applied
	// run parameters, in application order.
	AppliedParameters []string
	// AcceptedEventTypes contains the names of the event types that
	// accepted the notification, in registration order. Event types that
	// failed are also listed in Failures.
	AcceptedEventTypes []string
	// Failures contains a *triggererr.ParameterError or
	// *triggererr.EventTypeError per failed contributor.
	Failures []error
}

// Projector projects run parameters and event type data into build
// environments.
type Projector struct {
	triggers TriggerLookup
	logger   *zap.Logger
}

func New(triggers TriggerLookup) *Projector {
	return &Projector{
		triggers: triggers,
		logger:   zap.L().Named(loggerName),
	}
}

// Project adds the environment variables for run to vars and returns vars.
// If vars is nil a new map is allocated.
// Failing parameters and event types are logged and skipped, variables
// contributed by them are never added partially.
func (p *Projector) Project(run *build.Run, vars env.Vars) env.Vars {
	result, _ := p.ProjectWithResult(run, vars)
	return result
}

// ProjectWithResult is like Project but additionally returns a summary of
// the applied contributions.
func (p *Projector) ProjectWithResult(run *build.Run, vars env.Vars) (env.Vars, *Result) {
	var res Result

	if vars == nil {
		vars = env.Vars{}
	}

	cause, ok := run.Cause()
	if !ok {
		p.logger.Debug(
			"run has no webhook cause, environment is not modified",
			append(run.LogFields(), logfields.Event("projection_skipped_no_cause"))...,
		)

		res.NoCause = true
		return vars, &res
	}

	n := cause.PushNotification()

	p.applyParameters(run, n, vars, &res)

	t, found, err := p.triggerFor(run.Parent())
	if err != nil {
		p.logger.Warn(
			"resolving trigger failed, event type environment is skipped",
			append(run.LogFields(),
				logfields.Event("trigger_resolution_failed"),
				zap.Error(err),
			)...,
		)
		metrics.ProjectionFailureInc(metrics.ProjectionFailureTrigger)

		res.Failures = append(res.Failures, err)
		return vars, &res
	}

	if !found {
		p.logger.Debug(
			"no trigger configured for job, only run parameters are applied",
			append(run.LogFields(), logfields.Event("projection_no_trigger"))...,
		)

		res.NoTrigger = true
		return vars, &res
	}

	p.applyEventTypes(run, t, n, vars, &res)

	return vars, &res
}

func (p *Projector) applyParameters(run *build.Run, n *notification.PushNotification, vars env.Vars, res *Result) {
	for _, param := range n.RunParameters() {
		err := stage(vars, param.Apply)
		if err != nil {
			err = &triggererr.ParameterError{Name: param.Name(), Err: err}
			p.logger.Warn(
				"applying run parameter failed, parameter is skipped",
				append(run.LogFields(),
					logfields.Event("parameter_application_failed"),
					logfields.Parameter(param.Name()),
					zap.Error(err),
				)...,
			)
			metrics.ProjectionFailureInc(metrics.ProjectionFailureParameter)

			res.Failures = append(res.Failures, err)
			continue
		}

		res.AppliedParameters = append(res.AppliedParameters, param.Name())
	}
}

func (p *Projector) applyEventTypes(run *build.Run, t *trigger.Trigger, n *notification.PushNotification, vars env.Vars, res *Result) {
	jsonType := n.EventJSONType()

	for _, et := range t.EventTypes() {
		accepted, err := accepts(et.Accepts, jsonType)
		if err != nil {
			err = &triggererr.EventTypeError{EventType: et.Name(), Err: err}
			p.logFailedEventType(run, et.Name(), err)
			res.Failures = append(res.Failures, err)
			continue
		}

		if !accepted {
			continue
		}

		res.AcceptedEventTypes = append(res.AcceptedEventTypes, et.Name())

		err = stage(vars, func(scratch env.Vars) error {
			return et.BuildEnvironment(scratch, n)
		})
		if err != nil {
			err = &triggererr.EventTypeError{EventType: et.Name(), Err: err}
			p.logFailedEventType(run, et.Name(), err)
			res.Failures = append(res.Failures, err)
			continue
		}

		p.logger.Debug(
			"event type environment applied",
			append(run.LogFields(),
				logfields.Event("eventtype_environment_applied"),
				logfields.EventType(et.Name()),
			)...,
		)
	}
}

func (p *Projector) logFailedEventType(run *build.Run, eventType string, err error) {
	p.logger.Warn(
		"building event type environment failed, event type is skipped",
		append(run.LogFields(),
			logfields.Event("eventtype_projection_failed"),
			logfields.EventType(eventType),
			zap.Error(err),
		)...,
	)
	metrics.ProjectionFailureInc(metrics.ProjectionFailureEventType)
}

func (p *Projector) triggerFor(job string) (t *trigger.Trigger, found bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			t, found, err = nil, false, triggererr.PanicError(r)
		}
	}()

	if p.triggers == nil {
		return nil, false, errors.New("no trigger registry configured")
	}

	t, found = p.triggers.TriggerFor(job)
	if found && t == nil {
		return nil, false, nil
	}

	return t, found, nil
}

// stage runs fn with an empty environment and merges the result into vars
// if fn succeeds.
func stage(vars env.Vars, fn func(env.Vars) error) (err error) {
	scratch := env.Vars{}

	defer func() {
		if r := recover(); r != nil {
			err = triggererr.PanicError(r)
		}
	}()

	if err := fn(scratch); err != nil {
		return err
	}

	vars.Merge(scratch)

	return nil
}

func accepts(fn func(string) bool, rawType string) (accepted bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			accepted, err = false, triggererr.PanicError(r)
		}
	}()

	return fn(rawType), nil
}
