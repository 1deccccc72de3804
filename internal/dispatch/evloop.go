// Package dispatch receives push notifications, matches them against the
// registered triggers and hands the triggered builds over to their actions.
package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/regtrigger/internal/action"
	"github.com/simplesurance/regtrigger/internal/build"
	"github.com/simplesurance/regtrigger/internal/logfields"
	"github.com/simplesurance/regtrigger/internal/metrics"
	"github.com/simplesurance/regtrigger/internal/notification"
	"github.com/simplesurance/regtrigger/internal/orderedmap"
	"github.com/simplesurance/regtrigger/internal/projector"
	"github.com/simplesurance/regtrigger/internal/trigger"
)

const DefEventChannelBufferSize = 512
const DefRetryTimeout = 2 * time.Hour
const DefDedupCacheSize = 1024

const loggerName = "event-loop"

// TriggerSource provides the currently registered triggers.
type TriggerSource interface {
	// Triggers returns a snapshot of all triggers, sorted by job name.
	Triggers() []*trigger.Trigger
}

// BuildObserver is called for every triggered build after its actions were
// scheduled. It is called from the event loop go-routine and must not
// block.
type BuildObserver func(*TriggeredBuild)

// EvLoop receives push notifications and triggers builds of matching jobs.
// Actions are executed asynchronously in go-routines and are retried until
// DefRetryTimeout expired.
type EvLoop struct {
	ch        chan *notification.PushNotification
	logger    *zap.Logger
	triggers  TriggerSource
	projector *projector.Projector

	dedupCacheSize int
	// seen is only accessed from the event loop go-routine.
	seen      *orderedmap.Map[string, struct{}]
	observers []BuildObserver

	actionWg      sync.WaitGroup
	actionDeferFn func()
	retryer       *Retryer
}

// WithActionRoutineDeferFunc sets a function to be run when a go-routine
// that executes an action returns.
// It can be used to set a panic handler.
func WithActionRoutineDeferFunc(fn func()) func(*EvLoop) {
	return func(e *EvLoop) {
		e.actionDeferFn = fn
	}
}

// WithDedupCacheSize sets how many notification fingerprints are
// remembered to detect duplicate deliveries. A size <= 0 disables
// duplicate detection.
func WithDedupCacheSize(size int) func(*EvLoop) {
	return func(e *EvLoop) {
		e.dedupCacheSize = size
	}
}

// WithBuildObserver registers fn to be called for every triggered build.
func WithBuildObserver(fn BuildObserver) func(*EvLoop) {
	return func(e *EvLoop) {
		e.observers = append(e.observers, fn)
	}
}

func NewEventLoop(triggers TriggerSource, p *projector.Projector, opts ...func(*EvLoop)) *EvLoop {
	evl := EvLoop{
		ch:             make(chan *notification.PushNotification, DefEventChannelBufferSize),
		triggers:       triggers,
		projector:      p,
		dedupCacheSize: DefDedupCacheSize,
		retryer:        NewRetryer(),
	}

	for _, opt := range opts {
		opt(&evl)
	}

	if evl.logger == nil {
		evl.logger = zap.L().Named(loggerName)
	}

	if evl.dedupCacheSize > 0 {
		evl.seen = orderedmap.NewBounded[string, struct{}](evl.dedupCacheSize)
	}

	return &evl
}

// C returns the notification channel.
// Notifications sent to this channel will be processed.
// The channel is closed when Stop() is called.
func (e *EvLoop) C() chan<- *notification.PushNotification {
	return e.ch
}

// Start processes notifications until the channel is closed.
func (e *EvLoop) Start() {
	ctx := context.Background()
	e.logger.Info("ready to process notifications", logfields.Event("eventloop_started"))

	for n := range e.ch {
		e.process(ctx, n)
	}

	e.logger.Info(
		"event loop terminated, notification channel was closed",
		logfields.Event("eventloop_terminated"),
	)
}

func (e *EvLoop) isDuplicate(n *notification.PushNotification) bool {
	if e.seen == nil || !n.Identifiable() {
		return false
	}

	added, _ := e.seen.EnqueueIfNotExist(n.Fingerprint(), struct{}{})

	return !added
}

func (e *EvLoop) process(ctx context.Context, n *notification.PushNotification) {
	logger := e.logger.With(n.LogFields()...)

	logger.Debug("notification received", logfields.Event("notification_received"))

	if e.isDuplicate(n) {
		logger.Info(
			"notification was already processed, ignoring duplicate delivery",
			logfields.Event("notification_duplicate_ignored"),
		)
		metrics.NotificationDuplicateInc()

		return
	}

	for _, b := range e.TriggeredBuilds(ctx, n) {
		e.dispatch(ctx, b)
	}
}

// TriggeredBuilds matches n against all registered triggers, in job name
// order, and returns a build with projected environment for every
// matching trigger.
// No actions are executed.
func (e *EvLoop) TriggeredBuilds(ctx context.Context, n *notification.PushNotification) []*TriggeredBuild {
	var result []*TriggeredBuild

	for _, t := range e.triggers.Triggers() {
		logger := e.logger.With(append(n.LogFields(), logfields.Job(t.Job()))...)

		match, err := t.Match(ctx, n)
		if err != nil {
			logger.Error(
				"matching trigger failed",
				logfields.Event("trigger_matching_failed"),
				zap.Error(err),
			)
			metrics.TriggerMatchErrorInc(t.Job())

			continue
		}

		logger.Debug(
			"evaluated result of matching notification with trigger",
			logfields.Event("trigger_match_result_evaluated"),
			zap.String("match_result", match.String()),
		)

		switch match {
		case trigger.Match:
			break
		case trigger.EventTypeMismatch, trigger.FilterMismatch:
			continue
		default:
			logger.Error(
				"match returned invalid result",
				logfields.Event("trigger_match_invalid_result"),
				zap.String("match_result", match.String()),
			)

			continue
		}

		// the cause is complete before the run and its environment exist
		cause := build.NewWebHookCause(n)
		run := build.NewRun(t.Job(), cause)

		result = append(result, &TriggeredBuild{
			Run:          run,
			Env:          e.projector.Project(run, t.BaseEnv()),
			Notification: n,
			trigger:      t,
		})
	}

	return result
}

func (e *EvLoop) dispatch(ctx context.Context, b *TriggeredBuild) {
	logger := e.logger.With(b.LogFields()...)

	runners, err := renderActions(b.trigger.Actions(), b)
	if err != nil {
		logger.Error(
			"templating action definition failed, build is skipped",
			logfields.Event("action_templating_failed"),
			zap.Error(err),
		)

		return
	}

	for _, r := range runners {
		b.Actions = append(b.Actions, r.String())
		e.scheduleAction(ctx, b, r)
	}

	logger.Info(
		"build triggered",
		logfields.Event("build_triggered"),
		zap.Int("actions", len(runners)),
	)
	metrics.BuildTriggeredInc(b.Job())

	for _, o := range e.observers {
		o(b)
	}
}

func renderActions(configs []action.Config, b *TriggeredBuild) ([]action.Runner, error) {
	result := make([]action.Runner, 0, len(configs))
	fn := renderFunc(b)

	for _, c := range configs {
		r, err := c.Render(b, fn)
		if err != nil {
			return nil, err
		}

		result = append(result, r)
	}

	return result, nil
}

func (e *EvLoop) scheduleAction(ctx context.Context, b *TriggeredBuild, r action.Runner) {
	e.actionWg.Add(1)

	go func() {
		if e.actionDeferFn != nil {
			defer e.actionDeferFn()
		}

		defer e.actionWg.Done()

		_ = e.retryer.Run(
			ctx,
			r.Run,
			append(b.LogFields(), r.LogFields()...),
		)
	}()
}

// Stop stops the event loop and waits until all scheduled go-routines
// terminated.
// The notification channel (Evloop.C()) will be closed.
func (e *EvLoop) Stop() {
	e.logger.Debug("event loop terminating", logfields.Event("eventloop_terminating"))
	close(e.ch)

	e.retryer.Stop()

	e.logger.Debug(
		"waiting for scheduled actions to terminate",
		logfields.Event("eventloop_terminating"),
	)
	e.actionWg.Wait()

	e.logger.Info("event loop terminated", logfields.Event("eventloop_terminated"))
}
