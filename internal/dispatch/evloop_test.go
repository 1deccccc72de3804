package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/regtrigger/internal/action"
	"github.com/simplesurance/regtrigger/internal/env"
	"github.com/simplesurance/regtrigger/internal/eventtype"
	"github.com/simplesurance/regtrigger/internal/notification"
	"github.com/simplesurance/regtrigger/internal/projector"
	"github.com/simplesurance/regtrigger/internal/trigger"
)

type recordingAction struct {
	text string
	ch   chan string
}

func (a *recordingAction) Render(_ action.Build, fn func(string) (string, error)) (action.Runner, error) {
	rendered, err := fn(a.text)
	if err != nil {
		return nil, err
	}

	return &recordingRunner{text: rendered, ch: a.ch}, nil
}

func (a *recordingAction) String() string { return "recording" }

func (a *recordingAction) DetailedString() string { return "recording: " + a.text }

type recordingRunner struct {
	text string
	ch   chan string
}

func (r *recordingRunner) Run(context.Context) error {
	r.ch <- r.text
	return nil
}

func (r *recordingRunner) String() string { return "recording: " + r.text }

func (r *recordingRunner) LogFields() []zap.Field { return nil }

func dockerHubNotification(t *testing.T, tag string) *notification.PushNotification {
	t.Helper()

	n, err := notification.ParseDockerHub([]byte(fmt.Sprintf(`{
	  "push_data": {"pusher": "ci", "tag": %q, "pushed_at": 1417566161},
	  "repository": {"repo_name": "acme/app", "namespace": "acme", "name": "app"}
	}`, tag)))
	require.NoError(t, err)

	return n
}

func mustTrigger(t *testing.T, job string, eventTypes []eventtype.EventType, query string, baseEnv env.Vars, actions ...action.Config) *trigger.Trigger {
	t.Helper()

	tr, err := trigger.New(job, eventTypes, query, baseEnv, actions)
	require.NoError(t, err)

	return tr
}

type testLoop struct {
	*EvLoop
	done chan struct{}
}

func startLoop(t *testing.T, registry *trigger.Registry, opts ...func(*EvLoop)) *testLoop {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	l := testLoop{
		EvLoop: NewEventLoop(registry, projector.New(registry), opts...),
		done:   make(chan struct{}),
	}

	go func() {
		l.Start()
		close(l.done)
	}()

	return &l
}

func (l *testLoop) stop(t *testing.T) {
	l.Stop()

	select {
	case <-l.done:
	case <-time.After(5 * time.Second):
		t.Fatal("event loop did not terminate")
	}
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for value")
	}

	var zero T
	return zero
}

func TestEvLoopRunsActionsOfMatchingTriggers(t *testing.T) {
	actionCh := make(chan string, 10)
	buildCh := make(chan *TriggeredBuild, 10)

	registry := trigger.NewRegistry(
		mustTrigger(t, "build", []eventtype.EventType{eventtype.Push}, "", env.Vars{"STAGE": "ci"},
			&recordingAction{
				text: "{{ .Run.Job }} {{ .Env.STAGE }} {{ .Env.DOCKER_TRIGGER_TAG }} {{ .Notification.Repository }}",
				ch:   actionCh,
			},
		),
		mustTrigger(t, "cleanup", []eventtype.EventType{eventtype.Delete}, "", nil,
			&recordingAction{text: "cleanup", ch: actionCh},
		),
	)

	l := startLoop(t, registry, WithBuildObserver(func(b *TriggeredBuild) { buildCh <- b }))

	l.C() <- dockerHubNotification(t, "1.0")

	b := receive(t, buildCh)
	assert.Equal(t, "build", b.Job())
	assert.Equal(t, "PUSH", b.Env[eventtype.EnvEvent])
	assert.Equal(t, []string{"recording: build ci 1.0 acme/app"}, b.Actions)

	assert.Equal(t, "build ci 1.0 acme/app", receive(t, actionCh))

	l.stop(t)

	assert.Empty(t, actionCh)
	assert.Empty(t, buildCh)
}

func TestEvLoopIgnoresDuplicateDeliveries(t *testing.T) {
	buildCh := make(chan *TriggeredBuild, 10)

	registry := trigger.NewRegistry(
		mustTrigger(t, "build", []eventtype.EventType{eventtype.Push}, "", nil),
	)

	l := startLoop(t, registry, WithBuildObserver(func(b *TriggeredBuild) { buildCh <- b }))

	l.C() <- dockerHubNotification(t, "1.0")
	l.C() <- dockerHubNotification(t, "1.0")
	l.C() <- dockerHubNotification(t, "2.0")

	assert.Equal(t, "1.0", receive(t, buildCh).Notification.Tag())
	assert.Equal(t, "2.0", receive(t, buildCh).Notification.Tag())

	l.stop(t)
	assert.Empty(t, buildCh)
}

func TestEvLoopDoesNotDedupPushesWithoutTimestamp(t *testing.T) {
	buildCh := make(chan *TriggeredBuild, 10)

	registry := trigger.NewRegistry(
		mustTrigger(t, "build", []eventtype.EventType{eventtype.Push}, "", nil),
	)

	l := startLoop(t, registry, WithBuildObserver(func(b *TriggeredBuild) { buildCh <- b }))

	payload := []byte(`{
	  "push_data": {"pusher": "alice", "tag": "1.0"},
	  "repository": {"repo_name": "acme/app"}
	}`)

	for i := 0; i < 2; i++ {
		n, err := notification.ParseDockerHub(payload)
		require.NoError(t, err)
		l.C() <- n
	}

	first := receive(t, buildCh)
	second := receive(t, buildCh)
	assert.NotEqual(t, first.RunID(), second.RunID())

	l.stop(t)
}

func TestEvLoopWithoutDedup(t *testing.T) {
	buildCh := make(chan *TriggeredBuild, 10)

	registry := trigger.NewRegistry(
		mustTrigger(t, "build", []eventtype.EventType{eventtype.Push}, "", nil),
	)

	l := startLoop(t, registry,
		WithDedupCacheSize(0),
		WithBuildObserver(func(b *TriggeredBuild) { buildCh <- b }),
	)

	l.C() <- dockerHubNotification(t, "1.0")
	l.C() <- dockerHubNotification(t, "1.0")

	first := receive(t, buildCh)
	second := receive(t, buildCh)
	assert.NotEqual(t, first.RunID(), second.RunID())

	l.stop(t)
}

func TestEvLoopSkipsBuildOnTemplateError(t *testing.T) {
	actionCh := make(chan string, 10)
	buildCh := make(chan *TriggeredBuild, 10)

	registry := trigger.NewRegistry(
		mustTrigger(t, "a-broken", []eventtype.EventType{eventtype.Push}, "", nil,
			&recordingAction{text: "{{ .Run.Job }", ch: actionCh},
		),
		mustTrigger(t, "b-ok", []eventtype.EventType{eventtype.Push}, "", nil,
			&recordingAction{text: "{{ .Run.Job }}", ch: actionCh},
		),
	)

	l := startLoop(t, registry, WithBuildObserver(func(b *TriggeredBuild) { buildCh <- b }))

	l.C() <- dockerHubNotification(t, "1.0")

	assert.Equal(t, "b-ok", receive(t, buildCh).Job())
	assert.Equal(t, "b-ok", receive(t, actionCh))

	l.stop(t)
	assert.Empty(t, buildCh)
}

func TestTriggeredBuilds(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	registry := trigger.NewRegistry(
		mustTrigger(t, "z-last", []eventtype.EventType{eventtype.Push, eventtype.Mirroring}, "", env.Vars{"BASE": "z"}),
		mustTrigger(t, "a-first", []eventtype.EventType{eventtype.Push}, `.push_data.tag == "1.0"`, env.Vars{"BASE": "a"}),
		mustTrigger(t, "filtered", []eventtype.EventType{eventtype.Push}, `.push_data.tag == "2.0"`, nil),
		mustTrigger(t, "filter-error", []eventtype.EventType{eventtype.Push}, `.push_data.tag`, nil),
		mustTrigger(t, "scan", []eventtype.EventType{eventtype.Scan}, "", nil),
	)

	evl := NewEventLoop(registry, projector.New(registry))
	n := dockerHubNotification(t, "1.0")

	builds := evl.TriggeredBuilds(context.Background(), n)
	require.Len(t, builds, 2)

	assert.Equal(t, "a-first", builds[0].Job())
	assert.Equal(t, "a", builds[0].Env["BASE"])
	assert.Equal(t, "z-last", builds[1].Job())
	assert.Equal(t, "z", builds[1].Env["BASE"])

	for _, b := range builds {
		cause, ok := b.Run.Cause()
		require.True(t, ok)
		assert.Same(t, n, cause.PushNotification())
		assert.Equal(t, "1.0", b.Env[notification.ParamTag])
		assert.Equal(t, "1417566161", b.Env[notification.ParamPushedAt])
	}

	// base environment of the trigger is not modified by projections
	tr, _ := registry.TriggerFor("a-first")
	assert.Equal(t, env.Vars{"BASE": "a"}, tr.BaseEnv())
}

func TestEvLoopUsesReplacedTriggers(t *testing.T) {
	buildCh := make(chan *TriggeredBuild, 10)

	registry := trigger.NewRegistry(
		mustTrigger(t, "old", []eventtype.EventType{eventtype.Push}, "", nil),
	)

	l := startLoop(t, registry, WithBuildObserver(func(b *TriggeredBuild) { buildCh <- b }))

	l.C() <- dockerHubNotification(t, "1.0")
	assert.Equal(t, "old", receive(t, buildCh).Job())

	registry.Replace([]*trigger.Trigger{
		mustTrigger(t, "new", []eventtype.EventType{eventtype.Push}, "", nil),
	})

	l.C() <- dockerHubNotification(t, "2.0")
	assert.Equal(t, "new", receive(t, buildCh).Job())

	l.stop(t)
}
