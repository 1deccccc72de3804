package dispatch

import (
	"go.uber.org/zap"

	"github.com/simplesurance/regtrigger/internal/action"
	"github.com/simplesurance/regtrigger/internal/build"
	"github.com/simplesurance/regtrigger/internal/env"
	"github.com/simplesurance/regtrigger/internal/notification"
	"github.com/simplesurance/regtrigger/internal/trigger"
)

// TriggeredBuild is a run of a job together with its projected
// environment. It is the data that actions are rendered with.
type TriggeredBuild struct {
	Run          *build.Run
	Env          env.Vars
	Notification *notification.PushNotification
	// Actions contains the descriptions of the scheduled actions.
	Actions []string

	trigger *trigger.Trigger
}

var _ action.Build = &TriggeredBuild{}

func (b *TriggeredBuild) RunID() string { return b.Run.ID() }

func (b *TriggeredBuild) Job() string { return b.Run.Parent() }

// Environment returns a copy of the projected environment.
func (b *TriggeredBuild) Environment() env.Vars {
	return b.Env.Clone()
}

func (b *TriggeredBuild) LogFields() []zap.Field {
	return b.Run.LogFields()
}
