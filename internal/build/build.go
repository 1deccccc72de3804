// Package build models builds that were triggered by registry notifications.
package build

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/simplesurance/regtrigger/internal/logfields"
	"github.com/simplesurance/regtrigger/internal/notification"
)

// WebHookCause links a Run to the push notification that triggered it.
type WebHookCause struct {
	id           string
	createdAt    time.Time
	notification *notification.PushNotification
}

// NewWebHookCause creates a cause for n.
func NewWebHookCause(n *notification.PushNotification) *WebHookCause {
	return &WebHookCause{
		id:           uuid.NewString(),
		createdAt:    time.Now(),
		notification: n,
	}
}

func (c *WebHookCause) ID() string { return c.id }

func (c *WebHookCause) CreatedAt() time.Time { return c.createdAt }

func (c *WebHookCause) PushNotification() *notification.PushNotification {
	return c.notification
}

// ShortDescription returns a human readable description of the cause.
func (c *WebHookCause) ShortDescription() string {
	n := c.notification

	return fmt.Sprintf(
		"Triggered by %s %s notification for %s:%s",
		n.Registry(), n.EventRawType(), n.RepoName(), n.Tag(),
	)
}

// Run is a single execution of a job.
type Run struct {
	id        string
	job       string
	createdAt time.Time
	cause     *WebHookCause
}

// NewRun creates a run of job. cause is nil for runs that were not
// triggered by a webhook.
func NewRun(job string, cause *WebHookCause) *Run {
	return &Run{
		id:        uuid.NewString(),
		job:       job,
		createdAt: time.Now(),
		cause:     cause,
	}
}

func (r *Run) ID() string { return r.id }

// Parent returns the name of the job the run belongs to.
func (r *Run) Parent() string { return r.job }

func (r *Run) CreatedAt() time.Time { return r.createdAt }

// Cause returns the webhook cause of the run. If the run was not triggered
// by a webhook, false is returned.
func (r *Run) Cause() (*WebHookCause, bool) {
	return r.cause, r.cause != nil
}

func (r *Run) String() string {
	return fmt.Sprintf("%s#%s", r.job, r.id)
}

func (r *Run) LogFields() []zap.Field {
	fields := []zap.Field{
		logfields.Job(r.job),
		logfields.RunID(r.id),
	}

	if r.cause != nil {
		fields = append(fields, logfields.CauseID(r.cause.id))
		fields = append(fields, r.cause.notification.LogFields()...)
	}

	return fields
}
