// Package status provides a plain-text http status page listing the
// registered triggers and the most recently triggered builds.
package status

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/regtrigger/internal/dispatch"
	"github.com/simplesurance/regtrigger/internal/eventtype"
	"github.com/simplesurance/regtrigger/internal/logfields"
	"github.com/simplesurance/regtrigger/internal/orderedmap"
	"github.com/simplesurance/regtrigger/internal/trigger"
)

const DefMaxRecentBuilds = 50

const loggerName = "status"

// TriggerSource provides the currently registered triggers.
type TriggerSource interface {
	Triggers() []*trigger.Trigger
}

type recentBuild struct {
	runID     string
	job       string
	createdAt time.Time
	cause     string
	actions   []string
}

// Page records triggered builds and renders the status page.
type Page struct {
	logger   *zap.Logger
	triggers TriggerSource

	lock   sync.Mutex
	builds *orderedmap.Map[string, *recentBuild]
}

// New returns a status page that remembers the maxRecentBuilds most recent
// builds. If maxRecentBuilds is <= 0, DefMaxRecentBuilds is used.
func New(triggers TriggerSource, maxRecentBuilds int) *Page {
	if maxRecentBuilds <= 0 {
		maxRecentBuilds = DefMaxRecentBuilds
	}

	return &Page{
		logger:   zap.L().Named(loggerName),
		triggers: triggers,
		builds:   orderedmap.NewBounded[string, *recentBuild](maxRecentBuilds),
	}
}

// OnBuildTriggered records b as recently triggered build.
// It can be registered via dispatch.WithBuildObserver.
func (p *Page) OnBuildTriggered(b *dispatch.TriggeredBuild) {
	rb := recentBuild{
		runID:     b.RunID(),
		job:       b.Job(),
		createdAt: b.Run.CreatedAt(),
		actions:   append([]string(nil), b.Actions...),
	}

	if cause, ok := b.Run.Cause(); ok {
		rb.cause = cause.ShortDescription()
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	p.builds.EnqueueIfNotExist(rb.runID, &rb)
}

func (p *Page) recentBuilds() []*recentBuild {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.builds.AsSliceReverse()
}

func (p *Page) render() string {
	var result strings.Builder

	triggers := p.triggers.Triggers()
	if len(triggers) == 0 {
		result.WriteString("no triggers registered\n")
	} else {
		result.WriteString("Triggers:\n")
	}

	for _, t := range triggers {
		result.WriteString(fmt.Sprintf("\tJob: %s\tEventTypes: %s", t.Job(), strings.Join(eventtype.Names(t.EventTypes()), ",")))

		if q := t.FilterQuery(); q != "" {
			result.WriteString(fmt.Sprintf("\tFilter: %s", q))
		}

		result.WriteString(fmt.Sprintf("\tActions: %d\n", len(t.Actions())))
	}

	builds := p.recentBuilds()
	if len(builds) == 0 {
		result.WriteString("\nno builds triggered\n")
		return result.String()
	}

	result.WriteString("\nRecent Builds:\n")

	for _, b := range builds {
		result.WriteString(fmt.Sprintf(
			"\t%s\tJob: %s\tRun: %s\t%s\n",
			b.createdAt.Format(time.RFC822), b.job, b.runID, b.cause,
		))

		for _, a := range b.actions {
			result.WriteString(fmt.Sprintf("\t\t%s\n", a))
		}
	}

	return result.String()
}

func (p *Page) HTTPHandler(resp http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		resp.Header().Set("Allow", "GET, HEAD")
		http.Error(resp, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp.Header().Add("Content-Type", "text/plain; charset=utf-8")

	if _, err := resp.Write([]byte(p.render())); err != nil {
		p.logger.Info(
			"sending http response failed",
			logfields.Event("status_page_response_failed"),
			zap.Error(err),
		)
	}
}
