package trigger

import (
	"sort"
	"strings"
	"sync"
)

// Registry maps job names to their triggers.
// The internal map is never modified after it was published, writers copy
// it, apply their change and replace it. Readers therefore never observe a
// partially updated state.
type Registry struct {
	lock     sync.RWMutex
	triggers map[string]*Trigger
}

func NewRegistry(triggers ...*Trigger) *Registry {
	r := Registry{
		triggers: make(map[string]*Trigger, len(triggers)),
	}

	for _, t := range triggers {
		r.triggers[t.Job()] = t
	}

	return &r
}

func (r *Registry) snapshot() map[string]*Trigger {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return r.triggers
}

// TriggerFor returns the trigger of job. If no trigger is registered for
// the job, false is returned.
func (r *Registry) TriggerFor(job string) (*Trigger, bool) {
	t, exist := r.snapshot()[job]
	return t, exist
}

func (r *Registry) update(fn func(map[string]*Trigger)) {
	r.lock.Lock()
	defer r.lock.Unlock()

	newTriggers := make(map[string]*Trigger, len(r.triggers)+1)
	for k, v := range r.triggers {
		newTriggers[k] = v
	}

	fn(newTriggers)

	r.triggers = newTriggers
}

// Set registers t, an existing trigger for the same job is replaced.
func (r *Registry) Set(t *Trigger) {
	r.update(func(m map[string]*Trigger) {
		m[t.Job()] = t
	})
}

// Remove unregisters the trigger of job. It returns false if no trigger
// was registered.
func (r *Registry) Remove(job string) bool {
	var removed bool

	r.update(func(m map[string]*Trigger) {
		_, removed = m[job]
		delete(m, job)
	})

	return removed
}

// Replace replaces all registered triggers with triggers.
func (r *Registry) Replace(triggers []*Trigger) {
	newTriggers := make(map[string]*Trigger, len(triggers))
	for _, t := range triggers {
		newTriggers[t.Job()] = t
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	r.triggers = newTriggers
}

// Jobs returns the names of all jobs with a trigger, sorted.
func (r *Registry) Jobs() []string {
	m := r.snapshot()

	result := make([]string, 0, len(m))
	for k := range m {
		result = append(result, k)
	}

	sort.Strings(result)

	return result
}

// Triggers returns all registered triggers, sorted by job name.
func (r *Registry) Triggers() []*Trigger {
	m := r.snapshot()

	result := make([]*Trigger, 0, len(m))
	for _, t := range m {
		result = append(result, t)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Job() < result[j].Job()
	})

	return result
}

func (r *Registry) Len() int {
	return len(r.snapshot())
}

func (r *Registry) String() string {
	var result strings.Builder

	triggers := r.Triggers()
	for i, t := range triggers {
		result.WriteString(indent(t.DetailedString(), "  "))
		if i < len(triggers)-1 {
			result.WriteRune('\n')
		}
	}

	return result.String()
}
