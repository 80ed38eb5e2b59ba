package agent

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"content_orchestra/internal/domain"
	"content_orchestra/internal/policy"
)

type Publisher interface {
	Publish(evt domain.Event)
}

type entry struct {
	agent domain.Agent
	// assigned is set while a pipeline task holds the agent.
	assigned bool
}

// Registry owns every agent record. Each mutating call updates state under
// the lock and publishes its event after the lock is released.
type Registry struct {
	mu     sync.Mutex
	order  []string
	agents map[string]*entry

	bus    Publisher
	policy *policy.Engine
	now    func() time.Time
}

func NewRegistry(roster []domain.Agent, bus Publisher, rules *policy.Engine, now func() time.Time) (*Registry, error) {
	if rules == nil {
		rules = policy.New()
	}
	if now == nil {
		now = time.Now
	}
	r := &Registry{
		agents: make(map[string]*entry, len(roster)),
		bus:    bus,
		policy: rules,
		now:    now,
	}
	for _, a := range roster {
		if a.ID == "" {
			return nil, fmt.Errorf("roster agent without id: %w", domain.ErrInvalidArgument)
		}
		if !a.Capability.Valid() {
			return nil, fmt.Errorf("roster agent %s capability %q: %w", a.ID, a.Capability, domain.ErrInvalidArgument)
		}
		if _, dup := r.agents[a.ID]; dup {
			return nil, fmt.Errorf("duplicate roster agent %s: %w", a.ID, domain.ErrInvalidArgument)
		}
		a = a.Clone()
		if a.Status == "" {
			a.Status = domain.AgentStatusIdle
		}
		a.Progress = progressFor(a.Status, a.Progress)
		if a.Capability.IsVideo() && a.Video == nil {
			a.Video = &domain.VideoProfile{}
		}
		if !a.Capability.IsVideo() {
			a.Video = nil
		}
		if a.LastActivity.IsZero() {
			a.LastActivity = now().UTC()
		}
		r.agents[a.ID] = &entry{agent: a}
		r.order = append(r.order, a.ID)
	}
	return r, nil
}

func (r *Registry) List() []domain.Agent {
	return r.filter(func(domain.Agent) bool { return true })
}

func (r *Registry) ListStandard() []domain.Agent {
	return r.filter(func(a domain.Agent) bool { return !a.Capability.IsVideo() })
}

func (r *Registry) ListVideo() []domain.Agent {
	return r.filter(func(a domain.Agent) bool { return a.Capability.IsVideo() })
}

func (r *Registry) filter(keep func(domain.Agent) bool) []domain.Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Agent, 0, len(r.order))
	for _, id := range r.order {
		a := r.agents[id].agent
		if keep(a) {
			out = append(out, a.Clone())
		}
	}
	return out
}

func (r *Registry) Get(id string) (domain.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.agents[id]
	if !ok {
		return domain.Agent{}, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}
	return e.agent.Clone(), nil
}

// Assigned reports whether a pipeline task currently holds the agent.
func (r *Registry) Assigned(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.agents[id]
	return ok && e.assigned
}

// FindIdle returns the first idle agent of the capability in roster order.
// It only looks; Acquire is the call that claims.
func (r *Registry) FindIdle(c domain.Capability) (domain.Agent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.firstIdleLocked([]domain.Capability{c})
	if e == nil {
		return domain.Agent{}, false
	}
	return e.agent.Clone(), true
}

func (r *Registry) firstIdleLocked(caps []domain.Capability) *entry {
	for _, id := range r.order {
		e := r.agents[id]
		if e.assigned || e.agent.Status != domain.AgentStatusIdle {
			continue
		}
		if slices.Contains(caps, e.agent.Capability) {
			return e
		}
	}
	return nil
}

// SetStatus applies a user or simulation driven status change.
func (r *Registry) SetStatus(id string, status domain.AgentStatus, task string) (domain.Agent, error) {
	r.mu.Lock()
	e, ok := r.agents[id]
	if !ok {
		r.mu.Unlock()
		return domain.Agent{}, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}
	if err := r.policy.CheckAgent(id, e.agent.Status, status); err != nil {
		r.mu.Unlock()
		return domain.Agent{}, err
	}
	r.applyLocked(e, status, e.agent.Progress, task)
	snap := e.agent.Clone()
	r.mu.Unlock()

	r.publish(snap)
	return snap, nil
}

func (r *Registry) Pause(id string) (domain.Agent, error) {
	return r.SetStatus(id, domain.AgentStatusPaused, "Paused by user")
}

// Resume moves a paused agent back to idle. Nothing else ever leaves paused.
func (r *Registry) Resume(id string) (domain.Agent, error) {
	r.mu.Lock()
	e, ok := r.agents[id]
	if !ok {
		r.mu.Unlock()
		return domain.Agent{}, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}
	if e.agent.Status != domain.AgentStatusPaused {
		r.mu.Unlock()
		return domain.Agent{}, fmt.Errorf("resume agent %s from %s: %w", id, e.agent.Status, domain.ErrInvalidTransition)
	}
	r.applyLocked(e, domain.AgentStatusIdle, 0, "")
	snap := e.agent.Clone()
	r.mu.Unlock()

	r.publish(snap)
	return snap, nil
}

// Acquire claims the first idle agent of the capability for a pipeline task
// and marks it working in the same critical section.
func (r *Registry) Acquire(c domain.Capability, task string) (domain.Agent, bool) {
	return r.AcquireFirst([]domain.Capability{c}, func(a *domain.Agent) { a.CurrentTask = task })
}

// AcquireFirst claims the first idle agent, in roster order, whose capability
// is in caps. prepare may set the task text or video format on the claimed
// record before the event is published.
func (r *Registry) AcquireFirst(caps []domain.Capability, prepare func(*domain.Agent)) (domain.Agent, bool) {
	r.mu.Lock()
	e := r.firstIdleLocked(caps)
	if e == nil {
		r.mu.Unlock()
		return domain.Agent{}, false
	}
	e.assigned = true
	r.applyLocked(e, domain.AgentStatusWorking, 0, "")
	if prepare != nil {
		prepare(&e.agent)
	}
	snap := e.agent.Clone()
	r.mu.Unlock()

	r.publish(snap)
	return snap, true
}

// Complete releases a pipeline assignment as completed and increments the
// task counter. mutate may adjust the record (video counters) before publish.
// An agent paused while it worked stays paused.
func (r *Registry) Complete(id, note string, mutate func(*domain.Agent)) (domain.Agent, error) {
	return r.release(id, domain.AgentStatusCompleted, note, func(a *domain.Agent) {
		a.TasksCompleted++
		if mutate != nil {
			mutate(a)
		}
	})
}

// Fail releases a pipeline assignment as error with a task note.
func (r *Registry) Fail(id, note string) (domain.Agent, error) {
	return r.release(id, domain.AgentStatusError, note, nil)
}

func (r *Registry) release(id string, status domain.AgentStatus, note string, mutate func(*domain.Agent)) (domain.Agent, error) {
	r.mu.Lock()
	e, ok := r.agents[id]
	if !ok {
		r.mu.Unlock()
		return domain.Agent{}, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}
	if !e.assigned {
		r.mu.Unlock()
		return domain.Agent{}, fmt.Errorf("release agent %s: not assigned: %w", id, domain.ErrInvalidTransition)
	}
	e.assigned = false
	if e.agent.Status == domain.AgentStatusPaused {
		e.agent.LastActivity = r.now().UTC()
	} else {
		r.applyLocked(e, status, 0, note)
	}
	if mutate != nil {
		mutate(&e.agent)
	}
	snap := e.agent.Clone()
	r.mu.Unlock()

	r.publish(snap)
	return snap, nil
}

// Simulate applies one activity step to an agent that holds no pipeline task.
// It returns false without changing anything when the agent is paused,
// assigned, or the step is not a legal transition.
func (r *Registry) Simulate(id string, act Activity) (domain.Agent, bool, error) {
	r.mu.Lock()
	e, ok := r.agents[id]
	if !ok {
		r.mu.Unlock()
		return domain.Agent{}, false, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}
	if e.assigned || e.agent.Status == domain.AgentStatusPaused || act.Status == domain.AgentStatusPaused {
		r.mu.Unlock()
		return domain.Agent{}, false, nil
	}
	if !r.policy.CanTransitionAgent(e.agent.Status, act.Status) {
		r.mu.Unlock()
		return domain.Agent{}, false, nil
	}
	task := ""
	if act.Status == domain.AgentStatusWorking {
		task = act.Task
	}
	r.applyLocked(e, act.Status, act.Progress, task)
	if e.agent.Video != nil {
		e.agent.Video.CurrentFormat = ""
		if act.Status == domain.AgentStatusWorking {
			e.agent.Video.CurrentFormat = act.Format
		}
	}
	snap := e.agent.Clone()
	r.mu.Unlock()

	r.publish(snap)
	return snap, true, nil
}

func (r *Registry) applyLocked(e *entry, status domain.AgentStatus, progress int, task string) {
	e.agent.Status = status
	e.agent.Progress = progressFor(status, progress)
	e.agent.CurrentTask = task
	e.agent.LastActivity = r.now().UTC()
}

func (r *Registry) publish(a domain.Agent) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(domain.AgentEvent(a, a.LastActivity))
}

func progressFor(status domain.AgentStatus, progress int) int {
	switch status {
	case domain.AgentStatusWorking:
		return min(max(progress, 0), 100)
	case domain.AgentStatusCompleted:
		return 100
	default:
		return 0
	}
}

// SimulateAll runs s over every agent that is neither paused nor assigned and
// returns how many changed.
func (r *Registry) SimulateAll(s Strategy) int {
	r.mu.Lock()
	candidates := make([]domain.Agent, 0, len(r.order))
	for _, id := range r.order {
		e := r.agents[id]
		if e.assigned || e.agent.Status == domain.AgentStatusPaused {
			continue
		}
		candidates = append(candidates, e.agent.Clone())
	}
	r.mu.Unlock()

	changed := 0
	for _, a := range candidates {
		act, ok := s.Next(a)
		if !ok {
			continue
		}
		if _, applied, _ := r.Simulate(a.ID, act); applied {
			changed++
		}
	}
	return changed
}
