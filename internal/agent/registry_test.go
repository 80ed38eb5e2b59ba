package agent

import (
	"errors"
	"sync"
	"testing"
	"time"

	"content_orchestra/internal/domain"
	"content_orchestra/internal/messaging/inproc"
)

type registryHarness struct {
	reg    *Registry
	events []domain.Event
	now    time.Time
}

func newRegistryHarness(t *testing.T, roster []domain.Agent) *registryHarness {
	t.Helper()
	h := &registryHarness{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	bus := inproc.New(8, nil)
	for _, kind := range domain.EventKinds {
		if err := bus.Subscribe(kind, func(evt domain.Event) { h.events = append(h.events, evt) }); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	}
	reg, err := NewRegistry(roster, bus, nil, func() time.Time { return h.now })
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	h.reg = reg
	return h
}

func assertProgressInvariant(t *testing.T, a domain.Agent) {
	t.Helper()
	switch a.Status {
	case domain.AgentStatusWorking:
		if a.Progress < 0 || a.Progress > 100 {
			t.Fatalf("agent %s working progress=%d out of range", a.ID, a.Progress)
		}
	case domain.AgentStatusCompleted:
		if a.Progress != 100 {
			t.Fatalf("agent %s completed progress=%d want=100", a.ID, a.Progress)
		}
	case domain.AgentStatusIdle, domain.AgentStatusError:
		if a.Progress != 0 {
			t.Fatalf("agent %s %s progress=%d want=0", a.ID, a.Status, a.Progress)
		}
	}
}

func TestDefaultRosterSplitsStandardAndVideo(t *testing.T) {
	h := newRegistryHarness(t, DefaultRoster())
	if got := len(h.reg.List()); got != 11 {
		t.Fatalf("agents=%d want=11", got)
	}
	if got := len(h.reg.ListStandard()); got != 8 {
		t.Fatalf("standard agents=%d want=8", got)
	}
	video := h.reg.ListVideo()
	if len(video) != 3 {
		t.Fatalf("video agents=%d want=3", len(video))
	}
	for _, a := range video {
		if a.Video == nil {
			t.Fatalf("video agent %s has no profile", a.ID)
		}
	}
	if h.reg.List()[0].ID != "researcher-01" {
		t.Fatalf("list order not stable: first=%s", h.reg.List()[0].ID)
	}
}

func TestNewRegistryRejectsBadRoster(t *testing.T) {
	_, err := NewRegistry([]domain.Agent{
		{ID: "a", Capability: domain.CapabilityGenerator},
		{ID: "a", Capability: domain.CapabilityGenerator},
	}, nil, nil, nil)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("duplicate id err=%v", err)
	}
	_, err = NewRegistry([]domain.Agent{{ID: "a", Capability: "painter"}}, nil, nil, nil)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("unknown capability err=%v", err)
	}
}

func TestSetStatusUnknownAgent(t *testing.T) {
	h := newRegistryHarness(t, DefaultRoster())
	if _, err := h.reg.SetStatus("ghost", domain.AgentStatusWorking, "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
	if _, err := h.reg.Pause("ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("pause err=%v want ErrNotFound", err)
	}
}

func TestSetStatusPublishesKindByCapability(t *testing.T) {
	h := newRegistryHarness(t, DefaultRoster())
	if _, err := h.reg.SetStatus("generator-01", domain.AgentStatusWorking, "Writing"); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if _, err := h.reg.SetStatus("reel-creator-01", domain.AgentStatusWorking, "Cutting"); err != nil {
		t.Fatalf("set status video: %v", err)
	}
	if len(h.events) != 2 {
		t.Fatalf("events=%d want=2", len(h.events))
	}
	if h.events[0].Kind != domain.EventAgentUpdated || h.events[1].Kind != domain.EventVideoAgentUpdated {
		t.Fatalf("kinds=%s,%s", h.events[0].Kind, h.events[1].Kind)
	}
	if h.events[0].Agent.CurrentTask != "Writing" {
		t.Fatalf("event task=%q want=Writing", h.events[0].Agent.CurrentTask)
	}
}

func TestSetStatusRejectsIllegalTransition(t *testing.T) {
	h := newRegistryHarness(t, DefaultRoster())
	_, err := h.reg.SetStatus("generator-01", domain.AgentStatusCompleted, "")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("idle->completed err=%v want ErrInvalidTransition", err)
	}
	if len(h.events) != 0 {
		t.Fatalf("rejected transition published %d events", len(h.events))
	}
}

func TestProgressFollowsStatus(t *testing.T) {
	h := newRegistryHarness(t, DefaultRoster())
	steps := []domain.AgentStatus{
		domain.AgentStatusWorking,
		domain.AgentStatusCompleted,
		domain.AgentStatusIdle,
		domain.AgentStatusWorking,
		domain.AgentStatusError,
		domain.AgentStatusIdle,
	}
	for _, status := range steps {
		a, err := h.reg.SetStatus("optimizer-01", status, "")
		if err != nil {
			t.Fatalf("set %s: %v", status, err)
		}
		assertProgressInvariant(t, a)
	}
}

func TestPauseResumeReturnsToIdleFromAnyStatus(t *testing.T) {
	for _, before := range []domain.AgentStatus{
		domain.AgentStatusIdle,
		domain.AgentStatusWorking,
		domain.AgentStatusCompleted,
		domain.AgentStatusError,
	} {
		t.Run(string(before), func(t *testing.T) {
			h := newRegistryHarness(t, []domain.Agent{
				{ID: "v1", Capability: domain.CapabilityVideoCreator, Status: before, CurrentTask: "busy"},
			})
			if _, err := h.reg.Pause("v1"); err != nil {
				t.Fatalf("pause: %v", err)
			}
			a, err := h.reg.Resume("v1")
			if err != nil {
				t.Fatalf("resume: %v", err)
			}
			if a.Status != domain.AgentStatusIdle || a.CurrentTask != "" || a.Progress != 0 {
				t.Fatalf("after resume status=%s task=%q progress=%d", a.Status, a.CurrentTask, a.Progress)
			}
		})
	}
}

func TestResumeRequiresPaused(t *testing.T) {
	h := newRegistryHarness(t, DefaultRoster())
	if _, err := h.reg.Resume("generator-01"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err=%v want ErrInvalidTransition", err)
	}
}

func TestAcquireIsExclusive(t *testing.T) {
	reg, err := NewRegistry([]domain.Agent{
		{ID: "g1", Capability: domain.CapabilityGenerator},
		{ID: "g2", Capability: domain.CapabilityGenerator},
	}, nil, nil, nil)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	var mu sync.Mutex
	claimed := map[string]int{}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if a, ok := reg.Acquire(domain.CapabilityGenerator, "task"); ok {
				mu.Lock()
				claimed[a.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(claimed) != 2 {
		t.Fatalf("claimed=%v want both agents exactly once", claimed)
	}
	for id, n := range claimed {
		if n != 1 {
			t.Fatalf("agent %s claimed %d times", id, n)
		}
	}
	if _, ok := reg.FindIdle(domain.CapabilityGenerator); ok {
		t.Fatalf("FindIdle returned an assigned agent")
	}
}

func TestCompleteAndFailRelease(t *testing.T) {
	h := newRegistryHarness(t, DefaultRoster())
	a, ok := h.reg.Acquire(domain.CapabilityResearcher, "Analyzing trending topics...")
	if !ok {
		t.Fatalf("acquire researcher")
	}
	if a.Status != domain.AgentStatusWorking || !h.reg.Assigned(a.ID) {
		t.Fatalf("acquired agent status=%s assigned=%v", a.Status, h.reg.Assigned(a.ID))
	}
	done, err := h.reg.Complete(a.ID, "Research completed", nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != domain.AgentStatusCompleted || done.TasksCompleted != 1 || done.CurrentTask != "Research completed" {
		t.Fatalf("completed agent=%+v", done)
	}
	if h.reg.Assigned(a.ID) {
		t.Fatalf("agent still assigned after complete")
	}
	if _, err := h.reg.Complete(a.ID, "again", nil); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("double complete err=%v", err)
	}

	g, _ := h.reg.Acquire(domain.CapabilityGenerator, "Generating")
	failed, err := h.reg.Fail(g.ID, "Generation failed")
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if failed.Status != domain.AgentStatusError || failed.Progress != 0 || failed.TasksCompleted != 0 {
		t.Fatalf("failed agent=%+v", failed)
	}
}

func TestReleaseKeepsPausedAgentPaused(t *testing.T) {
	h := newRegistryHarness(t, DefaultRoster())
	a, _ := h.reg.Acquire(domain.CapabilityOptimizer, "Optimizing")
	if _, err := h.reg.Pause(a.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}
	done, err := h.reg.Complete(a.ID, "Optimization completed", nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != domain.AgentStatusPaused {
		t.Fatalf("status=%s want paused", done.Status)
	}
	if done.TasksCompleted != 1 {
		t.Fatalf("tasks=%d want=1", done.TasksCompleted)
	}
}

func TestSimulateSkipsAssignedAndPaused(t *testing.T) {
	h := newRegistryHarness(t, DefaultRoster())
	a, _ := h.reg.Acquire(domain.CapabilityGenerator, "Generating: x")
	if _, applied, _ := h.reg.Simulate(a.ID, Activity{Status: domain.AgentStatusCompleted}); applied {
		t.Fatalf("simulation overwrote an assigned agent")
	}
	_, _ = h.reg.Pause("generator-02")
	if _, applied, _ := h.reg.Simulate("generator-02", Activity{Status: domain.AgentStatusIdle}); applied {
		t.Fatalf("simulation resumed a paused agent")
	}

	got, _ := h.reg.Get(a.ID)
	if got.Status != domain.AgentStatusWorking || got.CurrentTask != "Generating: x" {
		t.Fatalf("assigned agent changed: %+v", got)
	}
}

func TestSimulateAllAppliesStrategy(t *testing.T) {
	h := newRegistryHarness(t, DefaultRoster())
	_, _ = h.reg.Acquire(domain.CapabilityResearcher, "real work")
	strategy := StrategyFunc(func(a domain.Agent) (Activity, bool) {
		if a.Status != domain.AgentStatusIdle {
			return Activity{}, false
		}
		return Activity{Status: domain.AgentStatusWorking, Progress: 250, Task: "sim", Format: VideoFormat(a.Capability)}, true
	})
	changed := h.reg.SimulateAll(strategy)
	if changed != 10 {
		t.Fatalf("changed=%d want=10", changed)
	}
	for _, a := range h.reg.List() {
		assertProgressInvariant(t, a)
		if a.ID == "researcher-01" && a.CurrentTask != "real work" {
			t.Fatalf("assigned researcher was simulated")
		}
	}
	reel, _ := h.reg.Get("reel-creator-01")
	if reel.Video.CurrentFormat != "MP4 (9:16)" {
		t.Fatalf("reel format=%q", reel.Video.CurrentFormat)
	}
}
