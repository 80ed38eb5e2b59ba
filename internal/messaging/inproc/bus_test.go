package inproc

import (
	"errors"
	"testing"
	"time"

	"content_orchestra/internal/domain"
)

func TestPublishRunsHandlersInRegistrationOrder(t *testing.T) {
	bus := New(4, nil)
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		if err := bus.Subscribe(domain.EventContentUpdated, func(domain.Event) {
			order = append(order, name)
		}); err != nil {
			t.Fatalf("subscribe %s: %v", name, err)
		}
	}
	bus.Publish(domain.ContentUpdatedEvent(domain.ContentItem{ID: "c1"}, time.Now()))

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("handlers called=%v want=%v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order[%d]=%s want=%s", i, order[i], want[i])
		}
	}
}

func TestPublishOnlyReachesMatchingKind(t *testing.T) {
	bus := New(4, nil)
	agentCalls := 0
	contentCalls := 0
	_ = bus.Subscribe(domain.EventAgentUpdated, func(domain.Event) { agentCalls++ })
	_ = bus.Subscribe(domain.EventContentAdded, func(domain.Event) { contentCalls++ })

	bus.Publish(domain.AgentEvent(domain.Agent{ID: "a1", Capability: domain.CapabilityGenerator}, time.Now()))
	if agentCalls != 1 || contentCalls != 0 {
		t.Fatalf("agentCalls=%d contentCalls=%d want=1,0", agentCalls, contentCalls)
	}

	// video agents publish under their own kind
	bus.Publish(domain.AgentEvent(domain.Agent{ID: "v1", Capability: domain.CapabilityReelCreator}, time.Now()))
	if agentCalls != 1 {
		t.Fatalf("video agent event reached agent_updated handler")
	}
}

func TestSubscribeRejectsUnknownKind(t *testing.T) {
	bus := New(4, nil)
	err := bus.Subscribe(domain.EventKind("content_deleted"), func(domain.Event) {})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("err=%v want ErrInvalidArgument", err)
	}
	if err := bus.Subscribe(domain.EventContentAdded, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("nil handler err=%v want ErrInvalidArgument", err)
	}
}

func TestHandlerPanicDoesNotStopLaterHandlers(t *testing.T) {
	bus := New(4, nil)
	called := false
	_ = bus.Subscribe(domain.EventContentUpdated, func(domain.Event) { panic("boom") })
	_ = bus.Subscribe(domain.EventContentUpdated, func(domain.Event) { called = true })

	bus.Publish(domain.ContentUpdatedEvent(domain.ContentItem{ID: "c1"}, time.Now()))
	if !called {
		t.Fatalf("second handler was not called after panic")
	}
}

type recordingObserver struct {
	kinds []domain.EventKind
}

func (r *recordingObserver) AgentUpdated(domain.Agent)      { r.kinds = append(r.kinds, domain.EventAgentUpdated) }
func (r *recordingObserver) VideoAgentUpdated(domain.Agent) { r.kinds = append(r.kinds, domain.EventVideoAgentUpdated) }
func (r *recordingObserver) ContentAdded([]domain.ContentItem) {
	r.kinds = append(r.kinds, domain.EventContentAdded)
}
func (r *recordingObserver) ContentUpdated(domain.ContentItem) {
	r.kinds = append(r.kinds, domain.EventContentUpdated)
}

func TestSubscribeObserverReceivesEveryKind(t *testing.T) {
	bus := New(4, nil)
	obs := &recordingObserver{}
	bus.SubscribeObserver(obs)

	now := time.Now()
	bus.Publish(domain.AgentEvent(domain.Agent{ID: "a1", Capability: domain.CapabilityResearcher}, now))
	bus.Publish(domain.AgentEvent(domain.Agent{ID: "v1", Capability: domain.CapabilityVideoCreator, Video: &domain.VideoProfile{}}, now))
	bus.Publish(domain.ContentAddedEvent([]domain.ContentItem{{ID: "c1"}}, now))
	bus.Publish(domain.ContentUpdatedEvent(domain.ContentItem{ID: "c1"}, now))

	if len(obs.kinds) != len(domain.EventKinds) {
		t.Fatalf("observer kinds=%v want=%v", obs.kinds, domain.EventKinds)
	}
	for i, k := range domain.EventKinds {
		if obs.kinds[i] != k {
			t.Fatalf("kinds[%d]=%s want=%s", i, obs.kinds[i], k)
		}
	}
}

func TestWatchFiltersAndDropsWhenFull(t *testing.T) {
	bus := New(4, nil)
	ch, cancel := bus.Watch(1, domain.EventContentUpdated)

	bus.Publish(domain.AgentEvent(domain.Agent{ID: "a1", Capability: domain.CapabilityResearcher}, time.Now()))
	bus.Publish(domain.ContentUpdatedEvent(domain.ContentItem{ID: "c1"}, time.Now()))
	bus.Publish(domain.ContentUpdatedEvent(domain.ContentItem{ID: "c2"}, time.Now()))

	select {
	case evt := <-ch:
		if evt.Item == nil || evt.Item.ID != "c1" {
			t.Fatalf("unexpected event: %+v", evt)
		}
	default:
		t.Fatalf("expected buffered event")
	}
	if bus.Dropped() != 1 {
		t.Fatalf("dropped=%d want=1", bus.Dropped())
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel after cancel")
	}
	// publishing after cancel must not panic on the closed channel
	bus.Publish(domain.ContentUpdatedEvent(domain.ContentItem{ID: "c3"}, time.Now()))
}

func TestEventSnapshotsAreIsolated(t *testing.T) {
	item := domain.ContentItem{ID: "c1", AssignedAgents: []string{"researcher-01"}}
	evt := domain.ContentUpdatedEvent(item, time.Now())
	item.AssignedAgents[0] = "mutated"
	if evt.Item.AssignedAgents[0] != "researcher-01" {
		t.Fatalf("event snapshot shares memory with source item")
	}
}
