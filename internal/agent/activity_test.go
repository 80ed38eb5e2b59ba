package agent

import (
	"math/rand/v2"
	"testing"

	"content_orchestra/internal/domain"
)

type fixedSource struct {
	float float64
	ints  []int
}

func (f *fixedSource) Float64() float64 { return f.float }

func (f *fixedSource) IntN(n int) int {
	if len(f.ints) == 0 {
		return 0
	}
	v := f.ints[0]
	f.ints = f.ints[1:]
	return v % n
}

func TestRandomStrategyRespectsChance(t *testing.T) {
	s := NewRandomStrategy(&fixedSource{float: 0.5}, 0.3, 0.25)
	if _, ok := s.Next(domain.Agent{Capability: domain.CapabilityGenerator, Status: domain.AgentStatusIdle}); ok {
		t.Fatalf("expected no change above chance")
	}
	s = NewRandomStrategy(&fixedSource{float: 0.27}, 0.3, 0.25)
	if _, ok := s.Next(domain.Agent{Capability: domain.CapabilityReelCreator, Status: domain.AgentStatusIdle}); ok {
		t.Fatalf("video agents use their own chance")
	}
	if _, ok := s.Next(domain.Agent{Capability: domain.CapabilityGenerator, Status: domain.AgentStatusIdle}); !ok {
		t.Fatalf("expected change below chance")
	}
}

func TestRandomStrategyPicksWorkingTask(t *testing.T) {
	s := NewRandomStrategy(&fixedSource{float: 0, ints: []int{0, 42, 1}}, 0.3, 0.25)
	act, ok := s.Next(domain.Agent{Capability: domain.CapabilityVideoCreator, Status: domain.AgentStatusIdle})
	if !ok {
		t.Fatalf("expected activity")
	}
	if act.Status != domain.AgentStatusWorking || act.Progress != 42 {
		t.Fatalf("activity=%+v", act)
	}
	if act.Task != "Generating video content" || act.Format != "MP4 (16:9)" {
		t.Fatalf("task=%q format=%q", act.Task, act.Format)
	}
}

func TestRandomStrategyOnlyProposesLegalSteps(t *testing.T) {
	s := NewRandomStrategy(rand.New(rand.NewPCG(1, 2)), 1, 1)
	h := newRegistryHarness(t, DefaultRoster())
	for i := 0; i < 200; i++ {
		for _, a := range h.reg.List() {
			act, ok := s.Next(a)
			if !ok {
				continue
			}
			if _, applied, err := h.reg.Simulate(a.ID, act); err != nil || !applied {
				t.Fatalf("step %d agent %s %s->%s applied=%v err=%v", i, a.ID, a.Status, act.Status, applied, err)
			}
		}
	}
	for _, a := range h.reg.List() {
		assertProgressInvariant(t, a)
	}
}
