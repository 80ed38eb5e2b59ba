package agent

import (
	"content_orchestra/internal/domain"
)

// Activity is one simulated step for an agent that is not doing pipeline work.
type Activity struct {
	Status   domain.AgentStatus
	Progress int
	Task     string
	Format   string
}

// Strategy decides whether an agent changes state on an activity tick.
type Strategy interface {
	Next(a domain.Agent) (Activity, bool)
}

type StrategyFunc func(a domain.Agent) (Activity, bool)

func (f StrategyFunc) Next(a domain.Agent) (Activity, bool) {
	return f(a)
}

// Source is satisfied by *math/rand/v2.Rand.
type Source interface {
	IntN(n int) int
	Float64() float64
}

// RandomStrategy changes an agent with the configured chance per tick and
// picks uniformly among the legal next states in {idle, working, completed}.
type RandomStrategy struct {
	rnd         Source
	chance      float64
	videoChance float64
}

func NewRandomStrategy(rnd Source, chance, videoChance float64) *RandomStrategy {
	if chance <= 0 {
		chance = 0.3
	}
	if videoChance <= 0 {
		videoChance = 0.25
	}
	return &RandomStrategy{rnd: rnd, chance: chance, videoChance: videoChance}
}

func (s *RandomStrategy) Next(a domain.Agent) (Activity, bool) {
	chance := s.chance
	if a.Capability.IsVideo() {
		chance = s.videoChance
	}
	if s.rnd.Float64() >= chance {
		return Activity{}, false
	}
	options := simulatedNext[a.Status]
	if len(options) == 0 {
		return Activity{}, false
	}
	next := options[s.rnd.IntN(len(options))]
	act := Activity{Status: next}
	if next == domain.AgentStatusWorking {
		tasks := simulatedTasks[a.Capability]
		if len(tasks) == 0 {
			tasks = []string{"Processing task"}
		}
		act.Progress = s.rnd.IntN(100)
		act.Task = tasks[s.rnd.IntN(len(tasks))]
		if a.Capability.IsVideo() {
			act.Format = VideoFormat(a.Capability)
		}
	}
	return act, true
}

var simulatedNext = map[domain.AgentStatus][]domain.AgentStatus{
	domain.AgentStatusIdle:      {domain.AgentStatusWorking},
	domain.AgentStatusWorking:   {domain.AgentStatusCompleted},
	domain.AgentStatusCompleted: {domain.AgentStatusIdle, domain.AgentStatusWorking},
	domain.AgentStatusError:     {domain.AgentStatusIdle, domain.AgentStatusWorking},
}

var simulatedTasks = map[domain.Capability][]string{
	domain.CapabilityResearcher:   {"Analyzing trending topics", "Gathering market insights", "Competitor analysis"},
	domain.CapabilityGenerator:    {"Creating content draft", "Writing engaging copy", "Developing storyline"},
	domain.CapabilityOptimizer:    {"Optimizing for SEO", "Improving readability", "Enhancing keywords"},
	domain.CapabilityPublisher:    {"Publishing to platforms", "Scheduling posts", "Managing distribution"},
	domain.CapabilityAnalyzer:     {"Analyzing performance", "Generating reports", "Tracking metrics"},
	domain.CapabilityCoordinator:  {"Orchestrating workflow", "Managing agent tasks", "System monitoring"},
	domain.CapabilityReviewer:     {"Quality checking content", "Reviewing for compliance", "Fact-checking information"},
	domain.CapabilityVideoCreator: {"Creating video script", "Generating video content", "Adding visual effects", "Editing video timeline"},
	domain.CapabilityReelCreator:  {"Creating short-form content", "Adding trending music", "Optimizing for engagement", "Creating viral hooks"},
}
