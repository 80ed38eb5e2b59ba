package policy

import (
	"fmt"

	"content_orchestra/internal/domain"
)

// Engine holds the legal agent status transitions and content stage edges.
type Engine struct {
	agentEdges map[domain.AgentStatus][]domain.AgentStatus
	stageEdges map[domain.Stage][]domain.Stage
}

func New() *Engine {
	return &Engine{
		agentEdges: map[domain.AgentStatus][]domain.AgentStatus{
			domain.AgentStatusIdle:      {domain.AgentStatusWorking},
			domain.AgentStatusWorking:   {domain.AgentStatusCompleted, domain.AgentStatusError},
			domain.AgentStatusCompleted: {domain.AgentStatusWorking, domain.AgentStatusIdle},
			domain.AgentStatusError:     {domain.AgentStatusWorking, domain.AgentStatusIdle},
			domain.AgentStatusPaused:    {domain.AgentStatusIdle},
		},
		stageEdges: map[domain.Stage][]domain.Stage{
			domain.StageResearch:          {domain.StageGeneration},
			domain.StageGeneration:        {domain.StageOptimization},
			domain.StageOptimization:      {domain.StageReview},
			domain.StageReview:            {domain.StageApproved, domain.StageRevisionRequested},
			domain.StageApproved:          {domain.StagePublished},
			domain.StagePublished:         {domain.StageArchived},
			domain.StageRevisionRequested: {domain.StageGeneration},
		},
	}
}

// CanTransitionAgent reports whether from -> to is legal. Any status may move
// to paused.
func (e *Engine) CanTransitionAgent(from, to domain.AgentStatus) bool {
	if to == domain.AgentStatusPaused {
		return true
	}
	for _, next := range e.agentEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (e *Engine) CheckAgent(agentID string, from, to domain.AgentStatus) error {
	if !e.CanTransitionAgent(from, to) {
		return fmt.Errorf("agent %s %s -> %s: %w", agentID, from, to, domain.ErrInvalidTransition)
	}
	return nil
}

// CanAdvance reports whether from -> to is one of the pipeline edges.
// Forcing an item into revision_requested from elsewhere is an explicit
// override and does not go through this check.
func (e *Engine) CanAdvance(from, to domain.Stage) bool {
	for _, next := range e.stageEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (e *Engine) CheckStage(contentID string, from, to domain.Stage) error {
	if !e.CanAdvance(from, to) {
		return fmt.Errorf("content %s %s -> %s: %w", contentID, from, to, domain.ErrInvalidTransition)
	}
	return nil
}
