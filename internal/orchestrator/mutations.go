package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"content_orchestra/internal/domain"
)

// ContentPatch lists the externally editable fields. Nil fields are left
// untouched.
type ContentPatch struct {
	Title                *string             `json:"title,omitempty"`
	Kind                 *domain.ContentKind `json:"type,omitempty"`
	Stage                *domain.Stage       `json:"status,omitempty"`
	Body                 *string             `json:"content,omitempty"`
	TrendScore           *int                `json:"trend_score,omitempty"`
	SEOScore             *int                `json:"seo_score,omitempty"`
	EngagementPrediction *int                `json:"engagement_prediction,omitempty"`
	Keywords             []string            `json:"keywords,omitempty"`
	TargetAudience       *string             `json:"target_audience,omitempty"`
	Platforms            []string            `json:"platforms,omitempty"`
}

func (e *Engine) List() []domain.ContentItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.ContentItem, 0, len(e.order))
	for _, st := range e.order {
		out = append(out, st.item.Clone())
	}
	return out
}

func (e *Engine) Get(id string) (domain.ContentItem, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.items[id]
	if !ok {
		return domain.ContentItem{}, fmt.Errorf("content %s: %w", id, domain.ErrNotFound)
	}
	return st.item.Clone(), nil
}

// QueueLen is the number of items waiting in an advanceable stage.
func (e *Engine) QueueLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stages.len()
}

// UpdateContent merges patch into the item. A stage change must follow a
// pipeline edge; revision requests go through RequestRevision.
func (e *Engine) UpdateContent(id string, patch ContentPatch) (domain.ContentItem, error) {
	if err := validatePatch(patch); err != nil {
		return domain.ContentItem{}, err
	}
	return e.mutate(id, func(item *domain.ContentItem) error {
		if patch.Stage != nil && *patch.Stage != item.Stage {
			if *patch.Stage == domain.StageRevisionRequested {
				return fmt.Errorf("content %s: use a revision request to reopen: %w", id, domain.ErrInvalidArgument)
			}
			if err := e.policy.CheckStage(id, item.Stage, *patch.Stage); err != nil {
				return err
			}
			item.Stage = *patch.Stage
		}
		if patch.Title != nil {
			item.Title = *patch.Title
		}
		if patch.Kind != nil {
			item.Kind = *patch.Kind
		}
		if patch.Body != nil {
			item.Body = *patch.Body
		}
		if patch.TrendScore != nil {
			item.TrendScore = *patch.TrendScore
		}
		if patch.SEOScore != nil {
			item.SEOScore = *patch.SEOScore
		}
		if patch.EngagementPrediction != nil {
			item.EngagementPrediction = *patch.EngagementPrediction
		}
		if patch.Keywords != nil {
			item.Metadata.Keywords = append([]string(nil), patch.Keywords...)
		}
		if patch.TargetAudience != nil {
			item.Metadata.TargetAudience = *patch.TargetAudience
		}
		if patch.Platforms != nil {
			item.Metadata.Platforms = append([]string(nil), patch.Platforms...)
		}
		return nil
	})
}

func validatePatch(p ContentPatch) error {
	for name, v := range map[string]*int{"seo_score": p.SEOScore, "engagement_prediction": p.EngagementPrediction} {
		if v != nil && (*v < 0 || *v > 100) {
			return fmt.Errorf("%s %d outside 0-100: %w", name, *v, domain.ErrInvalidArgument)
		}
	}
	if p.TrendScore != nil && *p.TrendScore < 0 {
		return fmt.Errorf("trend_score %d negative: %w", *p.TrendScore, domain.ErrInvalidArgument)
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("empty title: %w", domain.ErrInvalidArgument)
	}
	if p.Stage != nil && !isKnownStage(*p.Stage) {
		return fmt.Errorf("unknown stage %q: %w", *p.Stage, domain.ErrInvalidArgument)
	}
	return nil
}

func isKnownStage(s domain.Stage) bool {
	switch s {
	case domain.StageResearch, domain.StageGeneration, domain.StageOptimization, domain.StageReview,
		domain.StageApproved, domain.StagePublished, domain.StageArchived, domain.StageRevisionRequested:
		return true
	}
	return false
}

func (e *Engine) Approve(id string) (domain.ContentItem, error) {
	return e.moveTo(id, domain.StageApproved)
}

func (e *Engine) Publish(id string) (domain.ContentItem, error) {
	return e.moveTo(id, domain.StagePublished)
}

func (e *Engine) Archive(id string) (domain.ContentItem, error) {
	return e.moveTo(id, domain.StageArchived)
}

func (e *Engine) moveTo(id string, to domain.Stage) (domain.ContentItem, error) {
	return e.UpdateContent(id, ContentPatch{Stage: &to})
}

// RequestRevision appends pending feedback and forces the item into
// revision_requested from any stage.
func (e *Engine) RequestRevision(id, feedback string) (domain.ContentItem, error) {
	text := strings.TrimSpace(feedback)
	if text == "" {
		return domain.ContentItem{}, fmt.Errorf("revision for %s: empty feedback: %w", id, domain.ErrInvalidArgument)
	}
	return e.mutate(id, func(item *domain.ContentItem) error {
		item.Feedback = append(item.Feedback, domain.FeedbackEntry{
			ID:        e.rt.NewID(),
			Text:      text,
			Timestamp: e.rt.Now().UTC(),
			Status:    domain.FeedbackStatusPending,
		})
		item.Stage = domain.StageRevisionRequested
		return nil
	})
}

// RequestVideo marks the item for the next video fan-out.
func (e *Engine) RequestVideo(id string) (domain.ContentItem, error) {
	return e.mutate(id, func(item *domain.ContentItem) error {
		item.Metadata.VideoRequested = true
		item.Metadata.VideoStatus = domain.VideoStatusPending
		return nil
	})
}

func (e *Engine) mutate(id string, apply func(*domain.ContentItem) error) (domain.ContentItem, error) {
	now := e.rt.Now().UTC()
	e.mu.Lock()
	st, ok := e.items[id]
	if !ok {
		e.mu.Unlock()
		return domain.ContentItem{}, fmt.Errorf("content %s: %w", id, domain.ErrNotFound)
	}
	next := st.item.Clone()
	if err := apply(&next); err != nil {
		e.mu.Unlock()
		return domain.ContentItem{}, err
	}
	stageChanged := next.Stage != st.item.Stage
	next.UpdatedAt = now
	st.item = next
	if stageChanged {
		st.failures = 0
		st.retryAt = time.Time{}
	}
	e.stages.sync(st)
	e.videos.sync(st)
	snap := next.Clone()
	e.mu.Unlock()

	e.publish(domain.ContentUpdatedEvent(snap, now))
	return snap, nil
}
