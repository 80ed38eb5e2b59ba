package orchestrator

import (
	"context"
	"fmt"

	"content_orchestra/internal/agent"
	"content_orchestra/internal/domain"
)

var videoCapabilities = []domain.Capability{domain.CapabilityVideoCreator, domain.CapabilityReelCreator}

type videoJob struct {
	id    string
	item  domain.ContentItem
	agent domain.Agent
	kind  domain.VideoKind
}

// fanOutVideo serves every pending video request for which an idle video
// agent can be claimed, in creation order.
func (e *Engine) fanOutVideo(ctx context.Context, report *PassReport) []error {
	e.mu.Lock()
	candidates := e.videos.ids()
	e.mu.Unlock()

	var errs []error
	for _, id := range candidates {
		item, ok := e.reserveVideo(id)
		if !ok {
			continue
		}
		a, ok := e.registry.AcquireFirst(videoCapabilities, func(a *domain.Agent) {
			a.CurrentTask = fmt.Sprintf("Creating %s for: %s", agent.VideoKindFor(a.Capability), item.Title)
			if a.Video != nil {
				a.Video.CurrentFormat = agent.VideoFormat(a.Capability)
			}
		})
		if !ok {
			e.unreserveVideo(id)
			break
		}
		if err := e.renderVideo(ctx, videoJob{id: id, item: item, agent: a, kind: agent.VideoKindFor(a.Capability)}, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (e *Engine) reserveVideo(id string) (domain.ContentItem, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.items[id]
	if !ok || st.videoInFlight || st.item.Metadata.VideoStatus != domain.VideoStatusPending {
		return domain.ContentItem{}, false
	}
	st.videoInFlight = true
	return st.item.Clone(), true
}

func (e *Engine) unreserveVideo(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.items[id]; ok {
		st.videoInFlight = false
	}
}

func (e *Engine) renderVideo(ctx context.Context, j videoJob, report *PassReport) error {
	duration := e.rt.Rand.IntN(240) + 60
	if j.kind == domain.VideoKindReel {
		duration = e.rt.Rand.IntN(45) + 15
	}
	req := domain.VideoRequest{
		ContentID: j.id,
		Kind:      j.kind,
		Duration:  duration,
		Format:    agent.VideoFormat(j.agent.Capability),
		Script:    videoScript(j.item.Body),
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.AdapterTimeout)
	art, err := guard(func() (domain.VideoArtifact, error) {
		return e.adapters.Renderer.Render(callCtx, req)
	})
	cancel()

	if err != nil {
		failed := domain.VideoArtifact{
			ID:       "video-" + e.rt.NewID(),
			Kind:     req.Kind,
			Duration: req.Duration,
			Format:   req.Format,
			Status:   domain.VideoStatusFailed,
			Script:   req.Script,
		}
		if snap, ok := e.attachVideo(j.id, failed, domain.VideoStatusFailed); ok {
			e.publish(domain.ContentUpdatedEvent(snap, snap.UpdatedAt))
		}
		e.release(e.registry.Fail(j.agent.ID, "Video creation failed"))
		e.logger.Printf("video failed content=%s agent=%s: %v", j.id, j.agent.ID, err)
		return &domain.AdapterError{Adapter: "video", Op: "render", Err: err}
	}

	art.Status = domain.VideoStatusCompleted
	snap, ok := e.attachVideo(j.id, art, domain.VideoStatusCompleted)
	if ok {
		e.publish(domain.ContentUpdatedEvent(snap, snap.UpdatedAt))
		report.VideosCreated++
	}
	e.release(e.registry.Complete(j.agent.ID, fmt.Sprintf("%s created successfully", j.kind), func(a *domain.Agent) {
		if a.Video == nil || !ok {
			return
		}
		a.Video.VideosCreated++
		n := float64(a.Video.VideosCreated)
		a.Video.AverageDuration += (float64(art.Duration) - a.Video.AverageDuration) / n
	}))
	return nil
}

// attachVideo records the outcome unless the request was withdrawn or
// replaced while rendering.
func (e *Engine) attachVideo(id string, art domain.VideoArtifact, status domain.VideoStatus) (domain.ContentItem, bool) {
	now := e.rt.Now().UTC()
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.items[id]
	if !ok {
		return domain.ContentItem{}, false
	}
	st.videoInFlight = false
	if !st.item.Metadata.VideoRequested || st.item.Metadata.VideoStatus != domain.VideoStatusPending {
		return domain.ContentItem{}, false
	}
	st.item.Video = &art
	st.item.Metadata.VideoStatus = status
	st.item.UpdatedAt = now
	e.videos.sync(st)
	return st.item.Clone(), true
}

func videoScript(body string) string {
	r := []rune(body)
	if len(r) > 200 {
		r = r[:200]
	}
	return "Video script based on: " + string(r) + "..."
}
