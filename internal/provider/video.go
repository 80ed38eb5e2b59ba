package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"content_orchestra/internal/domain"
)

// SimulatedRenderer pretends to render a video and returns a completed
// artifact with placeholder media links.
type SimulatedRenderer struct {
	Delay   time.Duration
	BaseURL string
	// Err, when set, is returned instead of an artifact.
	Err   error
	newID func() string
}

func NewSimulatedRenderer(delay time.Duration) *SimulatedRenderer {
	return &SimulatedRenderer{
		Delay:   delay,
		BaseURL: "https://media.local/videos",
		newID:   uuid.NewString,
	}
}

func (r *SimulatedRenderer) Render(ctx context.Context, req domain.VideoRequest) (domain.VideoArtifact, error) {
	if req.Duration <= 0 {
		return domain.VideoArtifact{}, fmt.Errorf("render %s: duration %d: %w", req.ContentID, req.Duration, domain.ErrInvalidArgument)
	}
	if err := sleep(ctx, r.Delay); err != nil {
		return domain.VideoArtifact{}, err
	}
	if r.Err != nil {
		return domain.VideoArtifact{}, r.Err
	}
	id := "video-" + r.newID()
	return domain.VideoArtifact{
		ID:        id,
		Kind:      req.Kind,
		Duration:  req.Duration,
		Format:    req.Format,
		Status:    domain.VideoStatusCompleted,
		URL:       fmt.Sprintf("%s/%s.mp4", r.BaseURL, id),
		Thumbnail: fmt.Sprintf("%s/%s.jpg", r.BaseURL, id),
		Script:    req.Script,
	}, nil
}
