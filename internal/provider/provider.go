package provider

import (
	"context"
	"sync"
	"time"

	"content_orchestra/internal/domain"
)

type TrendSource interface {
	FetchTrending(ctx context.Context, region, category string) ([]domain.Trend, error)
}

type ContentGenerator interface {
	Generate(ctx context.Context, prompt string, kind domain.ContentKind) (domain.GeneratedContent, error)
}

type VideoRenderer interface {
	Render(ctx context.Context, req domain.VideoRequest) (domain.VideoArtifact, error)
}

// Source is satisfied by *math/rand/v2.Rand.
type Source interface {
	IntN(n int) int
}

// lockedSource lets stubs share one random source across goroutines.
type lockedSource struct {
	mu  sync.Mutex
	src Source
}

func (l *lockedSource) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.IntN(n)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
