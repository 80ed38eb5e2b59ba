package provider

import (
	"context"
	"fmt"
	"time"

	"content_orchestra/internal/domain"
)

// StubGenerator produces placeholder copy after a simulated delay.
type StubGenerator struct {
	rnd   Source
	Delay time.Duration
	// Err, when set, is returned instead of content.
	Err error
}

func NewStubGenerator(rnd Source, delay time.Duration) *StubGenerator {
	return &StubGenerator{rnd: &lockedSource{src: rnd}, Delay: delay}
}

func (g *StubGenerator) Generate(ctx context.Context, prompt string, kind domain.ContentKind) (domain.GeneratedContent, error) {
	if err := sleep(ctx, g.Delay); err != nil {
		return domain.GeneratedContent{}, err
	}
	if g.Err != nil {
		return domain.GeneratedContent{}, g.Err
	}
	return domain.GeneratedContent{
		Body: fmt.Sprintf(
			"Generated %s content based on: %s. This is a comprehensive piece that covers all key aspects with engaging narrative and actionable insights.",
			kind, prompt,
		),
		WordCount:        g.rnd.IntN(1000) + 500,
		ReadabilityScore: g.rnd.IntN(40) + 60,
		Keywords:         []string{"trending", "innovative", "comprehensive"},
	}, nil
}
