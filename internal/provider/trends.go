package provider

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"content_orchestra/internal/domain"
)

// DefaultTrends is served by StubTrendSource when no fixture is loaded.
var DefaultTrends = []domain.Trend{
	{Keyword: "AI automation", Volume: 95000, Growth: "+145%"},
	{Keyword: "Remote work tools", Volume: 78000, Growth: "+89%"},
	{Keyword: "Sustainable technology", Volume: 65000, Growth: "+67%"},
	{Keyword: "Digital wellness", Volume: 52000, Growth: "+112%"},
	{Keyword: "Web3 integration", Volume: 48000, Growth: "+203%"},
}

type StubTrendSource struct {
	Trends []domain.Trend
	Delay  time.Duration
	// Err, when set, is returned instead of trends.
	Err error
}

func NewStubTrendSource(trends []domain.Trend) *StubTrendSource {
	if len(trends) == 0 {
		trends = DefaultTrends
	}
	return &StubTrendSource{Trends: trends}
}

func (s *StubTrendSource) FetchTrending(ctx context.Context, region, category string) ([]domain.Trend, error) {
	if err := sleep(ctx, s.Delay); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]domain.Trend, len(s.Trends))
	copy(out, s.Trends)
	return out, nil
}

type trendFixture struct {
	Trends []domain.Trend `yaml:"trends"`
}

// LoadTrendFixture reads a YAML file of the form:
//
//	trends:
//	  - keyword: AI automation
//	    volume: 95000
//	    growth: "+145%"
func LoadTrendFixture(path string) ([]domain.Trend, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trend fixture %s: %w", path, err)
	}
	var fx trendFixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("decode trend fixture: %w", err)
	}
	for i, tr := range fx.Trends {
		if strings.TrimSpace(tr.Keyword) == "" {
			return nil, fmt.Errorf("trend fixture entry %d: empty keyword: %w", i, domain.ErrInvalidArgument)
		}
	}
	return fx.Trends, nil
}
