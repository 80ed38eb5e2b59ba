package provider

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"content_orchestra/internal/domain"
)

func TestStubTrendSourceDefaults(t *testing.T) {
	src := NewStubTrendSource(nil)
	trends, err := src.FetchTrending(context.Background(), "US", "all")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(trends) != 5 || trends[0].Keyword != "AI automation" {
		t.Fatalf("trends=%+v", trends)
	}
	trends[0].Keyword = "mutated"
	again, _ := src.FetchTrending(context.Background(), "US", "all")
	if again[0].Keyword != "AI automation" {
		t.Fatalf("caller mutation leaked into stub")
	}
}

func TestStubTrendSourceHonorsContext(t *testing.T) {
	src := &StubTrendSource{Trends: DefaultTrends, Delay: time.Hour}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := src.FetchTrending(ctx, "US", "all"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v want deadline exceeded", err)
	}
}

func TestLoadTrendFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trends.yaml")
	body := "trends:\n  - keyword: AI tools\n    volume: 100\n    growth: \"+50%\"\n  - keyword: Remote work\n    volume: 80\n    growth: \"+30%\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	trends, err := LoadTrendFixture(path)
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	want := []domain.Trend{{Keyword: "AI tools", Volume: 100, Growth: "+50%"}, {Keyword: "Remote work", Volume: 80, Growth: "+30%"}}
	if len(trends) != len(want) {
		t.Fatalf("trends=%+v", trends)
	}
	for i := range want {
		if trends[i] != want[i] {
			t.Fatalf("trends[%d]=%+v want=%+v", i, trends[i], want[i])
		}
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	_ = os.WriteFile(bad, []byte("trends:\n  - volume: 1\n"), 0o644)
	if _, err := LoadTrendFixture(bad); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("empty keyword err=%v", err)
	}
}

func TestStubGeneratorRanges(t *testing.T) {
	gen := NewStubGenerator(rand.New(rand.NewPCG(7, 7)), 0)
	for i := 0; i < 50; i++ {
		out, err := gen.Generate(context.Background(), "about AI", domain.ContentKindArticle)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if out.WordCount < 500 || out.WordCount >= 1500 {
			t.Fatalf("word count=%d", out.WordCount)
		}
		if out.ReadabilityScore < 60 || out.ReadabilityScore >= 100 {
			t.Fatalf("readability=%d", out.ReadabilityScore)
		}
		if !strings.HasPrefix(out.Body, "Generated article content based on: about AI.") {
			t.Fatalf("body=%q", out.Body)
		}
	}
}

func TestSimulatedRenderer(t *testing.T) {
	r := NewSimulatedRenderer(0)
	art, err := r.Render(context.Background(), domain.VideoRequest{ContentID: "c1", Kind: domain.VideoKindReel, Duration: 30, Format: "MP4 (9:16)", Script: "s"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if art.Status != domain.VideoStatusCompleted || art.Duration != 30 || !strings.HasPrefix(art.ID, "video-") {
		t.Fatalf("artifact=%+v", art)
	}
	if _, err := r.Render(context.Background(), domain.VideoRequest{ContentID: "c1"}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("zero duration err=%v", err)
	}
}
