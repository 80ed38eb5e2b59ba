package main

import (
	"strings"
	"testing"
	"time"

	"github.com/rivo/tview"

	"content_orchestra/internal/domain"
)

func TestProgressBar(t *testing.T) {
	cases := []struct {
		pct  int
		want string
	}{
		{0, "[..........]   0%"},
		{50, "[#####.....]  50%"},
		{140, "[##########] 100%"},
		{-5, "[..........]   0%"},
	}
	for _, tc := range cases {
		if got := progressBar(tc.pct, 10); got != tc.want {
			t.Fatalf("progressBar(%d)=%q want=%q", tc.pct, got, tc.want)
		}
	}
}

func TestVideoLabel(t *testing.T) {
	item := domain.ContentItem{}
	if got := videoLabel(item); got != "-" {
		t.Fatalf("label=%q", got)
	}
	item.Metadata.VideoRequested = true
	item.Metadata.VideoStatus = domain.VideoStatusPending
	if got := videoLabel(item); got != "pending" {
		t.Fatalf("label=%q", got)
	}
	item.Video = &domain.VideoArtifact{Kind: domain.VideoKindReel, Status: domain.VideoStatusCompleted}
	if got := videoLabel(item); got != "reel completed" {
		t.Fatalf("label=%q", got)
	}
}

func TestRenderTablesSelectRow(t *testing.T) {
	table := tview.NewTable().SetSelectable(true, false)
	renderAgentsTable(table, []domain.Agent{
		{ID: "a1", Name: "One", Status: domain.AgentStatusIdle},
		{ID: "a2", Name: "Two", Status: domain.AgentStatusWorking, Progress: 40},
	}, "a2")
	if table.GetRowCount() != 3 {
		t.Fatalf("rows=%d want=3", table.GetRowCount())
	}
	if row, _ := table.GetSelection(); row != 2 {
		t.Fatalf("selected row=%d want=2", row)
	}

	renderContentTable(table, []domain.ContentItem{{ID: "c1", Title: "First", Stage: domain.StageReview}}, "c1")
	if got := table.GetCell(1, 1).Text; got != "review" {
		t.Fatalf("stage cell=%q", got)
	}
}

func TestRenderDetail(t *testing.T) {
	out := renderDetail(domain.ContentItem{
		ID:       "c1",
		Title:    "Guide [draft]",
		Stage:    domain.StageRevisionRequested,
		Feedback: []domain.FeedbackEntry{{Text: "More examples", Status: domain.FeedbackStatusPending}},
	}, []domain.JournalEntry{{Kind: domain.EventContentUpdated, State: "revision_requested", CreatedAt: time.Now()}})
	for _, want := range []string{"stage=revision_requested", "feedback [pending] More examples", "history", tview.Escape("[draft]")} {
		if !strings.Contains(out, want) {
			t.Fatalf("detail missing %q:\n%s", want, out)
		}
	}
}

func TestRenderMetrics(t *testing.T) {
	out := renderMetrics(domain.Metrics{TotalContentCreated: 4, SuccessRate: 25, ReelsCreated: 1})
	if !strings.Contains(out, "total [yellow]4[-]") || !strings.Contains(out, "success [yellow]25%[-]") {
		t.Fatalf("metrics=%q", out)
	}
}
