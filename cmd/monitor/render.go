package main

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"content_orchestra/internal/domain"
)

func statusColor(s domain.AgentStatus) tcell.Color {
	switch s {
	case domain.AgentStatusWorking:
		return tcell.ColorYellow
	case domain.AgentStatusCompleted:
		return tcell.ColorGreen
	case domain.AgentStatusError:
		return tcell.ColorRed
	case domain.AgentStatusPaused:
		return tcell.ColorGray
	}
	return tview.Styles.PrimaryTextColor
}

func renderAgentsTable(table *tview.Table, agents []domain.Agent, selectedID string) {
	table.Clear()
	headers := []string{"Agent", "Status", "Progress", "Done", "Task"}
	for i, h := range headers {
		table.SetCell(0, i, tview.NewTableCell(h).SetSelectable(false).SetAttributes(tcell.AttrBold))
	}
	for i, a := range agents {
		row := i + 1
		table.SetCell(row, 0, tview.NewTableCell(a.Name))
		table.SetCell(row, 1, tview.NewTableCell(string(a.Status)).SetTextColor(statusColor(a.Status)))
		table.SetCell(row, 2, tview.NewTableCell(progressBar(a.Progress, 10)))
		table.SetCell(row, 3, tview.NewTableCell(fmt.Sprint(a.TasksCompleted)).SetAlign(tview.AlignRight))
		table.SetCell(row, 4, tview.NewTableCell(trimLine(a.CurrentTask, 48)))
		if a.ID == selectedID {
			table.Select(row, 0)
		}
	}
}

func renderContentTable(table *tview.Table, items []domain.ContentItem, selectedID string) {
	table.Clear()
	headers := []string{"Content", "Stage", "Trend", "SEO", "Video", "Updated"}
	for i, h := range headers {
		table.SetCell(0, i, tview.NewTableCell(h).SetSelectable(false).SetAttributes(tcell.AttrBold))
	}
	for i, item := range items {
		row := i + 1
		table.SetCell(row, 0, tview.NewTableCell(trimLine(item.Title, 40)))
		table.SetCell(row, 1, tview.NewTableCell(string(item.Stage)))
		table.SetCell(row, 2, tview.NewTableCell(fmt.Sprint(item.TrendScore)).SetAlign(tview.AlignRight))
		table.SetCell(row, 3, tview.NewTableCell(fmt.Sprint(item.SEOScore)).SetAlign(tview.AlignRight))
		table.SetCell(row, 4, tview.NewTableCell(videoLabel(item)))
		table.SetCell(row, 5, tview.NewTableCell(item.UpdatedAt.Local().Format("15:04:05")))
		if item.ID == selectedID {
			table.Select(row, 0)
		}
	}
}

func videoLabel(item domain.ContentItem) string {
	if item.Video != nil {
		return fmt.Sprintf("%s %s", item.Video.Kind, item.Video.Status)
	}
	if item.Metadata.VideoRequested {
		return string(item.Metadata.VideoStatus)
	}
	return "-"
}

func progressBar(pct, width int) string {
	pct = max(0, min(pct, 100))
	filled := pct * width / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + fmt.Sprintf("] %3d%%", pct)
}

func renderMetrics(m domain.Metrics) string {
	return fmt.Sprintf(
		"total [yellow]%d[-]  pipeline [yellow]%d[-]  today [yellow]%d[-]  active agents [yellow]%d[-]\n"+
			"avg trend [yellow]%d[-]  success [yellow]%d%%[-]  videos [yellow]%d[-]  reels [yellow]%d[-]",
		m.TotalContentCreated, m.ContentPipelineCount, m.DailyOutput, m.ActiveAgents,
		m.AverageTrendScore, m.SuccessRate, m.VideosCreated, m.ReelsCreated,
	)
}

func renderDetail(item domain.ContentItem, journal []domain.JournalEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[::b]%s[::-]\n", tview.Escape(item.Title))
	fmt.Fprintf(&b, "id=%s stage=%s type=%s engagement=%d\n", item.ID, item.Stage, item.Kind, item.EngagementPrediction)
	fmt.Fprintf(&b, "keywords=%s agents=%s\n", strings.Join(item.Metadata.Keywords, ","), strings.Join(item.AssignedAgents, ","))
	for _, fb := range item.Feedback {
		fmt.Fprintf(&b, "feedback [%s] %s\n", fb.Status, tview.Escape(trimLine(fb.Text, 80)))
	}
	if v := item.Video; v != nil {
		fmt.Fprintf(&b, "video %s %s %ds %s\n", v.Kind, v.Status, v.Duration, v.URL)
	}
	if item.Body != "" {
		fmt.Fprintf(&b, "\n%s\n", tview.Escape(trimLine(item.Body, 400)))
	}
	if len(journal) > 0 {
		b.WriteString("\n[::b]history[::-]\n")
		for _, e := range journal {
			fmt.Fprintf(&b, "%s %-16s %s\n", e.CreatedAt.Local().Format("15:04:05"), e.Kind, e.State)
		}
	}
	return b.String()
}

func trimLine(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
