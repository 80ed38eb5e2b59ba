package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"content_orchestra/internal/api"
	"content_orchestra/internal/domain"
)

func newStatusCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show agents and pipeline metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := flags.client()
			ctx := cmd.Context()
			agents, err := c.ListAgents(ctx)
			if err != nil {
				return err
			}
			video, err := c.ListVideoAgents(ctx)
			if err != nil {
				return err
			}
			m, err := c.Metrics(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderAgents(out, append(agents, video...)))
			fmt.Fprintln(out, renderMetrics(out, m))
			return nil
		},
	}
}

func newContentCommand(flags *globalFlags) *cobra.Command {
	var stage string
	cmd := &cobra.Command{
		Use:   "content",
		Short: "List and manage content items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := flags.client().ListContent(cmd.Context())
			if err != nil {
				return err
			}
			if stage != "" {
				filtered := items[:0]
				for _, item := range items {
					if string(item.Stage) == stage {
						filtered = append(filtered, item)
					}
				}
				items = filtered
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderContent(out, items))
			return nil
		},
	}
	cmd.Flags().StringVar(&stage, "status", "", "only show items in this stage")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show one content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := flags.client().GetContent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printItem(cmd.OutOrStdout(), item)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "revise <id> <feedback...>",
		Short: "Request a revision with feedback",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := flags.client().RequestRevision(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now %s\n", item.ID, item.Stage)
			return nil
		},
	})

	actions := []struct {
		use   string
		short string
		call  func(*api.Client, context.Context, string) (domain.ContentItem, error)
	}{
		{"video", "Request a video for an item", (*api.Client).RequestVideo},
		{"approve", "Approve a reviewed item", (*api.Client).Approve},
		{"publish", "Publish an approved item", (*api.Client).Publish},
		{"archive", "Archive a published item", (*api.Client).Archive},
	}
	for _, a := range actions {
		cmd.AddCommand(&cobra.Command{
			Use:   a.use + " <id>",
			Short: a.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				item, err := a.call(flags.client(), cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s now %s video=%s\n", item.ID, item.Stage, firstNonEmpty(string(item.Metadata.VideoStatus), "-"))
				return nil
			},
		})
	}
	return cmd
}

func newAgentCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Pause or resume agents",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "pause <id>",
		Short: "Pause an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.client().PauseAgent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", a.ID, a.Status)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "resume <id>",
		Short: "Resume a paused agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.client().ResumeAgent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", a.ID, a.Status)
			return nil
		},
	})
	return cmd
}

func newJournalCommand(flags *globalFlags) *cobra.Command {
	var subject string
	var limit int
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recorded events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := flags.client().Journal(cmd.Context(), subject, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderJournal(out, entries))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "agent or content id")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries")
	return cmd
}

func renderAgents(out io.Writer, agents []domain.Agent) string {
	rows := make([][]string, 0, len(agents))
	for _, a := range agents {
		rows = append(rows, []string{
			a.ID,
			a.Name,
			string(a.Capability),
			string(a.Status),
			strconv.Itoa(a.Progress) + "%",
			strconv.Itoa(a.TasksCompleted),
			trimLine(a.CurrentTask, 48),
		})
	}
	return renderTable(out,
		[]string{"ID", "Name", "Capability", "Status", "Progress", "Done", "Task"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft})
}

func renderMetrics(out io.Writer, m domain.Metrics) string {
	rows := [][]string{
		{"Total content", strconv.Itoa(m.TotalContentCreated)},
		{"Avg trend score", strconv.Itoa(m.AverageTrendScore)},
		{"Active agents", strconv.Itoa(m.ActiveAgents)},
		{"In pipeline", strconv.Itoa(m.ContentPipelineCount)},
		{"Created today", strconv.Itoa(m.DailyOutput)},
		{"Success rate", strconv.Itoa(m.SuccessRate) + "%"},
		{"Videos", strconv.Itoa(m.VideosCreated)},
		{"Reels", strconv.Itoa(m.ReelsCreated)},
	}
	return renderTable(out, []string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}

func renderContent(out io.Writer, items []domain.ContentItem) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			shortID(item.ID),
			trimLine(item.Title, 40),
			string(item.Stage),
			strconv.Itoa(item.TrendScore),
			strconv.Itoa(item.SEOScore),
			firstNonEmpty(string(item.Metadata.VideoStatus), "-"),
			item.UpdatedAt.Local().Format(time.DateTime),
		})
	}
	return renderTable(out,
		[]string{"ID", "Title", "Stage", "Trend", "SEO", "Video", "Updated"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft})
}

func renderJournal(out io.Writer, entries []domain.JournalEntry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.CreatedAt.Local().Format(time.DateTime),
			string(e.Kind),
			e.SubjectID,
			e.State,
		})
	}
	return renderTable(out, []string{"At", "Kind", "Subject", "State"}, rows, nil)
}

func printItem(out io.Writer, item domain.ContentItem) {
	fmt.Fprintf(out, "%s  %s\n", item.ID, item.Title)
	fmt.Fprintf(out, "stage=%s type=%s trend=%d seo=%d engagement=%d\n",
		item.Stage, item.Kind, item.TrendScore, item.SEOScore, item.EngagementPrediction)
	fmt.Fprintf(out, "keywords=%s platforms=%s agents=%s\n",
		strings.Join(item.Metadata.Keywords, ","), strings.Join(item.Metadata.Platforms, ","), strings.Join(item.AssignedAgents, ","))
	for _, fb := range item.Feedback {
		fmt.Fprintf(out, "feedback %s [%s] %s\n", shortID(fb.ID), fb.Status, fb.Text)
	}
	if v := item.Video; v != nil {
		fmt.Fprintf(out, "video %s %s %ds %s %s\n", v.Kind, v.Status, v.Duration, v.Format, v.URL)
	}
	if item.Body != "" {
		fmt.Fprintf(out, "\n%s\n", item.Body)
	}
}

func trimLine(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}

func shortID(v string) string {
	if len(v) <= 8 {
		return v
	}
	return v[:8]
}
