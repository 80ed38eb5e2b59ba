package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"content_orchestra/internal/api"
	"content_orchestra/internal/domain"
)

type embeddedOrchestrator struct {
	cmd *exec.Cmd
	out bytes.Buffer
}

func main() {
	addr := flag.String("addr", "http://localhost:8091", "orchestrator base URL")
	interval := flag.Duration("interval", 2*time.Second, "fallback refresh interval")
	embedded := flag.Bool("embedded", false, "start an orchestrator for the monitor's lifetime")
	orchestratorBinary := flag.String("orchestrator-bin", "", "path to orchestrator binary (embedded mode)")
	dbPath := flag.String("db", "data/embedded.db", "sqlite journal path for embedded orchestrator")
	flag.Parse()

	c := api.NewClient(*addr, 10*time.Second)

	if *embedded {
		proc, err := startEmbeddedOrchestrator(*addr, *orchestratorBinary, *dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start embedded orchestrator: %v\n", err)
			os.Exit(1)
		}
		defer proc.Stop()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := waitHealth(ctx, c, 30*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "orchestrator health check failed: %v\n", err)
		os.Exit(1)
	}

	if err := run(ctx, c, *addr, *interval); err != nil {
		fmt.Fprintf(os.Stderr, "monitor failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *api.Client, addr string, interval time.Duration) error {
	app := tview.NewApplication()

	agentsTable := tview.NewTable().SetBorders(false).SetSelectable(true, false)
	agentsTable.SetTitle("Agents (p pause/resume)").SetBorder(true)

	contentTable := tview.NewTable().SetBorders(false).SetSelectable(true, false)
	contentTable.SetTitle("Content (v video, a approve, u publish, x archive)").SetBorder(true)

	detailView := tview.NewTextView().SetDynamicColors(true).SetWrap(true)
	detailView.SetTitle("Detail").SetBorder(true)

	metricsView := tview.NewTextView().SetDynamicColors(true)
	metricsView.SetTitle("Metrics").SetBorder(true)

	feedbackInput := tview.NewInputField().SetLabel("Revision feedback: ")
	feedbackInput.SetBorder(true).SetTitle("Enter = request revision for selected content")

	statusView := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	statusView.SetBorder(true).SetTitle("Status")
	statusView.SetText(fmt.Sprintf("Connected to %s | F10 quit, F5 refresh, Tab switch pane, Ctrl+R feedback", addr))

	left := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(agentsTable, 0, 1, true).
		AddItem(metricsView, 4, 0, false)
	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(contentTable, 0, 1, false).
		AddItem(detailView, 0, 1, false)
	mainLayout := tview.NewFlex().
		AddItem(left, 0, 1, true).
		AddItem(right, 0, 1, false)
	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(mainLayout, 0, 12, true).
		AddItem(feedbackInput, 3, 0, false).
		AddItem(statusView, 3, 0, false)

	// Written by refresh goroutines, read from the UI goroutine.
	var agents atomic.Pointer[[]domain.Agent]
	var items atomic.Pointer[[]domain.ContentItem]
	var selectedAgent, selectedContent atomic.Value
	selectedAgent.Store("")
	selectedContent.Store("")
	var detailVersion atomic.Uint64
	empty := []domain.Agent{}
	agents.Store(&empty)
	noItems := []domain.ContentItem{}
	items.Store(&noItems)

	setStatusAsync := func(msg string) {
		app.QueueUpdateDraw(func() {
			statusView.SetText(msg)
		})
	}

	refreshDetail := func() {
		id := selectedContent.Load().(string)
		if id == "" {
			return
		}
		v := detailVersion.Add(1)
		go func() {
			item, err := c.GetContent(ctx, id)
			history, herr := c.Journal(ctx, id, 12)
			if detailVersion.Load() != v {
				return
			}
			app.QueueUpdateDraw(func() {
				if err != nil {
					detailView.SetText(fmt.Sprintf("error: %v", err))
					return
				}
				if herr != nil {
					history = nil
				}
				detailView.SetText(renderDetail(item, history))
			})
		}()
	}

	refresh := func() {
		standard, err := c.ListAgents(ctx)
		video, verr := c.ListVideoAgents(ctx)
		content, cerr := c.ListContent(ctx)
		m, merr := c.Metrics(ctx)
		if err := firstError(err, verr, cerr, merr); err != nil {
			setStatusAsync("refresh failed: " + err.Error())
			return
		}
		all := append(standard, video...)
		agents.Store(&all)
		items.Store(&content)
		app.QueueUpdateDraw(func() {
			renderAgentsTable(agentsTable, all, selectedAgent.Load().(string))
			renderContentTable(contentTable, content, selectedContent.Load().(string))
			metricsView.SetText(renderMetrics(m))
		})
		refreshDetail()
	}

	currentAgent := func() (domain.Agent, bool) {
		row, _ := agentsTable.GetSelection()
		list := *agents.Load()
		if row <= 0 || row > len(list) {
			return domain.Agent{}, false
		}
		return list[row-1], true
	}
	currentContent := func() (domain.ContentItem, bool) {
		row, _ := contentTable.GetSelection()
		list := *items.Load()
		if row <= 0 || row > len(list) {
			return domain.ContentItem{}, false
		}
		return list[row-1], true
	}

	// act runs a control call off the UI goroutine and refreshes afterwards.
	act := func(label string, call func() error) {
		go func() {
			if err := call(); err != nil {
				setStatusAsync(label + " failed: " + err.Error())
				return
			}
			setStatusAsync(label + " ok")
			refresh()
		}()
	}

	agentsTable.SetSelectionChangedFunc(func(row, _ int) {
		if a, ok := currentAgent(); ok {
			selectedAgent.Store(a.ID)
		}
	})
	contentTable.SetSelectionChangedFunc(func(row, _ int) {
		if item, ok := currentContent(); ok && item.ID != selectedContent.Load().(string) {
			selectedContent.Store(item.ID)
			refreshDetail()
		}
	})

	feedbackInput.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			if key == tcell.KeyEscape {
				app.SetFocus(contentTable)
			}
			return
		}
		text := strings.TrimSpace(feedbackInput.GetText())
		item, ok := currentContent()
		if text == "" || !ok {
			statusView.SetText("select content and type feedback first")
			return
		}
		feedbackInput.SetText("")
		app.SetFocus(contentTable)
		act("revision "+item.Title, func() error {
			_, err := c.RequestRevision(ctx, item.ID, text)
			return err
		})
	})

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if app.GetFocus() == feedbackInput {
			return event
		}
		switch event.Key() {
		case tcell.KeyF10:
			app.Stop()
			return nil
		case tcell.KeyF5:
			go refresh()
			return nil
		case tcell.KeyCtrlR:
			app.SetFocus(feedbackInput)
			return nil
		case tcell.KeyTAB:
			if app.GetFocus() == agentsTable {
				app.SetFocus(contentTable)
			} else {
				app.SetFocus(agentsTable)
			}
			return nil
		case tcell.KeyRune:
		default:
			return event
		}

		if app.GetFocus() == agentsTable && event.Rune() == 'p' {
			if a, ok := currentAgent(); ok {
				if a.Status == domain.AgentStatusPaused {
					act("resume "+a.ID, func() error { _, err := c.ResumeAgent(ctx, a.ID); return err })
				} else {
					act("pause "+a.ID, func() error { _, err := c.PauseAgent(ctx, a.ID); return err })
				}
			}
			return nil
		}
		if app.GetFocus() != contentTable {
			return event
		}
		item, ok := currentContent()
		if !ok {
			return event
		}
		var call func(context.Context, string) (domain.ContentItem, error)
		switch event.Rune() {
		case 'v':
			call = c.RequestVideo
		case 'a':
			call = c.Approve
		case 'u':
			call = c.Publish
		case 'x':
			call = c.Archive
		default:
			return event
		}
		act(fmt.Sprintf("%c %s", event.Rune(), item.Title), func() error {
			_, err := call(ctx, item.ID)
			return err
		})
		return nil
	})

	// Events trigger a refresh; the ticker covers a dropped stream.
	var dirty atomic.Bool
	go func() {
		for ctx.Err() == nil {
			err := c.StreamEvents(ctx, func(domain.Event) {
				dirty.Store(true)
			})
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				setStatusAsync("event stream: " + err.Error())
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
		}
	}()
	go func() {
		refresh()
		fast := time.NewTicker(250 * time.Millisecond)
		slow := time.NewTicker(interval)
		defer fast.Stop()
		defer slow.Stop()
		for {
			select {
			case <-ctx.Done():
				app.Stop()
				return
			case <-fast.C:
				if dirty.Swap(false) {
					refresh()
				}
			case <-slow.C:
				refresh()
			}
		}
	}()

	return app.SetRoot(root, true).EnableMouse(true).SetFocus(agentsTable).Run()
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func waitHealth(ctx context.Context, c *api.Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := c.Health(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(400 * time.Millisecond):
		}
	}
	return fmt.Errorf("timeout waiting for /healthz")
}

func startEmbeddedOrchestrator(addr, orchestratorBinary, dbPath string) (*embeddedOrchestrator, error) {
	parsed, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parse addr: %w", err)
	}
	port := parsed.Port()
	if port == "" {
		return nil, fmt.Errorf("addr must include explicit port, got %q", addr)
	}
	args := []string{"serve", "--addr", ":" + port, "--db", dbPath}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	var cmd *exec.Cmd
	if strings.TrimSpace(orchestratorBinary) != "" {
		cmd = exec.Command(orchestratorBinary, args...)
	} else {
		self, err := os.Executable()
		if err == nil {
			for _, name := range []string{"orchestrator", "orchestrator.exe"} {
				sibling := filepath.Join(filepath.Dir(self), name)
				if fileExists(sibling) {
					cmd = exec.Command(sibling, args...)
					break
				}
			}
		}
		if cmd == nil {
			cmd = exec.Command("go", append([]string{"run", "./cmd/orchestrator"}, args...)...)
		}
	}

	proc := &embeddedOrchestrator{cmd: cmd}
	cmd.Stdout = &proc.out
	cmd.Stderr = &proc.out
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start orchestrator process: %w", err)
	}
	return proc, nil
}

func (e *embeddedOrchestrator) Stop() {
	if e == nil || e.cmd == nil || e.cmd.Process == nil {
		return
	}
	_ = e.cmd.Process.Signal(os.Interrupt)
	done := make(chan struct{})
	go func() {
		_, _ = e.cmd.Process.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = e.cmd.Process.Kill()
		<-done
	}
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
