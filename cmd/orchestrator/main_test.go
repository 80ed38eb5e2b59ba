package main

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"content_orchestra/internal/api"
	"content_orchestra/internal/config"
	"content_orchestra/internal/messaging/inproc"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestEngineConfigDefaults(t *testing.T) {
	got := engineConfig(config.Config{})
	if got.PipelineInterval != 10*time.Second || got.ActivityInterval != 5*time.Second {
		t.Fatalf("intervals=%s/%s", got.PipelineInterval, got.ActivityInterval)
	}
	if got.OptimizeDelay != 3*time.Second || got.ReviewDelay != 2*time.Second || got.TrendsPerIntake != 2 {
		t.Fatalf("cfg=%+v", got)
	}

	var cfg config.Config
	cfg.Orchestrator.PipelineIntervalMS = 250
	cfg.Orchestrator.Region = "DE"
	got = engineConfig(cfg)
	if got.PipelineInterval != 250*time.Millisecond || got.Region != "DE" {
		t.Fatalf("override cfg=%+v", got)
	}
}

func TestBuildServiceRejectsBadRoster(t *testing.T) {
	cfg := config.Config{Agents: []config.AgentConfig{
		{ID: "dup", Capability: "researcher"},
		{ID: "dup", Capability: "generator"},
	}}
	if _, err := buildService(cfg, inproc.New(4, quietLogger()), quietLogger()); err == nil {
		t.Fatalf("expected duplicate agent id error")
	}
}

func TestBuildServiceRejectsIncompleteResponsesProvider(t *testing.T) {
	var cfg config.Config
	cfg.Providers.Generator = "responses"
	if _, err := buildService(cfg, inproc.New(4, quietLogger()), quietLogger()); err == nil {
		t.Fatalf("expected error for responses generator without endpoint")
	}
}

func newCLIServer(t *testing.T) (*httptest.Server, func(args ...string) (string, error)) {
	t.Helper()
	var cfg config.Config
	cfg.Orchestrator.Seed = 7
	cfg.Providers.GenerateDelayMS = 1
	cfg.Orchestrator.OptimizeDelayMS = 1
	cfg.Orchestrator.ReviewDelayMS = 1
	bus := inproc.New(16, quietLogger())
	svc, err := buildService(cfg, bus, quietLogger())
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	if _, err := svc.PipelineOnce(context.Background()); err != nil {
		t.Fatalf("pipeline pass: %v", err)
	}
	ts := httptest.NewServer(api.New(svc, api.Options{Config: cfg, Events: bus, Logger: quietLogger()}).Handler())
	t.Cleanup(ts.Close)

	run := func(args ...string) (string, error) {
		cmd := newRootCommand()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(append(args, "--server", ts.URL))
		err := cmd.Execute()
		return out.String(), err
	}
	return ts, run
}

func TestStatusCommandRendersTables(t *testing.T) {
	_, run := newCLIServer(t)
	out, err := run("status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"researcher-01", "reel-creator-02", "Total content", "In pipeline"} {
		if !strings.Contains(out, want) {
			t.Fatalf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestContentCommands(t *testing.T) {
	_, run := newCLIServer(t)
	out, err := run("content", "--status", "research")
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	if !strings.Contains(out, "The Ultimate Guide") {
		t.Fatalf("content output:\n%s", out)
	}

	if _, err := run("content", "approve", "missing"); err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("approve missing err=%v", err)
	}
	out, err = run("agent", "pause", "generator-02")
	if err != nil || !strings.Contains(out, "generator-02 paused") {
		t.Fatalf("pause out=%q err=%v", out, err)
	}
}

func TestRenderTablePlainForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	out := renderTable(&buf, []string{"A", "B"}, [][]string{{"1"}}, []columnAlignment{alignLeft, alignRight})
	if strings.Contains(out, "╭") {
		t.Fatalf("rounded style used for non-terminal:\n%s", out)
	}
	if !strings.Contains(out, "| 1 |") {
		t.Fatalf("table=%s", out)
	}
	if renderTable(&buf, nil, nil, nil) != "" {
		t.Fatalf("expected empty table without headers")
	}
}

func TestTrimLine(t *testing.T) {
	if got := trimLine("abcdefghij", 6); got != "abc..." {
		t.Fatalf("trimLine=%q", got)
	}
	if got := trimLine("short", 10); got != "short" {
		t.Fatalf("trimLine=%q", got)
	}
}
