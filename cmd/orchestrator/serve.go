package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"content_orchestra/internal/agent"
	"content_orchestra/internal/api"
	"content_orchestra/internal/config"
	"content_orchestra/internal/domain"
	"content_orchestra/internal/journal"
	"content_orchestra/internal/messaging/inproc"
	"content_orchestra/internal/orchestrator"
	"content_orchestra/internal/policy"
	"content_orchestra/internal/provider"
	sqlitestore "content_orchestra/internal/store/sqlite"
)

func newServeCommand(flags *globalFlags) *cobra.Command {
	var addrFlag, dbFlag string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestrator and its HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg, addrFlag, dbFlag, log.Default())
		},
	}
	cmd.Flags().StringVar(&addrFlag, "addr", "", "http listen address override")
	cmd.Flags().StringVar(&dbFlag, "db", "", "sqlite journal path override")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, addrFlag, dbFlag string, logger *log.Logger) error {
	addr := firstNonEmpty(addrFlag, cfg.Orchestrator.Addr, ":8091")
	dbPath := filepath.Clean(firstNonEmpty(dbFlag, cfg.Orchestrator.DBPath, "data/content_orchestra.db"))
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}

	lock := flock.New(dbPath + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another orchestrator is already using %s", dbPath)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	store, err := sqlitestore.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite store: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}

	bus := inproc.New(256, logger)
	events, stopWatch := bus.Watch(1024)
	recorderDone := make(chan struct{})
	go func() {
		defer close(recorderDone)
		journal.NewRecorder(store, logger).Run(context.WithoutCancel(ctx), events)
	}()

	svc, err := buildService(cfg, bus, logger)
	if err != nil {
		stopWatch()
		<-recorderDone
		return err
	}
	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()
	svc.Start(runCtx)

	srv := api.New(svc, api.Options{Config: cfg, Journal: store, Events: bus, Logger: logger})
	server := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-runCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Printf("content orchestrator started addr=%s db=%s generator=%s agents=%d",
		addr, dbPath, firstNonEmpty(cfg.Providers.Generator, "stub"), len(svc.ListAgents())+len(svc.ListVideoAgents()))

	serveErr := server.ListenAndServe()
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	}

	stopRun()
	svc.Wait()
	stopWatch()
	<-recorderDone
	if dropped := bus.Dropped(); dropped > 0 {
		logger.Printf("event watchers dropped=%d", dropped)
	}
	if serveErr != nil {
		return fmt.Errorf("http server failed: %w", serveErr)
	}
	return nil
}

// buildService wires the registry, engine and scheduler from config.
func buildService(cfg config.Config, bus *inproc.Bus, logger *log.Logger) (*orchestrator.Service, error) {
	rules := policy.New()
	roster := cfg.Roster()
	if roster == nil {
		roster = agent.DefaultRoster()
	}
	registry, err := agent.NewRegistry(roster, bus, rules, time.Now)
	if err != nil {
		return nil, fmt.Errorf("build agent registry: %w", err)
	}

	seed := cfg.Orchestrator.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	adapters, err := buildAdapters(cfg, rand.New(rand.NewPCG(seed, 1)), logger)
	if err != nil {
		return nil, err
	}

	orchCfg := engineConfig(cfg)
	engine := orchestrator.NewEngine(registry, bus, rules, adapters, orchCfg,
		orchestrator.Runtime{Rand: rand.New(rand.NewPCG(seed, 2))}, logger)
	strategy := agent.NewRandomStrategy(rand.New(rand.NewPCG(seed, 3)),
		cfg.Simulation.ActivityChance, cfg.Simulation.VideoActivityChance)
	return orchestrator.New(registry, engine, strategy, orchCfg, logger), nil
}

func buildAdapters(cfg config.Config, rnd *rand.Rand, logger *log.Logger) (orchestrator.Adapters, error) {
	p := cfg.Providers

	var trends []domain.Trend
	if strings.TrimSpace(p.TrendsFixture) != "" {
		loaded, err := provider.LoadTrendFixture(p.TrendsFixture)
		if err != nil {
			return orchestrator.Adapters{}, fmt.Errorf("load trend fixture: %w", err)
		}
		trends = loaded
	}

	var generator provider.ContentGenerator
	switch firstNonEmpty(p.Generator, "stub") {
	case "responses":
		g, err := provider.NewResponsesGenerator(provider.ResponsesConfig{
			Endpoint:  p.Endpoint,
			Model:     p.Model,
			AuthToken: os.Getenv(firstNonEmpty(p.AuthTokenEnv, "CONTENT_API_TOKEN")),
			Logger:    logger,
		})
		if err != nil {
			return orchestrator.Adapters{}, fmt.Errorf("build responses generator: %w", err)
		}
		generator = g
	default:
		generator = provider.NewStubGenerator(rnd, durationMS(p.GenerateDelayMS, 2*time.Second))
	}

	return orchestrator.Adapters{
		Trends:    provider.NewStubTrendSource(trends),
		Generator: generator,
		Renderer:  provider.NewSimulatedRenderer(durationMS(p.VideoDelayMS, 5*time.Second)),
	}, nil
}

func engineConfig(cfg config.Config) orchestrator.Config {
	o := cfg.Orchestrator
	return orchestrator.Config{
		ActivityInterval: durationMS(o.ActivityIntervalMS, 5*time.Second),
		PipelineInterval: durationMS(o.PipelineIntervalMS, 10*time.Second),
		AdapterTimeout:   durationMS(o.AdapterTimeoutMS, 30*time.Second),
		RetryBackoff:     durationMS(o.RetryBackoffMS, 10*time.Second),
		MaxRetryBackoff:  durationMS(o.MaxRetryBackoffMS, 2*time.Minute),
		TrendsPerIntake:  intOrDefault(o.TrendsPerIntake, 2),
		Region:           firstNonEmpty(o.Region, "US"),
		Category:         firstNonEmpty(o.Category, "all"),
		Audience:         firstNonEmpty(o.Audience, "general"),
		Platforms:        o.Platforms,
		OptimizeDelay:    durationMS(o.OptimizeDelayMS, 3*time.Second),
		ReviewDelay:      durationMS(o.ReviewDelayMS, 2*time.Second),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func durationMS(v int, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Millisecond
}

func intOrDefault(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
