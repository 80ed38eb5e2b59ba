package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"content_orchestra/internal/agent"
	"content_orchestra/internal/domain"
	"content_orchestra/internal/metrics"
)

type Config struct {
	ActivityInterval time.Duration
	PipelineInterval time.Duration
	AdapterTimeout   time.Duration
	RetryBackoff     time.Duration
	MaxRetryBackoff  time.Duration
	TrendsPerIntake  int
	Region           string
	Category         string
	DefaultKind      domain.ContentKind
	Audience         string
	Platforms        []string
	OptimizeDelay    time.Duration
	ReviewDelay      time.Duration
}

func (c Config) withDefaults() Config {
	if c.ActivityInterval <= 0 {
		c.ActivityInterval = 5 * time.Second
	}
	if c.PipelineInterval <= 0 {
		c.PipelineInterval = 10 * time.Second
	}
	if c.AdapterTimeout <= 0 {
		c.AdapterTimeout = 30 * time.Second
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 10 * time.Second
	}
	if c.MaxRetryBackoff <= 0 {
		c.MaxRetryBackoff = 2 * time.Minute
	}
	if c.MaxRetryBackoff < c.RetryBackoff {
		c.MaxRetryBackoff = c.RetryBackoff
	}
	if c.TrendsPerIntake <= 0 {
		c.TrendsPerIntake = 2
	}
	if c.Region == "" {
		c.Region = "US"
	}
	if c.Category == "" {
		c.Category = "all"
	}
	if c.DefaultKind == "" {
		c.DefaultKind = domain.ContentKindArticle
	}
	if c.Audience == "" {
		c.Audience = "general"
	}
	if len(c.Platforms) == 0 {
		c.Platforms = []string{"blog", "social"}
	}
	if c.OptimizeDelay < 0 {
		c.OptimizeDelay = 0
	}
	if c.ReviewDelay < 0 {
		c.ReviewDelay = 0
	}
	return c
}

// backoff doubles per consecutive failure up to MaxRetryBackoff.
func (c Config) backoff(failures int) time.Duration {
	if failures <= 0 {
		return 0
	}
	d := c.RetryBackoff
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= c.MaxRetryBackoff {
			return c.MaxRetryBackoff
		}
	}
	return min(d, c.MaxRetryBackoff)
}

// Service drives the activity and pipeline timers and is the control surface
// used by the API.
type Service struct {
	registry *agent.Registry
	engine   *Engine
	strategy agent.Strategy
	cfg      Config
	logger   *log.Logger
	now      func() time.Time

	// tickMu keeps an activity tick from interleaving with a pipeline pass.
	tickMu sync.Mutex
	wg     sync.WaitGroup
}

func New(registry *agent.Registry, engine *Engine, strategy agent.Strategy, cfg Config, logger *log.Logger) *Service {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		registry: registry,
		engine:   engine,
		strategy: strategy,
		cfg:      cfg,
		logger:   logger,
		now:      engine.rt.Now,
	}
}

func (s *Service) Start(ctx context.Context) {
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.activityLoop(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.pipelineLoop(ctx)
	}()
}

func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) activityLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ActivityInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ActivityOnce(); err != nil {
				s.logger.Printf("activity loop error: %v", err)
			}
		}
	}
}

func (s *Service) pipelineLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PipelineInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := s.PipelineOnce(ctx)
			if err != nil {
				s.logger.Printf("pipeline pass error: %v", err)
			}
			if report.Created > 0 || report.AdvancedID != "" || report.VideosCreated > 0 {
				s.logger.Printf("pipeline pass created=%d advanced=%s %s->%s videos=%d",
					report.Created, report.AdvancedID, report.AdvancedFrom, report.AdvancedTo, report.VideosCreated)
			}
		}
	}
}

// ActivityOnce runs one simulation tick over agents without pipeline work.
func (s *Service) ActivityOnce() (changed int, err error) {
	if s.strategy == nil {
		return 0, nil
	}
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("activity tick panic: %v", r)
		}
	}()
	return s.registry.SimulateAll(s.strategy), nil
}

// PipelineOnce runs one orchestration pass. A panic is reported as an error
// so the loop keeps ticking.
func (s *Service) PipelineOnce(ctx context.Context) (report PassReport, err error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline pass panic: %v", r)
		}
	}()
	return s.engine.RunPass(ctx)
}

func (s *Service) ListAgents() []domain.Agent {
	return s.registry.ListStandard()
}

func (s *Service) ListVideoAgents() []domain.Agent {
	return s.registry.ListVideo()
}

func (s *Service) GetAgent(id string) (domain.Agent, error) {
	return s.registry.Get(id)
}

func (s *Service) PauseAgent(id string) (domain.Agent, error) {
	return s.registry.Pause(id)
}

func (s *Service) ResumeAgent(id string) (domain.Agent, error) {
	return s.registry.Resume(id)
}

func (s *Service) ListContent() []domain.ContentItem {
	return s.engine.List()
}

func (s *Service) GetContent(id string) (domain.ContentItem, error) {
	return s.engine.Get(id)
}

func (s *Service) UpdateContent(id string, patch ContentPatch) (domain.ContentItem, error) {
	return s.engine.UpdateContent(id, patch)
}

func (s *Service) RequestRevision(id, feedback string) (domain.ContentItem, error) {
	return s.engine.RequestRevision(id, feedback)
}

func (s *Service) RequestVideo(id string) (domain.ContentItem, error) {
	return s.engine.RequestVideo(id)
}

func (s *Service) Approve(id string) (domain.ContentItem, error) {
	return s.engine.Approve(id)
}

func (s *Service) Publish(id string) (domain.ContentItem, error) {
	return s.engine.Publish(id)
}

func (s *Service) Archive(id string) (domain.ContentItem, error) {
	return s.engine.Archive(id)
}

func (s *Service) QueueLen() int {
	return s.engine.QueueLen()
}

func (s *Service) Metrics() domain.Metrics {
	return metrics.Compute(s.registry.List(), s.engine.List(), s.now())
}
