package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"content_orchestra/internal/agent"
	"content_orchestra/internal/domain"
	"content_orchestra/internal/policy"
	"content_orchestra/internal/provider"
)

type Publisher interface {
	Publish(evt domain.Event)
}

type Adapters struct {
	Trends    provider.TrendSource
	Generator provider.ContentGenerator
	Renderer  provider.VideoRenderer
}

// Runtime carries the engine's sources of nondeterminism.
type Runtime struct {
	Rand  provider.Source
	Now   func() time.Time
	NewID func() string
}

func (r Runtime) withDefaults() Runtime {
	if r.Rand == nil {
		r.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	if r.Now == nil {
		r.Now = time.Now
	}
	if r.NewID == nil {
		r.NewID = uuid.NewString
	}
	return r
}

type itemState struct {
	item domain.ContentItem
	seq  uint64

	inFlight bool
	failures int
	retryAt  time.Time

	videoInFlight bool
}

// PassReport summarizes one orchestration pass.
type PassReport struct {
	Created       int          `json:"created"`
	AdvancedID    string       `json:"advanced_id,omitempty"`
	AdvancedFrom  domain.Stage `json:"advanced_from,omitempty"`
	AdvancedTo    domain.Stage `json:"advanced_to,omitempty"`
	VideosCreated int          `json:"videos_created"`
	Failures      int          `json:"failures"`
}

// Engine owns the content collection and runs orchestration passes.
type Engine struct {
	registry *agent.Registry
	bus      Publisher
	policy   *policy.Engine
	adapters Adapters
	cfg      Config
	rt       Runtime
	logger   *log.Logger

	passMu sync.Mutex

	mu             sync.Mutex
	items          map[string]*itemState
	order          []*itemState
	stages         *orderedQueue
	videos         *orderedQueue
	seq            uint64
	intakeFailures int
	intakeRetryAt  time.Time
}

func NewEngine(registry *agent.Registry, bus Publisher, rules *policy.Engine, adapters Adapters, cfg Config, rt Runtime, logger *log.Logger) *Engine {
	if rules == nil {
		rules = policy.New()
	}
	if logger == nil {
		logger = log.Default()
	}
	rt = rt.withDefaults()
	if adapters.Generator == nil {
		adapters.Generator = provider.NewStubGenerator(rt.Rand, 0)
	}
	if adapters.Renderer == nil {
		adapters.Renderer = provider.NewSimulatedRenderer(0)
	}
	return &Engine{
		registry: registry,
		bus:      bus,
		policy:   rules,
		adapters: adapters,
		cfg:      cfg.withDefaults(),
		rt:       rt,
		logger:   logger,
		items:    make(map[string]*itemState),
		stages: newOrderedQueue(func(st *itemState) bool {
			return st.item.Stage.Advanceable()
		}),
		videos: newOrderedQueue(func(st *itemState) bool {
			return st.item.Metadata.VideoRequested && st.item.Metadata.VideoStatus == domain.VideoStatusPending
		}),
	}
}

// RunPass performs intake, advances at most one item, then serves pending
// video requests. Passes never overlap. The returned error joins every
// adapter failure seen during the pass; state is already consistent when it
// returns.
func (e *Engine) RunPass(ctx context.Context) (PassReport, error) {
	e.passMu.Lock()
	defer e.passMu.Unlock()

	var report PassReport
	var errs []error
	if err := e.intake(ctx, &report); err != nil {
		errs = append(errs, err)
	}
	if err := e.advance(ctx, &report); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, e.fanOutVideo(ctx, &report)...)
	report.Failures = len(errs)
	return report, errors.Join(errs...)
}

func (e *Engine) intake(ctx context.Context, report *PassReport) error {
	if e.adapters.Trends == nil {
		return nil
	}
	now := e.rt.Now()
	e.mu.Lock()
	waiting := now.Before(e.intakeRetryAt)
	e.mu.Unlock()
	if waiting {
		return nil
	}

	researcher, ok := e.registry.Acquire(domain.CapabilityResearcher, "Analyzing trending topics...")
	if !ok {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.AdapterTimeout)
	trends, err := guard(func() ([]domain.Trend, error) {
		return e.adapters.Trends.FetchTrending(callCtx, e.cfg.Region, e.cfg.Category)
	})
	cancel()
	if err != nil {
		e.mu.Lock()
		e.intakeFailures++
		e.intakeRetryAt = e.rt.Now().Add(e.cfg.backoff(e.intakeFailures))
		e.mu.Unlock()
		e.release(e.registry.Fail(researcher.ID, "Research failed"))
		e.logger.Printf("research failed agent=%s: %v", researcher.ID, err)
		return &domain.AdapterError{Adapter: "trends", Op: "fetch_trending", Err: err}
	}

	if len(trends) > e.cfg.TrendsPerIntake {
		trends = trends[:e.cfg.TrendsPerIntake]
	}
	now = e.rt.Now().UTC()
	batch := make([]domain.ContentItem, 0, len(trends))
	for _, tr := range trends {
		batch = append(batch, e.seedItem(tr, researcher.ID, now))
	}

	e.mu.Lock()
	e.intakeFailures = 0
	e.intakeRetryAt = time.Time{}
	for _, item := range batch {
		e.seq++
		st := &itemState{item: item.Clone(), seq: e.seq}
		e.items[item.ID] = st
		e.order = append(e.order, st)
		e.stages.sync(st)
		e.videos.sync(st)
	}
	e.mu.Unlock()

	if len(batch) > 0 {
		e.publish(domain.ContentAddedEvent(batch, now))
	}
	e.release(e.registry.Complete(researcher.ID, "Research completed", nil))
	report.Created = len(batch)
	return nil
}

func (e *Engine) seedItem(tr domain.Trend, researcherID string, now time.Time) domain.ContentItem {
	return domain.ContentItem{
		ID:                   e.rt.NewID(),
		Title:                tr.Keyword + ": The Ultimate Guide",
		Kind:                 e.cfg.DefaultKind,
		Stage:                domain.StageResearch,
		TrendScore:           trendScore(tr.Growth),
		EngagementPrediction: e.rt.Rand.IntN(100),
		CreatedAt:            now,
		UpdatedAt:            now,
		Metadata: domain.ContentMetadata{
			Keywords:       []string{tr.Keyword},
			TargetAudience: e.cfg.Audience,
			Platforms:      append([]string(nil), e.cfg.Platforms...),
			EstimatedReach: tr.Volume,
			TrendingTopics: []string{tr.Keyword},
		},
		AssignedAgents: []string{researcherID},
	}
}

// trendScore reads "+145%" as 145. Unparseable or negative growth scores 0.
func trendScore(growth string) int {
	s := strings.TrimSpace(growth)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "+"), "%")
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

type job struct {
	id    string
	from  domain.Stage
	item  domain.ContentItem
	agent domain.Agent
}

// advance walks the stage queue in creation order and dispatches the first
// item whose stage has an idle agent of the required capability.
func (e *Engine) advance(ctx context.Context, report *PassReport) error {
	e.mu.Lock()
	candidates := e.stages.ids()
	e.mu.Unlock()

	for _, id := range candidates {
		j, ok := e.reserve(id)
		if !ok {
			continue
		}
		a, ok := e.registry.Acquire(requiredCapability(j.from), stageTask(j.from, j.item.Title))
		if !ok {
			e.unreserve(id)
			continue
		}
		j.agent = a
		return e.dispatch(ctx, j, report)
	}
	return nil
}

func (e *Engine) reserve(id string) (job, bool) {
	now := e.rt.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.items[id]
	if !ok || st.inFlight || !st.item.Stage.Advanceable() || now.Before(st.retryAt) {
		return job{}, false
	}
	st.inFlight = true
	return job{id: id, from: st.item.Stage, item: st.item.Clone()}, true
}

func (e *Engine) unreserve(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.items[id]; ok {
		st.inFlight = false
	}
}

func (e *Engine) dispatch(ctx context.Context, j job, report *PassReport) error {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.AdapterTimeout)
	defer cancel()

	switch j.from {
	case domain.StageResearch:
		prompt := generationPrompt(j.item)
		out, err := guard(func() (domain.GeneratedContent, error) {
			return e.adapters.Generator.Generate(callCtx, prompt, j.item.Kind)
		})
		if err != nil {
			return e.failStage(j, "Generation failed", &domain.AdapterError{Adapter: "content", Op: "generate", Err: err})
		}
		return e.completeStage(j, domain.StageGeneration, "Content generated", report, func(item *domain.ContentItem) bool {
			item.Body = out.Body
			return true
		})

	case domain.StageGeneration:
		if err := e.simulate(callCtx, e.cfg.OptimizeDelay); err != nil {
			return e.failStage(j, "Optimization failed", &domain.AdapterError{Adapter: "seo", Op: "optimize", Err: err})
		}
		score := e.rt.Rand.IntN(40) + 60
		return e.completeStage(j, domain.StageOptimization, "Optimization completed", report, func(item *domain.ContentItem) bool {
			item.SEOScore = score
			return true
		})

	case domain.StageOptimization:
		if err := e.simulate(callCtx, e.cfg.ReviewDelay); err != nil {
			return e.failStage(j, "Review failed", &domain.AdapterError{Adapter: "review", Op: "review", Err: err})
		}
		return e.completeStage(j, domain.StageReview, "Review completed", report, nil)

	case domain.StageRevisionRequested:
		idx := j.item.LatestPendingFeedback()
		var fb domain.FeedbackEntry
		if idx >= 0 {
			fb = j.item.Feedback[idx]
		}
		out, err := guard(func() (domain.GeneratedContent, error) {
			return e.adapters.Generator.Generate(callCtx, revisionPrompt(fb.Text, j.item.Body), j.item.Kind)
		})
		if err != nil {
			return e.failStage(j, "Revision failed", &domain.AdapterError{Adapter: "content", Op: "revise", Err: err})
		}
		return e.completeStage(j, domain.StageGeneration, "Revision completed", report, func(item *domain.ContentItem) bool {
			if fb.ID != "" {
				found := false
				for i := range item.Feedback {
					if item.Feedback[i].ID == fb.ID && item.Feedback[i].Status == domain.FeedbackStatusPending {
						item.Feedback[i].Status = domain.FeedbackStatusAddressed
						found = true
					}
				}
				if !found {
					return false
				}
			}
			item.Body = out.Body
			if item.LatestPendingFeedback() >= 0 {
				item.Stage = domain.StageRevisionRequested
			}
			return true
		})
	}

	e.unreserve(j.id)
	e.release(e.registry.Fail(j.agent.ID, "Unsupported stage"))
	return fmt.Errorf("dispatch content %s stage %s: %w", j.id, j.from, domain.ErrInvalidTransition)
}

func (e *Engine) simulate(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// completeStage applies a stage result only if the item is still where it
// was when dispatched. mutate sees the item already moved to `to`; it may
// veto by returning false or hold the item in its current stage by
// resetting Stage to j.from.
func (e *Engine) completeStage(j job, to domain.Stage, note string, report *PassReport, mutate func(*domain.ContentItem) bool) error {
	now := e.rt.Now().UTC()

	e.mu.Lock()
	st, ok := e.items[j.id]
	if !ok {
		e.mu.Unlock()
		e.release(e.registry.Complete(j.agent.ID, note, nil))
		return nil
	}
	st.inFlight = false
	applied := false
	var snap domain.ContentItem
	if st.item.Stage == j.from && e.policy.CanAdvance(j.from, to) {
		next := st.item.Clone()
		next.Stage = to
		if mutate == nil || mutate(&next) {
			if next.Stage != to {
				next.Stage = j.from
			}
			to = next.Stage
			next.AssignedAgents = append(next.AssignedAgents, j.agent.ID)
			next.UpdatedAt = now
			st.item = next
			st.failures = 0
			st.retryAt = time.Time{}
			e.stages.sync(st)
			e.videos.sync(st)
			snap = next.Clone()
			applied = true
		}
	}
	e.mu.Unlock()

	if applied {
		e.publish(domain.ContentUpdatedEvent(snap, now))
		report.AdvancedID = j.id
		report.AdvancedFrom = j.from
		report.AdvancedTo = to
	} else {
		e.logger.Printf("stage result discarded content=%s from=%s: item changed while in flight", j.id, j.from)
	}
	e.release(e.registry.Complete(j.agent.ID, note, nil))
	return nil
}

func (e *Engine) failStage(j job, note string, err error) error {
	e.mu.Lock()
	if st, ok := e.items[j.id]; ok {
		st.inFlight = false
		st.failures++
		st.retryAt = e.rt.Now().Add(e.cfg.backoff(st.failures))
	}
	e.mu.Unlock()

	e.release(e.registry.Fail(j.agent.ID, note))
	e.logger.Printf("stage %s failed content=%s agent=%s: %v", j.from, j.id, j.agent.ID, err)
	return err
}

// guard turns a panicking adapter call into an ordinary failure so the
// claimed agent and item are released.
func guard[T any](call func() (T, error)) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("adapter panic: %v", r)
		}
	}()
	return call()
}

func (e *Engine) release(_ domain.Agent, err error) {
	if err != nil {
		e.logger.Printf("release agent: %v", err)
	}
}

func (e *Engine) publish(evt domain.Event) {
	if e.bus != nil {
		e.bus.Publish(evt)
	}
}

func requiredCapability(s domain.Stage) domain.Capability {
	switch s {
	case domain.StageResearch, domain.StageRevisionRequested:
		return domain.CapabilityGenerator
	case domain.StageGeneration:
		return domain.CapabilityOptimizer
	case domain.StageOptimization:
		return domain.CapabilityReviewer
	}
	return ""
}

func stageTask(s domain.Stage, title string) string {
	switch s {
	case domain.StageResearch:
		return "Generating: " + title
	case domain.StageGeneration:
		return "Optimizing: " + title
	case domain.StageOptimization:
		return "Reviewing: " + title
	case domain.StageRevisionRequested:
		return "Revising: " + title
	}
	return title
}

func generationPrompt(item domain.ContentItem) string {
	return fmt.Sprintf(
		"Create engaging %s content about %s targeting %s. Make it comprehensive, actionable, and trending.",
		item.Kind, strings.Join(item.Metadata.Keywords, ", "), item.Metadata.TargetAudience,
	)
}

func revisionPrompt(feedback, body string) string {
	return fmt.Sprintf("Revise this content based on feedback: \"%s\". Original content: %s", feedback, body)
}
