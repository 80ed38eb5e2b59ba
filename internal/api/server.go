// Package api exposes the orchestrator control surface over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"content_orchestra/internal/config"
	"content_orchestra/internal/domain"
	"content_orchestra/internal/orchestrator"
	sqlitestore "content_orchestra/internal/store/sqlite"
)

const maxRequestBody int64 = 1 << 20

// Control is the subset of orchestrator.Service the handlers drive.
type Control interface {
	ListAgents() []domain.Agent
	ListVideoAgents() []domain.Agent
	GetAgent(id string) (domain.Agent, error)
	PauseAgent(id string) (domain.Agent, error)
	ResumeAgent(id string) (domain.Agent, error)
	ListContent() []domain.ContentItem
	GetContent(id string) (domain.ContentItem, error)
	UpdateContent(id string, patch orchestrator.ContentPatch) (domain.ContentItem, error)
	RequestRevision(id, feedback string) (domain.ContentItem, error)
	RequestVideo(id string) (domain.ContentItem, error)
	Approve(id string) (domain.ContentItem, error)
	Publish(id string) (domain.ContentItem, error)
	Archive(id string) (domain.ContentItem, error)
	Metrics() domain.Metrics
	QueueLen() int
}

type Journal interface {
	List(ctx context.Context, f sqlitestore.Filter) ([]domain.JournalEntry, error)
}

type Watcher interface {
	Watch(buffer int, kinds ...domain.EventKind) (<-chan domain.Event, func())
}

type Options struct {
	Config  config.Config
	Journal Journal
	Events  Watcher
	Logger  *log.Logger
	// Heartbeat is the idle interval between SSE keep-alive comments.
	Heartbeat time.Duration
}

type Server struct {
	ctrl Control
	opts Options
	mux  *http.ServeMux
}

func New(ctrl Control, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 15 * time.Second
	}
	s := &Server{ctrl: ctrl, opts: opts, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.loggingMiddleware(limitBody(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /config", s.handleConfig)
	s.mux.HandleFunc("GET /agents", s.handleListAgents)
	s.mux.HandleFunc("GET /agents/video", s.handleListVideoAgents)
	s.mux.HandleFunc("GET /agents/{id}", s.handleGetAgent)
	s.mux.HandleFunc("POST /agents/{id}/pause", s.handlePauseAgent)
	s.mux.HandleFunc("POST /agents/{id}/resume", s.handleResumeAgent)
	s.mux.HandleFunc("GET /content", s.handleListContent)
	s.mux.HandleFunc("GET /content/{id}", s.handleGetContent)
	s.mux.HandleFunc("PATCH /content/{id}", s.handleUpdateContent)
	s.mux.HandleFunc("POST /content/{id}/revision", s.handleRevision)
	s.mux.HandleFunc("POST /content/{id}/video", s.handleVideo)
	s.mux.HandleFunc("POST /content/{id}/approve", s.contentAction(s.ctrl.Approve))
	s.mux.HandleFunc("POST /content/{id}/publish", s.contentAction(s.ctrl.Publish))
	s.mux.HandleFunc("POST /content/{id}/archive", s.contentAction(s.ctrl.Archive))
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)
	s.mux.HandleFunc("GET /events", s.handleEvents)
	s.mux.HandleFunc("GET /journal", s.handleJournal)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.opts.Logger.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{
		"error": err.Error(),
	})
}

// writeDomainError maps sentinel errors to status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func queryInt(r *http.Request, key string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
