package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"content_orchestra/internal/domain"
	"content_orchestra/internal/orchestrator"
	sqlitestore "content_orchestra/internal/store/sqlite"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"time":         time.Now().UTC().Format(time.RFC3339),
		"queue_length": s.ctrl.QueueLen(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"path": s.opts.Config.Path,
		"raw":  s.opts.Config.Raw,
	})
}

func (s *Server) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.ListAgents())
}

func (s *Server) handleListVideoAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.ListVideoAgents())
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	a, err := s.ctrl.GetAgent(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handlePauseAgent(w http.ResponseWriter, r *http.Request) {
	a, err := s.ctrl.PauseAgent(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleResumeAgent(w http.ResponseWriter, r *http.Request) {
	a, err := s.ctrl.ResumeAgent(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleListContent(w http.ResponseWriter, r *http.Request) {
	items := s.ctrl.ListContent()
	if stage := strings.TrimSpace(r.URL.Query().Get("status")); stage != "" {
		filtered := items[:0]
		for _, item := range items {
			if string(item.Stage) == stage {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	item, err := s.ctrl.GetContent(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleUpdateContent(w http.ResponseWriter, r *http.Request) {
	var patch orchestrator.ContentPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json body: %w", err))
		return
	}
	item, err := s.ctrl.UpdateContent(r.PathValue("id"), patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleRevision(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Feedback string `json:"feedback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json body: %w", err))
		return
	}
	item, err := s.ctrl.RequestRevision(r.PathValue("id"), req.Feedback)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	item, err := s.ctrl.RequestVideo(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, item)
}

func (s *Server) contentAction(fn func(id string) (domain.ContentItem, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := fn(r.PathValue("id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Metrics())
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.opts.Journal == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("journal disabled"))
		return
	}
	filter := sqlitestore.Filter{
		SubjectID: strings.TrimSpace(r.URL.Query().Get("subject")),
		Limit:     queryInt(r, "limit", 100),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
		kind := domain.EventKind(raw)
		if !kind.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: unknown event kind %q", domain.ErrInvalidArgument, raw))
			return
		}
		filter.Kind = kind
	}
	entries, err := s.opts.Journal.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleEvents streams bus events as Server-Sent Events until the client
// disconnects. A slow client loses events rather than stalling publishers.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.opts.Events == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("event stream disabled"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	var kinds []domain.EventKind
	for _, raw := range strings.Split(r.URL.Query().Get("kinds"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		kind := domain.EventKind(raw)
		if !kind.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: unknown event kind %q", domain.ErrInvalidArgument, raw))
			return
		}
		kinds = append(kinds, kind)
	}

	events, cancel := s.opts.Events.Watch(64, kinds...)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(s.opts.Heartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case evt, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				s.opts.Logger.Printf("encode event kind=%s: %v", evt.Kind, err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Kind, data)
			flusher.Flush()
		}
	}
}
