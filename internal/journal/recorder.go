// Package journal persists bus events to an append-only store.
package journal

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"

	"content_orchestra/internal/domain"
)

type Sink interface {
	Append(ctx context.Context, entries ...domain.JournalEntry) error
}

type Recorder struct {
	sink     Sink
	logger   *log.Logger
	newID    func() string
	maxBatch int
}

func NewRecorder(sink Sink, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{sink: sink, logger: logger, newID: uuid.NewString, maxBatch: 64}
}

// Run drains events into the sink until the channel is closed or ctx ends.
// Whatever is already buffered is written in one batch.
func (r *Recorder) Run(ctx context.Context, events <-chan domain.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			batch := r.Entries(evt)
		drain:
			for len(batch) < r.maxBatch {
				select {
				case next, ok := <-events:
					if !ok {
						break drain
					}
					batch = append(batch, r.Entries(next)...)
				default:
					break drain
				}
			}
			if err := r.sink.Append(context.WithoutCancel(ctx), batch...); err != nil {
				r.logger.Printf("journal append failed entries=%d: %v", len(batch), err)
			}
		}
	}
}

// Entries maps one event to journal rows. A content_added batch yields one
// row per item.
func (r *Recorder) Entries(evt domain.Event) []domain.JournalEntry {
	switch {
	case evt.Agent != nil:
		return []domain.JournalEntry{r.entry(evt.Kind, evt.Agent.ID, string(evt.Agent.Status), evt.Agent, evt)}
	case evt.Item != nil:
		return []domain.JournalEntry{r.entry(evt.Kind, evt.Item.ID, string(evt.Item.Stage), evt.Item, evt)}
	}
	out := make([]domain.JournalEntry, 0, len(evt.Items))
	for i := range evt.Items {
		item := evt.Items[i]
		out = append(out, r.entry(evt.Kind, item.ID, string(item.Stage), item, evt))
	}
	return out
}

func (r *Recorder) entry(kind domain.EventKind, subject, state string, payload any, evt domain.Event) domain.JournalEntry {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	return domain.JournalEntry{
		ID:        r.newID(),
		Kind:      kind,
		SubjectID: subject,
		State:     state,
		Payload:   data,
		CreatedAt: evt.At.UTC(),
	}
}
