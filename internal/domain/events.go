package domain

import (
	"encoding/json"
	"time"
)

// EventKind is the closed set of notifications the orchestrator publishes.
type EventKind string

const (
	EventAgentUpdated      EventKind = "agent_updated"
	EventVideoAgentUpdated EventKind = "video_agent_updated"
	EventContentAdded      EventKind = "content_added"
	EventContentUpdated    EventKind = "content_updated"
)

var EventKinds = []EventKind{
	EventAgentUpdated,
	EventVideoAgentUpdated,
	EventContentAdded,
	EventContentUpdated,
}

func (k EventKind) Valid() bool {
	switch k {
	case EventAgentUpdated, EventVideoAgentUpdated, EventContentAdded, EventContentUpdated:
		return true
	}
	return false
}

// Event carries a snapshot. Agent is set for the two agent kinds, Items for
// content_added and Item for content_updated.
type Event struct {
	Kind  EventKind     `json:"kind"`
	Agent *Agent        `json:"agent,omitempty"`
	Items []ContentItem `json:"items,omitempty"`
	Item  *ContentItem  `json:"item,omitempty"`
	At    time.Time     `json:"at"`
}

func AgentEvent(a Agent, at time.Time) Event {
	kind := EventAgentUpdated
	if a.Capability.IsVideo() {
		kind = EventVideoAgentUpdated
	}
	snap := a.Clone()
	return Event{Kind: kind, Agent: &snap, At: at}
}

func ContentAddedEvent(items []ContentItem, at time.Time) Event {
	batch := make([]ContentItem, 0, len(items))
	for _, item := range items {
		batch = append(batch, item.Clone())
	}
	return Event{Kind: EventContentAdded, Items: batch, At: at}
}

func ContentUpdatedEvent(item ContentItem, at time.Time) Event {
	snap := item.Clone()
	return Event{Kind: EventContentUpdated, Item: &snap, At: at}
}

// SubjectID is the agent or content id the event is about. For a batch it is
// the first item.
func (e Event) SubjectID() string {
	switch {
	case e.Agent != nil:
		return e.Agent.ID
	case e.Item != nil:
		return e.Item.ID
	case len(e.Items) > 0:
		return e.Items[0].ID
	}
	return ""
}

// Observer receives every event kind through its own method.
type Observer interface {
	AgentUpdated(Agent)
	VideoAgentUpdated(Agent)
	ContentAdded([]ContentItem)
	ContentUpdated(ContentItem)
}

// Dispatch routes e to the matching Observer method.
func (e Event) Dispatch(o Observer) {
	switch e.Kind {
	case EventAgentUpdated:
		if e.Agent != nil {
			o.AgentUpdated(*e.Agent)
		}
	case EventVideoAgentUpdated:
		if e.Agent != nil {
			o.VideoAgentUpdated(*e.Agent)
		}
	case EventContentAdded:
		o.ContentAdded(e.Items)
	case EventContentUpdated:
		if e.Item != nil {
			o.ContentUpdated(*e.Item)
		}
	}
}

type JournalEntry struct {
	ID        string          `json:"id"`
	Kind      EventKind       `json:"kind"`
	SubjectID string          `json:"subject_id"`
	State     string          `json:"state"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
