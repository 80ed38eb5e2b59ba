package inproc

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"content_orchestra/internal/domain"
)

type Handler func(domain.Event)

type watcher struct {
	ch    chan domain.Event
	kinds map[domain.EventKind]bool
}

// Bus fans events out to synchronous handlers and buffered channel watchers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[domain.EventKind][]Handler
	watchers map[int]*watcher
	nextID   int
	buffer   int
	dropped  atomic.Int64
	logger   *log.Logger
}

func New(buffer int, logger *log.Logger) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Bus{
		handlers: make(map[domain.EventKind][]Handler),
		watchers: make(map[int]*watcher),
		buffer:   buffer,
		logger:   logger,
	}
}

func (b *Bus) Subscribe(kind domain.EventKind, h Handler) error {
	if !kind.Valid() {
		return fmt.Errorf("subscribe %q: %w", kind, domain.ErrInvalidArgument)
	}
	if h == nil {
		return fmt.Errorf("subscribe %q: nil handler: %w", kind, domain.ErrInvalidArgument)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
	return nil
}

// SubscribeObserver registers o for every event kind.
func (b *Bus) SubscribeObserver(o domain.Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, kind := range domain.EventKinds {
		b.handlers[kind] = append(b.handlers[kind], func(evt domain.Event) { evt.Dispatch(o) })
	}
}

// Publish runs the handlers for evt.Kind in registration order before it
// returns, then offers the event to watchers without blocking.
func (b *Bus) Publish(evt domain.Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[evt.Kind]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.invoke(h, evt)
	}

	// Sends never block, so holding the read lock keeps cancel from closing a
	// channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, w := range b.watchers {
		if len(w.kinds) > 0 && !w.kinds[evt.Kind] {
			continue
		}
		select {
		case w.ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *Bus) invoke(h Handler, evt domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Printf("event handler panic kind=%s: %v", evt.Kind, r)
		}
	}()
	h(evt)
}

// Watch returns a channel receiving the given kinds (all kinds when none are
// given). Events are dropped when the channel buffer is full. The returned
// func detaches the watcher and closes the channel.
func (b *Bus) Watch(buffer int, kinds ...domain.EventKind) (<-chan domain.Event, func()) {
	if buffer <= 0 {
		buffer = b.buffer
	}
	w := &watcher{ch: make(chan domain.Event, buffer)}
	if len(kinds) > 0 {
		w.kinds = make(map[domain.EventKind]bool, len(kinds))
		for _, k := range kinds {
			w.kinds[k] = true
		}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.watchers[id] = w
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.watchers, id)
			close(w.ch)
			b.mu.Unlock()
		})
	}
	return w.ch, cancel
}

// Dropped counts events that a full watcher buffer refused.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
