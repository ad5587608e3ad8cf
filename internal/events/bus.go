// Package events is the in-process publish/subscribe bus between the
// workspace manager, the tiling engine and the daemon.
package events

import (
	"log/slog"
	"sync"

	"github.com/1broseidon/panewm/internal/platform"
)

// Kind identifies an event.
type Kind string

const (
	WorkspaceCreated        Kind = "workspace_created"
	WorkspaceDestroyed      Kind = "workspace_destroyed"
	CurrentWorkspaceChanged Kind = "current_workspace"
	WindowAssigned          Kind = "window_assigned"
	WindowUnassigned        Kind = "window_unassigned"
	WindowFocused           Kind = "window_focused"
	WindowReparented        Kind = "window_reparented"
)

// Event is one notification. Fields not meaningful for a kind are zero.
type Event struct {
	Kind      Kind
	Monitor   string
	Workspace string
	Window    platform.WindowID
	Creator   platform.WindowID
	// Previous is the workspace that was current before a switch.
	Previous string
}

// Subscription receives events on C until the bus closes or Unsubscribe.
type Subscription struct {
	Name string
	C    <-chan Event

	ch    chan Event
	bus   *Bus
	queue *queue // set for lossless subscriptions
}

// Unsubscribe removes the subscription and closes C.
func (s *Subscription) Unsubscribe() {
	s.bus.remove(s)
}

// Bus fans out published events to every subscriber. Publish never blocks:
// a buffered subscriber whose buffer is full misses the event and a warning
// is logged, while a lossless subscriber queues it without bound.
type Bus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	subs   []*Subscription
	closed bool
}

// NewBus creates a bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger.With("component", "events")}
}

// Subscribe registers a subscriber with its own buffered channel.
func (b *Bus) Subscribe(name string, buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	sub := &Subscription{Name: name, C: ch, ch: ch, bus: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	b.subs = append(b.subs, sub)
	return sub
}

// SubscribeLossless registers a subscriber that receives every event in
// publish order. Events queue without bound until C is drained.
func (b *Bus) SubscribeLossless(name string) *Subscription {
	ch := make(chan Event)
	q := &queue{wake: make(chan struct{}, 1), done: make(chan struct{})}
	sub := &Subscription{Name: name, C: ch, ch: ch, bus: b, queue: q}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	b.subs = append(b.subs, sub)
	go q.run(ch)
	return sub
}

// Publish delivers ev to every subscriber.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if sub.queue != nil {
			sub.queue.push(ev)
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.logger.Warn("dropping event for slow subscriber", "subscriber", sub.Name, "kind", ev.Kind)
		}
	}
}

// Close closes every subscription channel. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		sub.close()
	}
	b.subs = nil
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub == s {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			s.close()
			return
		}
	}
}

func (s *Subscription) close() {
	if s.queue != nil {
		close(s.queue.done)
		return
	}
	close(s.ch)
}

// queue is the unbounded FIFO behind a lossless subscription. run forwards
// it to the subscriber channel and closes that channel when done closes.
type queue struct {
	mu    sync.Mutex
	items []Event
	wake  chan struct{}
	done  chan struct{}
}

func (q *queue) push(ev Event) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *queue) pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Event{}, false
	}
	ev := q.items[0]
	q.items[0] = Event{}
	q.items = q.items[1:]
	return ev, true
}

func (q *queue) run(out chan<- Event) {
	defer close(out)
	for {
		ev, ok := q.pop()
		if !ok {
			select {
			case <-q.wake:
				continue
			case <-q.done:
				return
			}
		}
		select {
		case out <- ev:
		case <-q.done:
			return
		}
	}
}
