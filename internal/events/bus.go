// Package events fans detection notifications out to in-process subscribers.
//
// Every subscriber is drained by its own goroutine, so events reach a
// subscriber in publish order while a slow subscriber never delays the
// publisher or its peers. A buffered subscriber drops events once its buffer
// is full. A queued subscriber never drops: its backlog grows until the
// handler catches up.
package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/your-org/facecommand/internal/models"
	"github.com/your-org/facecommand/internal/observability"
)

type Type string

const (
	TypeStatusChanged    Type = "status_changed"
	TypeDetectionRunning Type = "detection_running"
)

// Event is a notification emitted by the detection loop.
type Event struct {
	Type Type      `json:"type"`
	Time time.Time `json:"time"`
	// Status and Previous are set for TypeStatusChanged.
	Status   *models.Status `json:"status,omitempty"`
	Previous *models.Status `json:"previous,omitempty"`
	// Running is set for TypeDetectionRunning.
	Running bool `json:"running"`
}

// StatusChanged builds the event for a persisted status transition.
func StatusChanged(status, previous *models.Status) Event {
	return Event{Type: TypeStatusChanged, Time: status.Time, Status: status, Previous: previous}
}

// DetectionRunning builds the event emitted when the loop starts or stops.
func DetectionRunning(running bool) Event {
	return Event{Type: TypeDetectionRunning, Time: time.Now().UTC(), Running: running}
}

// Handler consumes events of one subscriber. Calls are sequential.
type Handler func(ctx context.Context, ev Event)

var (
	ErrSubscriberExists = errors.New("subscriber id already exists")
	ErrBusClosed        = errors.New("bus is closed")
)

type subscriber struct {
	ch      chan Event
	queue   *fifo
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// Stats reports per-subscriber delivery counters.
type Stats struct {
	Published uint64
	Sent      map[string]uint64
	Dropped   map[string]uint64
}

type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool
	published   atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBus() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		subscribers: make(map[string]*subscriber),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Subscribe registers h under id with a buffer of the given size and starts
// its delivery goroutine. Events published while the buffer is full are
// dropped for this subscriber.
func (b *Bus) Subscribe(id string, buffer int, h Handler) error {
	if buffer <= 0 {
		buffer = 1
	}
	sub := &subscriber{ch: make(chan Event, buffer)}
	return b.add(id, sub, func() {
		for ev := range sub.ch {
			b.deliver(id, h, ev)
		}
	})
}

// SubscribeQueued registers h under id behind an unbounded queue. Publish
// never blocks on it and no event is dropped.
func (b *Bus) SubscribeQueued(id string, h Handler) error {
	sub := &subscriber{queue: newFIFO()}
	return b.add(id, sub, func() {
		for {
			ev, ok := sub.queue.pop()
			if !ok {
				return
			}
			b.deliver(id, h, ev)
		}
	})
}

func (b *Bus) add(id string, sub *subscriber, run func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if _, ok := b.subscribers[id]; ok {
		return ErrSubscriberExists
	}
	b.subscribers[id] = sub

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		run()
	}()
	return nil
}

func (b *Bus) deliver(id string, h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event subscriber panicked", "subscriber", id, "event", ev.Type, "panic", r)
		}
	}()
	h(b.ctx, ev)
}

// Publish hands ev to every subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	b.published.Add(1)

	for id, sub := range b.subscribers {
		if sub.queue != nil {
			sub.queue.push(ev)
			sub.sent.Add(1)
			continue
		}
		select {
		case sub.ch <- ev:
			sub.sent.Add(1)
		default:
			sub.dropped.Add(1)
			observability.EventsDropped.WithLabelValues(id).Inc()
			slog.Warn("event dropped, subscriber buffer full", "subscriber", id, "event", ev.Type)
		}
	}
}

func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st := Stats{
		Published: b.published.Load(),
		Sent:      make(map[string]uint64, len(b.subscribers)),
		Dropped:   make(map[string]uint64, len(b.subscribers)),
	}
	for id, sub := range b.subscribers {
		st.Sent[id] = sub.sent.Load()
		st.Dropped[id] = sub.dropped.Load()
	}
	return st
}

// Close stops accepting events, lets subscribers drain what is pending and
// waits for them to return.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, sub := range b.subscribers {
		if sub.queue != nil {
			sub.queue.close()
			continue
		}
		close(sub.ch)
	}
	b.mu.Unlock()

	b.wg.Wait()
	b.cancel()
	return nil
}
