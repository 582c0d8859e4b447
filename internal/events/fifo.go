package events

import "sync"

// fifo is an unbounded event queue with a single consumer.
type fifo struct {
	mu     sync.Mutex
	items  []Event
	closed bool
	wake   chan struct{}
}

func newFIFO() *fifo {
	return &fifo{wake: make(chan struct{}, 1)}
}

func (q *fifo) push(ev Event) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()
	q.signal()
}

// pop blocks until an event is available. It returns false once the queue
// is closed and empty.
func (q *fifo) pop() (Event, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			ev := q.items[0]
			q.items[0] = Event{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return ev, true
		}
		if q.closed {
			q.mu.Unlock()
			return Event{}, false
		}
		q.mu.Unlock()
		<-q.wake
	}
}

func (q *fifo) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *fifo) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
