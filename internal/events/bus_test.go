package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/your-org/facecommand/internal/models"
)

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus()

	var (
		mu  sync.Mutex
		got []int64
	)
	if err := bus.Subscribe("recorder", 16, func(_ context.Context, ev Event) {
		mu.Lock()
		got = append(got, ev.Status.ID)
		mu.Unlock()
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	for i := int64(1); i <= 5; i++ {
		bus.Publish(StatusChanged(&models.Status{ID: i, Type: models.StatusFacesDetected}, nil))
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 5 {
		t.Fatalf("expected 5 events, got %d", len(got))
	}
	for i, id := range got {
		if id != int64(i+1) {
			t.Errorf("expected event %d at position %d, got %d", i+1, i, id)
		}
	}
}

func TestBusDropsForSlowSubscriberOnly(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	if err := bus.Subscribe("slow", 1, func(context.Context, Event) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	}); err != nil {
		t.Fatalf("Subscribe slow: %v", err)
	}

	fast := make(chan Event, 10)
	if err := bus.Subscribe("fast", 10, func(_ context.Context, ev Event) { fast <- ev }); err != nil {
		t.Fatalf("Subscribe fast: %v", err)
	}

	bus.Publish(DetectionRunning(true))
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("slow subscriber never started")
	}
	// One event fills the slow buffer, the next is dropped.
	bus.Publish(DetectionRunning(false))
	bus.Publish(DetectionRunning(true))

	for i := 0; i < 3; i++ {
		select {
		case <-fast:
		case <-time.After(time.Second):
			t.Fatalf("fast subscriber missed event %d", i)
		}
	}

	st := bus.Stats()
	if st.Published != 3 {
		t.Errorf("expected 3 published, got %d", st.Published)
	}
	if st.Dropped["slow"] != 1 {
		t.Errorf("expected 1 drop for slow subscriber, got %d", st.Dropped["slow"])
	}
	if st.Dropped["fast"] != 0 {
		t.Errorf("expected no drops for fast subscriber, got %d", st.Dropped["fast"])
	}
	close(release)
}

func TestBusSubscribeErrors(t *testing.T) {
	bus := NewBus()
	noop := func(context.Context, Event) {}

	if err := bus.Subscribe("a", 1, noop); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := bus.Subscribe("a", 1, noop); !errors.Is(err, ErrSubscriberExists) {
		t.Errorf("expected ErrSubscriberExists, got %v", err)
	}
	_ = bus.Close()
	if err := bus.Subscribe("b", 1, noop); !errors.Is(err, ErrBusClosed) {
		t.Errorf("expected ErrBusClosed, got %v", err)
	}
	// Publishing after close is a no-op.
	bus.Publish(DetectionRunning(true))
}

func TestBusRecoversSubscriberPanic(t *testing.T) {
	bus := NewBus()

	var calls int
	if err := bus.Subscribe("flaky", 4, func(context.Context, Event) {
		calls++
		if calls == 1 {
			panic("boom")
		}
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	bus.Publish(DetectionRunning(true))
	bus.Publish(DetectionRunning(false))
	_ = bus.Close()

	if calls != 2 {
		t.Errorf("expected delivery to continue after panic, got %d calls", calls)
	}
}

func TestQueuedSubscriberNeverDrops(t *testing.T) {
	bus := NewBus()

	release := make(chan struct{})
	var (
		mu  sync.Mutex
		got []int64
	)
	if err := bus.SubscribeQueued("commands", func(_ context.Context, ev Event) {
		<-release
		mu.Lock()
		got = append(got, ev.Status.ID)
		mu.Unlock()
	}); err != nil {
		t.Fatalf("SubscribeQueued: %v", err)
	}
	if err := bus.Subscribe("ws", 1, func(context.Context, Event) { <-release }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	const n = 50
	for i := int64(1); i <= n; i++ {
		bus.Publish(StatusChanged(&models.Status{ID: i, Type: models.StatusFacesDetected}, nil))
	}
	st := bus.Stats()
	if st.Dropped["commands"] != 0 || st.Sent["commands"] != n {
		t.Errorf("expected %d sent and none dropped for queued subscriber, got sent=%d dropped=%d",
			n, st.Sent["commands"], st.Dropped["commands"])
	}
	if st.Dropped["ws"] == 0 {
		t.Error("expected the buffered subscriber to drop while blocked")
	}

	close(release)
	if err := bus.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != n {
		t.Fatalf("expected %d events, got %d", n, len(got))
	}
	for i, id := range got {
		if id != int64(i+1) {
			t.Fatalf("expected event %d at position %d, got %d", i+1, i, id)
		}
	}
}

func TestQueuedSubscriberExists(t *testing.T) {
	bus := NewBus()
	noop := func(context.Context, Event) {}

	if err := bus.Subscribe("commands", 1, noop); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := bus.SubscribeQueued("commands", noop); !errors.Is(err, ErrSubscriberExists) {
		t.Errorf("expected ErrSubscriberExists, got %v", err)
	}
	_ = bus.Close()
	if err := bus.SubscribeQueued("late", noop); !errors.Is(err, ErrBusClosed) {
		t.Errorf("expected ErrBusClosed, got %v", err)
	}
}
