package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/ytlivechat/chat"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestDispatchBeforeQueue(t *testing.T) {
	b := NewBus()
	if err := b.Dispatch(Ready{}); !errors.Is(err, ErrNoQueue) {
		t.Fatalf("expected ErrNoQueue, got %v", err)
	}
}

func TestProcessBeforeQueue(t *testing.T) {
	b := NewBus()
	if err := b.Process(context.Background()); !errors.Is(err, ErrNoQueue) {
		t.Fatalf("expected ErrNoQueue, got %v", err)
	}
}

func TestCreateQueueIdempotent(t *testing.T) {
	b := NewBus()
	b.CreateQueue()
	if err := b.Dispatch(Ready{}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	// A second call must not discard queued events.
	b.CreateQueue()
	if got := b.QueueSize(); got != 1 {
		t.Fatalf("queue size = %d, want 1", got)
	}
}

func TestProcessDeliversInOrder(t *testing.T) {
	b := NewBus()
	b.CreateQueue()

	var mu sync.Mutex
	var got []string
	Listen(b, func(ctx context.Context, ev MessageCreated) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev.Message.ID)
		return nil
	})

	for _, id := range []string{"m1", "m2", "m3"} {
		if err := b.Dispatch(MessageCreated{Message: chat.Message{ID: id, Type: chat.TextMessage}}); err != nil {
			t.Fatalf("dispatch: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Process(ctx) }()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	})
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Process returned %v, want context.Canceled", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, want := range []string{"m1", "m2", "m3"} {
		if got[i] != want {
			t.Fatalf("delivery order %v, want m1 m2 m3", got)
		}
	}
}

func TestCallbackFailuresDoNotHaltDelivery(t *testing.T) {
	b := NewBus()
	b.CreateQueue()

	var mu sync.Mutex
	var got []string
	Listen(b, func(ctx context.Context, ev MessageCreated) error {
		return errors.New("first handler is broken")
	})
	Listen(b, func(ctx context.Context, ev MessageCreated) error {
		panic("second handler is worse")
	})
	Listen(b, func(ctx context.Context, ev MessageCreated) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev.Message.ID)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.Process(ctx) }()

	for _, id := range []string{"m1", "m2"} {
		if err := b.Dispatch(MessageCreated{Message: chat.Message{ID: id, Type: chat.TextMessage}}); err != nil {
			t.Fatalf("dispatch: %v", err)
		}
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	})
}

func TestListenOnlyMatchingType(t *testing.T) {
	b := NewBus()
	b.CreateQueue()

	var mu sync.Mutex
	var created, polled int
	Listen(b, func(ctx context.Context, ev MessageCreated) error {
		mu.Lock()
		defer mu.Unlock()
		created++
		return nil
	})
	Listen(b, func(ctx context.Context, ev ChatPolled) error {
		mu.Lock()
		defer mu.Unlock()
		polled++
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.Process(ctx) }()

	_ = b.Dispatch(ChatPolled{Data: map[string]any{"items": []any{}}})
	_ = b.Dispatch(MessageCreated{Message: chat.Message{ID: "m1", Type: chat.TextMessage}})
	_ = b.Dispatch(ChatPolled{Data: map[string]any{"items": []any{}}})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return created == 1 && polled == 2
	})
}

func TestName(t *testing.T) {
	if got := Name(MessageCreated{}); got != "MessageCreated" {
		t.Fatalf("Name = %q, want MessageCreated", got)
	}
	if got := Name(Ready{}); got != "Ready" {
		t.Fatalf("Name = %q, want Ready", got)
	}
}
