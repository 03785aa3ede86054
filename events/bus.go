package events

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"runtime/debug"
	"slices"
	"sync"

	"github.com/onnwee/ytlivechat/telemetry"
)

// ErrNoQueue is returned when dispatching or processing is attempted before
// the event queue has been created.
var ErrNoQueue = errors.New("there is no event queue")

// Callback handles one event. Errors are logged and swallowed by Process; a
// misbehaving callback must not halt delivery to others.
type Callback func(ctx context.Context, ev Event) error

// Bus is an ordered, single-consumer event queue with a subscriber table.
// The queue is unbounded so bursts of dispatches never block producers.
type Bus struct {
	mu        sync.Mutex
	created   bool
	queue     []Event
	wake      chan struct{}
	callbacks map[reflect.Type][]Callback
}

func NewBus() *Bus {
	return &Bus{callbacks: make(map[reflect.Type][]Callback)}
}

// CreateQueue allocates the underlying queue. Calling it a second time logs a
// warning and leaves the existing queue intact.
func (b *Bus) CreateQueue() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.created {
		slog.Warn("the event bus already has an event queue")
		return
	}
	b.created = true
	b.wake = make(chan struct{}, 1)
}

// QueueSize reports the number of events waiting to be processed. Zero when
// the queue has not been created.
func (b *Bus) QueueSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Dispatch enqueues an event for delivery. Events are delivered to callbacks
// strictly in dispatch order. Ownership of the event transfers to the queue.
func (b *Bus) Dispatch(ev Event) error {
	b.mu.Lock()
	if !b.created {
		b.mu.Unlock()
		return ErrNoQueue
	}
	b.queue = append(b.queue, ev)
	depth := len(b.queue)
	b.mu.Unlock()

	telemetry.CountEventDispatched()
	telemetry.SetEventQueueDepth(depth)
	select {
	case b.wake <- struct{}{}:
	default:
	}
	slog.Debug("dispatched event", slog.String("event", Name(ev)))
	return nil
}

// Subscribe registers callbacks against the exact type of the given event
// value, e.g. Subscribe(MessageCreated{}, cb). All callbacks registered for a
// type run on every matching dispatch, in registration order. Subscribing
// with no callbacks is a no-op. See Listen for a typed variant.
func (b *Bus) Subscribe(prototype Event, cbs ...Callback) {
	t := reflect.TypeOf(prototype)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, cb := range cbs {
		b.callbacks[t] = append(b.callbacks[t], cb)
		slog.Info("subscribed to events", slog.String("event", Name(prototype)))
	}
}

// Listen registers typed callbacks for events of type E. It is the
// higher-order registration convenience over Subscribe:
//
//	events.Listen(bus, func(ctx context.Context, ev events.MessageCreated) error {
//		...
//	})
func Listen[E Event](b *Bus, fns ...func(ctx context.Context, ev E) error) {
	var zero E
	for _, fn := range fns {
		fn := fn
		b.Subscribe(zero, func(ctx context.Context, ev Event) error {
			return fn(ctx, ev.(E))
		})
	}
}

// Process drains the queue one event at a time, invoking every callback
// subscribed to the event's exact runtime type before dequeuing the next
// event. It is the single point of serialization for handler side effects.
// Process runs until ctx is cancelled and returns ctx.Err(); it returns
// ErrNoQueue if the queue has not been created.
func (b *Bus) Process(ctx context.Context) error {
	b.mu.Lock()
	created := b.created
	b.mu.Unlock()
	if !created {
		return ErrNoQueue
	}

	for {
		ev, ok := b.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-b.wake:
			}
			continue
		}
		slog.Debug("retrieved event", slog.String("event", Name(ev)))
		b.deliver(ctx, ev)
	}
}

func (b *Bus) pop() (Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return nil, false
	}
	ev := b.queue[0]
	b.queue = b.queue[1:]
	telemetry.SetEventQueueDepth(len(b.queue))
	return ev, true
}

func (b *Bus) deliver(ctx context.Context, ev Event) {
	b.mu.Lock()
	cbs := slices.Clone(b.callbacks[reflect.TypeOf(ev)])
	b.mu.Unlock()
	for _, cb := range cbs {
		b.invoke(ctx, ev, cb)
	}
}

// invoke runs one callback, swallowing errors and panics. One misbehaving
// handler must not abort Process or lose the rest of the queue.
func (b *Bus) invoke(ctx context.Context, ev Event, cb Callback) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.CountCallbackError()
			slog.Error("ignoring panic in event callback",
				slog.String("event", Name(ev)),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()
	if err := cb(ctx, ev); err != nil {
		telemetry.CountCallbackError()
		slog.Error("ignoring error from event callback",
			slog.String("event", Name(ev)), slog.Any("err", err))
	}
}
