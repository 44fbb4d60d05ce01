package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"staybook/internal/adapters/notify"
	"staybook/internal/adapters/observability"
	"staybook/internal/domain"
)

var (
	ErrQueueFull        = errors.New("notification queue full")
	errDispatcherClosed = errors.New("notification dispatcher closed")
)

type delivery struct {
	kind string
	ctx  context.Context
	send func(context.Context) error
}

// Dispatcher is a Notifier that queues events and delivers them to next from
// background workers, so a slow or failing sink never holds up the request
// that committed the change. Each delivery keeps the caller's context values
// but not its cancellation, and is bounded by timeout.
type Dispatcher struct {
	next    domain.Notifier
	timeout time.Duration
	queue   chan delivery

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(next domain.Notifier, queueSize, workers int, timeout time.Duration) *Dispatcher {
	if next == nil {
		next = notify.Nop{}
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	d := &Dispatcher{next: next, timeout: timeout, queue: make(chan delivery, queueSize)}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

func (d *Dispatcher) BookingCreated(ctx context.Context, b domain.Booking) error {
	return d.enqueue(ctx, "booking_created", func(ctx context.Context) error {
		return d.next.BookingCreated(ctx, b)
	})
}

func (d *Dispatcher) BookingStatusChanged(ctx context.Context, b domain.Booking, from domain.BookingStatus) error {
	return d.enqueue(ctx, "booking_status_changed", func(ctx context.Context) error {
		return d.next.BookingStatusChanged(ctx, b, from)
	})
}

func (d *Dispatcher) ReviewAdded(ctx context.Context, r domain.Review) error {
	return d.enqueue(ctx, "review_added", func(ctx context.Context) error {
		return d.next.ReviewAdded(ctx, r)
	})
}

// enqueue never blocks; a full queue drops the event.
func (d *Dispatcher) enqueue(ctx context.Context, kind string, send func(context.Context) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return errDispatcherClosed
	}
	select {
	case d.queue <- delivery{kind: kind, ctx: context.WithoutCancel(ctx), send: send}:
		return nil
	default:
		return fmt.Errorf("%s: %w", kind, ErrQueueFull)
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for j := range d.queue {
		ctx, cancel := context.WithTimeout(j.ctx, d.timeout)
		err := j.send(ctx)
		cancel()
		if err != nil {
			observability.ObserveNotification(j.kind, "failed")
			log.Warn().Err(err).Str("kind", j.kind).Msg("notification delivery failed")
			continue
		}
		observability.ObserveNotification(j.kind, "delivered")
	}
}

// Close stops accepting events and waits for the queued ones.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// handedOff records the result of passing an event to the notifier. With a
// Dispatcher that is the enqueue, not the delivery.
func handedOff(kind string, err error) {
	observability.ObserveNotification(kind, Outcome(err))
	if err != nil {
		log.Warn().Err(err).Str("kind", kind).Msg("notification failed")
	}
}
