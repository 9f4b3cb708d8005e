package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/tinoosan/bankledger/internal/errs"
)

// Defaults for NewNotifier.
const (
	DefaultTimeout  = 3 * time.Second
	DefaultBuffer   = 1024
	DefaultAttempts = 2
)

// Notifier is an asynchronous Publisher. Events go into a bounded queue and a
// single worker delivers them through a circuit breaker, one timeout per
// attempt. A full queue drops the event.
type Notifier struct {
	sink     Sink
	log      *slog.Logger
	timeout  time.Duration
	attempts int
	backoff  time.Duration
	breaker  *gobreaker.CircuitBreaker

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

// Option configures a Notifier.
type Option func(*Notifier)

func WithTimeout(d time.Duration) Option { return func(n *Notifier) { n.timeout = d } }
func WithAttempts(k int) Option           { return func(n *Notifier) { n.attempts = k } }
func WithBackoff(d time.Duration) Option  { return func(n *Notifier) { n.backoff = d } }

// WithBuffer sets the queue capacity.
func WithBuffer(size int) Option {
	return func(n *Notifier) {
		if size > 0 {
			n.queue = make(chan Event, size)
		}
	}
}

// NewNotifier starts the delivery worker. Call Close to drain and stop it.
func NewNotifier(sink Sink, logger *slog.Logger, opts ...Option) *Notifier {
	n := &Notifier{
		sink:     sink,
		log:      logger,
		timeout:  DefaultTimeout,
		attempts: DefaultAttempts,
		backoff:  100 * time.Millisecond,
		queue:    make(chan Event, DefaultBuffer),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(n)
	}
	if n.attempts < 1 {
		n.attempts = 1
	}
	n.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "audit-sink",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 5 },
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("audit sink breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	go n.run()
	return n
}

// Publish enqueues ev without blocking.
func (n *Notifier) Publish(ev Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		eventsDropped.Inc()
		return
	}
	select {
	case n.queue <- ev:
		eventsPublished.Inc()
	default:
		eventsDropped.Inc()
		n.log.Warn("audit queue full, dropping event", "event_id", ev.ID.String(), "action", ev.Action)
	}
}

// Close stops accepting events and waits for queued ones to be attempted,
// or for ctx to end.
func (n *Notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Notifier) run() {
	defer close(n.done)
	for ev := range n.queue {
		n.deliver(ev)
	}
}

func (n *Notifier) deliver(ev Event) {
	var err error
	for attempt := 1; attempt <= n.attempts; attempt++ {
		_, err = n.breaker.Execute(func() (interface{}, error) {
			ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
			defer cancel()
			return nil, n.sink.Send(ctx, ev)
		})
		if err == nil {
			return
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		if attempt < n.attempts {
			time.Sleep(n.backoff)
		}
	}
	reason := "sink"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timeout"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		reason = "breaker_open"
	}
	deliveryFailures.WithLabelValues(reason).Inc()
	n.log.Warn("audit delivery failed",
		"event_id", ev.ID.String(),
		"action", ev.Action,
		"reason", reason,
		"err", errs.Wrap(errs.KindNotification, err, "deliver audit event"),
	)
}
