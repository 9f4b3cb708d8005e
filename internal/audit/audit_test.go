package audit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	fail   error
	delay  time.Duration
}

func (r *recordingSink) Send(ctx context.Context, ev Event) error {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if r.fail != nil {
		return r.fail
	}
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestNewEventCanonicalDetailsAndRequestInfo(t *testing.T) {
	ctx := WithRequestInfo(context.Background(), RequestInfo{IPAddress: "10.0.0.1", UserAgent: "curl/8"})
	ev := NewEvent(ctx, "deposit", StatusSuccess, 7, "transaction", "42", map[string]any{"b": 1, "a": "x"})
	assert.Equal(t, ServiceName, ev.Service)
	assert.Equal(t, "10.0.0.1", ev.IPAddress)
	assert.Equal(t, "curl/8", ev.UserAgent)
	assert.JSONEq(t, `{"a":"x","b":1}`, string(ev.Details))
	assert.Equal(t, `{"a":"x","b":1}`, string(ev.Details), "keys must be sorted")

	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"action":"deposit"`)
}

func TestNotifierDelivers(t *testing.T) {
	sink := &recordingSink{}
	n := NewNotifier(sink, testLogger())
	for i := 0; i < 10; i++ {
		n.Publish(NewEvent(context.Background(), "withdraw", StatusSuccess, 1, "transaction", "1", nil))
	}
	require.NoError(t, n.Close(context.Background()))
	assert.Equal(t, 10, sink.count())

	// publishing after close is dropped, not a panic
	n.Publish(NewEvent(context.Background(), "late", StatusSuccess, 1, "", "", nil))
	assert.Equal(t, 10, sink.count())
}

func TestNotifierNeverBlocksOnSlowOrFailingSink(t *testing.T) {
	slow := &recordingSink{delay: time.Second}
	n := NewNotifier(slow, testLogger(), WithTimeout(20*time.Millisecond), WithAttempts(1), WithBuffer(2))
	start := time.Now()
	for i := 0; i < 50; i++ {
		n.Publish(NewEvent(context.Background(), "internal_transfer", StatusSuccess, 1, "", "", nil))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond, "publish must not wait on the sink")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, n.Close(ctx))
	assert.Equal(t, 0, slow.count())

	failing := &recordingSink{fail: errors.New("broker down")}
	n = NewNotifier(failing, testLogger(), WithAttempts(2), WithBackoff(time.Millisecond))
	n.Publish(NewEvent(context.Background(), "deposit", StatusSuccess, 1, "", "", nil))
	require.NoError(t, n.Close(context.Background()))
	assert.Equal(t, 0, failing.count())
}

func TestDiscard(t *testing.T) {
	Discard.Publish(Event{})
}
