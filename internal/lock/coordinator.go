// Package lock serializes work on individual accounts. Every caller takes
// locks in canonical order (ascending id), which rules out lock-order deadlocks
// between transfers that touch the same pair of accounts from opposite sides.
package lock

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/tinoosan/bankledger/internal/errs"
)

// Canonical returns ids sorted ascending with duplicates removed.
func Canonical(ids ...int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// Coordinator hands out per-account exclusive slots.
type Coordinator struct {
	mu    sync.Mutex
	slots map[int64]chan struct{}
}

func NewCoordinator() *Coordinator {
	return &Coordinator{slots: make(map[int64]chan struct{})}
}

func (c *Coordinator) slot(id int64) chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[id]
	if !ok {
		s = make(chan struct{}, 1)
		c.slots[id] = s
	}
	return s
}

// Acquire locks every id in canonical order and returns a release func that
// unlocks them. It waits at most timeout (no bound when timeout <= 0). On
// timeout the slots already taken are released and a lock_timeout error is
// returned; if ctx ends first, ctx.Err() is returned.
func (c *Coordinator) Acquire(ctx context.Context, timeout time.Duration, ids ...int64) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	order := Canonical(ids...)
	held := make([]chan struct{}, 0, len(order))
	unlock := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}
	for _, id := range order {
		s := c.slot(id)
		select {
		case s <- struct{}{}:
			held = append(held, s)
		case <-waitCtx.Done():
			unlock()
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
				return nil, errs.E(errs.KindLockTimeout, "timed out after %s waiting for account %d", timeout, id)
			}
			return nil, waitCtx.Err()
		}
	}
	var once sync.Once
	return func() { once.Do(unlock) }, nil
}
