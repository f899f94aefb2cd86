package helper

import (
	"context"
	"sync"
	"time"
)

// connectionState holds the result of the current connect attempt.
//
// reset opens a new attempt; the first resolve closes it and wakes every
// waiter. Later results for the same attempt are ignored.
type connectionState struct {
	mu      sync.Mutex
	pending bool
	result  Code
	done    chan struct{}
}

func (c *connectionState) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = true
	c.result = CodeSuccess
	c.done = make(chan struct{})
}

// resolve records the terminal result. It reports false if the attempt was
// already resolved or never opened.
func (c *connectionState) resolve(code Code) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pending {
		return false
	}
	c.pending = false
	c.result = code
	close(c.done)
	return true
}

func (c *connectionState) isPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// wait blocks until the attempt resolves, d elapses or ctx ends.
// ok is false when no result arrived in time.
func (c *connectionState) wait(ctx context.Context, d time.Duration) (code Code, ok bool, err error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return CodeSuccess, false, nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.result, true, nil
	case <-timer.C:
		return CodeSuccess, false, nil
	case <-ctx.Done():
		return CodeSuccess, false, ctx.Err()
	}
}
