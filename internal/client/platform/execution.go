package platform

import (
	"context"
	"sync"
	"time"
)

// Handle is a granted extended-execution allowance.
type Handle interface {
	// Context is cancelled when the budget runs out or End is called.
	Context() context.Context
	End()
}

// ExtendedExecution grants bounded extra run time for work that must outlive
// a suspension. The grant is best-effort: callers must tolerate the context
// being cancelled early.
type ExtendedExecution interface {
	Begin(ctx context.Context, reason string, budget time.Duration) Handle
}

// Budgeted grants exactly the requested budget as a context deadline.
type Budgeted struct{}

func (Budgeted) Begin(ctx context.Context, _ string, budget time.Duration) Handle {
	if budget <= 0 {
		c, cancel := context.WithCancel(ctx)
		return &handle{ctx: c, cancel: cancel}
	}
	c, cancel := context.WithTimeout(ctx, budget)
	return &handle{ctx: c, cancel: cancel}
}

type handle struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (h *handle) Context() context.Context { return h.ctx }
func (h *handle) End()                     { h.cancel() }

// Tracker wraps another ExtendedExecution and counts open handles.
type Tracker struct {
	Inner ExtendedExecution

	mu      sync.Mutex
	active  int
	granted int
}

func (t *Tracker) Begin(ctx context.Context, reason string, budget time.Duration) Handle {
	inner := t.Inner
	if inner == nil {
		inner = Budgeted{}
	}
	h := inner.Begin(ctx, reason, budget)

	t.mu.Lock()
	t.active++
	t.granted++
	t.mu.Unlock()

	return &trackedHandle{Handle: h, t: t}
}

// Active returns the number of handles not yet ended.
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Granted returns the total number of handles ever handed out.
func (t *Tracker) Granted() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.granted
}

type trackedHandle struct {
	Handle
	t    *Tracker
	once sync.Once
}

func (h *trackedHandle) End() {
	h.once.Do(func() {
		h.Handle.End()
		h.t.mu.Lock()
		h.t.active--
		h.t.mu.Unlock()
	})
}
