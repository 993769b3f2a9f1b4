package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/latticerun/lattice/message"
)

// ExecFunc runs one invocation to completion; the worker pool supplies
// this when it constructs a Local scheduler, closing over its own
// executor slots so Call reuses the same dispatch path a top-level
// invocation would.
type ExecFunc func(ctx context.Context, inv *message.Invocation) (int32, error)

// Local is the in-memory Scheduler used when an invocation's OMP fork
// never leaves the current process: each team member runs as a goroutine
// rather than a separately scheduled invocation.
type Local struct {
	exec ExecFunc

	mu      sync.Mutex
	results map[uint64]chan Result
}

// NewLocal returns a Local scheduler that runs dispatched invocations
// through exec.
func NewLocal(exec ExecFunc) *Local {
	return &Local{exec: exec, results: make(map[uint64]chan Result)}
}

func (l *Local) Call(ctx context.Context, inv *message.Invocation) error {
	ch := make(chan Result, 1)
	l.mu.Lock()
	l.results[inv.ID] = ch
	l.mu.Unlock()

	go func() {
		rc, err := l.exec(ctx, inv)
		ch <- Result{ReturnCode: rc, Err: err}
	}()
	return nil
}

func (l *Local) Await(ctx context.Context, id uint64, timeout time.Duration) (Result, error) {
	l.mu.Lock()
	ch, ok := l.results[id]
	l.mu.Unlock()
	if !ok {
		return Result{}, ErrUnknownInvocation
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		l.mu.Lock()
		delete(l.results, id)
		l.mu.Unlock()
		return res, nil
	case <-timer.C:
		return Result{}, ErrTransportTimeout
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// NotifyAwaiting and NotifyFinishedAwaiting are no-ops for the local
// scheduler: goroutines blocked on a channel receive do not hold a worker
// pool slot hostage the way a blocked OS thread would, so there is
// nothing to free.
func (l *Local) NotifyAwaiting(id uint64)         {}
func (l *Local) NotifyFinishedAwaiting(id uint64) {}
