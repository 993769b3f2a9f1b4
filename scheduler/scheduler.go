// Package scheduler provides the external collaborator the OMP fork path
// and worker pool use to place and await invocations beyond the current
// process: Call dispatches a new invocation (possibly onto another
// node), Await blocks for its result, and the NotifyAwaiting pair lets a
// caller free up its own worker slot while it blocks on children so the
// pool does not deadlock waiting on itself.
package scheduler

import (
	"context"
	"time"

	"github.com/latticerun/lattice/message"
)

// Result is what a scheduled invocation completes with.
type Result struct {
	ReturnCode int32
	Err        error
}

// Scheduler is the node-placement-agnostic interface the rest of the
// module depends on; node-placement policy itself is out of scope here
// and left to the concrete implementations (Local, Bigmachine).
type Scheduler interface {
	// Call dispatches inv for execution, returning immediately; the
	// caller later retrieves its outcome via Await.
	Call(ctx context.Context, inv *message.Invocation) error

	// Await blocks until id's invocation completes or timeout elapses.
	Await(ctx context.Context, id uint64, timeout time.Duration) (Result, error)

	// NotifyAwaiting tells the scheduler that thread is blocked waiting
	// on children rather than doing useful work, so the worker pool can
	// free its slot for other invocations.
	NotifyAwaiting(id uint64)

	// NotifyFinishedAwaiting undoes NotifyAwaiting once the wait
	// resolves.
	NotifyFinishedAwaiting(id uint64)
}
