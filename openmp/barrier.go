package openmp

import (
	"context"
	"errors"
	"sync"

	"github.com/latticerun/lattice/ctxsync"
)

// ErrBarrierOverflow is returned when more than N threads arrive at a
// barrier built for a team of N.
var ErrBarrierOverflow = errors.New("openmp: barrier overflow")

// Barrier is a one-shot N-arrival rendezvous: once all N team members
// have called Wait, every call returns and the barrier resets for the
// team's next use (loops re-enter the same __kmpc_barrier call site many
// times across iterations).
type Barrier struct {
	n int

	mu      sync.Mutex
	cond    *ctxsync.Cond
	arrived int
	gen     uint64
}

// NewBarrier returns a barrier for a team of n threads.
func NewBarrier(n int) *Barrier {
	b := &Barrier{n: n}
	b.cond = ctxsync.NewCond(&b.mu)
	return b
}

// Wait blocks the calling thread until n threads (including itself) have
// called Wait since the barrier's last reset, or until ctx is done. The
// final arrival releases every waiter and resets the barrier atomically.
func (b *Barrier) Wait(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	myGen := b.gen
	b.arrived++
	if b.arrived > b.n {
		b.arrived--
		return ErrBarrierOverflow
	}
	if b.arrived == b.n {
		b.arrived = 0
		b.gen++
		b.cond.Broadcast()
		return nil
	}
	for b.gen == myGen {
		if err := b.cond.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
