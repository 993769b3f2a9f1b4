// Package worker implements the pool of executor slots that run
// invocations against a guest.Module, and the background listener
// goroutines that feed invocations into the pool from the global queue,
// the inter-node sharing bus, and the MPI bus.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/latticerun/lattice/message"
)

// ErrBusTimeout is returned by Next when no message arrives within the
// requested timeout.
var ErrBusTimeout = errors.New("worker: bus timeout")

// Bus is a FIFO of invocations to run, fed by whatever transport backs
// it (in-memory channel for tests and single-node runs, a real message
// queue in a multi-node fleet).
type Bus interface {
	Next(ctx context.Context, timeout time.Duration) (*message.Invocation, error)
	Push(ctx context.Context, inv *message.Invocation) error
}

// InMemoryBus is a channel-backed Bus, the default for the global queue,
// sharing bus, and MPI bus when no external queue is configured.
type InMemoryBus struct {
	ch chan *message.Invocation
}

// NewInMemoryBus returns a Bus with the given buffering.
func NewInMemoryBus(capacity int) *InMemoryBus {
	return &InMemoryBus{ch: make(chan *message.Invocation, capacity)}
}

func (b *InMemoryBus) Push(ctx context.Context, inv *message.Invocation) error {
	select {
	case b.ch <- inv:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *InMemoryBus) Next(ctx context.Context, timeout time.Duration) (*message.Invocation, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case inv := <-b.ch:
		return inv, nil
	case <-timer.C:
		return nil, ErrBusTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
