package openmp

import (
	"context"
	"errors"

	"github.com/latticerun/lattice/statestore"
)

// ErrDistributedReduce is returned when a reduction construct is entered
// while the active device is a distributed one; reductions that need a
// shared lock within one process cannot cross chained-invocation
// boundaries.
var ErrDistributedReduce = errors.New("openmp: reduce unsupported on distributed device")

// ReduceMethod mirrors clang's kmp _reduction_method enum.
type ReduceMethod int

const (
	ReduceNotDefined ReduceMethod = 0
	ReduceCritical   ReduceMethod = 1 << 8
	ReduceAtomic     ReduceMethod = 2 << 8
	ReduceTree       ReduceMethod = 3 << 8
	ReduceEmpty      ReduceMethod = 4 << 8
)

// DetermineReduceMethod picks the reduction strategy for level's team
// size. A single-thread team never needs synchronization.
func DetermineReduceMethod(level *Level) ReduceMethod {
	if level.NumThreads == 1 {
		return ReduceEmpty
	}
	return ReduceCritical
}

// BeginReduce implements __kmpc_reduce: it returns the clang-expected
// status code (1 = run the reduction block under the caller's own lock
// discipline, 2 = use an atomic update, 0 never returned here since tree
// reduction is not implemented).
func BeginReduce(level *Level, rt *Runtime) (int, error) {
	if rt.Distributed() {
		return 0, ErrDistributedReduce
	}
	switch DetermineReduceMethod(level) {
	case ReduceCritical:
		level.LockReduce()
		return 1, nil
	case ReduceEmpty:
		return 1, nil
	case ReduceAtomic:
		return 2, nil
	default:
		return 0, errors.New("openmp: unsupported reduce method")
	}
}

// BeginReduceNowait is the nowait variant (__kmpc_reduce_nowait). On a
// local team it applies the same method selection as the blocking form.
// On a distributed team there is no shared memory for the guest's
// combine block to run against - each chained invocation only ever sees
// its own partial - so instead of rejecting with ErrDistributedReduce
// the runtime folds delta straight into the invocation's shared
// accumulator via statestore.Store.IncrBy and returns method 0 (clang's
// "already handled, skip the combine block" code), the distributed
// analogue of ReduceEmpty.
func BeginReduceNowait(ctx context.Context, level *Level, rt *Runtime, delta int64) (int, error) {
	if rt.Distributed() {
		inv := InvocationFrom(ctx)
		if inv == nil || rt.Store == nil {
			return 0, ErrDistributedReduce
		}
		if _, err := rt.Store.IncrBy(ctx, statestore.ReductionKey(inv.ID), delta); err != nil {
			return 0, err
		}
		// 0: the runtime already combined delta into the shared
		// accumulator, so the guest's combine block must not run again.
		return 0, nil
	}
	return BeginReduce(level, rt)
}

// EndReduce implements __kmpc_end_reduce, releasing the lock BeginReduce
// took for a critical-method reduction.
func EndReduce(level *Level) {
	if level.NumThreads > 1 {
		level.UnlockReduce()
	}
}

// EndReduceNowait implements __kmpc_end_reduce_nowait. Ending a
// distributed reduction is an error: the chained child that called
// BeginReduceNowait already folded its delta into the shared
// accumulator, and only the parent that awaits every child is in a
// position to reconcile the final value, not this end call.
func EndReduceNowait(level *Level, rt *Runtime) error {
	if rt.Distributed() {
		return ErrDistributedReduce
	}
	EndReduce(level)
	return nil
}
