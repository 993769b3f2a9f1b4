package openmp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/latticerun/lattice/guest"
	"github.com/latticerun/lattice/message"
	"github.com/latticerun/lattice/scheduler"
	"github.com/latticerun/lattice/statestore"
)

// Microtask is the guest function a fork dispatches to each team member:
// the thread's team-local number, the number of shared argument pointers,
// and the pointers themselves.
type Microtask func(ctx context.Context, threadNum int, sharedArgs []uint32) error

// ForkSpec describes one __kmpc_fork_call.
type ForkSpec struct {
	SharedArgs []uint32
	FuncPtr    uint32
}

// ChainedCallTimeout bounds how long the distributed path waits for each
// team member's chained invocation to finish.
var ChainedCallTimeout = 60 * time.Second

// ForkLocal runs spec's microtask across NextLevelNumThreads() goroutines,
// one per team member, joining all of them before returning. This is the
// path taken whenever the OMP runtime's default device is the local one
// (device 1); it mirrors the teacher's own Platform::createThread loop,
// substituted with goroutines since lattice threads already are OS
// threads multiplexed by the Go scheduler.
func ForkLocal(parent *Level, run Microtask, spec ForkSpec) error {
	n := parent.NextLevelNumThreads()
	child := parent.Fork(n)

	if !parent.Active() {
		// Beyond max-active-level: collapse to sequential execution in
		// a single-member team, still advancing the level depth so
		// omp_get_level stays correct.
		child.NumThreads = 1
		return run(context.Background(), 0, spec.SharedArgs)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			if err := run(context.Background(), i, spec.SharedArgs); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(errs) > 0 {
		return fmt.Errorf("openmp: %d of %d threads failed: %w", len(errs), n, errs[0])
	}
	return nil
}

// ForkDistributed runs spec's microtask as nextNumThreads separately
// scheduled chained invocations instead of local goroutines, used when
// the OMP runtime's default device is not the local one. It snapshots
// the forking module's memory once (scoped to this invocation, so
// concurrent or nested forks never collide - see statestore.SnapshotKey)
// and dispatches one child invocation per team member carrying that
// snapshot key; each child resumes by materializing the snapshot before
// running the microtask.
func ForkDistributed(
	ctx context.Context,
	parent *Level,
	mod *guest.Module,
	store statestore.Store,
	sched scheduler.Scheduler,
	parentInv *message.Invocation,
	spec ForkSpec,
) error {
	n := parent.NextLevelNumThreads()

	snapKey := statestore.SnapshotKey(parentInv.ID)
	snapSize, err := mod.SnapshotToState(ctx, store, snapKey)
	if err != nil {
		return fmt.Errorf("openmp: snapshot before fork: %w", err)
	}

	reduceKey := statestore.ReductionKey(parentInv.ID)
	if err := store.SetInt64(ctx, reduceKey, 0); err != nil {
		return fmt.Errorf("openmp: reset reduction accumulator: %w", err)
	}

	children := make([]*message.Invocation, n)
	for i := 0; i < n; i++ {
		child := parentInv.Child()
		child.SnapshotKey = snapKey
		child.SnapshotSize = snapSize
		child.FuncPtr = spec.FuncPtr
		child.OMPThreadNum = i
		child.OMPNumThreads = n
		child.HasOMPThread = true
		child.OMPSharedArgs = spec.SharedArgs
		children[i] = child

		if err := sched.Call(ctx, child); err != nil {
			return fmt.Errorf("openmp: dispatch thread %d: %w", i, err)
		}
	}

	sched.NotifyAwaiting(parentInv.ID)
	defer sched.NotifyFinishedAwaiting(parentInv.ID)

	ids := make([]uint64, n)
	for i, c := range children {
		ids[i] = c.ID
	}
	results, err := scheduler.AwaitAll(ctx, sched, ids, ChainedCallTimeout)
	if err != nil {
		return fmt.Errorf("openmp: awaiting chained threads: %w", err)
	}

	var numErrors int
	for _, r := range results {
		if r.ReturnCode != 0 || r.Err != nil {
			numErrors++
		}
	}
	if numErrors > 0 {
		return fmt.Errorf("openmp: %d of %d distributed threads exited with errors", numErrors, n)
	}

	reduced, err := store.GetInt64(ctx, reduceKey)
	if err != nil {
		return fmt.Errorf("openmp: reading reduction accumulator: %w", err)
	}
	if len(spec.SharedArgs) > 0 {
		if werr := guest.WriteRef[int32](mod.Memory(), spec.SharedArgs[0], int32(reduced)); werr != nil {
			return fmt.Errorf("openmp: writing back reduction result: %w", werr)
		}
	}
	return nil
}
