package openmp

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/latticerun/lattice/guest"
)

// kmpcForkCall implements __kmpc_fork_call: loc is the compiler's source
// location token (unused here), argc is the number of shared argument
// words following the microtask in guest memory at argsPtr, microtaskPtr
// is the guest's indirect-table index for the team's entry function, and
// argsPtr points to a contiguous argc-word array of shared pointers the
// compiler packed for it. This is the host side of the call the compiler
// emits for every "#pragma omp parallel" region.
func (r *Runtime) kmpcForkCall(ctx context.Context, mod api.Module, loc, argc int32, microtaskPtr, argsPtr uint32) {
	gm := guest.New(mod, mod.ExportedTable("__indirect_function_table"))

	var sharedArgs []uint32
	if argc > 0 {
		args, err := guest.Slice[uint32](gm.Memory(), argsPtr, uint32(argc))
		if err != nil {
			panic(fmt.Errorf("openmp: fork_call: %w", err))
		}
		sharedArgs = args
	}

	parentState := r.StateFor(ThreadFrom(ctx))
	spec := ForkSpec{SharedArgs: sharedArgs, FuncPtr: microtaskPtr}

	if r.Distributed() {
		inv := InvocationFrom(ctx)
		if inv == nil || r.Scheduler == nil || r.Store == nil {
			panic("openmp: fork_call: distributed device selected but no invocation/scheduler/store wired")
		}
		if err := ForkDistributed(ctx, parentState.Level, gm, r.Store, r.Scheduler, inv, spec); err != nil {
			panic(err)
		}
		return
	}

	callerHandle := ThreadFrom(ctx)
	if err := r.forkLocalTeam(ctx, parentState.Level, callerHandle, gm, spec); err != nil {
		panic(err)
	}
}

// forkLocalTeam spawns one goroutine per team member against a single
// shared child Level (so the team's barrier, critical lock, and reduce
// lock are actually shared), registering each member's synthetic thread
// handle with the Runtime before calling into the guest's microtask and
// forgetting it once that member returns. The calling goroutine reuses
// its own thread handle as team member 0, matching the master-thread
// semantics __kmpc_master relies on - but that handle's registration
// belongs to the caller, not to this fork, so it is restored to its
// pre-fork value (not forgotten) once every member has returned, leaving
// the caller free to make further OMP calls (a second parallel region, a
// nested fork's continuation) on the same handle.
func (r *Runtime) forkLocalTeam(ctx context.Context, parent *Level, callerHandle guest.ThreadHandle, gm *guest.Module, spec ForkSpec) error {
	n := parent.NextLevelNumThreads()
	child := parent.Fork(n)

	callerState := *r.StateFor(callerHandle)
	defer r.Register(callerHandle, callerState.ThreadNum, callerState.Level)

	member := func(ctx context.Context, threadNum int, handle guest.ThreadHandle) error {
		r.Register(handle, threadNum, child)
		if handle != callerHandle {
			defer r.Forget(handle)
		}

		fn, err := gm.TableFunc(spec.FuncPtr)
		if err != nil {
			return err
		}
		callArgs := make([]uint64, 0, 2+len(spec.SharedArgs))
		callArgs = append(callArgs, uint64(threadNum), uint64(len(spec.SharedArgs)))
		for _, a := range spec.SharedArgs {
			callArgs = append(callArgs, uint64(a))
		}
		_, err = fn.Call(WithThread(ctx, handle), callArgs...)
		return err
	}

	if !parent.Active() {
		child.NumThreads = 1
		return member(ctx, 0, callerHandle)
	}

	errs := make([]error, n)
	done := make(chan int, n)
	for i := 0; i < n; i++ {
		i := i
		handle := callerHandle
		if i != 0 {
			handle = r.NewThreadHandle()
		}
		go func() {
			errs[i] = member(ctx, i, handle)
			done <- i
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}
	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("openmp: fork_call: team member failed: %w", err)
		}
	}
	return nil
}
