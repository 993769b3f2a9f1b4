package worker

import (
	"context"

	"github.com/grailbio/base/log"

	"github.com/latticerun/lattice/guest"
	"github.com/latticerun/lattice/hostcall"
	"github.com/latticerun/lattice/message"
	"github.com/latticerun/lattice/openmp"
	"github.com/latticerun/lattice/stats"
)

// entryPointName is the export every compiled guest module must expose;
// the compiler toolchain that produces user functions always emits it as
// the function's single entry point.
const entryPointName = "lattice_main"

// Executor runs one invocation to completion: it loads the guest module,
// materializes an inbound snapshot if the invocation carries one, invokes
// the entry point, and records the return code onto the invocation.
type Executor struct {
	Load      ModuleLoader
	Store     guest.SnapshotStore
	Stats     *stats.Map
	Hostcalls *hostcall.Table
}

// Run executes inv and stamps its ReturnCode. Errors that prevent the
// module from even starting are logged and surfaced as ReturnCode -1;
// the worker pool does not propagate them further; a failed invocation
// is observed by its caller through scheduler.Await, not through Run's
// own return value, so Run itself never returns an error.
func (e *Executor) Run(ctx context.Context, inv *message.Invocation) {
	e.incr("worker.invocations")

	thread := guest.ThreadHandle(inv.ID)
	ctx = hostcall.WithThread(ctx, thread)
	ctx = openmp.WithInvocation(ctx, inv)
	if e.Hostcalls != nil {
		defer e.Hostcalls.ThreadExit(thread)
	}

	mod, err := e.Load(ctx, inv)
	if err != nil {
		log.Printf("worker: load %s: %v", inv, err)
		inv.ReturnCode = -1
		e.incr("worker.load_errors")
		return
	}
	defer mod.Mod.Close(ctx)

	if inv.SnapshotKey != "" {
		if err := e.materialize(ctx, mod, inv); err != nil {
			log.Printf("worker: materialize snapshot for %s: %v", inv, err)
			inv.ReturnCode = -1
			e.incr("worker.snapshot_errors")
			return
		}
	}

	fn := mod.Mod.ExportedFunction(entryPointName)
	if fn == nil {
		log.Printf("worker: %s has no %s export", inv, entryPointName)
		inv.ReturnCode = -1
		e.incr("worker.missing_entry_point")
		return
	}

	args := e.entryArgs(inv)
	results, err := fn.Call(ctx, args...)
	if err != nil {
		log.Printf("worker: %s trapped: %v", inv, err)
		inv.ReturnCode = -1
		e.incr("worker.traps")
		return
	}
	if len(results) > 0 {
		inv.ReturnCode = int(int32(results[0]))
	}
	e.incr("worker.completed")
}

// entryArgs builds the argument list the entry point is called with. A
// chained OMP call passes its thread number, team size and the shared
// argument block the parent packed for it; a top-level invocation passes
// none of that.
func (e *Executor) entryArgs(inv *message.Invocation) []uint64 {
	if !inv.HasOMPThread {
		return nil
	}
	args := make([]uint64, 0, 3+len(inv.OMPSharedArgs))
	args = append(args, uint64(inv.OMPThreadNum), uint64(inv.OMPNumThreads), uint64(inv.FuncPtr))
	for _, a := range inv.OMPSharedArgs {
		args = append(args, uint64(a))
	}
	return args
}

func (e *Executor) materialize(ctx context.Context, mod *guest.Module, inv *message.Invocation) error {
	type getter interface {
		GetSnapshot(ctx context.Context, key string) ([]byte, error)
	}
	g, ok := e.Store.(getter)
	if !ok {
		return nil
	}
	data, err := g.GetSnapshot(ctx, inv.SnapshotKey)
	if err != nil {
		return err
	}
	return mod.MaterializeSnapshot(data)
}

func (e *Executor) incr(name string) {
	if e.Stats == nil {
		return
	}
	e.Stats.Int(name).Add(1)
}
