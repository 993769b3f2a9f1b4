package openmp

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/grailbio/base/log"

	"github.com/latticerun/lattice/guest"
)

// kmpcReduce implements __kmpc_reduce: loc/globalTid/numVars/reduceFunc/
// lck are accepted for ABI compatibility with the compiler's call site
// but unused - this runtime never calls back into reduce_func, the
// guest's own combine block runs under the lock discipline the returned
// status selects, mirroring kmpcCritical's use of the level's single
// mutex rather than the per-site lck token. reduceSize/reduceData are
// only read on the distributed nowait path (see kmpcReduceNowait); a
// blocking reduce on a distributed device is rejected outright, so they
// go unused here too.
func (r *Runtime) kmpcReduce(ctx context.Context, mod api.Module, loc, globalTid, numVars int32, reduceSize uint32, reduceData, reduceFunc, lck uint32) int32 {
	level := r.StateFor(ThreadFrom(ctx)).Level
	status, err := BeginReduce(level, r)
	if err != nil {
		panic(err)
	}
	return int32(status)
}

// kmpcReduceNowait implements __kmpc_reduce_nowait. reduceData points to
// a single little-endian int64 holding this thread's (or, in distributed
// mode, this chained invocation's) local partial value - the only shape
// this runtime's reduction support covers, per its single
// critical/empty-method scope.
func (r *Runtime) kmpcReduceNowait(ctx context.Context, mod api.Module, loc, globalTid, numVars int32, reduceSize uint32, reduceData, reduceFunc, lck uint32) int32 {
	level := r.StateFor(ThreadFrom(ctx)).Level

	var delta int64
	if r.Distributed() {
		v, err := guest.Ref[int64](mod.Memory(), reduceData)
		if err != nil {
			panic(err)
		}
		delta = v
	}

	status, err := BeginReduceNowait(ctx, level, r, delta)
	if err != nil {
		log.Error.Printf("openmp: reduce_nowait: %v", err)
		panic(err)
	}
	return int32(status)
}

func (r *Runtime) kmpcEndReduce(ctx context.Context, loc, globalTid, lck int32) {
	EndReduce(r.StateFor(ThreadFrom(ctx)).Level)
}

func (r *Runtime) kmpcEndReduceNowait(ctx context.Context, loc, globalTid, lck int32) {
	if err := EndReduceNowait(r.StateFor(ThreadFrom(ctx)).Level, r); err != nil {
		panic(err)
	}
}
