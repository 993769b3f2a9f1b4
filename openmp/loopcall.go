package openmp

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/latticerun/lattice/guest"
)

// kmpcForStaticInit4 implements __kmpc_for_static_init_4: the compiler
// emits this once per "#pragma omp for" to compute the calling thread's
// iteration slice in place, at pLower/pUpper/pStride/pLastIter in guest
// memory. schedtype is the clang sched_type token (see Schedule);
// chunk is only meaningful for the chunked kind.
func (r *Runtime) kmpcForStaticInit4(ctx context.Context, mod api.Module, loc, globalTid, schedtype int32, pLastIter, pLower, pUpper, pStride uint32, incr, chunk int32) {
	mem := mod.Memory()
	state := r.StateFor(ThreadFrom(ctx))

	lower, err := guest.Ref[int32](mem, pLower)
	if err != nil {
		panic(err)
	}
	upper, err := guest.Ref[int32](mem, pUpper)
	if err != nil {
		panic(err)
	}

	out := StaticForInit(state.Level, state.ThreadNum, Schedule(schedtype), ForBounds{Lower: lower, Upper: upper}, incr, chunk)

	lastIter := int32(0)
	if out.LastIter {
		lastIter = 1
	}
	if err := guest.WriteRef(mem, pLastIter, lastIter); err != nil {
		panic(err)
	}
	if err := guest.WriteRef(mem, pLower, out.Lower); err != nil {
		panic(err)
	}
	if err := guest.WriteRef(mem, pUpper, out.Upper); err != nil {
		panic(err)
	}
	if err := guest.WriteRef(mem, pStride, out.Stride); err != nil {
		panic(err)
	}
}
