package hostcall

import (
	"context"

	"github.com/latticerun/lattice/guest"
)

type threadCtxKey struct{}

// WithThread attaches the calling host thread's handle to ctx. The OMP
// runtime and worker pool set this once per goroutine before invoking any
// guest export; every host call below reads it back out to resolve fd
// ownership.
func WithThread(ctx context.Context, thread guest.ThreadHandle) context.Context {
	return context.WithValue(ctx, threadCtxKey{}, thread)
}

// ThreadFrom returns the thread handle attached to ctx, or zero if none
// was attached (callers treat zero as a valid handle for the invocation's
// single root thread).
func ThreadFrom(ctx context.Context) guest.ThreadHandle {
	t, _ := ctx.Value(threadCtxKey{}).(guest.ThreadHandle)
	return t
}
