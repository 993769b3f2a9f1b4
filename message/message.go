// Package message defines the invocation message that is carried across
// the global queue, the per-node sharing queue, and the MPI bus.
package message

import (
	"fmt"
	"sync/atomic"

	"github.com/spaolacci/murmur3"
)

// Invocation describes a single execution of a user function. It is
// immutable apart from the fields a scheduler stamps onto it as it places
// and runs the call (ScheduledNode, ReturnCode).
type Invocation struct {
	ID       uint64
	User     string
	Function string
	Async    bool

	// ScheduledNode is filled in by the scheduler once it has picked a
	// node to run the call on.
	ScheduledNode string

	// SnapshotKey and SnapshotSize describe a guest-memory snapshot this
	// invocation should materialize before running, set on OMP-forked
	// children. Empty/zero for a top-level invocation.
	SnapshotKey  string
	SnapshotSize int

	// OMP-specific fields, set only on chained calls produced by a
	// distributed fork (openmp.ForkJoin).
	OMPThreadNum   int
	OMPNumThreads  int
	HasOMPThread   bool
	FuncPtr        uint32
	OMPSharedArgs  []uint32

	// ReturnCode is zero on success; any other value indicates failure
	// and is set once the invocation completes.
	ReturnCode int
}

var idCounter uint64

// New creates an invocation for a function, stamping it with a fresh
// deterministic id derived from a monotonic counter hashed together with
// the user/function name. The hash (rather than the bare counter) keeps
// ids well distributed across nodes sharing no clock or counter state,
// mirroring how chained calls must mint ids without a coordinator.
func New(user, function string) *Invocation {
	seq := atomic.AddUint64(&idCounter, 1)
	h := murmur3.Sum64([]byte(fmt.Sprintf("%s/%s/%d", user, function, seq)))
	return &Invocation{
		ID:       h,
		User:     user,
		Function: function,
	}
}

// Child creates an async invocation of the same function as parent,
// suitable for an OMP-forked chained call.
func (m *Invocation) Child() *Invocation {
	c := New(m.User, m.Function)
	c.Async = true
	return c
}

// String renders a short human-readable description, used in logs.
func (m *Invocation) String() string {
	return fmt.Sprintf("%s/%s#%x", m.User, m.Function, m.ID)
}

// Failed reports whether the invocation's return code indicates failure.
func (m *Invocation) Failed() bool {
	return m.ReturnCode != 0
}
