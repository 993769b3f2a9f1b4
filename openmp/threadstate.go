package openmp

import (
	"context"
	"sync"

	"github.com/latticerun/lattice/guest"
	"github.com/latticerun/lattice/message"
	"github.com/latticerun/lattice/scheduler"
	"github.com/latticerun/lattice/statestore"
)

// ThreadState is the state __kmpc_* intrinsics resolve per calling
// thread: which team member it is, and which Level it is currently
// running in.
type ThreadState struct {
	ThreadNum int
	Level     *Level
}

// Runtime owns the thread-number/level mapping for every thread
// participating in one invocation's OMP execution, plus the device
// selection state shared across the whole invocation.
type Runtime struct {
	states sync.Map // guest.ThreadHandle -> *ThreadState

	mu            sync.Mutex
	defaultDevice int
	maxDevices    int
	nextHandle    uint64

	// Scheduler and Store back the distributed fork path (__kmpc_fork_call
	// when Distributed() is true). Both are nil in a Runtime that only
	// ever runs local teams; SetDistributedDeps wires them once a node
	// knows its scheduler and state store.
	Scheduler scheduler.Scheduler
	Store     statestore.Store
}

// SetDistributedDeps wires the collaborators ForkDistributed needs. Safe
// to call once at Runtime construction time.
func (r *Runtime) SetDistributedDeps(sched scheduler.Scheduler, store statestore.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Scheduler = sched
	r.Store = store
}

// NewThreadHandle mints a fresh synthetic thread handle for a locally
// forked team member, distinct from every real guest.ThreadHandle this
// Runtime has already registered.
func (r *Runtime) NewThreadHandle() guest.ThreadHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextHandle++
	return guest.ThreadHandle(1<<63 | r.nextHandle)
}

// NewRuntime returns a Runtime with the invocation's master thread
// registered at team-member 0, root level.
func NewRuntime(master guest.ThreadHandle, maxActiveLevel, maxDevices int) *Runtime {
	r := &Runtime{defaultDevice: 1, maxDevices: maxDevices}
	r.states.Store(master, &ThreadState{ThreadNum: 0, Level: NewRootLevel(maxActiveLevel)})
	return r
}

// StateFor returns the ThreadState registered for thread, panicking if
// none was registered: every thread must be registered by the fork path
// before it calls into any other OMP intrinsic.
func (r *Runtime) StateFor(thread guest.ThreadHandle) *ThreadState {
	v, ok := r.states.Load(thread)
	if !ok {
		panic("openmp: thread has no registered state")
	}
	return v.(*ThreadState)
}

// Register binds thread to the given team member number and level, used
// when a fork spawns new threads (or, in the distributed path, when a
// chained invocation resumes as a single-thread team member).
func (r *Runtime) Register(thread guest.ThreadHandle, threadNum int, level *Level) {
	r.states.Store(thread, &ThreadState{ThreadNum: threadNum, Level: level})
}

// Forget drops a thread's registration once its team's region has ended.
func (r *Runtime) Forget(thread guest.ThreadHandle) {
	r.states.Delete(thread)
}

// SetDefaultDevice implements omp_set_default_device. A value of 1 (the
// default) means "run locally"; any other value in [1, maxDevices]
// switches __kmpc_fork_call onto the distributed chained-invocation path
// so the team spawns as separate scheduled invocations instead of local
// goroutines.
func (r *Runtime) SetDefaultDevice(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n < 1 {
		return
	}
	if n > r.maxDevices {
		n = r.maxDevices
	}
	r.defaultDevice = n
}

// NumDevices implements omp_get_num_devices.
func (r *Runtime) NumDevices() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxDevices
}

// Distributed reports whether the next fork should use the distributed
// chained-invocation path rather than local goroutines.
func (r *Runtime) Distributed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.defaultDevice != 1
}

type threadCtxKey struct{}

// WithThread attaches thread to ctx so nested calls (e.g. into hostcall)
// can resolve the same identity.
func WithThread(ctx context.Context, thread guest.ThreadHandle) context.Context {
	return context.WithValue(ctx, threadCtxKey{}, thread)
}

// ThreadFrom returns the thread handle attached to ctx.
func ThreadFrom(ctx context.Context) guest.ThreadHandle {
	t, _ := ctx.Value(threadCtxKey{}).(guest.ThreadHandle)
	return t
}

type invocationCtxKey struct{}

// WithInvocation attaches the invocation currently running on the
// calling thread to ctx, letting __kmpc_fork_call mint chained children
// of it without threading an extra parameter through every host call.
func WithInvocation(ctx context.Context, inv *message.Invocation) context.Context {
	return context.WithValue(ctx, invocationCtxKey{}, inv)
}

// InvocationFrom returns the invocation attached to ctx, or nil.
func InvocationFrom(ctx context.Context) *message.Invocation {
	inv, _ := ctx.Value(invocationCtxKey{}).(*message.Invocation)
	return inv
}
