package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/retry"
	"github.com/grailbio/bigmachine"
	"golang.org/x/sync/errgroup"

	"github.com/latticerun/lattice/message"
)

// retryPolicy governs retries of the RPC that dispatches a chained
// invocation onto a remote machine; transient dial/call failures are
// common in a fleet that is still scaling up.
var retryPolicy = retry.Backoff(200*time.Millisecond, 5*time.Second, 1.5)

// Worker is the RPC surface a machine's own process exposes for
// bigmachine to call into; every node in the fleet runs one, registered
// with bigmachine.RegisterService("Worker", ...) at startup.
type Worker struct {
	// Exec delegates to the local worker pool's executor.
	Exec ExecFunc
}

// RunArgs/RunReply are the RPC request/response pair for Worker.Run.
type RunArgs struct {
	Invocation *message.Invocation
}

type RunReply struct {
	ReturnCode int32
}

// Run is the RPC method bigmachine dispatches "Worker.Run" calls to.
func (w *Worker) Run(ctx context.Context, args RunArgs, reply *RunReply) error {
	rc, err := w.Exec(ctx, args.Invocation)
	reply.ReturnCode = rc
	return err
}

// Bigmachine is the distributed Scheduler: each Call places its
// invocation onto a node the placement policy selects, then dispatches
// an RPC to that node's Worker service. Node-placement policy itself
// (which machine gets which invocation) is out of scope for this
// package; Placer resolves it.
type Bigmachine struct {
	system *bigmachine.System

	mu       sync.Mutex
	machines []*bigmachine.Machine
	pending  map[uint64]chan Result
	awaiting map[uint64]bool
}

// Placer selects the machine a new invocation should run on.
type Placer interface {
	Place(machines []*bigmachine.Machine, inv *message.Invocation) *bigmachine.Machine
}

// RandomPlacer is the default Placer: pick uniformly among the available
// machines. A real node-placement policy (load-aware, locality-aware) is
// explicitly out of scope, per this package's purpose.
type RandomPlacer struct{}

func (RandomPlacer) Place(machines []*bigmachine.Machine, inv *message.Invocation) *bigmachine.Machine {
	return machines[rand.Intn(len(machines))]
}

var _ Placer = RandomPlacer{}

// NewBigmachine returns a distributed scheduler backed by an already
// started bigmachine system with machines already started.
func NewBigmachine(system *bigmachine.System, machines []*bigmachine.Machine) *Bigmachine {
	return &Bigmachine{
		system:   system,
		machines: machines,
		pending:  make(map[uint64]chan Result),
		awaiting: make(map[uint64]bool),
	}
}

func (b *Bigmachine) Call(ctx context.Context, inv *message.Invocation) error {
	b.mu.Lock()
	if len(b.machines) == 0 {
		b.mu.Unlock()
		return errors.E(errors.Fatal, "scheduler: no machines available")
	}
	m := RandomPlacer{}.Place(b.machines, inv)
	ch := make(chan Result, 1)
	b.pending[inv.ID] = ch
	b.mu.Unlock()

	inv.ScheduledNode = m.Addr

	go func() {
		var reply RunReply
		var retries int
		var err error
		for {
			err = m.Call(ctx, "Worker.Run", RunArgs{Invocation: inv}, &reply)
			if err == nil {
				break
			}
			if errors.Recover(err).Severity == errors.Fatal {
				break
			}
			log.Error.Printf("scheduler: call to %s failed, retrying: %v", m.Addr, err)
			if werr := retry.Wait(ctx, retryPolicy, retries); werr != nil {
				err = werr
				break
			}
			retries++
		}
		if err != nil {
			ch <- Result{Err: fmt.Errorf("%w: %v", ErrTransportError, err)}
			return
		}
		ch <- Result{ReturnCode: reply.ReturnCode}
	}()
	return nil
}

func (b *Bigmachine) Await(ctx context.Context, id uint64, timeout time.Duration) (Result, error) {
	b.mu.Lock()
	ch, ok := b.pending[id]
	b.mu.Unlock()
	if !ok {
		return Result{}, ErrUnknownInvocation
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
		return res, nil
	case <-timer.C:
		return Result{}, ErrTransportTimeout
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (b *Bigmachine) NotifyAwaiting(id uint64) {
	b.mu.Lock()
	b.awaiting[id] = true
	b.mu.Unlock()
}

func (b *Bigmachine) NotifyFinishedAwaiting(id uint64) {
	b.mu.Lock()
	delete(b.awaiting, id)
	b.mu.Unlock()
}

// AwaitAll blocks for every id in ids, returning the first error
// encountered (if any) while still waiting for the rest to finish so
// every pending channel is drained.
func AwaitAll(ctx context.Context, s Scheduler, ids []uint64, timeout time.Duration) ([]Result, error) {
	results := make([]Result, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			res, err := s.Await(ctx, id, timeout)
			results[i] = res
			return err
		})
	}
	err := g.Wait()
	return results, err
}
