package worker

import (
	"context"
	"time"

	"github.com/grailbio/base/log"

	"github.com/latticerun/lattice/config"
	"github.com/latticerun/lattice/message"
	"github.com/latticerun/lattice/scheduler"
	"github.com/latticerun/lattice/statestore"
)

// Listeners runs the background goroutines that feed a Pool: one that
// drains the global queue, one that services inter-node sharing
// (flush/warm) requests, one that drains the MPI bus, one that polls the
// in-memory state server when the node is configured for it, and a fifth
// - the pool spawner - that is the only goroutine which ever blocks on
// the pool's token semaphore and spawns the long-lived execution
// goroutine for each invocation. The four intake listeners never call
// Pool.Submit themselves; they hand invocations to the spawner over
// workCh, so a momentarily-full pool stalls only the spawner, not a
// listener's own poll loop. It is the analogue of the teacher's
// WorkerThreadPool: four message-bus listener threads plus a dedicated
// poolThread that calls getThreadToken() and spawns a WorkerThread per
// slot, all started together and joined in a fixed order on Shutdown so
// that producers stop enqueueing before the pool they feed is torn down.
type Listeners struct {
	cfg   *config.Config
	pool  *Pool
	sched scheduler.Scheduler

	globalQueue Bus
	sharing     Bus
	mpi         Bus

	stateServer *statestore.Server

	// preload is invoked once per sharing "flush" request, the analogue
	// of the teacher's preparePythonRuntime() call that re-warms a
	// runtime after another node signals it evicted cached state this
	// node depended on. nil disables the warm step.
	preload func(ctx context.Context)

	workCh chan *message.Invocation

	done chan struct{}
	stop chan struct{}
	subs [5]chan struct{} // global, state, sharing, mpi, pool spawner - joined in this order
}

// NewListeners wires a Listeners against an already-constructed Pool and
// scheduler. Any of globalQueue, sharing, mpi may be nil to disable that
// listener entirely (a single-node test harness typically only wires
// globalQueue).
func NewListeners(cfg *config.Config, pool *Pool, sched scheduler.Scheduler, globalQueue, sharing, mpi Bus, stateServer *statestore.Server, preload func(ctx context.Context)) *Listeners {
	l := &Listeners{
		cfg:         cfg,
		pool:        pool,
		sched:       sched,
		globalQueue: globalQueue,
		sharing:     sharing,
		mpi:         mpi,
		stateServer: stateServer,
		preload:     preload,
		workCh:      make(chan *message.Invocation, cfg.PoolCapacity),
		stop:        make(chan struct{}),
	}
	for i := range l.subs {
		l.subs[i] = make(chan struct{})
	}
	return l
}

const listenerPollTimeout = 2 * time.Second

// Run launches every configured listener goroutine and returns
// immediately; call Shutdown to stop them in order.
func (l *Listeners) Run(ctx context.Context) {
	go l.runGlobalQueue(ctx)
	go l.runStateServer(ctx)
	go l.runSharing(ctx)
	go l.runMPI(ctx)
	go l.runPoolSpawner(ctx)
}

// Shutdown signals every listener to stop and waits for them to exit in
// the same order the teacher's shutdown() joins its threads: the global
// queue listener first (so no new top-level work is accepted), then the
// state server, then the sharing listener, then the MPI listener, then
// the pool spawner drains whatever is still queued on workCh, and
// finally the pool itself drains whatever was already accepted.
func (l *Listeners) Shutdown() {
	close(l.stop)
	for _, done := range l.subs {
		<-done
	}
	l.pool.Shutdown()
}

// submit hands inv to the pool spawner rather than calling Pool.Submit
// directly, so an intake listener's poll loop never blocks waiting for a
// free pool slot.
func (l *Listeners) submit(ctx context.Context, inv *message.Invocation) {
	select {
	case l.workCh <- inv:
	case <-l.stop:
	case <-ctx.Done():
	}
}

// runPoolSpawner is the analogue of the teacher's poolThread: the single
// goroutine that ever blocks acquiring a pool token, spawning the
// invocation's long-lived execution goroutine as soon as one frees up.
func (l *Listeners) runPoolSpawner(ctx context.Context) {
	defer close(l.subs[4])
	for {
		select {
		case <-l.stop:
			// Drain whatever the four intake listeners already handed
			// off before they themselves stopped, rather than dropping
			// it on the floor.
			for {
				select {
				case inv := <-l.workCh:
					if err := l.pool.Submit(ctx, inv); err != nil {
						log.Printf("worker: submit %s: %v", inv, err)
					}
				default:
					return
				}
			}
		case inv := <-l.workCh:
			if err := l.pool.Submit(ctx, inv); err != nil {
				log.Printf("worker: submit %s: %v", inv, err)
			}
		}
	}
}

func (l *Listeners) runGlobalQueue(ctx context.Context) {
	defer close(l.subs[0])
	if l.globalQueue == nil {
		return
	}
	for {
		select {
		case <-l.stop:
			return
		default:
		}
		inv, err := l.globalQueue.Next(ctx, listenerPollTimeout)
		if err != nil {
			if err == ErrBusTimeout {
				continue
			}
			log.Printf("worker: global queue listener: %v", err)
			continue
		}
		l.submit(ctx, inv)
	}
}

func (l *Listeners) runStateServer(ctx context.Context) {
	defer close(l.subs[1])
	if l.stateServer == nil || l.cfg.StateMode != config.StateModeInMemory {
		return
	}
	for {
		select {
		case <-l.stop:
			return
		default:
		}
		if !l.stateServer.Poll(ctx, listenerPollTimeout) {
			return
		}
	}
}

// runSharing services requests other nodes send when they want this
// node to drop and re-warm cached runtime state before accepting more
// work placed on it, mirroring the teacher's sharing queue handling of
// flush requests.
func (l *Listeners) runSharing(ctx context.Context) {
	defer close(l.subs[2])
	if l.sharing == nil {
		return
	}
	for {
		select {
		case <-l.stop:
			return
		default:
		}
		inv, err := l.sharing.Next(ctx, listenerPollTimeout)
		if err != nil {
			if err == ErrBusTimeout {
				continue
			}
			log.Printf("worker: sharing listener: %v", err)
			continue
		}
		if l.preload != nil {
			l.preload(ctx)
		}
		l.submit(ctx, inv)
	}
}

func (l *Listeners) runMPI(ctx context.Context) {
	defer close(l.subs[3])
	if l.mpi == nil {
		return
	}
	for {
		select {
		case <-l.stop:
			return
		default:
		}
		inv, err := l.mpi.Next(ctx, listenerPollTimeout)
		if err != nil {
			if err == ErrBusTimeout {
				continue
			}
			log.Printf("worker: mpi listener: %v", err)
			continue
		}
		l.submit(ctx, inv)
	}
}
