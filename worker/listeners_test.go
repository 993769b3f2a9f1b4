package worker

import (
	"context"
	"testing"
	"time"

	"github.com/latticerun/lattice/config"
	"github.com/latticerun/lattice/message"
	"github.com/latticerun/lattice/stats"
)

func TestGlobalQueueListenerSubmitsFromBus(t *testing.T) {
	cfg := config.Default()
	cfg.PoolCapacity = 2
	pool := NewPool(cfg, failingLoader, stats.NewMap(), nil, nil)

	bus := NewInMemoryBus(4)
	listeners := NewListeners(cfg, pool, nil, bus, nil, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	listeners.Run(ctx)

	if err := bus.Push(ctx, message.New("u", "f")); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("invocation was never submitted to the pool")
		default:
		}
		if pool.tokens.TryAcquire(int64(cfg.PoolCapacity)) {
			pool.tokens.Release(int64(cfg.PoolCapacity))
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func TestListenersShutdownJoinsAllSubGoroutines(t *testing.T) {
	cfg := config.Default()
	cfg.PoolCapacity = 1
	pool := NewPool(cfg, failingLoader, stats.NewMap(), nil, nil)

	listeners := NewListeners(cfg, pool, nil, NewInMemoryBus(1), NewInMemoryBus(1), NewInMemoryBus(1), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	listeners.Run(ctx)

	done := make(chan struct{})
	go func() {
		listeners.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not join all listener goroutines")
	}
}

func TestDisabledListenersAreNoops(t *testing.T) {
	cfg := config.Default()
	pool := NewPool(cfg, failingLoader, stats.NewMap(), nil, nil)
	listeners := NewListeners(cfg, pool, nil, nil, nil, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	listeners.Run(ctx)

	done := make(chan struct{})
	go func() {
		listeners.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("shutdown with all-nil buses should return immediately")
	}
}
