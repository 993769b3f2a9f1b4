package worker

import (
	"context"
	"testing"
	"time"

	"github.com/latticerun/lattice/config"
	"github.com/latticerun/lattice/guest"
	"github.com/latticerun/lattice/message"
	"github.com/latticerun/lattice/stats"
)

// fakeModule/fakeLoader let pool tests exercise Submit without a real
// wazero runtime; they never reach Executor.Run's fn.Call path because
// the loader itself returns an error, which is the behavior under test.
func failingLoader(ctx context.Context, inv *message.Invocation) (*guest.Module, error) {
	return nil, errLoad
}

var errLoad = &loadError{}

type loadError struct{}

func (*loadError) Error() string { return "worker test: load refused" }

func TestPoolSubmitRunsExecutorAndReleasesToken(t *testing.T) {
	cfg := config.Default()
	cfg.PoolCapacity = 2
	p := NewPool(cfg, failingLoader, stats.NewMap(), nil, nil)

	inv := message.New("u", "f")
	if err := p.Submit(context.Background(), inv); err != nil {
		t.Fatal(err)
	}

	// Submit is allowed to return before the executor goroutine finishes,
	// so give it a moment, then confirm the pool shut down cleanly
	// (proves the token was released back).
	deadline := time.After(time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("pool did not drain in time")
		default:
		}
		if p.tokens.TryAcquire(int64(cfg.PoolCapacity)) {
			p.tokens.Release(int64(cfg.PoolCapacity))
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPoolSubmitRefusedAfterShutdown(t *testing.T) {
	cfg := config.Default()
	cfg.PoolCapacity = 1
	p := NewPool(cfg, failingLoader, stats.NewMap(), nil, nil)
	p.Shutdown()

	if err := p.Submit(context.Background(), message.New("u", "f")); err != nil {
		t.Fatalf("submit after shutdown should be a silent no-op, got %v", err)
	}
}
