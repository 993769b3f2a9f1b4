package openmp

import (
	"context"
	"sync/atomic"
	"testing"
)

func TestForkLocalJoinsAllThreads(t *testing.T) {
	root := NewRootLevel(8)
	root.WantedNumThreads = 6

	var counter int64
	err := ForkLocal(root, func(ctx context.Context, threadNum int, args []uint32) error {
		atomic.AddInt64(&counter, 1)
		return nil
	}, ForkSpec{})
	if err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt64(&counter); got != 6 {
		t.Fatalf("got %d threads run, want 6", got)
	}
}

// TestForkLocalHappensBeforeJoin verifies every write each spawned
// thread makes is visible to the calling goroutine once ForkLocal
// returns - the join is a real synchronization point, not just a
// goroutine-count coincidence.
func TestForkLocalHappensBeforeJoin(t *testing.T) {
	root := NewRootLevel(8)
	root.WantedNumThreads = 8
	results := make([]int, 8)

	err := ForkLocal(root, func(ctx context.Context, threadNum int, args []uint32) error {
		results[threadNum] = threadNum * threadNum
		return nil
	}, ForkSpec{})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range results {
		if v != i*i {
			t.Fatalf("results[%d] = %d, want %d (join did not establish happens-before)", i, v, i*i)
		}
	}
}

func TestForkLocalPropagatesError(t *testing.T) {
	root := NewRootLevel(8)
	root.WantedNumThreads = 4

	sentinel := context.Canceled
	err := ForkLocal(root, func(ctx context.Context, threadNum int, args []uint32) error {
		if threadNum == 2 {
			return sentinel
		}
		return nil
	}, ForkSpec{})
	if err == nil {
		t.Fatal("expected an aggregated error")
	}
}

func TestForkLocalCollapsesBeyondMaxActiveLevel(t *testing.T) {
	root := NewRootLevel(0) // max active level 0: no nested parallelism
	root.WantedNumThreads = 4

	var calls int64
	err := ForkLocal(root, func(ctx context.Context, threadNum int, args []uint32) error {
		atomic.AddInt64(&calls, 1)
		return nil
	}, ForkSpec{})
	if err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("got %d calls, want 1 (collapsed to sequential)", got)
	}
}
