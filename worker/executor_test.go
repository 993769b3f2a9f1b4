package worker

import (
	"context"
	"testing"

	"github.com/latticerun/lattice/message"
	"github.com/latticerun/lattice/stats"
)

func TestExecutorRunSetsReturnCodeOnLoadFailure(t *testing.T) {
	e := &Executor{Load: failingLoader, Stats: stats.NewMap()}
	inv := message.New("u", "f")
	e.Run(context.Background(), inv)

	if inv.ReturnCode != -1 {
		t.Fatalf("got return code %d, want -1 on load failure", inv.ReturnCode)
	}
	if got := e.Stats.Int("worker.load_errors").Get(); got != 1 {
		t.Fatalf("got %d load_errors, want 1", got)
	}
}

func TestEntryArgsTopLevelInvocationHasNoArgs(t *testing.T) {
	e := &Executor{}
	inv := message.New("u", "f")
	if args := e.entryArgs(inv); args != nil {
		t.Fatalf("got %v, want nil for a non-OMP invocation", args)
	}
}

func TestEntryArgsChainedCallPacksThreadAndSharedArgs(t *testing.T) {
	e := &Executor{}
	inv := message.New("u", "f")
	inv.HasOMPThread = true
	inv.OMPThreadNum = 2
	inv.OMPNumThreads = 4
	inv.FuncPtr = 100
	inv.OMPSharedArgs = []uint32{7, 8}

	args := e.entryArgs(inv)
	want := []uint64{2, 4, 100, 7, 8}
	if len(args) != len(want) {
		t.Fatalf("got %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("got %v, want %v", args, want)
		}
	}
}
