package openmp

import "testing"

func TestDetermineReduceMethodSingleThread(t *testing.T) {
	l := &Level{NumThreads: 1}
	if got := DetermineReduceMethod(l); got != ReduceEmpty {
		t.Fatalf("got %v, want ReduceEmpty", got)
	}
}

func TestDetermineReduceMethodTeam(t *testing.T) {
	l := &Level{NumThreads: 4}
	if got := DetermineReduceMethod(l); got != ReduceCritical {
		t.Fatalf("got %v, want ReduceCritical", got)
	}
}

func TestBeginEndReduceRoundTrip(t *testing.T) {
	l := NewRootLevel(8)
	child := l.Fork(4)
	rt := NewRuntime(1, 8, 3)

	status, err := BeginReduce(child, rt)
	if err != nil {
		t.Fatal(err)
	}
	if status != 1 {
		t.Fatalf("got status %d, want 1 (critical-reduce-block)", status)
	}
	EndReduce(child)

	// A second BeginReduce must not deadlock now that EndReduce released
	// the lock.
	status, err = BeginReduce(child, rt)
	if err != nil {
		t.Fatal(err)
	}
	if status != 1 {
		t.Fatalf("got status %d, want 1", status)
	}
	EndReduce(child)
}

func TestBeginReduceRejectedWhenDistributed(t *testing.T) {
	l := NewRootLevel(8)
	rt := NewRuntime(1, 8, 3)
	rt.SetDefaultDevice(2)

	if _, err := BeginReduce(l, rt); err != ErrDistributedReduce {
		t.Fatalf("got %v, want ErrDistributedReduce", err)
	}
}
