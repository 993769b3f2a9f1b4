package openmp

import "testing"

func rangeUnionCoversTripCount(t *testing.T, lower, upper, numThreads int32, sched Schedule, chunk int32) {
	t.Helper()
	level := &Level{NumThreads: int(numThreads)}
	seen := make(map[int32]int)
	var lastIterCount int
	for tn := int32(0); tn < numThreads; tn++ {
		out := StaticForInit(level, int(tn), sched, ForBounds{Lower: lower, Upper: upper}, 1, chunk)
		if out.LastIter {
			lastIterCount++
		}
		for i := out.Lower; i <= out.Upper; i++ {
			seen[i]++
		}
	}
	if lastIterCount != 1 {
		t.Fatalf("expected exactly one thread to see LastIter, got %d", lastIterCount)
	}
	for i := lower; i <= upper; i++ {
		if seen[i] != 1 {
			t.Fatalf("iteration %d covered %d times, want exactly 1", i, seen[i])
		}
	}
}

func TestStaticChunkedCoversDisjointUnion(t *testing.T) {
	rangeUnionCoversTripCount(t, 0, 99, 4, ScheduleStaticChunked, 5)
}

func TestStaticBalancedCoversDisjointUnion(t *testing.T) {
	rangeUnionCoversTripCount(t, 0, 101, 4, ScheduleStatic, 0)
}

func TestStaticBalancedUnevenTripCount(t *testing.T) {
	rangeUnionCoversTripCount(t, 0, 9, 4, ScheduleStatic, 0)
}

func TestStaticSingleThreadTakesEntireRange(t *testing.T) {
	level := &Level{NumThreads: 1}
	out := StaticForInit(level, 0, ScheduleStatic, ForBounds{Lower: 0, Upper: 41}, 1, 0)
	if !out.LastIter {
		t.Fatal("single-thread team must always see LastIter")
	}
	if out.Lower != 0 || out.Upper != 41 {
		t.Fatalf("expected full range, got [%d,%d]", out.Lower, out.Upper)
	}
}

func TestStaticSmallTripCountLeavesExcessThreadsIdle(t *testing.T) {
	level := &Level{NumThreads: 4}
	out := StaticForInit(level, 3, ScheduleStatic, ForBounds{Lower: 0, Upper: 1}, 1, 0)
	// Thread 3 is beyond the 2-element trip count; it should get no work
	// (lower strictly greater than upper).
	if out.Lower <= out.Upper {
		t.Fatalf("expected idle thread to get empty range, got [%d,%d]", out.Lower, out.Upper)
	}
}
