package openmp

// Schedule mirrors clang's kmp sched_type enum values for the subset of
// scheduling kinds this runtime implements.
type Schedule int32

const (
	ScheduleStaticChunked Schedule = 33
	ScheduleStatic        Schedule = 34
)

// ForBounds is the mutable loop-bound state __kmpc_for_static_init_4
// reads and rewrites in place for the calling thread.
type ForBounds struct {
	LastIter bool
	Lower    int32
	Upper    int32
	Stride   int32
}

// StaticForInit computes the iteration chunk threadNum should run, given
// a team of level.NumThreads threads splitting a loop from in.Lower to
// in.Upper (inclusive) stepping by incr. chunk is only meaningful for
// ScheduleStaticChunked.
//
// This implements the two scheduling kinds clang ever lowers a `#pragma
// omp for` without an explicit runtime schedule into: static-chunked (an
// explicit chunk size) and static ("static balanced" here - greedy
// static is not implemented, matching the upstream runtime this shim
// tracks).
func StaticForInit(level *Level, threadNum int, sched Schedule, in ForBounds, incr, chunk int32) ForBounds {
	out := in

	if level.NumThreads == 1 {
		out.LastIter = true
		if incr > 0 {
			out.Stride = out.Upper - out.Lower + 1
		} else {
			out.Stride = -(out.Lower - out.Upper + 1)
		}
		return out
	}

	n := int32(level.NumThreads)
	var tripCount int32
	switch {
	case incr == 1:
		tripCount = in.Upper - in.Lower + 1
	case incr == -1:
		tripCount = in.Lower - in.Upper + 1
	case incr > 0:
		tripCount = (in.Upper-in.Lower)/incr + 1
	default:
		tripCount = (in.Lower - in.Upper) / (-incr) + 1
	}

	tn := int32(threadNum)

	switch sched {
	case ScheduleStaticChunked:
		if chunk < 1 {
			chunk = 1
		}
		span := chunk * incr
		out.Stride = span * n
		out.Lower = in.Lower + span*tn
		out.Upper = out.Lower + span - incr
		out.LastIter = tn == ((tripCount-1)/chunk)%n

	case ScheduleStatic:
		if tripCount < n {
			if tn < tripCount {
				out.Upper = in.Lower + tn*incr
				out.Lower = out.Upper
			} else {
				out.Lower = in.Upper + incr
				// out.Upper is left as in.Upper, matching the upstream
				// runtime's behavior for threads beyond the trip count.
			}
			out.LastIter = tn == tripCount-1
		} else {
			smallChunk := tripCount / n
			extras := tripCount % n
			var bonus int32
			if tn < extras {
				bonus = tn
			} else {
				bonus = extras
			}
			out.Lower = in.Lower + incr*(tn*smallChunk+bonus)
			out.Upper = out.Lower + smallChunk*incr
			if tn >= extras {
				out.Upper -= incr
			}
			out.LastIter = tn == n-1
		}
		out.Stride = tripCount

	default:
		panic("openmp: unimplemented loop schedule")
	}

	return out
}
