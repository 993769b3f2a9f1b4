package statestore

import "fmt"

// SnapshotKey returns the per-invocation-scoped key a distributed OMP
// fork snapshots its parent's memory under. Earlier designs used one
// unscoped global key for every snapshot in the process, which silently
// corrupted concurrent or nested forks (two forks racing on the same
// key, or a fork's own chained children overwriting their parent's
// snapshot mid-flight); scoping by the forking invocation's id makes
// concurrent and nested forks independent by construction.
func SnapshotKey(invocationID uint64) string {
	return fmt.Sprintf("omp_snapshot_%d", invocationID)
}

// ReductionKey returns the per-invocation-scoped accumulator key a
// distributed OMP team's reduction uses, namespaced the same way as
// SnapshotKey and for the same reason.
func ReductionKey(invocationID uint64) string {
	return fmt.Sprintf("omp_%s_%d", reductionKeySuffix, invocationID)
}
