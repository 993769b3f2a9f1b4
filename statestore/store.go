// Package statestore implements the distributed key/value store that
// backs OMP memory snapshots and the cross-invocation reduction
// accumulator, in either an in-memory mode (single process, tests) or an
// S3-backed external-kv mode for a real multi-node fleet.
package statestore

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the store cannot currently serve a
// request (e.g. the backing object store is unreachable).
var ErrUnavailable = errors.New("statestore: unavailable")

// ErrNotFound is returned by Get* when the key has never been written.
var ErrNotFound = errors.New("statestore: not found")

// Store is the interface the OMP runtime, worker pool, and scheduler
// depend on. Implementations: Memory (single process) and S3 (external
// fleet-wide store).
type Store interface {
	GetInt64(ctx context.Context, key string) (int64, error)
	SetInt64(ctx context.Context, key string, val int64) error
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	PutSnapshot(ctx context.Context, key string, data []byte) error
	GetSnapshot(ctx context.Context, key string) ([]byte, error)
	DeleteSnapshot(ctx context.Context, key string) error
}

// ReductionKey is the well-known accumulator key the distributed OMP
// fork path resets to zero before spawning a team and reads back after
// every chained member has finished, mirroring the teacher's single
// global reduce key but now namespaced per invocation (see snapshot.go).
const reductionKeySuffix = "reduce"
