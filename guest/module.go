package guest

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// SnapshotStore is the narrow interface Module needs from the state
// store to persist a memory snapshot; satisfied by statestore.Store.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, key string, data []byte) error
}

// Module wraps one wazero guest module instance: its linear memory, its
// indirect function table, and the handful of operations the host-call
// and OMP layers need on top of wazero's own api.Module. Its lifetime is
// one invocation; when OMP is used locally, several host threads
// (goroutines) execute concurrently against the same Module.
type Module struct {
	Mod   api.Module
	Table api.Table
}

// New wraps an instantiated wazero module. table may be nil if the guest
// exports no indirect table (e.g. it never uses OMP fork/join).
func New(mod api.Module, table api.Table) *Module {
	return &Module{Mod: mod, Table: table}
}

// Memory returns the module's single linear memory.
func (m *Module) Memory() api.Memory {
	return m.Mod.Memory()
}

// GrowMemory grows the module's memory by count pages and returns the
// page index the new region starts at.
func (m *Module) GrowMemory(count uint32) (basePageIndex uint32, err error) {
	prev, ok := m.Memory().Grow(count)
	if !ok {
		return 0, fmt.Errorf("guest: grow by %d pages failed (size=%d)", count, m.Memory().Size())
	}
	return prev, nil
}

// UnmapPages is a no-op in wazero's memory model: wazero's linear memory
// only grows, it never shrinks mid-instance (matching real WASM memory
// semantics - there is no shrink instruction). munmap is honored at the
// bookkeeping level only: the host-call layer stops treating the range as
// addressable by the allocator that owned it, but the underlying wazero
// memory keeps the pages. This mirrors the spec's "memory growth is never
// rolled back" resource-discipline rule in §5.
func (m *Module) UnmapPages(basePageIndex, count uint32) {
	// Intentionally no-op; see doc comment.
	_ = basePageIndex
	_ = count
}

// TableFunc resolves an indirect-table index into a callable function,
// used by OMP fork to dispatch into the compiler-emitted microtask.
func (m *Module) TableFunc(idx uint32) (api.Function, error) {
	if m.Table == nil {
		return nil, fmt.Errorf("guest: module has no indirect table")
	}
	ref, err := m.Table.Get(idx)
	if err != nil {
		return nil, fmt.Errorf("guest: table index %d: %w", idx, err)
	}
	fn, ok := ref.(api.Function)
	if !ok {
		return nil, fmt.Errorf("guest: table index %d is not a function", idx)
	}
	return fn, nil
}

// SnapshotToState serializes the module's current linear memory and
// stores it under key, returning the number of bytes written. Used by
// the distributed OMP fork path before spawning chained invocations.
func (m *Module) SnapshotToState(ctx context.Context, store SnapshotStore, key string) (int, error) {
	data, ok := m.Memory().Read(0, m.Memory().Size())
	if !ok {
		return 0, fmt.Errorf("guest: failed to read memory for snapshot")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	if err := store.PutSnapshot(ctx, key, cp); err != nil {
		return 0, err
	}
	return len(cp), nil
}

// MaterializeSnapshot loads a previously stored snapshot into this
// module's memory, used by a child invocation's node when it discovers a
// snapshot key it has not yet materialized (spec §9).
func (m *Module) MaterializeSnapshot(data []byte) error {
	if !m.Memory().Write(0, data) {
		return fmt.Errorf("guest: snapshot of %d bytes does not fit current memory (%d bytes)", len(data), m.Memory().Size())
	}
	return nil
}
