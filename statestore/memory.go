package statestore

import (
	"context"
	"sync"
	"time"
)

// Memory is the single-process Store implementation: a locked map,
// usable directly or driven by a Server loop that polls a channel the
// way the teacher's state-server thread polls Redis.
type Memory struct {
	mu        sync.Mutex
	ints      map[string]int64
	snapshots map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		ints:      make(map[string]int64),
		snapshots: make(map[string][]byte),
	}
}

func (m *Memory) GetInt64(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.ints[key]
	if !ok {
		return 0, ErrNotFound
	}
	return v, nil
}

func (m *Memory) SetInt64(ctx context.Context, key string, val int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ints[key] = val
	return nil
}

func (m *Memory) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ints[key] += delta
	return m.ints[key], nil
}

func (m *Memory) PutSnapshot(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.snapshots[key] = cp
	return nil
}

func (m *Memory) GetSnapshot(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.snapshots[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *Memory) DeleteSnapshot(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, key)
	return nil
}

// Request is one operation the Server loop services, used when Memory is
// exposed across a process boundary via a request channel rather than
// called in-process (mirroring the teacher's Redis-backed state server,
// which is only ever started in "inmemory" state mode).
type Request struct {
	Op     string // "get", "set", "incr", "putsnap", "getsnap", "delsnap"
	Key    string
	IntVal int64
	Bytes  []byte
	Reply  chan Response
}

type Response struct {
	IntVal int64
	Bytes  []byte
	Err    error
}

// Server drains Requests against an underlying Memory store until
// Stopped, the same poll-loop shape as the teacher's state server
// thread (started only when StateMode == inmemory).
type Server struct {
	store   *Memory
	reqs    chan Request
	stopped chan struct{}
}

// NewServer returns a Server fronting store, polling reqs.
func NewServer(store *Memory, reqs chan Request) *Server {
	return &Server{store: store, reqs: reqs, stopped: make(chan struct{})}
}

// Poll services at most one pending request, blocking up to timeout if
// none is ready; returns false once the server has been told to stop.
func (s *Server) Poll(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.stopped:
		return false
	case req := <-s.reqs:
		s.handle(ctx, req)
		return true
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Server) handle(ctx context.Context, req Request) {
	var resp Response
	switch req.Op {
	case "get":
		resp.IntVal, resp.Err = s.store.GetInt64(ctx, req.Key)
	case "set":
		resp.Err = s.store.SetInt64(ctx, req.Key, req.IntVal)
	case "incr":
		resp.IntVal, resp.Err = s.store.IncrBy(ctx, req.Key, req.IntVal)
	case "putsnap":
		resp.Err = s.store.PutSnapshot(ctx, req.Key, req.Bytes)
	case "getsnap":
		resp.Bytes, resp.Err = s.store.GetSnapshot(ctx, req.Key)
	case "delsnap":
		resp.Err = s.store.DeleteSnapshot(ctx, req.Key)
	}
	if req.Reply != nil {
		req.Reply <- resp
	}
}

// Close stops the Server's Poll loop.
func (s *Server) Close() {
	close(s.stopped)
}
