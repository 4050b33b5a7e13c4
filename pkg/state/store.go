// Package state provides the process-wide session store with
// single-writer-per-session discipline.
package state

import (
	"fmt"
	"sort"
	"sync"

	"northstar/pkg/proposal"
	"northstar/pkg/proto"
)

// SnapshotSink receives the published snapshot after every mutation.
// The sqlite archive implements this; failures are the sink's problem.
type SnapshotSink interface {
	Persist(snapshot *proposal.State)
}

// Store is the session state contract the engine works against. A durable
// implementation can replace MemoryStore without touching the engine.
type Store interface {
	// Create registers a new session. Fails if the id already exists.
	Create(state *proposal.State) error

	// Snapshot returns the last published snapshot for a session. The
	// returned value is shared and must be treated as read-only.
	Snapshot(id string) (*proposal.State, error)

	// List returns the last published snapshot of every session, ordered by
	// creation time.
	List() []*proposal.State

	// Update runs fn on the live session record under the session's lock and
	// publishes a fresh snapshot when fn succeeds. At most one Update per
	// session id is in flight at a time; Updates on different sessions run
	// in parallel.
	Update(id string, fn func(*proposal.State) error) (*proposal.State, error)
}

type sessionEntry struct {
	mu   sync.Mutex // serializes mutations; held across enrichment calls
	live *proposal.State

	snapMu   sync.RWMutex
	snapshot *proposal.State
}

func (e *sessionEntry) publish() *proposal.State {
	snap := e.live.Snapshot()
	e.snapMu.Lock()
	e.snapshot = snap
	e.snapMu.Unlock()
	return snap
}

func (e *sessionEntry) read() *proposal.State {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	return e.snapshot
}

// MemoryStore is the process-wide in-memory session map. Sessions are never
// deleted by the engine; retention is external policy.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	sink     SnapshotSink
}

// NewMemoryStore creates an empty session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*sessionEntry),
	}
}

// SetSink attaches a snapshot sink for durable write-through. Call before
// serving traffic.
func (s *MemoryStore) SetSink(sink SnapshotSink) {
	s.sink = sink
}

// Create registers a new session.
func (s *MemoryStore) Create(st *proposal.State) error {
	if st == nil || st.SessionID == "" {
		return fmt.Errorf("session id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[st.SessionID]; exists {
		return fmt.Errorf("session %s already exists", st.SessionID)
	}

	entry := &sessionEntry{live: st}
	entry.publish()
	s.sessions[st.SessionID] = entry

	if s.sink != nil {
		s.sink.Persist(entry.read())
	}
	return nil
}

// Snapshot returns the last published snapshot for a session.
func (s *MemoryStore) Snapshot(id string) (*proposal.State, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	return entry.read(), nil
}

// List returns the last published snapshot of every session in creation order.
func (s *MemoryStore) List() []*proposal.State {
	s.mu.RLock()
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for _, entry := range s.sessions {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	snapshots := make([]*proposal.State, 0, len(entries))
	for _, entry := range entries {
		snapshots = append(snapshots, entry.read())
	}

	sort.Slice(snapshots, func(i, j int) bool {
		if snapshots[i].CreatedAt.Equal(snapshots[j].CreatedAt) {
			return snapshots[i].SessionID < snapshots[j].SessionID
		}
		return snapshots[i].CreatedAt.Before(snapshots[j].CreatedAt)
	})

	return snapshots
}

// Update runs fn under the session lock and publishes the result. fn works on
// the live record; if it returns an error the snapshot is republished anyway
// so audit entries appended before the failure stay visible.
func (s *MemoryStore) Update(id string, fn func(*proposal.State) error) (*proposal.State, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	fnErr := fn(entry.live)
	snap := entry.publish()

	if s.sink != nil {
		s.sink.Persist(snap)
	}

	if fnErr != nil {
		return snap, fnErr
	}
	return snap, nil
}

func (s *MemoryStore) entry(id string) (*sessionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.sessions[id]
	if !exists {
		return nil, proto.NotFoundf("session %s not found", id)
	}
	return entry, nil
}
