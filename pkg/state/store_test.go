package state

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"northstar/pkg/proposal"
	"northstar/pkg/proto"
)

func newSession(t *testing.T, store *MemoryStore, id string) *proposal.State {
	t.Helper()
	st := proposal.New(id, "request", time.Now())
	require.NoError(t, store.Create(st))
	return st
}

func TestCreateAndSnapshot(t *testing.T) {
	store := NewMemoryStore()
	newSession(t, store, "sess-1")

	snap, err := store.Snapshot("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", snap.SessionID)
	assert.Equal(t, proto.StageIntake, snap.CurrentStep)
}

func TestCreateDuplicateFails(t *testing.T) {
	store := NewMemoryStore()
	newSession(t, store, "sess-1")

	err := store.Create(proposal.New("sess-1", "again", time.Now()))
	assert.Error(t, err)
}

func TestSnapshotUnknownSession(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Snapshot("nope")
	assert.Equal(t, proto.KindNotFound, proto.KindOf(err))
}

func TestUpdatePublishesSnapshot(t *testing.T) {
	store := NewMemoryStore()
	newSession(t, store, "sess-1")

	snap, err := store.Update("sess-1", func(st *proposal.State) error {
		st.CollectedFields[proposal.FieldClientName] = "Acme Corp"
		st.RecomputeMissing()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", snap.CollectedFields[proposal.FieldClientName])

	// Reads observe the published effect.
	read, err := store.Snapshot("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", read.CollectedFields[proposal.FieldClientName])
}

func TestSnapshotStableWithoutMutation(t *testing.T) {
	store := NewMemoryStore()
	newSession(t, store, "sess-1")

	first, err := store.Snapshot("sess-1")
	require.NoError(t, err)
	second, err := store.Snapshot("sess-1")
	require.NoError(t, err)

	// Same published snapshot until the next mutation.
	assert.Same(t, first, second)
}

func TestUpdateErrorStillPublishesAudit(t *testing.T) {
	store := NewMemoryStore()
	newSession(t, store, "sess-1")

	boom := errors.New("enrichment down")
	snap, err := store.Update("sess-1", func(st *proposal.State) error {
		st.AppendAudit(time.Now(), "pricing service failed")
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, snap.AuditLog, 1)

	read, readErr := store.Snapshot("sess-1")
	require.NoError(t, readErr)
	assert.Len(t, read.AuditLog, 1)
}

func TestListOrderedByCreation(t *testing.T) {
	store := NewMemoryStore()
	base := time.Now()
	require.NoError(t, store.Create(proposal.New("sess-b", "r", base.Add(time.Second))))
	require.NoError(t, store.Create(proposal.New("sess-a", "r", base)))

	list := store.List()
	require.Len(t, list, 2)
	assert.Equal(t, "sess-a", list[0].SessionID)
	assert.Equal(t, "sess-b", list[1].SessionID)
}

// Concurrent updates on one session must serialize: the second observes the
// first's completed effect, never a half-applied one.
func TestConcurrentUpdatesSerialize(t *testing.T) {
	store := NewMemoryStore()
	newSession(t, store, "sess-1")

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := store.Update("sess-1", func(st *proposal.State) error {
					st.AppendAudit(time.Now(), "tick")
					return nil
				})
				if err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	snap, err := store.Snapshot("sess-1")
	require.NoError(t, err)
	assert.Len(t, snap.AuditLog, workers*perWorker)
}

type recordingSink struct {
	mu    sync.Mutex
	count int
}

func (r *recordingSink) Persist(_ *proposal.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
}

func TestSinkReceivesEveryMutation(t *testing.T) {
	store := NewMemoryStore()
	sink := &recordingSink{}
	store.SetSink(sink)

	newSession(t, store, "sess-1")
	_, err := store.Update("sess-1", func(st *proposal.State) error { return nil })
	require.NoError(t, err)

	assert.Equal(t, 2, sink.count) // create + update
}
