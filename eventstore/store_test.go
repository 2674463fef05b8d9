package eventstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleettools/squawk/internal/dbsql"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := dbsql.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, nil, nil)
}

func TestAppend_SequenceMonotonicWithinStream(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		ev, err := store.Append(ctx, AppendInput{
			EventType:  "sortie.updated",
			StreamType: StreamSortie,
			StreamID:   "srt-1",
		})
		require.NoError(t, err)
		assert.EqualValues(t, i, ev.SequenceNumber)
	}
}

func TestAppend_DifferentStreamsIndependent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.Append(ctx, AppendInput{EventType: "x", StreamType: StreamSortie, StreamID: "srt-a"})
	require.NoError(t, err)
	b, err := store.Append(ctx, AppendInput{EventType: "x", StreamType: StreamSortie, StreamID: "srt-b"})
	require.NoError(t, err)

	assert.EqualValues(t, 1, a.SequenceNumber)
	assert.EqualValues(t, 1, b.SequenceNumber)
}

// TestAppend_ConcurrentSameStream asserts that under concurrent appends
// to the same stream the observed sequence numbers are exactly {1..N},
// no gaps, no duplicates.
func TestAppend_ConcurrentSameStream(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const n = 25
	var wg sync.WaitGroup
	seqs := make([]int64, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			ev, err := store.Append(ctx, AppendInput{
				EventType:  "sortie.progress",
				StreamType: StreamSortie,
				StreamID:   "srt-concurrent",
			})
			errs[idx] = err
			if err == nil {
				seqs[idx] = ev.SequenceNumber
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool, n)
	for i, err := range errs {
		require.NoError(t, err)
		require.False(t, seen[seqs[i]], "duplicate sequence number %d", seqs[i])
		seen[seqs[i]] = true
	}
	for i := int64(1); i <= n; i++ {
		assert.True(t, seen[i], "missing sequence number %d", i)
	}
}

func TestQueryByStream_OrderedAfterSequence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Append(ctx, AppendInput{EventType: "e", StreamType: StreamMission, StreamID: "msn-1"})
		require.NoError(t, err)
	}

	events, err := store.QueryByStream(ctx, StreamMission, "msn-1", 1)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.EqualValues(t, 2, events[0].SequenceNumber)
	assert.EqualValues(t, 3, events[1].SequenceNumber)
}

func TestAdvance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Append(ctx, AppendInput{EventType: "e", StreamType: StreamMission, StreamID: "msn-1"})
	require.NoError(t, err)
	_, err = store.Append(ctx, AppendInput{EventType: "e", StreamType: StreamMission, StreamID: "msn-1"})
	require.NoError(t, err)

	t.Run("advances forward", func(t *testing.T) {
		require.NoError(t, store.Advance(ctx, StreamMission, "msn-1", "consumer-a", 1))
		cur, err := store.GetCursor(ctx, StreamMission, "msn-1", "consumer-a")
		require.NoError(t, err)
		assert.EqualValues(t, 1, cur.Position)
	})

	t.Run("advancing backward is a no-op", func(t *testing.T) {
		require.NoError(t, store.Advance(ctx, StreamMission, "msn-1", "consumer-a", 2))
		require.NoError(t, store.Advance(ctx, StreamMission, "msn-1", "consumer-a", 1))
		cur, err := store.GetCursor(ctx, StreamMission, "msn-1", "consumer-a")
		require.NoError(t, err)
		assert.EqualValues(t, 2, cur.Position)
	})

	t.Run("advancing past latest fails", func(t *testing.T) {
		err := store.Advance(ctx, StreamMission, "msn-1", "consumer-b", 99)
		assert.ErrorIs(t, err, ErrInvalidPosition)
	})
}

func TestGetLatestByStream_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetLatestByStream(context.Background(), StreamMission, "msn-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
