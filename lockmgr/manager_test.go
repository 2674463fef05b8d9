package lockmgr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleettools/squawk/internal/clock"
	"github.com/fleettools/squawk/internal/dbsql"
)

func newTestManager(t *testing.T, clk clock.Clock) *Manager {
	t.Helper()
	db, err := dbsql.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, nil, clk, nil)
}

// TestAcquire_LockTimeout acquires at t=0 with a 100ms timeout;
// conflicting acquire at t=50ms reports the holder; acquire at t=200ms
// (after expiry) succeeds.
func TestAcquire_LockTimeout(t *testing.T) {
	frozen := &clock.Frozen{At: time.Unix(0, 0)}
	mgr := newTestManager(t, frozen)
	ctx := context.Background()

	res, err := mgr.Acquire(ctx, "f.go", "specialist-a", 100*time.Millisecond, PurposeEdit, nil)
	require.NoError(t, err)
	require.False(t, res.Conflict)

	frozen.At = frozen.At.Add(50 * time.Millisecond)
	res2, err := mgr.Acquire(ctx, "f.go", "specialist-b", 100*time.Millisecond, PurposeEdit, nil)
	require.NoError(t, err)
	require.True(t, res2.Conflict)
	assert.Equal(t, "specialist-a", res2.ExistingLock.ReservedBy)

	frozen.At = time.Unix(0, 0).Add(200 * time.Millisecond)
	res3, err := mgr.Acquire(ctx, "f.go", "specialist-b", 100*time.Millisecond, PurposeEdit, nil)
	require.NoError(t, err)
	assert.False(t, res3.Conflict)
}

func TestAcquire_AllPurposesExclusive(t *testing.T) {
	tests := []struct {
		name    string
		first   Purpose
		second  Purpose
	}{
		{"edit vs edit", PurposeEdit, PurposeEdit},
		{"edit vs read", PurposeEdit, PurposeRead},
		{"read vs read", PurposeRead, PurposeRead},
		{"read vs delete", PurposeRead, PurposeDelete},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mgr := newTestManager(t, clock.System{})
			ctx := context.Background()

			_, err := mgr.Acquire(ctx, "shared.go", "a", time.Minute, tc.first, nil)
			require.NoError(t, err)

			res, err := mgr.Acquire(ctx, "shared.go", "b", time.Minute, tc.second, nil)
			require.NoError(t, err)
			assert.True(t, res.Conflict, "all purposes are mutually exclusive")
		})
	}
}

func TestReleaseExpired(t *testing.T) {
	frozen := &clock.Frozen{At: time.Now()}
	mgr := newTestManager(t, frozen)
	ctx := context.Background()

	res, err := mgr.Acquire(ctx, "f.go", "a", 10*time.Millisecond, PurposeEdit, nil)
	require.NoError(t, err)

	frozen.At = frozen.At.Add(time.Second)
	n, err := mgr.ReleaseExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	active, err := mgr.GetActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	// Releasing an already-expired lock succeeds idempotently.
	ok, err := mgr.Release(ctx, res.Lock.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRelease_UnknownID(t *testing.T) {
	mgr := newTestManager(t, clock.System{})
	ok, err := mgr.Release(context.Background(), "lock-does-not-exist")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAcquire_IgnoredPath(t *testing.T) {
	mgr := newTestManager(t, clock.System{})
	_, err := mgr.Acquire(context.Background(), "vendor/pkg/file.go", "a", time.Minute, PurposeEdit, nil)
	assert.ErrorIs(t, err, ErrIgnoredPath)
}
