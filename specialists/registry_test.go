package specialists

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleettools/squawk/internal/clock"
	"github.com/fleettools/squawk/internal/dbsql"
)

func newTestRegistry(t *testing.T, clk clock.Clock) *Registry {
	t.Helper()
	db, err := dbsql.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, nil, clk)
}

// TestHeartbeatClassification asserts a specialist whose last_seen
// exceeds the heartbeat timeout is classified unhealthy; a fresh
// heartbeat flips it back.
func TestHeartbeatClassification(t *testing.T) {
	frozen := &clock.Frozen{At: time.Unix(0, 0)}
	registry := newTestRegistry(t, frozen)
	ctx := context.Background()

	s, err := registry.Register(ctx, "frontend-x", []string{"frontend"})
	require.NoError(t, err)

	got, err := registry.Get(ctx, s.ID, 45*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)

	frozen.At = frozen.At.Add(46 * time.Second)
	got, err = registry.Get(ctx, s.ID, 45*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, got.Status, "stale last_seen overrides status for scheduling")

	require.NoError(t, registry.UpdateHeartbeat(ctx, s.ID))
	got, err = registry.Get(ctx, s.ID, 45*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
}

func TestHeartbeatWatcher_SweepEmitsOncePerEpisode(t *testing.T) {
	frozen := &clock.Frozen{At: time.Unix(0, 0)}
	registry := newTestRegistry(t, frozen)
	ctx := context.Background()

	s, err := registry.Register(ctx, "backend-y", []string{"backend"})
	require.NoError(t, err)

	watcher := NewHeartbeatWatcher(registry, time.Second, 45*time.Second, nil)

	require.NoError(t, watcher.sweep(ctx))
	assert.False(t, watcher.unhealthy[s.ID])

	frozen.At = frozen.At.Add(time.Minute)
	require.NoError(t, watcher.sweep(ctx))
	assert.True(t, watcher.unhealthy[s.ID])

	require.NoError(t, registry.UpdateHeartbeat(ctx, s.ID))
	require.NoError(t, watcher.sweep(ctx))
	assert.False(t, watcher.unhealthy[s.ID])
}
