package conflict

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleettools/squawk/eventstore"
	"github.com/fleettools/squawk/internal/clock"
	"github.com/fleettools/squawk/internal/dbsql"
	"github.com/fleettools/squawk/specialists"
)

func newSweepFixtures(t *testing.T, clk clock.Clock) (*specialists.Registry, *eventstore.Store) {
	t.Helper()
	db, err := dbsql.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	events := eventstore.New(db, nil, clk)
	registry := specialists.New(db, events, clk)
	return registry, events
}

func TestSweeper_EmitsOncePerSubjectEpisode(t *testing.T) {
	frozen := clock.Frozen{At: time.Unix(0, 0)}
	registry, events := newSweepFixtures(t, frozen)
	ctx := context.Background()

	a, err := registry.Register(ctx, "agent-a", []string{"backend"})
	require.NoError(t, err)
	b, err := registry.Register(ctx, "agent-b", []string{"backend"})
	require.NoError(t, err)

	require.NoError(t, registry.SetCurrentSortie(ctx, a.ID, "srt-shared"))
	require.NoError(t, registry.SetCurrentSortie(ctx, b.ID, "srt-shared"))

	sweeper := NewSweeper(registry, events, frozen, time.Second, SeverityMedium, nil)

	require.NoError(t, sweeper.sweep(ctx))
	require.NoError(t, sweeper.sweep(ctx))

	got, err := events.QueryByType(ctx, "conflict.detected")
	require.NoError(t, err)
	assert.Len(t, got, 1, "repeated sweeps over the same unresolved overlap emit only once")
}

func TestSweeper_ReEmitsAfterSubjectClearsAndRecurs(t *testing.T) {
	frozen := clock.Frozen{At: time.Unix(0, 0)}
	registry, events := newSweepFixtures(t, frozen)
	ctx := context.Background()

	a, err := registry.Register(ctx, "agent-a", []string{"backend"})
	require.NoError(t, err)
	b, err := registry.Register(ctx, "agent-b", []string{"backend"})
	require.NoError(t, err)

	require.NoError(t, registry.SetCurrentSortie(ctx, a.ID, "srt-shared"))
	require.NoError(t, registry.SetCurrentSortie(ctx, b.ID, "srt-shared"))

	sweeper := NewSweeper(registry, events, frozen, time.Second, SeverityMedium, nil)
	require.NoError(t, sweeper.sweep(ctx))

	require.NoError(t, registry.SetCurrentSortie(ctx, b.ID, ""))
	require.NoError(t, sweeper.sweep(ctx))

	require.NoError(t, registry.SetCurrentSortie(ctx, b.ID, "srt-shared"))
	require.NoError(t, sweeper.sweep(ctx))

	got, err := events.QueryByType(ctx, "conflict.detected")
	require.NoError(t, err)
	assert.Len(t, got, 2, "the overlap clearing and recurring emits a second time")
}

func TestSweeper_NoConflictEmitsNothing(t *testing.T) {
	frozen := clock.Frozen{At: time.Unix(0, 0)}
	registry, events := newSweepFixtures(t, frozen)
	ctx := context.Background()

	_, err := registry.Register(ctx, "agent-a", []string{"backend"})
	require.NoError(t, err)

	sweeper := NewSweeper(registry, events, frozen, time.Second, SeverityMedium, nil)
	require.NoError(t, sweeper.sweep(ctx))

	got, err := events.QueryByType(ctx, "conflict.detected")
	require.NoError(t, err)
	assert.Empty(t, got)
}
