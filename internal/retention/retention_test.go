package retention

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleettools/squawk/internal/clock"
	"github.com/fleettools/squawk/internal/dbsql"
)

func TestPruneMetrics_RemovesOldHeartbeatAndProgressEvents(t *testing.T) {
	db, err := dbsql.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	old := time.Unix(1000, 0)
	fresh := time.Unix(10000, 0)
	_, err = db.ExecContext(ctx, `INSERT INTO events (sequence_number, event_id, event_type, stream_type, stream_id, data, occurred_at, recorded_at) VALUES
		(1, 'e1', 'specialist.heartbeat_received', 'specialist', 'spc-1', '{}', ?, ?),
		(2, 'e2', 'sortie.progress', 'sortie', 'srt-1', '{}', ?, ?),
		(3, 'e3', 'sortie.progress', 'sortie', 'srt-1', '{}', ?, ?),
		(4, 'e4', 'mission.updated', 'mission', 'msn-1', '{}', ?, ?)`,
		old, old, old, old, fresh, fresh, old, old)
	require.NoError(t, err)

	frozen := clock.Frozen{At: time.Unix(20000, 0)}
	p, err := NewPruner(db, frozen, Windows{Metrics: time.Hour}, "", nil)
	require.NoError(t, err)

	n, err := p.PruneMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "both old heartbeat/progress rows pruned, fresh progress and unrelated type kept")

	var remaining int
	require.NoError(t, db.GetContext(ctx, &remaining, `SELECT COUNT(*) FROM events`))
	assert.Equal(t, 2, remaining)
}

func TestPruneAlerts_RemovesOldMissedHeartbeatEvents(t *testing.T) {
	db, err := dbsql.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	old := time.Unix(1000, 0)
	_, err = db.ExecContext(ctx, `INSERT INTO events (sequence_number, event_id, event_type, stream_type, stream_id, data, occurred_at, recorded_at) VALUES
		(1, 'e1', 'specialist.missed_heartbeat', 'specialist', 'spc-1', '{}', ?, ?)`, old, old)
	require.NoError(t, err)

	frozen := clock.Frozen{At: time.Unix(20000, 0)}
	p, err := NewPruner(db, frozen, Windows{Alert: time.Hour}, "", nil)
	require.NoError(t, err)

	n, err := p.PruneAlerts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPruneConflicts_RemovesFromBothTableAndEventLog(t *testing.T) {
	db, err := dbsql.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	old := time.Unix(1000, 0)
	_, err = db.ExecContext(ctx, `INSERT INTO conflicts (id, type, description, severity, detected_at) VALUES ('cft-1', 'resource', 'x', 'medium', ?)`, old)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO events (sequence_number, event_id, event_type, stream_type, stream_id, data, occurred_at, recorded_at) VALUES
		(1, 'e1', 'conflict.detected', 'conflict', 'cft-1', '{}', ?, ?)`, old, old)
	require.NoError(t, err)

	frozen := clock.Frozen{At: time.Unix(20000, 0)}
	p, err := NewPruner(db, frozen, Windows{Conflict: time.Hour}, "", nil)
	require.NoError(t, err)

	n, err := p.PruneConflicts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var conflictCount, eventCount int
	require.NoError(t, db.GetContext(ctx, &conflictCount, `SELECT COUNT(*) FROM conflicts`))
	require.NoError(t, db.GetContext(ctx, &eventCount, `SELECT COUNT(*) FROM events WHERE stream_type = 'conflict'`))
	assert.Equal(t, 0, conflictCount)
	assert.Equal(t, 0, eventCount)
}

func TestNewPruner_RejectsInvalidSchedule(t *testing.T) {
	db, err := dbsql.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = NewPruner(db, clock.System{}, DefaultWindows(), "not a cron expr", nil)
	assert.Error(t, err)
}
