// Package retention implements the fifth background worker: a cron
// schedule that prunes aged-out metrics, conflict, and alert rows,
// distinct from checkpoint.Pruner (worker 4) which has its own
// retention window and storage shape. Built on the same
// cron.New()+AddFunc structure as checkpoint.Pruner.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"

	"github.com/fleettools/squawk/internal/clock"
)

// DefaultSchedule matches checkpoint.DefaultRetentionSchedule: once a
// day, off-peak.
const DefaultSchedule = "0 3 * * *"

// Windows bundles the three independently configurable retention
// periods: metrics_retention_days, conflict_retention_days, and
// alert_retention_days.
type Windows struct {
	Metrics  time.Duration
	Conflict time.Duration
	Alert    time.Duration
}

// DefaultWindows is 30 days for metrics/conflicts, 90 for alerts —
// alerts are kept longer since they feed incident review.
func DefaultWindows() Windows {
	return Windows{
		Metrics:  30 * 24 * time.Hour,
		Conflict: 30 * 24 * time.Hour,
		Alert:    90 * 24 * time.Hour,
	}
}

// metricsEventTypes are the event_type values counted as operational
// metrics: heartbeat and progress telemetry posted by agentrunner and
// recorded by the coordinator.
var metricsEventTypes = []string{"specialist.heartbeat_received", "sortie.progress"}

// alertEventType is the event_type raised when a specialist misses its
// heartbeat window.
const alertEventType = "specialist.missed_heartbeat"

// Pruner deletes aged-out rows from the `events` and `conflicts` tables
// on a cron schedule.
type Pruner struct {
	db      *sqlx.DB
	clock   clock.Clock
	windows Windows
	logger  *slog.Logger
	cron    *cron.Cron
}

// NewPruner creates a Pruner. schedule is a standard 5-field cron
// expression; an empty string defaults to DefaultSchedule.
func NewPruner(db *sqlx.DB, clk clock.Clock, windows Windows, schedule string, logger *slog.Logger) (*Pruner, error) {
	if clk == nil {
		clk = clock.System{}
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pruner{db: db, clock: clk, windows: windows, logger: logger, cron: cron.New()}
	if _, err := p.cron.AddFunc(schedule, p.runOnce); err != nil {
		return nil, err
	}
	return p, nil
}

// Start begins the cron schedule in the background.
func (p *Pruner) Start() {
	p.cron.Start()
}

// Stop halts the schedule, waiting for any in-flight run to finish.
func (p *Pruner) Stop() {
	<-p.cron.Stop().Done()
}

func (p *Pruner) runOnce() {
	ctx := context.Background()
	metrics, err := p.PruneMetrics(ctx)
	if err != nil {
		p.logger.Warn("metrics retention prune failed", slog.String("error", err.Error()))
	} else if metrics > 0 {
		p.logger.Info("pruned expired metrics events", slog.Int("count", metrics))
	}

	conflicts, err := p.PruneConflicts(ctx)
	if err != nil {
		p.logger.Warn("conflict retention prune failed", slog.String("error", err.Error()))
	} else if conflicts > 0 {
		p.logger.Info("pruned expired conflicts", slog.Int("count", conflicts))
	}

	alerts, err := p.PruneAlerts(ctx)
	if err != nil {
		p.logger.Warn("alert retention prune failed", slog.String("error", err.Error()))
	} else if alerts > 0 {
		p.logger.Info("pruned expired alert events", slog.Int("count", alerts))
	}
}

// PruneMetrics removes heartbeat/progress events older than
// windows.Metrics.
func (p *Pruner) PruneMetrics(ctx context.Context) (int, error) {
	return p.deleteEventsOlderThan(ctx, metricsEventTypes, p.windows.Metrics)
}

// PruneAlerts removes missed-heartbeat events older than windows.Alert.
func (p *Pruner) PruneAlerts(ctx context.Context) (int, error) {
	return p.deleteEventsOlderThan(ctx, []string{alertEventType}, p.windows.Alert)
}

func (p *Pruner) deleteEventsOlderThan(ctx context.Context, eventTypes []string, maxAge time.Duration) (int, error) {
	cutoff := p.clock.Now().Add(-maxAge)
	query, args, err := sqlx.In(`DELETE FROM events WHERE event_type IN (?) AND recorded_at < ?`, eventTypes, cutoff)
	if err != nil {
		return 0, err
	}
	res, err := p.db.ExecContext(ctx, p.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// PruneConflicts removes rows from the relational conflicts table
// (detected_at older than windows.Conflict) and the matching
// conflict.detected events, keeping both representations in sync.
func (p *Pruner) PruneConflicts(ctx context.Context) (int, error) {
	cutoff := p.clock.Now().Add(-p.windows.Conflict)

	res, err := p.db.ExecContext(ctx, `DELETE FROM conflicts WHERE detected_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()

	if _, err := p.db.ExecContext(ctx, `DELETE FROM events WHERE stream_type = 'conflict' AND recorded_at < ?`, cutoff); err != nil {
		return int(n), err
	}
	return int(n), nil
}
