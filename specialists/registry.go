// Package specialists implements the Specialist Registry (C4): identity,
// heartbeat, status, and capabilities, plus a supervised heartbeat
// watcher that classifies stale specialists as unhealthy.
package specialists

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fleettools/squawk/eventstore"
	"github.com/fleettools/squawk/internal/clock"
	"github.com/fleettools/squawk/internal/ids"
	"github.com/fleettools/squawk/internal/metrics"
)

// Status is a specialist's registered lifecycle state. Unhealthy is a
// derived classification from LastSeen, never persisted: a specialist
// whose last_seen is older than the heartbeat timeout is treated as
// inactive for scheduling purposes even if its status has not yet been
// updated.
type Status string

const (
	StatusActive    Status = "active"
	StatusBusy      Status = "busy"
	StatusIdle      Status = "idle"
	StatusInactive  Status = "inactive"
	StatusCompleted Status = "completed"
)

// Specialist is an autonomous worker process ("agent" externally).
type Specialist struct {
	ID             string          `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	Status         Status          `db:"status" json:"status"`
	CapabilitiesJSON string        `db:"capabilities" json:"-"`
	RegisteredAt   time.Time       `db:"registered_at" json:"registered_at"`
	LastSeen       time.Time       `db:"last_seen" json:"last_seen"`
	CurrentSortie  *string         `db:"current_sortie" json:"current_sortie,omitempty"`
	Metadata       json.RawMessage `db:"metadata" json:"metadata"`

	Capabilities []string `db:"-" json:"capabilities"`
}

// ErrNotFound is the sentinel returned for an unknown specialist id.
var ErrNotFound = sql.ErrNoRows

// Registry is the Specialist Registry component.
type Registry struct {
	db     *sqlx.DB
	events *eventstore.Store
	clock  clock.Clock
}

// New creates a Registry.
func New(db *sqlx.DB, events *eventstore.Store, clk clock.Clock) *Registry {
	if clk == nil {
		clk = clock.System{}
	}
	return &Registry{db: db, events: events, clock: clk}
}

// Register creates a new specialist in StatusActive.
func (r *Registry) Register(ctx context.Context, name string, capabilities []string) (*Specialist, error) {
	now := r.clock.Now()
	caps, err := json.Marshal(capabilities)
	if err != nil {
		return nil, fmt.Errorf("marshal capabilities: %w", err)
	}

	s := &Specialist{
		ID:               ids.New(ids.Specialist),
		Name:             name,
		Status:           StatusActive,
		CapabilitiesJSON: string(caps),
		Capabilities:     capabilities,
		RegisteredAt:     now,
		LastSeen:         now,
		Metadata:         json.RawMessage("{}"),
	}

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO specialists (
			id, name, status, capabilities, registered_at, last_seen,
			current_sortie, metadata
		) VALUES (
			:id, :name, :status, :capabilities, :registered_at, :last_seen,
			:current_sortie, :metadata
		)`, s)
	if err != nil {
		return nil, fmt.Errorf("register specialist: %w", err)
	}
	return s, nil
}

// Get returns a specialist by id, with Capabilities decoded and Status
// overridden to StatusInactive if LastSeen exceeds heartbeatTimeout;
// this is a scheduling-time override only — the stored status is
// untouched.
func (r *Registry) Get(ctx context.Context, id string, heartbeatTimeout time.Duration) (*Specialist, error) {
	var s Specialist
	if err := r.db.GetContext(ctx, &s, `SELECT * FROM specialists WHERE id = ?`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get specialist: %w", err)
	}
	if s.CapabilitiesJSON != "" {
		_ = json.Unmarshal([]byte(s.CapabilitiesJSON), &s.Capabilities)
	}
	if r.clock.Now().Sub(s.LastSeen) > heartbeatTimeout {
		s.Status = StatusInactive
	}
	return &s, nil
}

// Active returns every specialist whose persisted status is not
// StatusInactive/StatusCompleted; used by the conflict resolver's
// sweep as its registry snapshot.
func (r *Registry) Active(ctx context.Context) ([]*Specialist, error) {
	var list []*Specialist
	if err := r.db.SelectContext(ctx, &list, `
		SELECT * FROM specialists WHERE status NOT IN (?, ?)`,
		StatusInactive, StatusCompleted); err != nil {
		return nil, fmt.Errorf("list active specialists: %w", err)
	}
	for _, s := range list {
		if s.CapabilitiesJSON != "" {
			_ = json.Unmarshal([]byte(s.CapabilitiesJSON), &s.Capabilities)
		}
	}
	return list, nil
}

// UpdateHeartbeat sets last_seen = now.
func (r *Registry) UpdateHeartbeat(ctx context.Context, id string) error {
	now := r.clock.Now()
	res, err := r.db.ExecContext(ctx, `UPDATE specialists SET last_seen = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update heartbeat rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCurrentSortie assigns or clears (sortieID == "") the specialist's
// in-flight sortie.
func (r *Registry) SetCurrentSortie(ctx context.Context, id, sortieID string) error {
	var ptr *string
	if sortieID != "" {
		ptr = &sortieID
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE specialists SET current_sortie = ? WHERE id = ?`, ptr, id); err != nil {
		return fmt.Errorf("set current sortie: %w", err)
	}
	return nil
}

// emitMissedHeartbeat records specialist.missed_heartbeat, never
// terminating the specialist directly.
func (r *Registry) emitMissedHeartbeat(ctx context.Context, s *Specialist) {
	if r.events == nil {
		return
	}
	data, err := json.Marshal(map[string]any{"specialist_id": s.ID, "name": s.Name, "last_seen": s.LastSeen})
	if err != nil {
		return
	}
	_, _ = r.events.Append(ctx, eventstore.AppendInput{
		EventType:  "specialist.missed_heartbeat",
		StreamType: eventstore.StreamSpecialist,
		StreamID:   s.ID,
		Data:       data,
	})
}

// HeartbeatWatcher is the supervised worker classifying specialists
// unhealthy after heartbeatTimeout, ticking at heartbeatInterval
// (design default 15s/45s).
type HeartbeatWatcher struct {
	registry *Registry
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	unhealthy map[string]bool
}

// NewHeartbeatWatcher creates a HeartbeatWatcher.
func NewHeartbeatWatcher(registry *Registry, interval, timeout time.Duration, logger *slog.Logger) *HeartbeatWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &HeartbeatWatcher{registry: registry, interval: interval, timeout: timeout, logger: logger, unhealthy: make(map[string]bool)}
}

// Run blocks, sweeping on each tick, until ctx is cancelled.
func (w *HeartbeatWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				w.logger.Warn("heartbeat sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// sweep classifies specialists and emits a missed-heartbeat event for
// each newly-unhealthy one; the classification flips back within one
// sweep of a fresh heartbeat, tracked in-memory so
// the event fires exactly once per unhealthy episode rather than once
// per tick.
func (w *HeartbeatWatcher) sweep(ctx context.Context) error {
	list, err := w.registry.Active(ctx)
	if err != nil {
		return err
	}
	now := w.registry.clock.Now()
	healthy := 0
	for _, s := range list {
		isUnhealthy := now.Sub(s.LastSeen) > w.timeout
		wasUnhealthy := w.unhealthy[s.ID]
		switch {
		case isUnhealthy && !wasUnhealthy:
			w.unhealthy[s.ID] = true
			w.registry.emitMissedHeartbeat(ctx, s)
		case !isUnhealthy && wasUnhealthy:
			delete(w.unhealthy, s.ID)
		}
		if !isUnhealthy {
			healthy++
		}
	}
	metrics.SpecialistsActive.Set(float64(healthy))
	return nil
}
