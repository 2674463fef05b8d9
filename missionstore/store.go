package missionstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fleettools/squawk/eventstore"
	"github.com/fleettools/squawk/internal/clock"
	"github.com/fleettools/squawk/internal/ids"
	"github.com/fleettools/squawk/internal/metrics"
)

// ErrNotFound is returned when a mission or sortie lookup finds nothing.
var ErrNotFound = sql.ErrNoRows

// Store is the Mission/Sortie Store component (C3).
type Store struct {
	db     *sqlx.DB
	events *eventstore.Store
	clock  clock.Clock
}

// New creates a Store. events may be nil to disable event emission (tests).
func New(db *sqlx.DB, events *eventstore.Store, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.System{}
	}
	return &Store{db: db, events: events, clock: clk}
}

// CreateMission inserts a new mission in MissionPending status.
func (s *Store) CreateMission(ctx context.Context, m *Mission) error {
	m.ID = ids.New(ids.Mission)
	m.Status = MissionPending
	m.CreatedAt = s.clock.Now()
	if m.Metadata == nil {
		m.Metadata = json.RawMessage("{}")
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO missions (
			id, title, description, strategy, status, priority, created_at,
			started_at, completed_at, total_sorties, completed_sorties,
			result, metadata
		) VALUES (
			:id, :title, :description, :strategy, :status, :priority, :created_at,
			:started_at, :completed_at, :total_sorties, :completed_sorties,
			:result, :metadata
		)`, m)
	if err != nil {
		return fmt.Errorf("create mission: %w", err)
	}
	metrics.MissionsSubmitted.Inc()
	return nil
}

// GetMission returns a mission by id.
func (s *Store) GetMission(ctx context.Context, id string) (*Mission, error) {
	var m Mission
	if err := s.db.GetContext(ctx, &m, `SELECT * FROM missions WHERE id = ?`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get mission: %w", err)
	}
	return &m, nil
}

// ListMissions returns every mission, newest first.
func (s *Store) ListMissions(ctx context.Context) ([]*Mission, error) {
	var missions []*Mission
	if err := s.db.SelectContext(ctx, &missions, `SELECT * FROM missions ORDER BY created_at DESC`); err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	return missions, nil
}

// UpdateMissionStatus transitions a mission's status, enforcing the
// monotone-except-cancelled rule, and emits mission.updated.
func (s *Store) UpdateMissionStatus(ctx context.Context, id string, status MissionStatus) error {
	m, err := s.GetMission(ctx, id)
	if err != nil {
		return err
	}
	if m.Status == MissionCompleted && status != MissionCompleted {
		return fmt.Errorf("mission %s: cannot transition out of completed", id)
	}
	now := s.clock.Now()
	m.Status = status
	switch status {
	case MissionInProgress:
		if m.StartedAt == nil {
			m.StartedAt = &now
		}
	case MissionCompleted, MissionCancelled:
		m.CompletedAt = &now
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE missions SET status = ?, started_at = ?, completed_at = ? WHERE id = ?`,
		m.Status, m.StartedAt, m.CompletedAt, id,
	); err != nil {
		return fmt.Errorf("update mission status: %w", err)
	}

	s.emitMissionUpdated(ctx, m)
	return nil
}

// IncrementCompletedSorties bumps completed_sorties by one, clamped to
// total_sorties (invariant: completed_sorties <= total_sorties).
func (s *Store) IncrementCompletedSorties(ctx context.Context, missionID string) error {
	m, err := s.GetMission(ctx, missionID)
	if err != nil {
		return err
	}
	if m.CompletedSorties < m.TotalSorties {
		m.CompletedSorties++
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE missions SET completed_sorties = ? WHERE id = ?`,
		m.CompletedSorties, missionID); err != nil {
		return fmt.Errorf("increment completed sorties: %w", err)
	}
	s.emitMissionUpdated(ctx, m)
	return nil
}

func (s *Store) emitMissionUpdated(ctx context.Context, m *Mission) {
	if s.events == nil {
		return
	}
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	_, _ = s.events.Append(ctx, eventstore.AppendInput{
		EventType:  "mission.updated",
		StreamType: eventstore.StreamMission,
		StreamID:   m.ID,
		Data:       data,
	})
}

// CreateSortie inserts a sortie belonging to missionID in SortiePending status.
// If sortie.ID is already set (the decomposition pipeline pre-assigns ids so
// it can wire Dependencies before any row exists), that id is kept as-is.
func (s *Store) CreateSortie(ctx context.Context, sortie *Sortie, missionID string) error {
	if sortie.ID == "" {
		sortie.ID = ids.New(ids.Sortie)
	}
	sortie.MissionID = &missionID
	sortie.Status = SortiePending
	if sortie.Metadata == nil {
		sortie.Metadata = json.RawMessage("{}")
	}
	if err := sortie.marshalSets(); err != nil {
		return fmt.Errorf("marshal sortie sets: %w", err)
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO sorties (
			id, mission_id, title, description, status, priority, assigned_to,
			files, dependencies, progress, progress_notes, started_at,
			completed_at, blocked_by, blocked_reason, result, complexity,
			estimated_effort_hours, metadata
		) VALUES (
			:id, :mission_id, :title, :description, :status, :priority, :assigned_to,
			:files, :dependencies, :progress, :progress_notes, :started_at,
			:completed_at, :blocked_by, :blocked_reason, :result, :complexity,
			:estimated_effort_hours, :metadata
		)`, sortie)
	if err != nil {
		return fmt.Errorf("create sortie: %w", err)
	}
	return nil
}

// GetSortie returns a sortie by id with Files/Dependencies decoded.
func (s *Store) GetSortie(ctx context.Context, id string) (*Sortie, error) {
	var sortie Sortie
	if err := s.db.GetContext(ctx, &sortie, `SELECT * FROM sorties WHERE id = ?`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get sortie: %w", err)
	}
	if err := sortie.unmarshalSets(); err != nil {
		return nil, fmt.Errorf("unmarshal sortie sets: %w", err)
	}
	return &sortie, nil
}

// ListSortiesByMission returns every sortie belonging to missionID.
func (s *Store) ListSortiesByMission(ctx context.Context, missionID string) ([]*Sortie, error) {
	var sorties []*Sortie
	if err := s.db.SelectContext(ctx, &sorties, `SELECT * FROM sorties WHERE mission_id = ? ORDER BY id`, missionID); err != nil {
		return nil, fmt.Errorf("list sorties by mission: %w", err)
	}
	for _, sortie := range sorties {
		if err := sortie.unmarshalSets(); err != nil {
			return nil, fmt.Errorf("unmarshal sortie sets: %w", err)
		}
	}
	return sorties, nil
}

// UpdateSortieStatus transitions a sortie's status and emits sortie.updated.
func (s *Store) UpdateSortieStatus(ctx context.Context, id string, status SortieStatus) error {
	sortie, err := s.GetSortie(ctx, id)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	sortie.Status = status
	switch status {
	case SortieInProgress:
		if sortie.StartedAt == nil {
			sortie.StartedAt = &now
		}
	case SortieCompleted, SortieFailed, SortieCancelled:
		sortie.CompletedAt = &now
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE sorties SET status = ?, started_at = ?, completed_at = ? WHERE id = ?`,
		sortie.Status, sortie.StartedAt, sortie.CompletedAt, id,
	); err != nil {
		return fmt.Errorf("update sortie status: %w", err)
	}

	s.emitSortieUpdated(ctx, sortie)
	metrics.SortieStatusTransitions.WithLabelValues(string(status)).Inc()

	if status == SortieCompleted && sortie.MissionID != nil {
		if err := s.IncrementCompletedSorties(ctx, *sortie.MissionID); err != nil {
			return fmt.Errorf("increment completed sorties: %w", err)
		}
	}
	return nil
}

// UpdateProgress sets a sortie's progress and notes, enforcing
// non-decreasing progress while status is non-terminal. progressNotes
// may be nil to leave the existing value.
func (s *Store) UpdateProgress(ctx context.Context, id string, progress int, progressNotes *string) error {
	sortie, err := s.GetSortie(ctx, id)
	if err != nil {
		return err
	}
	if !sortie.Status.IsTerminal() && progress < sortie.Progress {
		return fmt.Errorf("sortie %s: progress must not decrease (%d -> %d)", id, sortie.Progress, progress)
	}
	sortie.Progress = progress
	if progressNotes != nil {
		sortie.ProgressNotes = progressNotes
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE sorties SET progress = ?, progress_notes = ? WHERE id = ?`,
		sortie.Progress, sortie.ProgressNotes, id); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}

	s.emitSortieProgress(ctx, sortie)
	return nil
}

func (s *Store) emitSortieUpdated(ctx context.Context, sortie *Sortie) {
	s.emit(ctx, "sortie.updated", sortie)
}

func (s *Store) emitSortieProgress(ctx context.Context, sortie *Sortie) {
	s.emit(ctx, "sortie.progress", sortie)
}

func (s *Store) emit(ctx context.Context, eventType string, sortie *Sortie) {
	if s.events == nil {
		return
	}
	data, err := json.Marshal(sortie)
	if err != nil {
		return
	}
	_, _ = s.events.Append(ctx, eventstore.AppendInput{
		EventType:  eventType,
		StreamType: eventstore.StreamSortie,
		StreamID:   sortie.ID,
		Data:       data,
	})
}
