package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fleettools/squawk/internal/clock"
	"github.com/fleettools/squawk/internal/ids"
	"github.com/fleettools/squawk/internal/metrics"
)

// ErrNotFound mirrors the rest of the store packages' sql.ErrNoRows reuse.
var ErrNotFound = sql.ErrNoRows

// Store is the Checkpoint Engine (C9): a dual write of every checkpoint
// to the relational `checkpoints` table and a JSON file backup under
// datadir, with a `latest.json` pointer per mission. Either side
// surviving suffices to rebuild a mission; no reconciliation pass runs
// between the two — see DESIGN.md.
type Store struct {
	db      *sqlx.DB
	clock   clock.Clock
	datadir string
}

// New creates a Store. datadir is the root under which
// `checkpoints/{id}.json` and `checkpoints/latest-{mission_id}.json`
// live; it is created on first Save if missing.
func New(db *sqlx.DB, clk clock.Clock, datadir string) *Store {
	if clk == nil {
		clk = clock.System{}
	}
	return &Store{db: db, clock: clk, datadir: datadir}
}

func (s *Store) checkpointDir() string {
	return filepath.Join(s.datadir, "checkpoints")
}

func (s *Store) checkpointPath(id string) string {
	return filepath.Join(s.checkpointDir(), id+".json")
}

func (s *Store) latestPointerPath(missionID string) string {
	return filepath.Join(s.checkpointDir(), "latest-"+missionID+".json")
}

// Save builds and persists a checkpoint. It assigns c.ID, c.Timestamp,
// and c.Version, then writes the relational row and the file backup;
// either write failing independently does not roll back the other —
// this is a best-effort dual write, not a transaction.
func (s *Store) Save(ctx context.Context, c *Checkpoint) error {
	c.ID = ids.New(ids.Checkpoint)
	c.Timestamp = s.clock.Now()
	c.Version = 1
	if c.Metadata == nil {
		c.Metadata = json.RawMessage("{}")
	}
	if err := c.marshalInto(); err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	var relErr, fileErr error
	if _, err := s.db.NamedExecContext(ctx, `
		INSERT INTO checkpoints (
			id, mission_id, timestamp, trigger, trigger_details,
			progress_percent, sorties, active_locks, pending_messages,
			recovery_context, created_by, expires_at, consumed_at, version, metadata
		) VALUES (
			:id, :mission_id, :timestamp, :trigger, :trigger_details,
			:progress_percent, :sorties, :active_locks, :pending_messages,
			:recovery_context, :created_by, :expires_at, :consumed_at, :version, :metadata
		)`, c); err != nil {
		relErr = fmt.Errorf("insert checkpoint row: %w", err)
	}

	if err := s.writeFileBackup(c); err != nil {
		fileErr = fmt.Errorf("write checkpoint file: %w", err)
	}

	if relErr != nil && fileErr != nil {
		return fmt.Errorf("both checkpoint writes failed: %v; %v", relErr, fileErr)
	}
	metrics.CheckpointsCreated.WithLabelValues(string(c.Trigger)).Inc()
	return nil
}

// writeFileBackup writes {id}.json and atomically updates the
// mission's latest pointer via write-temp-then-rename: os.Rename on the
// same filesystem gives the atomic "latest" pointer update for free.
func (s *Store) writeFileBackup(c *Checkpoint) error {
	dir := s.checkpointDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint json: %w", err)
	}

	path := s.checkpointPath(c.ID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint file: %w", err)
	}

	tmp := s.latestPointerPath(c.MissionID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write latest pointer temp file: %w", err)
	}
	if err := os.Rename(tmp, s.latestPointerPath(c.MissionID)); err != nil {
		return fmt.Errorf("update latest pointer: %w", err)
	}
	return nil
}

// GetLatest returns the most recent, unconsumed checkpoint for
// missionID, preferring the relational row and falling back to the
// file-backed pointer if the row is gone.
func (s *Store) GetLatest(ctx context.Context, missionID string) (*Checkpoint, error) {
	var c Checkpoint
	err := s.db.GetContext(ctx, &c, `
		SELECT * FROM checkpoints
		WHERE mission_id = ? AND consumed_at IS NULL
		ORDER BY timestamp DESC LIMIT 1`, missionID)
	if err == nil {
		if uerr := c.unmarshalFrom(); uerr != nil {
			return nil, fmt.Errorf("unmarshal checkpoint: %w", uerr)
		}
		return &c, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("query latest checkpoint: %w", err)
	}

	return s.readLatestFromFile(missionID)
}

// readLatestFromFile loads and schema-validates the latest pointer file
// for a mission, used when the relational row is missing: reading the
// file backup after deleting the relational row still returns the
// checkpoint.
func (s *Store) readLatestFromFile(missionID string) (*Checkpoint, error) {
	data, err := os.ReadFile(s.latestPointerPath(missionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read latest pointer: %w", err)
	}

	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("checkpoint file schema violation: %w", err)
	}
	if c.ID == "" || c.MissionID == "" {
		return nil, fmt.Errorf("checkpoint file schema violation: missing id or mission_id")
	}
	return &c, nil
}

// Get returns a single checkpoint by id from the relational store.
func (s *Store) Get(ctx context.Context, id string) (*Checkpoint, error) {
	var c Checkpoint
	if err := s.db.GetContext(ctx, &c, `SELECT * FROM checkpoints WHERE id = ?`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	if err := c.unmarshalFrom(); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &c, nil
}

// Consume marks a checkpoint consumed; once set, ConsumedAt never
// unsets.
func (s *Store) Consume(ctx context.Context, id string) error {
	now := s.clock.Now()
	res, err := s.db.ExecContext(ctx, `UPDATE checkpoints SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL`, now, id)
	if err != nil {
		return fmt.Errorf("consume checkpoint: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a checkpoint's relational row; its file backup is left
// in place deliberately, so GetLatest's file fallback keeps working
//.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// PruneExpired deletes every checkpoint whose expires_at has passed (or
// whose age exceeds maxAge when expires_at is unset), returning the
// count removed. File backups are left in place, same as Delete.
func (s *Store) PruneExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	now := s.clock.Now()
	cutoff := now.Add(-maxAge)
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM checkpoints
		WHERE (expires_at IS NOT NULL AND expires_at < ?)
		   OR (expires_at IS NULL AND timestamp < ?)`, now, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune expired checkpoints: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
