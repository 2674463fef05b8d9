// Package lockmgr implements the file-granularity advisory Lock Manager
// (C2): normalize -> single critical-section check -> insert, with a
// supervised expiry reaper. Only this package mutates the locks table
//.
package lockmgr

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/jmoiron/sqlx"

	"github.com/fleettools/squawk/eventstore"
	"github.com/fleettools/squawk/internal/clock"
	"github.com/fleettools/squawk/internal/ids"
)

// DefaultIgnorePatterns is the default set of paths a lock or codebase
// scan never touches, matched via doublestar so the codebase analyzer
// and the lock manager share one glob matcher instead of two
// hand-rolled ones.
var DefaultIgnorePatterns = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/dist/**",
	"**/build/**",
	"**/__pycache__/**",
	"**/target/**",
}

// Manager is the Lock Manager component.
type Manager struct {
	db      *sqlx.DB
	events  *eventstore.Store
	ignore  []string
	clock   clock.Clock

	mu sync.Mutex // serializes the acquire critical section
}

// New creates a Manager. ignore overrides DefaultIgnorePatterns when non-nil.
func New(db *sqlx.DB, events *eventstore.Store, clk clock.Clock, ignore []string) *Manager {
	if clk == nil {
		clk = clock.System{}
	}
	if ignore == nil {
		ignore = DefaultIgnorePatterns
	}
	return &Manager{db: db, events: events, clock: clk, ignore: ignore}
}

// normalize resolves file to an absolute, symlink-resolved path.
// Symlink resolution is best-effort: a file that does not yet exist
// (common for not-yet-created output files) falls back to the
// absolute path unresolved.
func normalize(file string) (string, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return abs, nil
	}
	return resolved, nil
}

func (m *Manager) isIgnored(normalizedPath string) bool {
	for _, pattern := range m.ignore {
		if ok, _ := doublestar.Match(pattern, normalizedPath); ok {
			return true
		}
	}
	return false
}

// Acquire never blocks; callers implementing retry do so externally
// with backoff.
func (m *Manager) Acquire(ctx context.Context, file, specialistID string, timeout time.Duration, purpose Purpose, checksum *string) (*AcquireResult, error) {
	normalized, err := normalize(file)
	if err != nil {
		return nil, err
	}
	if m.isIgnored(normalized) {
		return nil, ErrIgnoredPath
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()

	existing, err := m.activeByNormalizedPath(ctx, normalized, now)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &AcquireResult{Conflict: true, ExistingLock: existing}, nil
	}

	lock := &Lock{
		ID:             ids.New(ids.Lock),
		File:           file,
		NormalizedPath: normalized,
		ReservedBy:     specialistID,
		Purpose:        purpose,
		ReservedAt:     now,
		ExpiresAt:      now.Add(timeout),
		Status:         StatusActive,
		Metadata:       "{}",
	}
	if checksum != nil {
		lock.Checksum = checksum
	}

	if _, err := m.db.NamedExecContext(ctx, `
		INSERT INTO locks (
			id, file, normalized_path, reserved_by, purpose, reserved_at,
			expires_at, released_at, checksum, status, metadata
		) VALUES (
			:id, :file, :normalized_path, :reserved_by, :purpose, :reserved_at,
			:expires_at, :released_at, :checksum, :status, :metadata
		)`, lock); err != nil {
		return nil, fmt.Errorf("insert lock: %w", err)
	}

	return &AcquireResult{Conflict: false, Lock: lock}, nil
}

func (m *Manager) activeByNormalizedPath(ctx context.Context, normalizedPath string, now time.Time) (*Lock, error) {
	var lock Lock
	err := m.db.GetContext(ctx, &lock, `
		SELECT * FROM locks
		WHERE normalized_path = ? AND status = ? AND expires_at > ?
		ORDER BY reserved_at DESC LIMIT 1`,
		normalizedPath, StatusActive, now,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query active lock: %w", err)
	}
	return &lock, nil
}

// Release transitions id to released. Unknown ids return false, no
// error; releasing an already-expired lock succeeds idempotently.
func (m *Manager) Release(ctx context.Context, id string) (bool, error) {
	return m.transition(ctx, id, StatusReleased)
}

// ForceRelease transitions id to force_released regardless of current status.
func (m *Manager) ForceRelease(ctx context.Context, id string) (bool, error) {
	return m.transition(ctx, id, StatusForceReleased)
}

func (m *Manager) transition(ctx context.Context, id string, to Status) (bool, error) {
	now := m.clock.Now()
	res, err := m.db.ExecContext(ctx, `
		UPDATE locks SET status = ?, released_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		to, now, id, StatusActive, StatusExpired,
	)
	if err != nil {
		return false, fmt.Errorf("release lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("release lock rows affected: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	// Idempotent: already terminal, or id doesn't exist. Distinguish the
	// two only to decide the return value, never to error.
	var exists bool
	_ = m.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM locks WHERE id = ?)`, id)
	return exists, nil
}

// GetByFile returns the active lock on file's normalized path, if any.
func (m *Manager) GetByFile(ctx context.Context, file string) (*Lock, error) {
	normalized, err := normalize(file)
	if err != nil {
		return nil, err
	}
	return m.activeByNormalizedPath(ctx, normalized, m.clock.Now())
}

// GetActive returns every currently active, unexpired lock.
func (m *Manager) GetActive(ctx context.Context) ([]*Lock, error) {
	var locks []*Lock
	err := m.db.SelectContext(ctx, &locks, `
		SELECT * FROM locks WHERE status = ? AND expires_at > ?`,
		StatusActive, m.clock.Now(),
	)
	if err != nil {
		return nil, fmt.Errorf("get active locks: %w", err)
	}
	return locks, nil
}

// ReleaseExpired transitions every active-but-expired lock to expired
// and emits a lock.expired event per holder. Returns the count
// transitioned. Called by the reaper worker at most every
// reaper_interval.
func (m *Manager) ReleaseExpired(ctx context.Context) (int, error) {
	now := m.clock.Now()

	var expired []*Lock
	if err := m.db.SelectContext(ctx, &expired, `
		SELECT * FROM locks WHERE status = ? AND expires_at <= ?`,
		StatusActive, now,
	); err != nil {
		return 0, fmt.Errorf("query expired locks: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	ids := make([]string, len(expired))
	for i, l := range expired {
		ids[i] = l.ID
	}
	query, args, err := sqlx.In(`UPDATE locks SET status = ?, released_at = ? WHERE id IN (?)`,
		StatusExpired, now, ids)
	if err != nil {
		return 0, fmt.Errorf("build expire query: %w", err)
	}
	if _, err := m.db.ExecContext(ctx, m.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("expire locks: %w", err)
	}

	for _, l := range expired {
		m.emitExpired(ctx, l)
	}
	return len(expired), nil
}

func (m *Manager) emitExpired(ctx context.Context, l *Lock) {
	if m.events == nil {
		return
	}
	data, err := json.Marshal(map[string]any{
		"lock_id":     l.ID,
		"file":        l.File,
		"reserved_by": l.ReservedBy,
	})
	if err != nil {
		return
	}
	_, _ = m.events.Append(ctx, eventstore.AppendInput{
		EventType:  "lock.expired",
		StreamType: eventstore.StreamSpecialist,
		StreamID:   l.ReservedBy,
		Data:       data,
	})
}
