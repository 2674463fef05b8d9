// Package eventstore implements the append-only event log (C1): a
// relational log partitioned by (stream_type, stream_id) with gapless
// monotonic sequence numbers per stream, fanned out to NATS JetStream for
// at-least-once, best-effort delivery to subscribers.
package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fleettools/squawk/internal/clock"
	"github.com/fleettools/squawk/internal/ids"
)

// Store is the Event Store component. It owns the events and cursors
// tables; no other component writes to them.
type Store struct {
	db        *sqlx.DB
	publisher Publisher
	clock     clock.Clock
}

// New creates a Store over db. publisher may be nil, in which case
// Append skips the NATS fan-out (useful for tests that only exercise
// relational semantics). clk may be nil to default to clock.System{}.
func New(db *sqlx.DB, publisher Publisher, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.System{}
	}
	return &Store{db: db, publisher: publisher, clock: clk}
}

// Append allocates the next sequence_number for (input.StreamType,
// input.StreamID) and inserts the event atomically. Concurrent appends
// to the same stream serialize on SQLite's BEGIN IMMEDIATE write lock
// (SQLite has no SELECT ... FOR UPDATE, so a single-writer transaction
// is the equivalent used here); appends to different streams proceed
// independently since each opens its own transaction against the
// WAL-mode database.
func (s *Store) Append(ctx context.Context, input AppendInput) (*Event, error) {
	if input.OccurredAt.IsZero() {
		input.OccurredAt = s.clock.Now()
	}
	if input.Data == nil {
		input.Data = json.RawMessage("{}")
	}
	if input.Metadata == nil {
		input.Metadata = json.RawMessage("{}")
	}

	// The DSN sets _txlock=immediate (internal/dbsql), so BeginTxx issues
	// BEGIN IMMEDIATE under the hood: the write lock is taken up front
	// rather than upgraded lazily on the first write, serializing
	// concurrent appends to the same stream without a SQLITE_BUSY race
	// between the SELECT MAX and the INSERT.
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append transaction: %w", err)
	}
	defer tx.Rollback()

	var maxSeq sql.NullInt64
	if err := tx.GetContext(ctx, &maxSeq, `
		SELECT MAX(sequence_number) FROM events
		WHERE stream_type = ? AND stream_id = ?`,
		input.StreamType, input.StreamID,
	); err != nil {
		return nil, fmt.Errorf("query max sequence: %w", err)
	}

	nextSeq := int64(1)
	if maxSeq.Valid {
		if maxSeq.Int64 >= maxSequence {
			return nil, ErrStreamExhausted
		}
		nextSeq = maxSeq.Int64 + 1
	}

	ev := &Event{
		SequenceNumber: nextSeq,
		EventID:        ids.New(ids.Event),
		EventType:      input.EventType,
		StreamType:     input.StreamType,
		StreamID:       input.StreamID,
		Data:           input.Data,
		CausationID:    input.CausationID,
		CorrelationID:  input.CorrelationID,
		Metadata:       input.Metadata,
		OccurredAt:     input.OccurredAt,
		RecordedAt:     s.clock.Now(),
		SchemaVersion:  1,
	}

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO events (
			sequence_number, event_id, event_type, stream_type, stream_id,
			data, causation_id, correlation_id, metadata, occurred_at,
			recorded_at, schema_version
		) VALUES (
			:sequence_number, :event_id, :event_type, :stream_type, :stream_id,
			:data, :causation_id, :correlation_id, :metadata, :occurred_at,
			:recorded_at, :schema_version
		)`, ev); err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}

	s.publish(ctx, ev)
	return ev, nil
}

// publish fans ev out to NATS JetStream, swallowing the error beyond a
// best-effort log line: the relational row already committed and remains
// the system of record.
func (s *Store) publish(ctx context.Context, ev *Event) {
	if s.publisher == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_ = s.publisher.Publish(ctx, Subject(ev.StreamType, ev.StreamID), data)
}

// QueryByStream returns events for (streamType, streamID) with
// sequence_number > afterSequence, in ascending order.
func (s *Store) QueryByStream(ctx context.Context, streamType StreamType, streamID string, afterSequence int64) ([]*Event, error) {
	var events []*Event
	err := s.db.SelectContext(ctx, &events, `
		SELECT * FROM events
		WHERE stream_type = ? AND stream_id = ? AND sequence_number > ?
		ORDER BY sequence_number ASC`,
		streamType, streamID, afterSequence,
	)
	if err != nil {
		return nil, fmt.Errorf("query by stream: %w", err)
	}
	return events, nil
}

// QueryByType returns events of eventType across all streams, newest last.
func (s *Store) QueryByType(ctx context.Context, eventType string) ([]*Event, error) {
	var events []*Event
	err := s.db.SelectContext(ctx, &events, `
		SELECT * FROM events WHERE event_type = ?
		ORDER BY recorded_at ASC`, eventType)
	if err != nil {
		return nil, fmt.Errorf("query by type: %w", err)
	}
	return events, nil
}

// GetEvents returns events matching filter.
func (s *Store) GetEvents(ctx context.Context, filter Filter) ([]*Event, error) {
	query := "SELECT * FROM events WHERE 1=1"
	args := []any{}

	if filter.StreamType != "" {
		query += " AND stream_type = ?"
		args = append(args, filter.StreamType)
	}
	if filter.StreamID != "" {
		query += " AND stream_id = ?"
		args = append(args, filter.StreamID)
	}
	if filter.EventType != "" {
		query += " AND event_type = ?"
		args = append(args, filter.EventType)
	}
	if !filter.Since.IsZero() {
		query += " AND occurred_at >= ?"
		args = append(args, filter.Since)
	}
	query += " ORDER BY recorded_at ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var events []*Event
	if err := s.db.SelectContext(ctx, &events, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	return events, nil
}

// GetLatestByStream returns the highest-sequence event for a stream, or
// ErrNotFound if the stream has no events.
func (s *Store) GetLatestByStream(ctx context.Context, streamType StreamType, streamID string) (*Event, error) {
	var ev Event
	err := s.db.GetContext(ctx, &ev, `
		SELECT * FROM events
		WHERE stream_type = ? AND stream_id = ?
		ORDER BY sequence_number DESC LIMIT 1`,
		streamType, streamID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get latest by stream: %w", err)
	}
	return &ev, nil
}

// Advance moves consumerID's cursor on (streamType, streamID) to
// position. Advancing to a position <= the current one is a no-op;
// advancing past the stream's latest sequence number fails with
// ErrInvalidPosition.
func (s *Store) Advance(ctx context.Context, streamType StreamType, streamID, consumerID string, position int64) error {
	latest, err := s.GetLatestByStream(ctx, streamType, streamID)
	if err != nil && err != ErrNotFound {
		return fmt.Errorf("advance: %w", err)
	}
	var latestSeq int64
	if latest != nil {
		latestSeq = latest.SequenceNumber
	}
	if position > latestSeq {
		return ErrInvalidPosition
	}

	cur, err := s.GetCursor(ctx, streamType, streamID, consumerID)
	if err != nil && err != ErrNotFound {
		return err
	}
	if cur != nil && position <= cur.Position {
		return nil // no-op, cursor already at or past position
	}

	now := s.clock.Now()
	if cur == nil {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO cursors (id, stream_type, stream_id, position, consumer_id, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			ids.New(ids.Cursor), streamType, streamID, position, consumerID, now,
		)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE cursors SET position = ?, updated_at = ? WHERE id = ?`,
			position, now, cur.ID,
		)
	}
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	return nil
}

// GetCursor returns consumerID's cursor on (streamType, streamID), or
// ErrNotFound if it has never advanced.
func (s *Store) GetCursor(ctx context.Context, streamType StreamType, streamID, consumerID string) (*Cursor, error) {
	var c Cursor
	err := s.db.GetContext(ctx, &c, `
		SELECT * FROM cursors
		WHERE stream_type = ? AND stream_id = ? AND consumer_id = ?`,
		streamType, streamID, consumerID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get cursor: %w", err)
	}
	return &c, nil
}
