package eventstore

import (
	"encoding/json"
	"time"
)

// StreamType partitions the event log.
type StreamType string

const (
	StreamSpecialist StreamType = "specialist"
	StreamSquawk     StreamType = "squawk"
	StreamCtk        StreamType = "ctk"
	StreamSortie     StreamType = "sortie"
	StreamMission    StreamType = "mission"
	StreamCheckpoint StreamType = "checkpoint"
	StreamFleet      StreamType = "fleet"
	StreamSystem     StreamType = "system"
	StreamConflict   StreamType = "conflict"
)

// Event is an immutable, append-only log entry. Schema
// evolution is additive-only; consumers must tolerate unknown fields in
// Data and Metadata.
type Event struct {
	SequenceNumber int64           `db:"sequence_number" json:"sequence_number"`
	EventID        string          `db:"event_id" json:"event_id"`
	EventType      string          `db:"event_type" json:"event_type"`
	StreamType     StreamType      `db:"stream_type" json:"stream_type"`
	StreamID       string          `db:"stream_id" json:"stream_id"`
	Data           json.RawMessage `db:"data" json:"data"`
	CausationID    *string         `db:"causation_id" json:"causation_id,omitempty"`
	CorrelationID  *string         `db:"correlation_id" json:"correlation_id,omitempty"`
	Metadata       json.RawMessage `db:"metadata" json:"metadata"`
	OccurredAt     time.Time       `db:"occurred_at" json:"occurred_at"`
	RecordedAt     time.Time       `db:"recorded_at" json:"recorded_at"`
	SchemaVersion  int             `db:"schema_version" json:"schema_version"`
}

// AppendInput is the caller-supplied payload for Append; SequenceNumber,
// EventID, and RecordedAt are assigned by the store.
type AppendInput struct {
	EventType     string
	StreamType    StreamType
	StreamID      string
	Data          json.RawMessage
	CausationID   *string
	CorrelationID *string
	Metadata      json.RawMessage
	OccurredAt    time.Time // defaults to Clock.Now() if zero
}

// Filter selects events for GetEvents; zero-value fields are unconstrained.
type Filter struct {
	StreamType StreamType
	StreamID   string
	EventType  string
	Since      time.Time
	Limit      int
}

// Cursor is a consumer's position within an event stream.
type Cursor struct {
	ID         string     `db:"id" json:"id"`
	StreamType StreamType `db:"stream_type" json:"stream_type"`
	StreamID   string     `db:"stream_id" json:"stream_id"`
	Position   int64      `db:"position" json:"position"`
	ConsumerID *string    `db:"consumer_id" json:"consumer_id,omitempty"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// maxSequence is the largest sequence number Append will allocate before
// refusing further appends to a stream with ErrStreamExhausted.
const maxSequence = (1 << 63) - 1
