// Package checkpoint implements the Checkpoint Engine (C9): periodic
// durable snapshots of a mission's live state, dual-written to the
// relational store and a JSON file backup, so a crashed coordinator can
// be reconstructed.
package checkpoint

import (
	"encoding/json"
	"time"
)

// Trigger is why a checkpoint was taken.
type Trigger string

const (
	TriggerProgress   Trigger = "progress"
	TriggerError      Trigger = "error"
	TriggerManual     Trigger = "manual"
	TriggerCompaction Trigger = "compaction"
)

// SortieSnapshot is the subset of a sortie's state a checkpoint freezes.
type SortieSnapshot struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Status     string  `json:"status"`
	Priority   string  `json:"priority"`
	AssignedTo *string `json:"assigned_to,omitempty"`
	Progress   int     `json:"progress"`
}

// LockSnapshot is the subset of a lock's state a checkpoint freezes.
type LockSnapshot struct {
	ID         string `json:"id"`
	File       string `json:"file"`
	ReservedBy string `json:"reserved_by"`
}

// MessageSnapshot is the subset of a pending message a checkpoint freezes.
type MessageSnapshot struct {
	ID        string `json:"id"`
	MailboxID string `json:"mailbox_id"`
	Status    string `json:"status"`
}

// RecoveryContext carries the operator-facing narrative a checkpoint was
// taken with.
type RecoveryContext struct {
	LastAction      string    `json:"last_action"`
	NextSteps       []string  `json:"next_steps"`
	Blockers        []string  `json:"blockers"`
	FilesModified   []string  `json:"files_modified"`
	MissionSummary  string    `json:"mission_summary"`
	ElapsedTimeMS   int64     `json:"elapsed_time_ms"`
	LastActivityAt  time.Time `json:"last_activity_at"`
}

// Checkpoint is a durable snapshot of a mission's state.
type Checkpoint struct {
	ID               string            `db:"id" json:"id"`
	MissionID        string            `db:"mission_id" json:"mission_id"`
	Timestamp        time.Time         `db:"timestamp" json:"timestamp"`
	Trigger          Trigger           `db:"trigger" json:"trigger"`
	TriggerDetails   *string           `db:"trigger_details" json:"trigger_details,omitempty"`
	ProgressPercent  float64           `db:"progress_percent" json:"progress_percent"`
	SortiesJSON      string            `db:"sorties" json:"-"`
	ActiveLocksJSON  string            `db:"active_locks" json:"-"`
	PendingMsgsJSON  string            `db:"pending_messages" json:"-"`
	RecoveryCtxJSON  string            `db:"recovery_context" json:"-"`
	CreatedBy        string            `db:"created_by" json:"created_by"`
	ExpiresAt        *time.Time        `db:"expires_at" json:"expires_at,omitempty"`
	ConsumedAt       *time.Time        `db:"consumed_at" json:"consumed_at,omitempty"`
	Version          int               `db:"version" json:"version"`
	Metadata         json.RawMessage   `db:"metadata" json:"metadata"`

	Sorties         []SortieSnapshot  `db:"-" json:"sorties"`
	ActiveLocks     []LockSnapshot    `db:"-" json:"active_locks"`
	PendingMessages []MessageSnapshot `db:"-" json:"pending_messages"`
	RecoveryContext RecoveryContext   `db:"-" json:"recovery_context"`
}

// marshalInto serializes the in-memory collection fields into their
// db-tagged JSON columns, following missionstore's explicit
// serialization-at-the-store-boundary pattern (no implicit JSON-as-storage).
func (c *Checkpoint) marshalInto() error {
	b, err := json.Marshal(c.Sorties)
	if err != nil {
		return err
	}
	c.SortiesJSON = string(b)

	b, err = json.Marshal(c.ActiveLocks)
	if err != nil {
		return err
	}
	c.ActiveLocksJSON = string(b)

	b, err = json.Marshal(c.PendingMessages)
	if err != nil {
		return err
	}
	c.PendingMsgsJSON = string(b)

	b, err = json.Marshal(c.RecoveryContext)
	if err != nil {
		return err
	}
	c.RecoveryCtxJSON = string(b)
	return nil
}

// unmarshalFrom is marshalInto's inverse, populating the in-memory
// fields from the db-tagged JSON columns after a load.
func (c *Checkpoint) unmarshalFrom() error {
	if c.SortiesJSON != "" {
		if err := json.Unmarshal([]byte(c.SortiesJSON), &c.Sorties); err != nil {
			return err
		}
	}
	if c.ActiveLocksJSON != "" {
		if err := json.Unmarshal([]byte(c.ActiveLocksJSON), &c.ActiveLocks); err != nil {
			return err
		}
	}
	if c.PendingMsgsJSON != "" {
		if err := json.Unmarshal([]byte(c.PendingMsgsJSON), &c.PendingMessages); err != nil {
			return err
		}
	}
	if c.RecoveryCtxJSON != "" {
		if err := json.Unmarshal([]byte(c.RecoveryCtxJSON), &c.RecoveryContext); err != nil {
			return err
		}
	}
	return nil
}
