// Package missionstore implements the relational Mission/Sortie Store
// (C3): mission and sortie CRUD plus derived counters, emitting events
// via eventstore on every mutating update.
package missionstore

import (
	"encoding/json"
	"time"
)

// Strategy is how the LLM was prompted to decompose a task.
type Strategy string

const (
	StrategyFileBased     Strategy = "file-based"
	StrategyFeatureBased  Strategy = "feature-based"
	StrategyRiskBased     Strategy = "risk-based"
	StrategyResearchBased Strategy = "research-based"
)

// Priority is shared by missions and sorties.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// MissionStatus tracks a mission's lifecycle. Transitions are monotone
// except Cancelled, terminal from any non-Completed state.
type MissionStatus string

const (
	MissionPending    MissionStatus = "pending"
	MissionInProgress MissionStatus = "in_progress"
	MissionReview     MissionStatus = "review"
	MissionCompleted  MissionStatus = "completed"
	MissionCancelled  MissionStatus = "cancelled"
)

// Mission is a user-supplied goal, the parent of all derived work.
type Mission struct {
	ID               string          `db:"id" json:"id"`
	Title            string          `db:"title" json:"title"`
	Description      string          `db:"description" json:"description"`
	Strategy         Strategy        `db:"strategy" json:"strategy"`
	Status           MissionStatus   `db:"status" json:"status"`
	Priority         Priority        `db:"priority" json:"priority"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	StartedAt        *time.Time      `db:"started_at" json:"started_at,omitempty"`
	CompletedAt      *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	TotalSorties     int             `db:"total_sorties" json:"total_sorties"`
	CompletedSorties int             `db:"completed_sorties" json:"completed_sorties"`
	Result           *string         `db:"result" json:"result,omitempty"`
	Metadata         json.RawMessage `db:"metadata" json:"metadata"`
}

// SortieStatus tracks a sortie's lifecycle.
type SortieStatus string

const (
	SortiePending    SortieStatus = "pending"
	SortieAssigned   SortieStatus = "assigned"
	SortieInProgress SortieStatus = "in_progress"
	SortieBlocked    SortieStatus = "blocked"
	SortieReview     SortieStatus = "review"
	SortieCompleted  SortieStatus = "completed"
	SortieFailed     SortieStatus = "failed"
	SortieCancelled  SortieStatus = "cancelled"
)

// Complexity is a sortie's estimated difficulty band.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// IsTerminal reports whether s is a terminal sortie status.
func (s SortieStatus) IsTerminal() bool {
	switch s {
	case SortieCompleted, SortieFailed, SortieCancelled:
		return true
	default:
		return false
	}
}

// Sortie is an atomic, executable unit of work within a mission.
type Sortie struct {
	ID                   string       `db:"id" json:"id"`
	MissionID            *string      `db:"mission_id" json:"mission_id,omitempty"`
	Title                string       `db:"title" json:"title"`
	Description          string       `db:"description" json:"description"`
	Status               SortieStatus `db:"status" json:"status"`
	Priority             Priority     `db:"priority" json:"priority"`
	AssignedTo           *string      `db:"assigned_to" json:"assigned_to,omitempty"`
	FilesJSON            string       `db:"files" json:"-"`
	DependenciesJSON     string       `db:"dependencies" json:"-"`
	Progress             int          `db:"progress" json:"progress"`
	ProgressNotes        *string      `db:"progress_notes" json:"progress_notes,omitempty"`
	StartedAt            *time.Time   `db:"started_at" json:"started_at,omitempty"`
	CompletedAt          *time.Time   `db:"completed_at" json:"completed_at,omitempty"`
	BlockedBy            *string      `db:"blocked_by" json:"blocked_by,omitempty"`
	BlockedReason         *string     `db:"blocked_reason" json:"blocked_reason,omitempty"`
	Result                *string     `db:"result" json:"result,omitempty"`
	Complexity            Complexity  `db:"complexity" json:"complexity"`
	EstimatedEffortHours   float64    `db:"estimated_effort_hours" json:"estimated_effort_hours"`
	Metadata              json.RawMessage `db:"metadata" json:"metadata"`

	Files        []string `db:"-" json:"files"`
	Dependencies []string `db:"-" json:"dependencies"`
}

// Files/Dependencies round-trip through FilesJSON/DependenciesJSON at the
// store boundary (design note: explicit serialization, no implicit
// JSON-as-storage for in-memory values).

func (s *Sortie) marshalSets() error {
	f, err := json.Marshal(s.Files)
	if err != nil {
		return err
	}
	d, err := json.Marshal(s.Dependencies)
	if err != nil {
		return err
	}
	s.FilesJSON = string(f)
	s.DependenciesJSON = string(d)
	return nil
}

func (s *Sortie) unmarshalSets() error {
	if s.FilesJSON != "" {
		if err := json.Unmarshal([]byte(s.FilesJSON), &s.Files); err != nil {
			return err
		}
	}
	if s.DependenciesJSON != "" {
		if err := json.Unmarshal([]byte(s.DependenciesJSON), &s.Dependencies); err != nil {
			return err
		}
	}
	return nil
}
