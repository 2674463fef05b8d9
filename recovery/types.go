// Package recovery implements the Recovery Manager (C10): it turns a
// checkpoint back into a running mission by restoring agents, resuming
// tasks, and re-acquiring locks, through the internal component
// contracts of missionstore/lockmgr/specialists directly rather than
// re-entrant HTTP calls to sibling endpoints.
package recovery

import "time"

// AgentRestore is one specialist the plan will re-launch.
type AgentRestore struct {
	SortieID  string `json:"sortie_id"`
	AgentType string `json:"agent_type"`
	Priority  string `json:"priority"`
}

// TaskResume is one sortie the plan will resume.
type TaskResume struct {
	SortieID      string   `json:"sortie_id"`
	Progress      int      `json:"progress"`
	AssignedAgent *string  `json:"assigned_agent,omitempty"`
	NextSteps     []string `json:"next_steps"`
}

// LockRestore is one lock the plan will re-acquire.
type LockRestore struct {
	File               string `json:"file"`
	ReservedBy         string `json:"reserved_by"`
	NeedsConflictCheck bool   `json:"needs_conflict_check"`
}

// Plan is the output of CreateRecoveryPlan.
type Plan struct {
	CheckpointID    string         `json:"checkpoint_id"`
	MissionID       string         `json:"mission_id"`
	AgentsToRestore []AgentRestore `json:"agents_to_restore"`
	TasksToResume   []TaskResume   `json:"tasks_to_resume"`
	LocksToRestore  []LockRestore  `json:"locks_to_restore"`
	Risks           []string       `json:"risks"`
}

// LogEntry is one structured line of the NDJSON recovery log
// (`{datadir}/recovery.log`), deliberately shaped like an eventstore
// Event so the two logs can be correlated by EventID.
type LogEntry struct {
	EventID   string    `json:"event_id"`
	Phase     string    `json:"phase"` // agents | tasks | locks
	Item      string    `json:"item"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// Result is the outcome of ExecuteRecovery.
type Result struct {
	ItemsAttempted int        `json:"items_attempted"`
	ItemsFailed    int        `json:"items_failed"`
	Success        bool       `json:"success"` // failures at most 10% of attempted
	Entries        []LogEntry `json:"entries"`
}
