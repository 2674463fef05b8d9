package conflict

import "time"

// Kind is the detected conflict's category.
type Kind string

const (
	KindResource Kind = "resource"
	KindTask     Kind = "task"
	KindData     Kind = "data"
)

// Severity ranks a conflict for the priority table and the
// auto-resolve threshold.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities so the auto-resolve threshold
// comparison ("at or below the configured threshold") can use a plain
// integer comparison.
var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// AtOrBelow reports whether s is at or below threshold.
func (s Severity) AtOrBelow(threshold Severity) bool {
	return severityRank[s] <= severityRank[threshold]
}

// Strategy is a resolution approach.
type Strategy string

const (
	StrategyFirstComeFirstServe Strategy = "first_come_first_serve"
	StrategyPriorityBased       Strategy = "priority_based"
	StrategyResourceSharing     Strategy = "resource_sharing"
	StrategyTaskSplitting       Strategy = "task_splitting"
	StrategyAgentCooperation    Strategy = "agent_cooperation"
	StrategyArbitration         Strategy = "arbitration"
)

// Conflict is a detected overlap between two or more specialists.
type Conflict struct {
	ID             string
	Kind           Kind
	Severity       Severity
	SpecialistIDs  []string
	Subject        string // the overlapping resource/task/data name
	DetectedAt     time.Time
	Strategy       Strategy
	ResolutionPlan string
	Actions        []string
	AutoResolved   bool
}
