// Package decomposition orchestrates the seven-stage Decomposition
// Pipeline (C6): Strategy -> Codebase -> TechOrders -> LLMPlan -> Validate
// -> ResolveDependencies -> AnalyzeParallelization.
package decomposition

import (
	"fmt"

	"github.com/fleettools/squawk/decomposition/strategy"
)

// Complexity mirrors missionstore.Complexity; the plan stage works over a
// smaller, pre-persistence type since sorties don't have ids yet.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// PlannedMission is the LLM's proposed mission header.
type PlannedMission struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// PlannedSortie is one node of the proposed SortieTree. Dependencies are
// 0-based indices into the enclosing SortieTree.Sorties slice
// until ResolveDependencies/the caller assigns real ids.
type PlannedSortie struct {
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	Files                []string   `json:"files"`
	Components           []string   `json:"components,omitempty"`
	Functions            []string   `json:"functions,omitempty"`
	Complexity           Complexity `json:"complexity"`
	EstimatedEffortHours float64    `json:"estimated_effort_hours"`
	Dependencies         []int      `json:"dependencies"`
}

// HasScope reports whether the sortie names at least one file, component,
// or function. A sortie with none of these has an invalid scope.
func (s PlannedSortie) HasScope() bool {
	return len(s.Files) > 0 || len(s.Components) > 0 || len(s.Functions) > 0
}

// SortieTree is the LLM planner's parsed output, pre-validation.
type SortieTree struct {
	Mission PlannedMission  `json:"mission"`
	Sorties []PlannedSortie `json:"sorties"`
}

// StageError identifies which pipeline stage failed. Any stage failure
// aborts the pipeline; no mission is persisted.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("decomposition stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Plan is the complete pipeline output.
type Plan struct {
	Strategy         strategy.Result
	Tree             *SortieTree
	Validation       *ValidationResult
	Dependencies     *DependencyResult
	Parallelization  *ParallelizationResult
}
