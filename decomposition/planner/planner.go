// Package planner implements the LLMPlan stage of the Decomposition
// Pipeline (C6): prompt construction, an injected Planner capability, and
// strict-ish parsing of the returned SortieTree JSON.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fleettools/squawk/decomposition"
	"github.com/fleettools/squawk/decomposition/strategy"
	"github.com/fleettools/squawk/llm"
)

// Planner is the injected LLM capability the LLMPlan stage calls. A
// concrete implementation wraps the llm.Provider/model.Registry stack
// (see Client in client.go); tests use a stub.
type Planner interface {
	Plan(ctx context.Context, prompt string) (json.RawMessage, error)
}

// PlannerFunc adapts a function to Planner.
type PlannerFunc func(ctx context.Context, prompt string) (json.RawMessage, error)

// Plan calls f.
func (f PlannerFunc) Plan(ctx context.Context, prompt string) (json.RawMessage, error) {
	return f(ctx, prompt)
}

// BuildPrompt concatenates task description, selected strategy, codebase
// context, and tech-order summary into the prompt the LLM receives
//.
func BuildPrompt(task string, strat strategy.Result, codebaseContext, techOrderSummary string) string {
	var b strings.Builder
	b.WriteString("You are decomposing a task into an executable sortie tree.\n\n")
	b.WriteString("Task: ")
	b.WriteString(task)
	b.WriteString("\n\nSelected strategy: ")
	b.WriteString(string(strat.Selected))
	b.WriteString(fmt.Sprintf(" (confidence %.2f)\n\n", strat.Confidence))
	b.WriteString("Codebase context:\n")
	b.WriteString(codebaseContext)
	b.WriteString("\n\nTech orders:\n")
	b.WriteString(techOrderSummary)
	b.WriteString("\n\nRespond with strict JSON only, no prose, of the shape:\n")
	b.WriteString(`{"mission":{"title":"...","description":"..."},"sorties":[{"title":"...","description":"...","files":["..."],"complexity":"low|medium|high","estimated_effort_hours":1.5,"dependencies":[0]}]}`)
	b.WriteString("\n\ndependencies are 0-based indices into the sorties array. Do not reference yourself or an out-of-range index.\n")
	return b.String()
}

// rawSortieTree mirrors decomposition.SortieTree's wire shape; decoded
// with standard json.Unmarshal (DisallowUnknownFields is deliberately not
// used: schema evolution must tolerate additive fields).
type rawSortieTree struct {
	Mission struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
	} `json:"mission"`
	Sorties []struct {
		Title                string   `json:"title"`
		Description          string   `json:"description"`
		Files                []string `json:"files"`
		Components           []string `json:"components"`
		Functions            []string `json:"functions"`
		Complexity           string   `json:"complexity"`
		EstimatedEffortHours float64  `json:"estimated_effort_hours"`
		Dependencies         []int    `json:"dependencies"`
	} `json:"sorties"`
}

// ParseResponse strips code fences and LLM JSON artifacts (trailing commas,
// inline comments), decodes the result, and rejects a response failing the
// required-field/enum/dependency-index checks. The checks run by hand
// rather than via struct tags.
func ParseResponse(raw json.RawMessage) (*decomposition.SortieTree, error) {
	stripped := llm.ExtractJSON(string(raw))
	if stripped == "" {
		stripped = strings.TrimSpace(string(raw))
	}

	var doc rawSortieTree
	if err := json.Unmarshal([]byte(stripped), &doc); err != nil {
		return nil, fmt.Errorf("decode plan response: %w", err)
	}

	if doc.Mission.Title == "" {
		return nil, fmt.Errorf("plan response: mission missing title")
	}
	if doc.Mission.Description == "" {
		return nil, fmt.Errorf("plan response: mission missing description")
	}

	n := len(doc.Sorties)
	tree := &decomposition.SortieTree{
		Mission: decomposition.PlannedMission{
			Title:       doc.Mission.Title,
			Description: doc.Mission.Description,
		},
		Sorties: make([]decomposition.PlannedSortie, 0, n),
	}

	for i, s := range doc.Sorties {
		if s.Title == "" {
			return nil, fmt.Errorf("plan response: sortie %d missing title", i)
		}
		if s.Description == "" {
			return nil, fmt.Errorf("plan response: sortie %d missing description", i)
		}
		if len(s.Files) == 0 {
			return nil, fmt.Errorf("plan response: sortie %d missing files", i)
		}

		complexity := decomposition.Complexity(s.Complexity)
		switch complexity {
		case decomposition.ComplexityLow, decomposition.ComplexityMedium, decomposition.ComplexityHigh:
		default:
			return nil, fmt.Errorf("plan response: sortie %d has invalid complexity %q", i, s.Complexity)
		}

		if s.EstimatedEffortHours <= 0 {
			return nil, fmt.Errorf("plan response: sortie %d has non-positive estimated_effort_hours", i)
		}

		for _, dep := range s.Dependencies {
			if dep < 0 || dep >= n {
				return nil, fmt.Errorf("plan response: sortie %d has out-of-range dependency index %d", i, dep)
			}
			if dep == i {
				return nil, fmt.Errorf("plan response: sortie %d depends on itself", i)
			}
		}

		tree.Sorties = append(tree.Sorties, decomposition.PlannedSortie{
			Title:                s.Title,
			Description:          s.Description,
			Files:                s.Files,
			Components:           s.Components,
			Functions:            s.Functions,
			Complexity:           complexity,
			EstimatedEffortHours: s.EstimatedEffortHours,
			Dependencies:         s.Dependencies,
		})
	}

	return tree, nil
}
