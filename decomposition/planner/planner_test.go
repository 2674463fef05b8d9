package planner

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleettools/squawk/decomposition/strategy"
)

func TestBuildPrompt_IncludesAllSections(t *testing.T) {
	strat := strategy.Select("refactor the api handlers")
	prompt := BuildPrompt("refactor the api handlers", strat, "dir api: 3 go files", "- order1: note1")

	assert.Contains(t, prompt, "refactor the api handlers")
	assert.Contains(t, prompt, string(strat.Selected))
	assert.Contains(t, prompt, "dir api: 3 go files")
	assert.Contains(t, prompt, "order1: note1")
	assert.Contains(t, prompt, "strict JSON")
}

func TestParseResponse_StripsCodeFence(t *testing.T) {
	raw := json.RawMessage("```json\n" + `{"mission":{"title":"t","description":"d"},"sorties":[{"title":"s1","description":"d1","files":["a.go"],"complexity":"low","estimated_effort_hours":1,"dependencies":[]}]}` + "\n```")

	tree, err := ParseResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "t", tree.Mission.Title)
	require.Len(t, tree.Sorties, 1)
	assert.Equal(t, "s1", tree.Sorties[0].Title)
}

func TestParseResponse_RejectsMissingMissionTitle(t *testing.T) {
	raw := json.RawMessage(`{"mission":{"description":"d"},"sorties":[]}`)
	_, err := ParseResponse(raw)
	assert.ErrorContains(t, err, "mission missing title")
}

func TestParseResponse_RejectsInvalidComplexity(t *testing.T) {
	raw := json.RawMessage(`{"mission":{"title":"t","description":"d"},"sorties":[{"title":"s","description":"d","files":["a.go"],"complexity":"extreme","estimated_effort_hours":1,"dependencies":[]}]}`)
	_, err := ParseResponse(raw)
	assert.ErrorContains(t, err, "invalid complexity")
}

func TestParseResponse_RejectsSelfDependency(t *testing.T) {
	raw := json.RawMessage(`{"mission":{"title":"t","description":"d"},"sorties":[{"title":"s","description":"d","files":["a.go"],"complexity":"low","estimated_effort_hours":1,"dependencies":[0]}]}`)
	_, err := ParseResponse(raw)
	assert.ErrorContains(t, err, "depends on itself")
}

func TestParseResponse_RejectsOutOfRangeDependency(t *testing.T) {
	raw := json.RawMessage(`{"mission":{"title":"t","description":"d"},"sorties":[{"title":"s","description":"d","files":["a.go"],"complexity":"low","estimated_effort_hours":1,"dependencies":[5]}]}`)
	_, err := ParseResponse(raw)
	assert.ErrorContains(t, err, "out-of-range")
}

func TestParseResponse_RejectsNonPositiveEffort(t *testing.T) {
	raw := json.RawMessage(`{"mission":{"title":"t","description":"d"},"sorties":[{"title":"s","description":"d","files":["a.go"],"complexity":"low","estimated_effort_hours":0,"dependencies":[]}]}`)
	_, err := ParseResponse(raw)
	assert.ErrorContains(t, err, "non-positive")
}

func TestPlannerFunc_Adapts(t *testing.T) {
	var p Planner = PlannerFunc(func(ctx context.Context, prompt string) (json.RawMessage, error) {
		return json.RawMessage(`{}`), nil
	})
	raw, err := p.Plan(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`{}`), raw)
}
