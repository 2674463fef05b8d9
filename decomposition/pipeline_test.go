package decomposition

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleettools/squawk/decomposition/strategy"
)

type fakePlanner struct {
	raw json.RawMessage
	err error
}

func (f fakePlanner) Plan(ctx context.Context, prompt string) (json.RawMessage, error) {
	return f.raw, f.err
}

func noopBuildPrompt(task string, strat strategy.Result, codebaseContext, techOrders string) string {
	return task
}

func TestPipeline_RunHappyPath(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\n"), 0o644))

	planResponse := json.RawMessage(`{"mission":{"title":"t","description":"d"},"sorties":[
		{"title":"s0","description":"d0","files":["a.go"],"complexity":"low","estimated_effort_hours":2,"dependencies":[]},
		{"title":"s1","description":"d1","files":["b.go"],"complexity":"medium","estimated_effort_hours":3,"dependencies":[0]}
	]}`)

	p := &Pipeline{
		TechOrdersPath: filepath.Join(root, "missing.yaml"),
		Planner:        fakePlanner{raw: planResponse},
		ParseResponse: func(raw json.RawMessage) (*SortieTree, error) {
			var tree SortieTree
			if err := json.Unmarshal(raw, &tree); err != nil {
				return nil, err
			}
			return &tree, nil
		},
		BuildPrompt: noopBuildPrompt,
	}

	plan, err := p.Run(context.Background(), "refactor a.go", root)
	require.NoError(t, err)
	assert.Equal(t, strategy.FileBased, plan.Strategy.Selected)
	require.Len(t, plan.Tree.Sorties, 2)
	assert.True(t, plan.Validation.OK())
	assert.Equal(t, []int{0, 1}, plan.Dependencies.CriticalPath)
	assert.InDelta(t, 5.0, plan.Dependencies.CriticalPathEffort, 0.0001)
}

func TestPipeline_LLMPlanStageError(t *testing.T) {
	root := t.TempDir()
	p := &Pipeline{
		TechOrdersPath: filepath.Join(root, "missing.yaml"),
		Planner:        fakePlanner{err: errors.New("upstream down")},
		ParseResponse: func(raw json.RawMessage) (*SortieTree, error) {
			t.Fatal("should not be called")
			return nil, nil
		},
		BuildPrompt: noopBuildPrompt,
	}

	_, err := p.Run(context.Background(), "fix the bug", root)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "llm_plan", stageErr.Stage)
}

func TestPipeline_ValidateStageError(t *testing.T) {
	root := t.TempDir()
	planResponse := json.RawMessage(`{"mission":{"title":"t","description":"d"},"sorties":[
		{"title":"s0","description":"d0","files":["a.go"],"complexity":"low","estimated_effort_hours":2,"dependencies":[1]},
		{"title":"s1","description":"d1","files":["b.go"],"complexity":"low","estimated_effort_hours":2,"dependencies":[0]}
	]}`)

	p := &Pipeline{
		TechOrdersPath: filepath.Join(root, "missing.yaml"),
		Planner:        fakePlanner{raw: planResponse},
		ParseResponse: func(raw json.RawMessage) (*SortieTree, error) {
			var tree SortieTree
			require.NoError(t, json.Unmarshal(raw, &tree))
			return &tree, nil
		},
		BuildPrompt: noopBuildPrompt,
	}

	_, err := p.Run(context.Background(), "fix the bug", root)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "validate", stageErr.Stage)
}
