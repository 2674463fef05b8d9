package decomposition

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fleettools/squawk/decomposition/codebase"
	"github.com/fleettools/squawk/decomposition/strategy"
)

// Planner is the capability the LLMPlan stage calls; decomposition.Planner
// rather than planner.Planner to avoid an import cycle (decomposition ->
// planner -> decomposition). The concrete planner.Client satisfies this.
type Planner interface {
	Plan(ctx context.Context, prompt string) (json.RawMessage, error)
}

// ResponseParser decodes a Planner's raw response into a SortieTree,
// rejecting malformed plans. decomposition/planner.ParseResponse
// satisfies this.
type ResponseParser func(raw json.RawMessage) (*SortieTree, error)

// Pipeline runs the seven decomposition stages in order. Every field is
// an injected capability so tests can substitute fakes without touching
// the filesystem or a real LLM.
type Pipeline struct {
	FileLister    codebase.FileLister
	TechOrdersPath string
	Planner       Planner
	ParseResponse ResponseParser
	BuildPrompt   func(task string, strat strategy.Result, codebaseContext, techOrders string) string
}

// Run executes Strategy -> Codebase -> TechOrders -> LLMPlan -> Validate ->
// ResolveDependencies -> AnalyzeParallelization. Any stage failure aborts
// with a *StageError and no partial mission is persisted.
func (p *Pipeline) Run(ctx context.Context, task, repoRoot string) (*Plan, error) {
	strat := strategy.Select(task)

	cbResult, err := codebase.Analyze(ctx, repoRoot, p.FileLister)
	if err != nil {
		return nil, &StageError{Stage: "codebase", Err: err}
	}

	orders, err := LoadTechOrders(p.TechOrdersPath)
	if err != nil {
		return nil, &StageError{Stage: "tech_orders", Err: err}
	}

	prompt := p.BuildPrompt(task, strat, summarizeCodebase(cbResult), Summarize(orders))

	raw, err := p.Planner.Plan(ctx, prompt)
	if err != nil {
		return nil, &StageError{Stage: "llm_plan", Err: err}
	}

	tree, err := p.ParseResponse(raw)
	if err != nil {
		return nil, &StageError{Stage: "llm_plan", Err: err}
	}

	validation := Validate(tree)
	if !validation.OK() {
		return nil, &StageError{Stage: "validate", Err: fmt.Errorf("%d validation errors: %v", len(validation.Errors), validation.Errors)}
	}

	deps := ResolveDependencies(tree)
	parallel := AnalyzeParallelization(tree, deps)

	return &Plan{
		Strategy:        strat,
		Tree:            tree,
		Validation:      validation,
		Dependencies:    deps,
		Parallelization: parallel,
	}, nil
}

func summarizeCodebase(r *codebase.Result) string {
	s := fmt.Sprintf("%d files scanned across %d languages (%v)\n", len(r.Files), len(r.Languages), r.Languages)
	for dir, files := range r.ByDirectory {
		s += fmt.Sprintf("- %s: %d files\n", dir, len(files))
	}
	for pattern, count := range r.PatternCounts {
		s += fmt.Sprintf("- pattern %s: %d files\n", pattern, count)
	}
	return s
}
