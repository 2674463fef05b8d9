package decomposition

import "fmt"

// ParallelizationResult is the AnalyzeParallelization stage's output.
type ParallelizationResult struct {
	ParallelizationPotential float64
	EstimatedSpeedup         float64
	Recommendations          []string
	Bottlenecks              []string
}

// AnalyzeParallelization scores tree's structure given dep, the already
// computed ResolveDependencies result.
func AnalyzeParallelization(tree *SortieTree, dep *DependencyResult) *ParallelizationResult {
	n := len(tree.Sorties)

	potential := 0.0
	if n > 1 {
		maxGroup := 0
		for _, g := range dep.Groups {
			if len(g) > maxGroup {
				maxGroup = len(g)
			}
		}
		potential = float64(maxGroup) / float64(n)
	}

	var totalEffort float64
	for _, s := range tree.Sorties {
		totalEffort += s.EstimatedEffortHours
	}
	speedup := 1.0
	if dep.CriticalPathEffort > 0 {
		speedup = totalEffort / dep.CriticalPathEffort
	}

	result := &ParallelizationResult{
		ParallelizationPotential: potential,
		EstimatedSpeedup:         speedup,
	}
	result.Recommendations = recommendations(tree, dep, potential)
	result.Bottlenecks = bottlenecks(tree, dep)
	return result
}

func recommendations(tree *SortieTree, dep *DependencyResult, potential float64) []string {
	var recs []string
	if potential < 0.3 {
		recs = append(recs, "low parallelization potential: consider splitting large sequential sorties")
	}
	if len(dep.CriticalPath) > 5 {
		recs = append(recs, fmt.Sprintf("long critical path (%d sorties): consider breaking dependency chains", len(dep.CriticalPath)))
	}

	n := len(tree.Sorties)
	if n > 0 {
		var total, max, min float64
		min = tree.Sorties[0].EstimatedEffortHours
		for _, s := range tree.Sorties {
			total += s.EstimatedEffortHours
			if s.EstimatedEffortHours > max {
				max = s.EstimatedEffortHours
			}
			if s.EstimatedEffortHours < min {
				min = s.EstimatedEffortHours
			}
		}
		avg := total / float64(n)
		if avg > 0 && (max > 2*avg || min < avg/2) {
			recs = append(recs, "unbalanced effort distribution across sorties: consider rebalancing scope")
		}
	}

	dependentCounts := countDependents(tree)
	for i, count := range dependentCounts {
		if count > 2 {
			recs = append(recs, fmt.Sprintf("sortie %d (%q) has %d dependents: consider decoupling", i, tree.Sorties[i].Title, count))
		}
	}
	return recs
}

func bottlenecks(tree *SortieTree, dep *DependencyResult) []string {
	var items []string
	onPath := make(map[int]bool, len(dep.CriticalPath))
	for _, i := range dep.CriticalPath {
		onPath[i] = true
	}

	for _, i := range dep.CriticalPath {
		s := tree.Sorties[i]
		if s.Complexity == ComplexityHigh {
			items = append(items, fmt.Sprintf("sortie %d (%q) is high-complexity and on the critical path", i, s.Title))
		}
		if s.EstimatedEffortHours > 8 {
			items = append(items, fmt.Sprintf("sortie %d (%q) is long (%.1fh) and on the critical path", i, s.Title, s.EstimatedEffortHours))
		}
	}

	dependentCounts := countDependents(tree)
	for i, count := range dependentCounts {
		if count > 2 {
			items = append(items, fmt.Sprintf("sortie %d (%q) has %d dependents", i, tree.Sorties[i].Title, count))
		}
	}

	for _, g := range dep.Groups {
		if len(g) == 1 && onPath[g[0]] {
			items = append(items, fmt.Sprintf("sortie %d sits alone in its group within the critical chain", g[0]))
		}
	}
	return items
}

func countDependents(tree *SortieTree) []int {
	n := len(tree.Sorties)
	counts := make([]int, n)
	for _, s := range tree.Sorties {
		for _, dep := range s.Dependencies {
			if dep >= 0 && dep < n {
				counts[dep]++
			}
		}
	}
	return counts
}
