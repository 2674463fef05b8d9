package decomposition

import (
	"fmt"
	"sort"
)

// ValidationErrorKind distinguishes the fatal validation failures.
type ValidationErrorKind string

const (
	ErrFileOverlap         ValidationErrorKind = "file_overlap"
	ErrCircularDependency  ValidationErrorKind = "circular_dependency"
	ErrMissingDependency   ValidationErrorKind = "missing_dependency"
	ErrInvalidScope        ValidationErrorKind = "invalid_scope"
)

// ValidationError is one fatal defect found in a SortieTree.
type ValidationError struct {
	Kind    ValidationErrorKind
	Index   int      // sortie index this error concerns, -1 if n/a
	Files   []string // populated for FileOverlap
	Cycle   []int    // populated for CircularDependency, e.g. [0,2,1,0]
	Message string
}

func (e ValidationError) Error() string { return e.Message }

// ValidationResult is the Validate stage's output.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []string
}

// OK reports whether tree has no fatal errors.
func (r *ValidationResult) OK() bool { return len(r.Errors) == 0 }

// Validate checks tree's fatal rules and non-fatal warnings, using
// Kahn's-algorithm cycle detection extended to materialize the actual
// cycle path rather than just a count.
func Validate(tree *SortieTree) *ValidationResult {
	result := &ValidationResult{}
	n := len(tree.Sorties)

	// Missing dependencies + invalid scope.
	for i, s := range tree.Sorties {
		if !s.HasScope() {
			result.Errors = append(result.Errors, ValidationError{
				Kind:    ErrInvalidScope,
				Index:   i,
				Message: fmt.Sprintf("sortie %d (%q) names no file, component, or function", i, s.Title),
			})
		}
		for _, dep := range s.Dependencies {
			if dep < 0 || dep >= n || dep == i {
				result.Errors = append(result.Errors, ValidationError{
					Kind:    ErrMissingDependency,
					Index:   i,
					Message: fmt.Sprintf("sortie %d (%q) has invalid dependency index %d", i, s.Title, dep),
				})
			}
		}
	}

	// Circular dependencies: Kahn's algorithm, walking dependents back to
	// materialize the cycle when processed != n.
	if cycle := findCycle(tree); cycle != nil {
		result.Errors = append(result.Errors, ValidationError{
			Kind:    ErrCircularDependency,
			Index:   -1,
			Cycle:   cycle,
			Message: fmt.Sprintf("circular dependency: %v", cycle),
		})
	}

	// File overlap: every pair with no direct dependency either way must
	// have disjoint file sets.
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if dependsOn(tree, i, j) || dependsOn(tree, j, i) {
				continue
			}
			overlap := fileOverlap(tree.Sorties[i].Files, tree.Sorties[j].Files)
			if len(overlap) > 0 {
				result.Errors = append(result.Errors, ValidationError{
					Kind:    ErrFileOverlap,
					Index:   i,
					Files:   overlap,
					Message: fmt.Sprintf("sorties %d and %d overlap on files %v with no dependency edge; merge them or add a dependency", i, j, overlap),
				})
			}
		}
	}

	result.Warnings = buildWarnings(tree)
	return result
}

func dependsOn(tree *SortieTree, i, j int) bool {
	for _, dep := range tree.Sorties[i].Dependencies {
		if dep == j {
			return true
		}
	}
	return false
}

func fileOverlap(a, b []string) []string {
	set := make(map[string]bool, len(a))
	for _, f := range a {
		set[f] = true
	}
	var overlap []string
	for _, f := range b {
		if set[f] {
			overlap = append(overlap, f)
		}
	}
	sort.Strings(overlap)
	return overlap
}

// findCycle runs Kahn's algorithm (inDegree/dependents maps) and, if
// some nodes never reach zero in-degree, walks dependents back from one
// of the stuck nodes to materialize the actual cycle path rather than
// just a count.
func findCycle(tree *SortieTree) []int {
	n := len(tree.Sorties)
	inDegree := make([]int, n)
	dependents := make([][]int, n)

	for i, s := range tree.Sorties {
		for _, dep := range s.Dependencies {
			if dep < 0 || dep >= n {
				continue // reported separately as a missing-dependency error
			}
			inDegree[i]++
			dependents[dep] = append(dependents[dep], i)
		}
	}

	tempDegree := make([]int, n)
	copy(tempDegree, inDegree)

	var queue []int
	for i, deg := range tempDegree {
		if deg == 0 {
			queue = append(queue, i)
		}
	}

	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++
		for _, dep := range dependents[id] {
			tempDegree[dep]--
			if tempDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if processed == n {
		return nil
	}

	// Some node never reached zero in-degree: it sits on (or behind) a
	// cycle. Walk its dependency edges until a node repeats.
	var stuck int
	for i, deg := range tempDegree {
		if deg > 0 {
			stuck = i
			break
		}
	}

	visited := map[int]int{}
	path := []int{}
	cur := stuck
	for {
		if step, seen := visited[cur]; seen {
			return append(path[step:], cur)
		}
		visited[cur] = len(path)
		path = append(path, cur)
		// Follow any unresolved dependency edge back into the cycle.
		next := -1
		for _, dep := range tree.Sorties[cur].Dependencies {
			if dep >= 0 && dep < n && tempDegree[dep] > 0 {
				next = dep
				break
			}
		}
		if next == -1 {
			return path // defensive: shouldn't happen if processed != n
		}
		cur = next
	}
}

func buildWarnings(tree *SortieTree) []string {
	var warnings []string

	var totalEffort, maxEffort float64
	minEffort := -1.0
	highComplexity := 0
	for _, s := range tree.Sorties {
		totalEffort += s.EstimatedEffortHours
		if s.EstimatedEffortHours > maxEffort {
			maxEffort = s.EstimatedEffortHours
		}
		if minEffort < 0 || s.EstimatedEffortHours < minEffort {
			minEffort = s.EstimatedEffortHours
		}
		if s.Complexity == ComplexityHigh {
			highComplexity++
		}
	}
	if highComplexity > 0 {
		warnings = append(warnings, fmt.Sprintf("%d high-complexity sorties", highComplexity))
	}

	if n := len(tree.Sorties); n > 0 {
		avg := totalEffort / float64(n)
		if avg > 0 {
			if maxEffort > 2*avg {
				warnings = append(warnings, "effort distribution is unbalanced: one or more sorties exceed 2x the average")
			}
			if minEffort < avg/2 {
				warnings = append(warnings, "effort distribution is unbalanced: one or more sorties are under half the average")
			}
		}
	}

	if depth := maxDependencyDepth(tree); depth > 5 {
		warnings = append(warnings, fmt.Sprintf("dependency depth %d exceeds 5", depth))
	}

	return warnings
}

func maxDependencyDepth(tree *SortieTree) int {
	n := len(tree.Sorties)
	memo := make([]int, n)
	visiting := make([]bool, n)

	var depth func(i int) int
	depth = func(i int) int {
		if memo[i] != 0 {
			return memo[i]
		}
		if visiting[i] {
			return 0 // cycle, reported separately
		}
		visiting[i] = true
		best := 0
		for _, dep := range tree.Sorties[i].Dependencies {
			if dep < 0 || dep >= n {
				continue
			}
			if d := depth(dep); d+1 > best {
				best = d + 1
			}
		}
		visiting[i] = false
		memo[i] = best + 1
		return memo[i]
	}

	max := 0
	for i := range tree.Sorties {
		if d := depth(i); d > max {
			max = d
		}
	}
	return max
}
