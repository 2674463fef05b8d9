package decomposition

// DependencyResult is the ResolveDependencies stage's output.
type DependencyResult struct {
	Order               []int     // topological order (DFS post-order)
	Groups              [][]int   // greedily packed parallel layers
	CriticalPath         []int    // longest chain by sortie count
	CriticalPathEffort   float64  // sum of estimated_effort_hours along CriticalPath
	EstimatedDurationMs  int64
	MaxDepth             int
	Cycles               [][]int // defensive; Validate should already have caught these
}

// ResolveDependencies topologically sorts tree.Sorties (DFS post-order),
// greedily packs them into parallel groups, and computes the critical
// path.
func ResolveDependencies(tree *SortieTree) *DependencyResult {
	n := len(tree.Sorties)
	order := topoSortDFS(tree)

	groups := packGroups(tree, order)

	path, effort := criticalPath(tree)

	return &DependencyResult{
		Order:               order,
		Groups:              groups,
		CriticalPath:        path,
		CriticalPathEffort:  effort,
		EstimatedDurationMs: int64(effort * 3600 * 1000),
		MaxDepth:            maxDependencyDepth(tree),
		Cycles:              collectCycles(tree, n),
	}
}

// topoSortDFS returns a topological order via DFS post-order, distinct
// from the validator's Kahn's-algorithm-based cycle check.
func topoSortDFS(tree *SortieTree) []int {
	n := len(tree.Sorties)
	visited := make([]bool, n)
	var order []int

	var visit func(i int)
	visit = func(i int) {
		if visited[i] {
			return
		}
		visited[i] = true
		for _, dep := range tree.Sorties[i].Dependencies {
			if dep >= 0 && dep < n {
				visit(dep)
			}
		}
		order = append(order, i)
	}

	for i := 0; i < n; i++ {
		visit(i)
	}
	return order
}

// packGroups greedily assigns each sortie (in topological order) to the
// first existing group it can run in parallel with — no direct/transitive
// dependency and no file overlap with any current member — or starts a
// new group.
func packGroups(tree *SortieTree, order []int) [][]int {
	n := len(tree.Sorties)
	reachable := transitiveClosure(tree, n)

	var groups [][]int
	for _, i := range order {
		placed := false
		for g, group := range groups {
			if canJoin(tree, reachable, i, group) {
				groups[g] = append(group, i)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []int{i})
		}
	}
	return groups
}

func canJoin(tree *SortieTree, reachable [][]bool, i int, group []int) bool {
	for _, j := range group {
		if reachable[i][j] || reachable[j][i] {
			return false
		}
		if len(fileOverlap(tree.Sorties[i].Files, tree.Sorties[j].Files)) > 0 {
			return false
		}
	}
	return true
}

// transitiveClosure[i][j] is true iff i depends (directly or transitively)
// on j.
func transitiveClosure(tree *SortieTree, n int) [][]bool {
	reach := make([][]bool, n)
	for i := range reach {
		reach[i] = make([]bool, n)
	}

	var visit func(i, start int, seen []bool)
	visit = func(i, start int, seen []bool) {
		for _, dep := range tree.Sorties[i].Dependencies {
			if dep < 0 || dep >= n || seen[dep] {
				continue
			}
			seen[dep] = true
			reach[start][dep] = true
			visit(dep, start, seen)
		}
	}

	for i := 0; i < n; i++ {
		visit(i, i, make([]bool, n))
	}
	return reach
}

// criticalPath returns the longest dependency chain by sortie count, as
// sortie indices in execution order, plus its total estimated effort.
func criticalPath(tree *SortieTree) ([]int, float64) {
	n := len(tree.Sorties)
	if n == 0 {
		return nil, 0
	}

	memoLen := make([]int, n)
	memoEffort := make([]float64, n)
	memoNext := make([]int, n)
	for i := range memoNext {
		memoNext[i] = -1
	}
	computed := make([]bool, n)

	var compute func(i int) (int, float64)
	compute = func(i int) (int, float64) {
		if computed[i] {
			return memoLen[i], memoEffort[i]
		}
		computed[i] = true

		bestLen, bestEffort, bestNext := 1, tree.Sorties[i].EstimatedEffortHours, -1
		for _, dep := range tree.Sorties[i].Dependencies {
			if dep < 0 || dep >= n {
				continue
			}
			l, e := compute(dep)
			if l+1 > bestLen {
				bestLen = l + 1
				bestEffort = e + tree.Sorties[i].EstimatedEffortHours
				bestNext = dep
			}
		}
		memoLen[i], memoEffort[i], memoNext[i] = bestLen, bestEffort, bestNext
		return bestLen, bestEffort
	}

	bestStart, bestLen, bestEffort := 0, 0, 0.0
	for i := 0; i < n; i++ {
		l, e := compute(i)
		if l > bestLen {
			bestStart, bestLen, bestEffort = i, l, e
		}
	}

	var path []int
	for cur := bestStart; cur != -1; cur = memoNext[cur] {
		path = append([]int{cur}, path...)
	}
	return path, bestEffort
}

// collectCycles re-derives findCycle's result in the []int-slice form
// DependencyResult.Cycles expects. Defensive: Validate should already
// have rejected any tree reaching this stage with a cycle.
func collectCycles(tree *SortieTree, n int) [][]int {
	if cycle := findCycle(tree); cycle != nil {
		return [][]int{cycle}
	}
	return nil
}
