// Package strategy implements the Strategy selector, the first stage of
// the Decomposition Pipeline (C6): scores four strategies by keyword
// match against the task description.
package strategy

import (
	"regexp"
	"sort"
	"strings"
)

// Strategy is one of the four decomposition strategies.
type Strategy string

const (
	FileBased     Strategy = "file-based"
	FeatureBased  Strategy = "feature-based"
	RiskBased     Strategy = "risk-based"
	ResearchBased Strategy = "research-based"
)

// order is the fixed tie-break order: ties are broken by this order.
var order = []Strategy{FileBased, FeatureBased, RiskBased, ResearchBased}

// keywords is the fixed per-strategy keyword set scored against the
// task description.
var keywords = map[Strategy][]string{
	FileBased:     {"refactor", "migrate", "rename", "move", "restructure", "reorganize", "cleanup", "consolidate"},
	FeatureBased:  {"add", "implement", "create", "build", "introduce", "support", "enable", "new feature"},
	RiskBased:     {"fix", "bug", "security", "vulnerability", "crash", "error", "broken", "patch", "hotfix"},
	ResearchBased: {"investigate", "explore", "research", "analyze", "understand", "evaluate", "spike", "prototype"},
}

// Pattern is a high-level trait detected in the task description via
// regex.
type Pattern string

const (
	PatternMultiFileChange   Pattern = "multi-file-change"
	PatternDatabaseChange    Pattern = "database-change"
	PatternAPIChange         Pattern = "api-change"
	PatternUIChange          Pattern = "ui-change"
	PatternTestingFocus      Pattern = "testing-focus"
	PatternPerformanceFocus  Pattern = "performance-focus"
	PatternSecurityFocus     Pattern = "security-focus"
	PatternConcurrencyFocus  Pattern = "concurrency-focus"
)

var patternRegexes = map[Pattern]*regexp.Regexp{
	PatternMultiFileChange:  regexp.MustCompile(`(?i)\b(multiple files|across the codebase|everywhere|all (handlers|endpoints|services))\b`),
	PatternDatabaseChange:   regexp.MustCompile(`(?i)\b(database|schema|migration|sql|table|query)\b`),
	PatternAPIChange:        regexp.MustCompile(`(?i)\b(api|endpoint|route|handler|rest|grpc)\b`),
	PatternUIChange:         regexp.MustCompile(`(?i)\b(ui|frontend|component|button|page|screen|layout)\b`),
	PatternTestingFocus:     regexp.MustCompile(`(?i)\b(test|tests|testing|coverage|unit test|integration test)\b`),
	PatternPerformanceFocus: regexp.MustCompile(`(?i)\b(performance|latency|slow|optimi[sz]e|throughput|benchmark)\b`),
	PatternSecurityFocus:    regexp.MustCompile(`(?i)\b(security|auth|vulnerability|injection|xss|csrf)\b`),
	PatternConcurrencyFocus: regexp.MustCompile(`(?i)\b(concurrent|goroutine|race|mutex|parallel|async|thread)\b`),
}

// Result is the Strategy selector's output.
type Result struct {
	Selected        Strategy
	Confidence      float64
	MatchedKeywords []string
	Scores          map[Strategy]int
	DetectedPatterns []Pattern
}

// Select scores taskDescription against every strategy's keyword set and
// returns the winner. Confidence is min(1, normalized_score * 1.5); ties
// are broken by the fixed declaration order.
func Select(taskDescription string) Result {
	lower := strings.ToLower(taskDescription)

	scores := make(map[Strategy]int, len(order))
	matchedByStrategy := make(map[Strategy][]string, len(order))

	totalWords := len(strings.Fields(lower))
	if totalWords == 0 {
		totalWords = 1
	}

	for _, s := range order {
		for _, kw := range keywords[s] {
			if strings.Contains(lower, kw) {
				scores[s]++
				matchedByStrategy[s] = append(matchedByStrategy[s], kw)
			}
		}
	}

	best := order[0]
	bestScore := scores[order[0]]
	for _, s := range order[1:] {
		if scores[s] > bestScore {
			best = s
			bestScore = scores[s]
		}
	}

	normalized := float64(bestScore) / float64(totalWords)
	confidence := normalized * 1.5
	if confidence > 1 {
		confidence = 1
	}

	matched := matchedByStrategy[best]
	sort.Strings(matched)

	return Result{
		Selected:         best,
		Confidence:       confidence,
		MatchedKeywords:  matched,
		Scores:           scores,
		DetectedPatterns: detectPatterns(taskDescription),
	}
}

func detectPatterns(taskDescription string) []Pattern {
	var found []Pattern
	for _, p := range []Pattern{
		PatternMultiFileChange, PatternDatabaseChange, PatternAPIChange, PatternUIChange,
		PatternTestingFocus, PatternPerformanceFocus, PatternSecurityFocus, PatternConcurrencyFocus,
	} {
		if patternRegexes[p].MatchString(taskDescription) {
			found = append(found, p)
		}
	}
	return found
}
