package agentrunner

import "strings"

// stepsFor computes a keyword-driven progress-step template from a task
// description. The first matching keyword wins; an
// unmatched task falls back to a generic three-step template.
func stepsFor(task string) []string {
	lower := strings.ToLower(task)
	switch {
	case strings.Contains(lower, "implement") || strings.Contains(lower, "build"):
		return []string{"analyze requirements", "write implementation", "run local checks", "finalize changes"}
	case strings.Contains(lower, "test"):
		return []string{"identify test cases", "write tests", "run test suite", "report results"}
	case strings.Contains(lower, "document"):
		return []string{"gather context", "draft documentation", "review for accuracy"}
	case strings.Contains(lower, "security") || strings.Contains(lower, "audit"):
		return []string{"scan for vulnerabilities", "assess findings", "propose mitigations"}
	case strings.Contains(lower, "performance") || strings.Contains(lower, "optimize"):
		return []string{"profile current behavior", "identify bottlenecks", "apply optimization", "verify improvement"}
	default:
		return []string{"plan approach", "execute task", "verify outcome"}
	}
}

// defaultActivities is what an idling runner (given no task) cycles
// through, reported as progress with no fixed total: it loops forever
// emitting randomized default activities.
var defaultActivities = []string{
	"monitoring for assignments",
	"idle health check",
	"polling mailbox",
	"awaiting dispatch",
}
