package conflict

// priorityTable maps (Kind, Severity) to the strategy used to resolve
// it. It is a literal Go map, resolved highest-priority-first with
// ties broken by declaration order ("first match wins"), the same
// resolution order model.Registry uses for its Preferred list.
var priorityTable = []struct {
	kind     Kind
	severity Severity
	strategy Strategy
}{
	{KindResource, SeverityCritical, StrategyArbitration},
	{KindResource, SeverityHigh, StrategyPriorityBased},
	{KindResource, SeverityMedium, StrategyResourceSharing},
	{KindResource, SeverityLow, StrategyFirstComeFirstServe},

	{KindTask, SeverityCritical, StrategyArbitration},
	{KindTask, SeverityHigh, StrategyTaskSplitting},
	{KindTask, SeverityMedium, StrategyTaskSplitting},
	{KindTask, SeverityLow, StrategyAgentCooperation},

	{KindData, SeverityCritical, StrategyArbitration},
	{KindData, SeverityHigh, StrategyPriorityBased},
	{KindData, SeverityMedium, StrategyAgentCooperation},
	{KindData, SeverityLow, StrategyFirstComeFirstServe},
}

// DefaultAutoResolveThreshold is the severity at or below which a
// resolved conflict is applied without operator sign-off.
const DefaultAutoResolveThreshold = SeverityMedium

// strategyFor looks up the priority table for kind/severity, in
// declaration order, returning the first match. Every Kind/Severity pair
// the detectors can produce has an explicit entry, so the zero-value
// fallback (arbitration) should never actually be reached; it exists so
// Resolve never panics on a pair the table doesn't yet cover.
func strategyFor(kind Kind, severity Severity) Strategy {
	for _, row := range priorityTable {
		if row.kind == kind && row.severity == severity {
			return row.strategy
		}
	}
	return StrategyArbitration
}

// Resolve assigns a strategy and resolution plan to c and reports whether
// it qualifies for auto-resolution under threshold. Resolve never
// mutates specialist state itself: the returned Conflict carries an
// action list that the caller is responsible for emitting as events for
// other components (scheduler, lock manager) to act on.
func Resolve(c Conflict, threshold Severity) Conflict {
	c.Strategy = strategyFor(c.Kind, c.Severity)
	c.ResolutionPlan = planFor(c)
	c.Actions = actionsFor(c)
	c.AutoResolved = c.Severity.AtOrBelow(threshold)
	return c
}

// ResolveAll resolves every conflict in found against threshold.
func ResolveAll(found []Conflict, threshold Severity) []Conflict {
	resolved := make([]Conflict, len(found))
	for i, c := range found {
		resolved[i] = Resolve(c, threshold)
	}
	return resolved
}

func planFor(c Conflict) string {
	switch c.Strategy {
	case StrategyFirstComeFirstServe:
		return "grant " + c.Subject + " to the specialist that claimed it first; notify the others"
	case StrategyPriorityBased:
		return "grant " + c.Subject + " to the highest-priority specialist; requeue the rest"
	case StrategyResourceSharing:
		return "partition access to " + c.Subject + " so contending specialists can proceed concurrently"
	case StrategyTaskSplitting:
		return "split the contended task underlying " + c.Subject + " into disjoint sub-assignments"
	case StrategyAgentCooperation:
		return "pair the contending specialists on " + c.Subject + " and require a joint handoff"
	default:
		return "escalate " + c.Subject + " for manual arbitration"
	}
}

func actionsFor(c Conflict) []string {
	switch c.Strategy {
	case StrategyFirstComeFirstServe:
		return []string{"notify:" + c.SpecialistIDs[0] + ":granted", "notify:others:requeue"}
	case StrategyPriorityBased:
		return []string{"notify:highest_priority:granted", "notify:others:requeue"}
	case StrategyResourceSharing:
		return []string{"partition:" + c.Subject}
	case StrategyTaskSplitting:
		return []string{"split_task:" + c.Subject}
	case StrategyAgentCooperation:
		return []string{"pair:" + c.Subject}
	default:
		return []string{"escalate:" + c.Subject}
	}
}
