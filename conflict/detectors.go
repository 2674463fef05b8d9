package conflict

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/fleettools/squawk/internal/clock"
	"github.com/fleettools/squawk/internal/ids"
	"github.com/fleettools/squawk/specialists"
)

// resourceMetadata is the schema Detect expects in Specialist.Metadata;
// specialists that carry no such metadata simply never trigger
// resource/data detection.
type resourceMetadata struct {
	Resources []string `json:"resources"`
	DataItems []string `json:"data_items"`
}

func parseMetadata(raw json.RawMessage) resourceMetadata {
	var m resourceMetadata
	if len(raw) == 0 {
		return m
	}
	_ = json.Unmarshal(raw, &m)
	return m
}

// Detect runs the resource/task/data detectors over a snapshot of active
// specialists and returns every conflict found, unresolved.
// clk stamps DetectedAt on each conflict found in this pass.
func Detect(active []*specialists.Specialist, clk clock.Clock) []Conflict {
	var found []Conflict
	found = append(found, detectResource(active)...)
	found = append(found, detectTask(active)...)
	found = append(found, detectData(active)...)
	now := clk.Now()
	for i := range found {
		found[i].DetectedAt = now
	}
	return found
}

func detectResource(active []*specialists.Specialist) []Conflict {
	byResource := make(map[string][]string)
	for _, s := range active {
		for _, r := range parseMetadata(s.Metadata).Resources {
			byResource[r] = append(byResource[r], s.ID)
		}
	}

	var conflicts []Conflict
	for resource, owners := range byResource {
		if len(owners) < 2 {
			continue
		}
		conflicts = append(conflicts, Conflict{
			ID:            ids.New(ids.Conflict),
			Kind:          KindResource,
			Severity:      resourceSeverity(resource, len(owners)),
			SpecialistIDs: sortedCopy(owners),
			Subject:       resource,
		})
	}
	return conflicts
}

func resourceSeverity(resource string, count int) Severity {
	lower := strings.ToLower(resource)
	switch {
	case strings.Contains(lower, "critical") || strings.Contains(lower, "system"):
		return SeverityCritical
	case strings.Contains(lower, "database") || strings.Contains(lower, "auth") || count > 3:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

func detectTask(active []*specialists.Specialist) []Conflict {
	byTask := make(map[string][]string)
	for _, s := range active {
		if s.CurrentSortie == nil || *s.CurrentSortie == "" {
			continue
		}
		byTask[*s.CurrentSortie] = append(byTask[*s.CurrentSortie], s.ID)
	}

	var conflicts []Conflict
	for task, owners := range byTask {
		if len(owners) < 2 {
			continue
		}
		conflicts = append(conflicts, Conflict{
			ID:            ids.New(ids.Conflict),
			Kind:          KindTask,
			Severity:      SeverityHigh,
			SpecialistIDs: sortedCopy(owners),
			Subject:       task,
		})
	}
	return conflicts
}

func detectData(active []*specialists.Specialist) []Conflict {
	byData := make(map[string][]string)
	for _, s := range active {
		for _, d := range parseMetadata(s.Metadata).DataItems {
			byData[d] = append(byData[d], s.ID)
		}
	}

	var conflicts []Conflict
	for data, owners := range byData {
		if len(owners) < 2 {
			continue
		}
		conflicts = append(conflicts, Conflict{
			ID:            ids.New(ids.Conflict),
			Kind:          KindData,
			Severity:      dataSeverity(data, len(owners)),
			SpecialistIDs: sortedCopy(owners),
			Subject:       data,
		})
	}
	return conflicts
}

func dataSeverity(data string, count int) Severity {
	lower := strings.ToLower(data)
	switch {
	case strings.Contains(lower, "sensitive") || strings.Contains(lower, "critical"):
		return SeverityCritical
	case count > 2:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

func sortedCopy(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	sort.Strings(out)
	return out
}
