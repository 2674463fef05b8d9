package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_LowSeverityAutoResolvesUnderDefaultThreshold(t *testing.T) {
	c := Conflict{Kind: KindResource, Severity: SeverityLow, Subject: "x", SpecialistIDs: []string{"a", "b"}}
	resolved := Resolve(c, DefaultAutoResolveThreshold)
	assert.Equal(t, StrategyFirstComeFirstServe, resolved.Strategy)
	assert.True(t, resolved.AutoResolved)
	assert.NotEmpty(t, resolved.ResolutionPlan)
	assert.NotEmpty(t, resolved.Actions)
}

func TestResolve_CriticalSeverityNeverAutoResolves(t *testing.T) {
	c := Conflict{Kind: KindData, Severity: SeverityCritical, Subject: "x", SpecialistIDs: []string{"a", "b"}}
	resolved := Resolve(c, DefaultAutoResolveThreshold)
	assert.Equal(t, StrategyArbitration, resolved.Strategy)
	assert.False(t, resolved.AutoResolved)
}

func TestResolve_TaskConflictAlwaysSplitsAtHighSeverity(t *testing.T) {
	c := Conflict{Kind: KindTask, Severity: SeverityHigh, Subject: "srt-1", SpecialistIDs: []string{"a", "b"}}
	resolved := Resolve(c, SeverityLow)
	assert.Equal(t, StrategyTaskSplitting, resolved.Strategy)
	assert.False(t, resolved.AutoResolved, "threshold below high must not auto-resolve")
}

func TestResolveAll_PreservesOrderAndCount(t *testing.T) {
	in := []Conflict{
		{Kind: KindResource, Severity: SeverityLow, Subject: "r1", SpecialistIDs: []string{"a", "b"}},
		{Kind: KindData, Severity: SeverityMedium, Subject: "d1", SpecialistIDs: []string{"a", "c"}},
	}
	out := ResolveAll(in, DefaultAutoResolveThreshold)
	assert.Len(t, out, 2)
	assert.Equal(t, "r1", out[0].Subject)
	assert.Equal(t, "d1", out[1].Subject)
}

func TestResolve_NeverMutatesSpecialistState(t *testing.T) {
	// Resolve only ever returns a new Conflict value; it has no access to
	// a specialists.Registry and so cannot mutate specialist state
	// itself — callers apply Actions via their own event
	// handling. This test documents that contract at the signature level.
	c := Conflict{Kind: KindResource, Severity: SeverityMedium, Subject: "x"}
	_ = Resolve(c, DefaultAutoResolveThreshold)
}
