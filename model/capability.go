// Package model provides capability-based model selection for sorties.
// Instead of hardcoding model names, a sortie's agent type maps to a
// semantic capability (planning, writing, coding) and the registry
// resolves that capability to available models with a fallback chain.
package model

import "github.com/fleettools/squawk/agentrunner"

// Capability represents a semantic capability for model selection.
// Instead of specifying "claude-sonnet", callers specify "writing" or
// "planning".
type Capability string

const (
	// CapabilityPlanning is for high-level reasoning, architecture decisions.
	CapabilityPlanning Capability = "planning"

	// CapabilityWriting is for documentation, plans, specifications.
	CapabilityWriting Capability = "writing"

	// CapabilityCoding is for code generation, implementation.
	CapabilityCoding Capability = "coding"

	// CapabilityReviewing is for code review, quality analysis.
	CapabilityReviewing Capability = "reviewing"

	// CapabilityFast is for quick responses, simple tasks.
	CapabilityFast Capability = "fast"
)

// AgentTypeCapabilities maps a sortie's agent type to its default
// capability, used when the sortie specifies no explicit capability or
// model.
var AgentTypeCapabilities = map[agentrunner.AgentType]Capability{
	agentrunner.AgentFrontend:      CapabilityCoding,
	agentrunner.AgentBackend:       CapabilityCoding,
	agentrunner.AgentTesting:       CapabilityFast,
	agentrunner.AgentDocumentation: CapabilityWriting,
	agentrunner.AgentSecurity:      CapabilityReviewing,
	agentrunner.AgentPerformance:   CapabilityReviewing,
}

// CapabilityForAgentType returns the default capability for a sortie's
// agent type, falling back to CapabilityWriting for an unrecognized
// type.
func CapabilityForAgentType(agentType agentrunner.AgentType) Capability {
	if capVal, ok := AgentTypeCapabilities[agentType]; ok {
		return capVal
	}
	return CapabilityWriting
}

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityPlanning, CapabilityWriting, CapabilityCoding, CapabilityReviewing, CapabilityFast:
		return true
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for invalid values.
func ParseCapability(s string) Capability {
	capVal := Capability(s)
	if capVal.IsValid() {
		return capVal
	}
	return ""
}
