package model

import (
	"testing"

	"github.com/fleettools/squawk/agentrunner"
)

func TestCapabilityForAgentType(t *testing.T) {
	tests := []struct {
		agentType agentrunner.AgentType
		expected  Capability
	}{
		{agentrunner.AgentFrontend, CapabilityCoding},
		{agentrunner.AgentBackend, CapabilityCoding},
		{agentrunner.AgentTesting, CapabilityFast},
		{agentrunner.AgentDocumentation, CapabilityWriting},
		{agentrunner.AgentSecurity, CapabilityReviewing},
		{agentrunner.AgentPerformance, CapabilityReviewing},
		{agentrunner.AgentType("unknown"), CapabilityWriting},
		{agentrunner.AgentType(""), CapabilityWriting},
	}

	for _, tt := range tests {
		t.Run(string(tt.agentType), func(t *testing.T) {
			got := CapabilityForAgentType(tt.agentType)
			if got != tt.expected {
				t.Errorf("CapabilityForAgentType(%q) = %q, want %q", tt.agentType, got, tt.expected)
			}
		})
	}
}

func TestCapabilityIsValid(t *testing.T) {
	tests := []struct {
		cap      Capability
		expected bool
	}{
		{CapabilityPlanning, true},
		{CapabilityWriting, true},
		{CapabilityCoding, true},
		{CapabilityReviewing, true},
		{CapabilityFast, true},
		{Capability("invalid"), false},
		{Capability(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.cap), func(t *testing.T) {
			got := tt.cap.IsValid()
			if got != tt.expected {
				t.Errorf("Capability(%q).IsValid() = %v, want %v", tt.cap, got, tt.expected)
			}
		})
	}
}

func TestParseCapability(t *testing.T) {
	tests := []struct {
		input    string
		expected Capability
	}{
		{"planning", CapabilityPlanning},
		{"writing", CapabilityWriting},
		{"coding", CapabilityCoding},
		{"reviewing", CapabilityReviewing},
		{"fast", CapabilityFast},
		{"invalid", ""},
		{"", ""},
		{"PLANNING", ""}, // case-sensitive
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseCapability(tt.input)
			if got != tt.expected {
				t.Errorf("ParseCapability(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCapabilityString(t *testing.T) {
	tests := []struct {
		cap      Capability
		expected string
	}{
		{CapabilityPlanning, "planning"},
		{CapabilityWriting, "writing"},
		{CapabilityCoding, "coding"},
		{CapabilityReviewing, "reviewing"},
		{CapabilityFast, "fast"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			got := tt.cap.String()
			if got != tt.expected {
				t.Errorf("Capability.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}
