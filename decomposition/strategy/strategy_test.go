package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelect_FileBasedKeywordMatch(t *testing.T) {
	result := Select("refactor all API handlers to use the new error helper")
	assert.Equal(t, FileBased, result.Selected)
	assert.Contains(t, result.MatchedKeywords, "refactor")
	assert.GreaterOrEqual(t, result.Confidence, 0.3)
}

func TestSelect_TableDriven(t *testing.T) {
	tests := []struct {
		name     string
		task     string
		expected Strategy
	}{
		{"feature", "add a new endpoint to implement the export feature", FeatureBased},
		{"risk", "fix the security vulnerability in the auth flow", RiskBased},
		{"research", "investigate and explore options for the new caching layer", ResearchBased},
		{"file", "migrate the legacy module and rename its package", FileBased},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := Select(tc.task)
			assert.Equal(t, tc.expected, result.Selected)
		})
	}
}

func TestSelect_NoKeywordsDefaultsToFirstInOrder(t *testing.T) {
	result := Select("")
	assert.Equal(t, FileBased, result.Selected)
	assert.Equal(t, 0.0, result.Confidence)
}

func TestDetectPatterns(t *testing.T) {
	result := Select("optimize the concurrent database queries in the api layer")
	assert.Contains(t, result.DetectedPatterns, PatternPerformanceFocus)
	assert.Contains(t, result.DetectedPatterns, PatternConcurrencyFocus)
	assert.Contains(t, result.DetectedPatterns, PatternDatabaseChange)
	assert.Contains(t, result.DetectedPatterns, PatternAPIChange)
}
