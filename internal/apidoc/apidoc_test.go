package apidoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoutes_NoDuplicateMethodPath(t *testing.T) {
	seen := make(map[string]bool)
	for _, r := range Routes {
		key := r.Method + " " + r.Path
		assert.False(t, seen[key], "duplicate route %s", key)
		seen[key] = true
	}
}

func TestRoutes_EveryRouteHasMethodAndPath(t *testing.T) {
	for _, r := range Routes {
		assert.NotEmpty(t, r.Method)
		assert.NotEmpty(t, r.Path)
	}
}

func TestRoutes_DocumentsDecomposeEndpoint(t *testing.T) {
	assert.Contains(t, Routes, RouteSpec{
		Method: "POST", Path: "/api/v1/missions/decompose",
		ReqType: "DecomposeRequest", RespType: "DecomposeResponse",
	})
}

func TestRoutes_DocumentsCheckpointResumeEndpoint(t *testing.T) {
	assert.Contains(t, Routes, RouteSpec{
		Method: "POST", Path: "/api/v1/checkpoints/{id}/resume",
		ReqType: "ResumeRequest", RespType: "RecoveryResult",
	})
}

func TestRoutes_AgentHeartbeatAndProgressMatchAgentrunnerSink(t *testing.T) {
	var sawHeartbeat, sawProgress bool
	for _, r := range Routes {
		if r.Path == "/api/v1/agents/{id}/heartbeat" && r.Method == "POST" {
			sawHeartbeat = true
		}
		if r.Path == "/api/v1/agents/{id}/progress" && r.Method == "POST" {
			sawProgress = true
		}
	}
	assert.True(t, sawHeartbeat, "agentrunner.HTTPSink posts here")
	assert.True(t, sawProgress, "agentrunner.HTTPSink posts here")
}
