// Package apidoc holds a route table documenting this system's HTTP
// contract. It is not a live mux — the HTTP server itself is out of
// scope here — it exists only so tests can assert the surface didn't
// drift.
package apidoc

// RouteSpec documents one HTTP endpoint: method, path (with
// `{placeholder}` path params), and the request/response type names the
// handler is expected to exchange.
type RouteSpec struct {
	Method   string
	Path     string
	ReqType  string
	RespType string
}

// Routes is the full documented API surface.
var Routes = []RouteSpec{
	{Method: "POST", Path: "/api/v1/missions/decompose", ReqType: "DecomposeRequest", RespType: "DecomposeResponse"},
	{Method: "POST", Path: "/api/v1/missions", ReqType: "CreateMissionRequest", RespType: "Mission"},
	{Method: "GET", Path: "/api/v1/missions", ReqType: "", RespType: "[]Mission"},
	{Method: "GET", Path: "/api/v1/missions/{id}", ReqType: "", RespType: "Mission"},
	{Method: "PATCH", Path: "/api/v1/missions/{id}/progress", ReqType: "ProgressUpdate", RespType: "Mission"},

	{Method: "POST", Path: "/api/v1/agents/spawn", ReqType: "SpawnRequest", RespType: "Specialist"},
	{Method: "GET", Path: "/api/v1/agents", ReqType: "", RespType: "[]Specialist"},
	{Method: "GET", Path: "/api/v1/agents/{id}", ReqType: "", RespType: "Specialist"},
	{Method: "DELETE", Path: "/api/v1/agents/{id}", ReqType: "", RespType: ""},
	{Method: "POST", Path: "/api/v1/agents/{id}/progress", ReqType: "AgentProgress", RespType: ""},
	{Method: "POST", Path: "/api/v1/agents/{id}/heartbeat", ReqType: "AgentHeartbeat", RespType: ""},
	{Method: "GET", Path: "/api/v1/agents/{id}/health", ReqType: "", RespType: "HealthStatus"},
	{Method: "GET", Path: "/api/v1/agents/system-health", ReqType: "", RespType: "SystemHealth"},

	{Method: "POST", Path: "/api/v1/checkpoints", ReqType: "CreateCheckpointRequest", RespType: "Checkpoint"},
	{Method: "GET", Path: "/api/v1/checkpoints", ReqType: "", RespType: "[]Checkpoint"},
	{Method: "GET", Path: "/api/v1/checkpoints/latest/{mission_id}", ReqType: "", RespType: "Checkpoint"},
	{Method: "DELETE", Path: "/api/v1/checkpoints/{id}", ReqType: "", RespType: ""},
	{Method: "POST", Path: "/api/v1/checkpoints/{id}/resume", ReqType: "ResumeRequest", RespType: "RecoveryResult"},

	{Method: "POST", Path: "/api/v1/locks/acquire", ReqType: "AcquireLockRequest", RespType: "Lock"},
	{Method: "POST", Path: "/api/v1/locks/{id}/release", ReqType: "", RespType: ""},
}
