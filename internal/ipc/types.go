package ipc

import "ffexec/internal/api"

// serviceName is the net/rpc receiver name shared by server and client.
const serviceName = "FFExec"

// Execution mirrors the HTTP API execution DTO for IPC callers.
type Execution = api.Execution

// DependencyStatus describes availability of an external dependency.
type DependencyStatus = api.DependencyStatus

// ExecuteRequest submits one command to the daemon.
type ExecuteRequest struct {
	Args           []string          `json:"args"`
	Env            map[string]string `json:"env,omitempty"`
	TimeoutSeconds int               `json:"timeout_seconds,omitempty"`
	RequestID      string            `json:"request_id,omitempty"`
}

// ExecuteResponse identifies the accepted execution.
type ExecuteResponse struct {
	Execution Execution `json:"execution"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse wraps the daemon status snapshot.
type StatusResponse struct {
	api.DaemonStatus
}

// KillRequest kills the in-flight command.
type KillRequest struct{}

// KillResponse reports whether a command was in flight.
type KillResponse struct {
	Killed bool `json:"killed"`
}

// WaitReadyRequest blocks until the executor is idle. A zero timeout uses the
// daemon's configured readiness timeout.
type WaitReadyRequest struct {
	TimeoutMillis int64 `json:"timeout_ms,omitempty"`
}

// WaitReadyResponse reports the readiness outcome.
type WaitReadyResponse struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message,omitempty"`
}

// ResultRequest fetches one execution. When Wait is set the call blocks until
// the execution completes or TimeoutMillis elapses.
type ResultRequest struct {
	ID            string `json:"id"`
	Wait          bool   `json:"wait,omitempty"`
	TimeoutMillis int64  `json:"timeout_ms,omitempty"`
}

// ResultResponse contains a single execution.
type ResultResponse struct {
	Execution Execution `json:"execution"`
}

// HistoryRequest lists journaled executions.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryResponse contains executions, newest first.
type HistoryResponse struct {
	Executions []Execution `json:"executions"`
}

// VersionRequest fetches binary versions.
type VersionRequest struct{}

// VersionResponse reports the device and library versions.
type VersionResponse struct {
	api.VersionInfo
}
