package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Execution describes one command run in a transport-friendly format.
type Execution struct {
	ID         string   `json:"id"`
	Argv       []string `json:"argv"`
	State      string   `json:"state"`
	Outcome    string   `json:"outcome,omitempty"`
	Success    bool     `json:"success"`
	ExitCode   int      `json:"exitCode"`
	Output     string   `json:"output,omitempty"`
	Error      string   `json:"error,omitempty"`
	StartedAt  string   `json:"startedAt,omitempty"`
	FinishedAt string   `json:"finishedAt,omitempty"`
	DeadlineAt string   `json:"deadlineAt,omitempty"`
	DurationMs int64    `json:"durationMs"`
	PID        int      `json:"pid,omitempty"`
}

// Completed reports whether the execution has a delivered result.
func (e Execution) Completed() bool {
	return e.Outcome != ""
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running        bool               `json:"running"`
	PID            int                `json:"pid"`
	Busy           bool               `json:"busy"`
	Current        *Execution         `json:"current,omitempty"`
	TimeoutSeconds int                `json:"timeoutSeconds"`
	JournalPath    string             `json:"journalPath,omitempty"`
	LockFilePath   string             `json:"lockFilePath"`
	Dependencies   []DependencyStatus `json:"dependencies"`
	LibraryVersion string             `json:"libraryVersion,omitempty"`
	BinaryPath     string             `json:"binaryPath,omitempty"`
	StartedAt      string             `json:"startedAt,omitempty"`
}

// VersionInfo reports the binary builds known to the daemon.
type VersionInfo struct {
	Device  string `json:"device"`
	Library string `json:"library"`
}

// ExecutionListResponse wraps a collection of executions.
type ExecutionListResponse struct {
	Executions []Execution `json:"executions"`
}

// ExecutionResponse wraps a single execution.
type ExecutionResponse struct {
	Execution Execution `json:"execution"`
}
