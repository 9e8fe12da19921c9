package models

import "time"

// ExecutionStatus is the lifecycle state of a workflow execution.
// RUNNING transitions to exactly one of SUCCESS or FAILED; terminal
// records are never reopened.
type ExecutionStatus string

const (
	ExecutionStatusPending ExecutionStatus = "PENDING"
	ExecutionStatusRunning ExecutionStatus = "RUNNING"
	ExecutionStatusSuccess ExecutionStatus = "SUCCESS"
	ExecutionStatusFailed  ExecutionStatus = "FAILED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusSuccess || s == ExecutionStatusFailed
}

// WorkflowExecution is a single interpretation run of a workflow's current
// node set against a caller-supplied input. CompletedAt is set if and only
// if the status is terminal.
type WorkflowExecution struct {
	ID          string          `json:"id"`
	WorkflowID  string          `json:"workflow_id"`
	Status      ExecutionStatus `json:"status"`
	Input       map[string]any  `json:"input,omitempty"`
	Output      map[string]any  `json:"output,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// NodeTrace records one executed step: which node ran, how long the
// simulated processing took, and what it produced.
type NodeTrace struct {
	NodeID     string         `json:"node_id"`
	NodeType   string         `json:"node_type"`
	Label      string         `json:"label"`
	DurationMS int64          `json:"duration_ms"`
	Output     map[string]any `json:"output"`
}

// ExecutionResult is what an execute/test call returns to the caller.
// Success false with a populated Error means the workflow failed while
// the platform itself worked; the transport still answers 200-class.
type ExecutionResult struct {
	Success      bool           `json:"success"`
	ExecutionID  string         `json:"execution_id"`
	WorkflowID   string         `json:"workflow_id"`
	WorkflowName string         `json:"workflow_name"`
	Trace        []NodeTrace    `json:"trace"`
	Output       map[string]any `json:"output,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// ExecutionStats aggregates terminal outcomes for a workflow.
type ExecutionStats struct {
	Total       int     `json:"total"`
	Succeeded   int     `json:"succeeded"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}
