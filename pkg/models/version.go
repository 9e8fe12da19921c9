package models

import "time"

// WorkflowVersion is an immutable snapshot of a workflow's full structure
// and settings. Version numbers start at 1 and increase by exactly one per
// structural or cultural-settings change; a version row is never mutated
// after creation.
type WorkflowVersion struct {
	ID                string            `json:"id"`
	WorkflowID        string            `json:"workflow_id"`
	Version           int               `json:"version"`
	ChangeDescription string            `json:"change_description"`
	Snapshot          *WorkflowSnapshot `json:"snapshot"`
	CreatedBy         string            `json:"created_by"`
	CreatedAt         time.Time         `json:"created_at"`
}

// WorkflowSnapshot is the JSON payload embedded in a version: the
// workflow's metadata plus its complete node and connection lists as they
// stood when the version was written.
type WorkflowSnapshot struct {
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	Category         string            `json:"category"`
	Language         string            `json:"language"`
	Nodes            []*WorkflowNode   `json:"nodes"`
	Connections      []*NodeConnection `json:"connections"`
	CulturalSettings map[string]any    `json:"cultural_settings,omitempty"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
}

// SnapshotOf captures the workflow's current structure for versioning.
func SnapshotOf(workflow *Workflow) *WorkflowSnapshot {
	return &WorkflowSnapshot{
		Name:             workflow.Name,
		Description:      workflow.Description,
		Category:         workflow.Category,
		Language:         workflow.Language,
		Nodes:            workflow.Nodes,
		Connections:      workflow.Connections,
		CulturalSettings: workflow.CulturalSettings,
		Metadata: map[string]any{
			"captured_at": time.Now().UTC().Format(time.RFC3339),
			"language":    workflow.Language,
			"is_template": workflow.IsTemplate,
		},
	}
}
