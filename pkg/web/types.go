// Package web provides HTTP request and response types for the workflow API.
package web

import (
	"github.com/callforge/callflow/pkg/workflow"
)

// NodeInput is one node definition in a create or update body. The id
// field is a caller-chosen temporary handle used to wire connections.
type NodeInput struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"  validate:"required"`
	Label          string         `json:"label" validate:"required"`
	Description    string         `json:"description,omitempty"`
	Config         map[string]any `json:"config"`
	CulturalConfig map[string]any `json:"cultural_config,omitempty"`
}

// ConnectionInput is one edge definition in a create or update body.
type ConnectionInput struct {
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceHandle string `json:"source_handle,omitempty"`
	TargetHandle string `json:"target_handle,omitempty"`
	Condition    string `json:"condition,omitempty"`
}

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name             string            `json:"name"     validate:"required"`
	Description      string            `json:"description,omitempty"`
	Category         string            `json:"category" validate:"required"`
	Language         string            `json:"language,omitempty"`
	CulturalSettings map[string]any    `json:"cultural_settings,omitempty"`
	Nodes            []NodeInput       `json:"nodes,omitempty"`
	Connections      []ConnectionInput `json:"connections,omitempty"`
	IsActive         *bool             `json:"is_active,omitempty"`
	IsTemplate       bool              `json:"is_template,omitempty"`
	CreatedBy        string            `json:"created_by,omitempty"`
}

// UpdateWorkflowRequest represents the request body for updating an existing
// workflow. All fields are optional; a present nodes or connections array
// replaces the workflow's structure wholesale and appends a version.
type UpdateWorkflowRequest struct {
	Name              *string            `json:"name,omitempty"`
	Description       *string            `json:"description,omitempty"`
	Category          *string            `json:"category,omitempty"`
	IsActive          *bool              `json:"is_active,omitempty"`
	Nodes             *[]NodeInput       `json:"nodes,omitempty"`
	Connections       *[]ConnectionInput `json:"connections,omitempty"`
	CulturalSettings  map[string]any     `json:"cultural_settings,omitempty"`
	ChangeDescription string             `json:"change_description,omitempty"`
	UpdatedBy         string             `json:"updated_by,omitempty"`
}

// CulturalSettingsRequest represents the body of a cultural-settings update.
type CulturalSettingsRequest struct {
	CulturalSettings map[string]any `json:"cultural_settings" validate:"required"`
	UpdatedBy        string         `json:"updated_by,omitempty"`
}

// ExecuteRequest carries the input payload for execute and test calls.
type ExecuteRequest struct {
	Input map[string]any `json:"input,omitempty"`
}

// CloneWorkflowRequest represents the body of a clone call.
type CloneWorkflowRequest struct {
	Name      string `json:"name" validate:"required"`
	CreatedBy string `json:"created_by,omitempty"`
}

// ImportWorkflowRequest accepts an exported envelope or a bare
// structure object.
type ImportWorkflowRequest struct {
	Version          string            `json:"version,omitempty"`
	ExportedAt       string            `json:"exported_at,omitempty"`
	Workflow         *ImportedWorkflow `json:"workflow,omitempty"`
	Nodes            []NodeInput       `json:"nodes,omitempty"`
	Connections      []ConnectionInput `json:"connections,omitempty"`
	CulturalSettings map[string]any    `json:"cultural_settings,omitempty"`
	Name             string            `json:"name,omitempty"`
	Category         string            `json:"category,omitempty"`
	CreatedBy        string            `json:"created_by,omitempty"`
}

// ImportedWorkflow is the workflow section of an export envelope.
type ImportedWorkflow struct {
	Name             string            `json:"name,omitempty"`
	Description      string            `json:"description,omitempty"`
	Category         string            `json:"category,omitempty"`
	Language         string            `json:"language,omitempty"`
	CulturalSettings map[string]any    `json:"cultural_settings,omitempty"`
	Nodes            []NodeInput       `json:"nodes,omitempty"`
	Connections      []ConnectionInput `json:"connections,omitempty"`
}

// CreateFromTemplateRequest instantiates a catalog template.
type CreateFromTemplateRequest struct {
	TemplateID string `json:"template_id" validate:"required"`
	Name       string `json:"name,omitempty"`
	CreatedBy  string `json:"created_by,omitempty"`
}

func nodeDefinitions(inputs []NodeInput) []workflow.NodeDefinition {
	definitions := make([]workflow.NodeDefinition, 0, len(inputs))
	for _, input := range inputs {
		definitions = append(definitions, workflow.NodeDefinition{
			TempID:         input.ID,
			Type:           input.Type,
			Label:          input.Label,
			Description:    input.Description,
			Config:         input.Config,
			CulturalConfig: input.CulturalConfig,
		})
	}

	return definitions
}

func connectionDefinitions(inputs []ConnectionInput) []workflow.ConnectionDefinition {
	definitions := make([]workflow.ConnectionDefinition, 0, len(inputs))
	for _, input := range inputs {
		definitions = append(definitions, workflow.ConnectionDefinition{
			Source:       input.Source,
			Target:       input.Target,
			SourceHandle: input.SourceHandle,
			TargetHandle: input.TargetHandle,
			Condition:    input.Condition,
		})
	}

	return definitions
}
