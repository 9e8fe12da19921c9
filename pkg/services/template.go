package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/callforge/callflow/pkg/models"
	"github.com/callforge/callflow/pkg/workflow"
)

// Template handles the static template catalog and the derivation
// operations: preview, export, clone and import.
type Template struct {
	workflows *Workflow
	catalog   []*models.WorkflowTemplate
}

// NewTemplate creates the template service over the workflow service.
func NewTemplate(workflows *Workflow) *Template {
	return &Template{
		workflows: workflows,
		catalog:   builtinTemplates(),
	}
}

// ListTemplates filters the static catalog by category and language.
// Empty filters match everything.
func (t *Template) ListTemplates(category, language string) []*models.WorkflowTemplate {
	canonical := models.CanonicalCategory(category)

	templates := make([]*models.WorkflowTemplate, 0, len(t.catalog))

	for _, template := range t.catalog {
		if category != "" && template.Category != canonical {
			continue
		}

		if language != "" && !strings.EqualFold(template.Language, language) {
			continue
		}

		templates = append(templates, template)
	}

	return templates
}

// CreateFromTemplate instantiates a catalog template as a new workflow
// under the caller's name. Real node ids are minted by the create path.
func (t *Template) CreateFromTemplate(ctx context.Context, templateID, name, createdBy string) (*WorkflowSummary, error) {
	var template *models.WorkflowTemplate

	for _, candidate := range t.catalog {
		if candidate.ID == templateID {
			template = candidate

			break
		}
	}

	if template == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, templateID)
	}

	if name == "" {
		name = template.Name
	}

	nodes := make([]workflow.NodeDefinition, 0, len(template.Nodes))
	connections := make([]workflow.ConnectionDefinition, 0, len(template.Nodes))

	for _, node := range template.Nodes {
		nodes = append(nodes, workflow.NodeDefinition{
			TempID: node.Ref,
			Type:   node.Type,
			Label:  node.Label,
			Config: node.Config,
		})

		if node.NextRef != "" {
			connections = append(connections, workflow.ConnectionDefinition{
				Source:    node.Ref,
				Target:    node.NextRef,
				Condition: node.Condition,
			})
		}
	}

	return t.workflows.Create(ctx, CreateWorkflowRequest{
		Name:        name,
		Description: template.Description,
		Category:    template.Category,
		Language:    template.Language,
		Nodes:       nodes,
		Connections: connections,
		CreatedBy:   createdBy,
	})
}

// complexityPerNode is the weight of the preview complexity heuristic.
const complexityPerNode = 10

// NodeLayout is one node in the preview's position-indexed layout.
type NodeLayout struct {
	Position int            `json:"position"`
	NodeID   string         `json:"node_id"`
	Type     string         `json:"type"`
	Label    string         `json:"label"`
	Config   map[string]any `json:"config"`
}

// Preview is the visual projection of a workflow.
type Preview struct {
	WorkflowID        string       `json:"workflow_id"`
	Name              string       `json:"name"`
	Layout            []NodeLayout `json:"layout"`
	ConnectionCount   int          `json:"connection_count"`
	Complexity        int          `json:"complexity"`
	CulturallyAdapted bool         `json:"culturally_adapted"`
}

// PreviewWorkflow reshapes the workflow into a position-indexed layout
// with a cheap complexity heuristic and a cultural readiness label.
func (t *Template) PreviewWorkflow(ctx context.Context, id string) (*Preview, error) {
	entity, err := t.workflows.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	layout := make([]NodeLayout, 0, len(entity.Nodes))
	for _, node := range entity.NodesByPosition() {
		layout = append(layout, NodeLayout{
			Position: node.Position,
			NodeID:   node.ID,
			Type:     node.Type,
			Label:    node.Label,
			Config:   node.Config,
		})
	}

	return &Preview{
		WorkflowID:        entity.ID,
		Name:              entity.Name,
		Layout:            layout,
		ConnectionCount:   len(entity.Connections),
		Complexity:        len(entity.Nodes) * complexityPerNode,
		CulturallyAdapted: entity.HasCulturalSettings(),
	}, nil
}

// Export wraps the workflow in a transport envelope and returns a
// data-URI download link carrying the same JSON.
type Export struct {
	Envelope     *models.ExportEnvelope `json:"envelope"`
	DownloadLink string                 `json:"download_link"`
}

// ExportWorkflow serializes the full workflow for external transport.
func (t *Template) ExportWorkflow(ctx context.Context, id string) (*Export, error) {
	entity, err := t.workflows.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	envelope := &models.ExportEnvelope{
		Version:    models.ExportFormatVersion,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Workflow:   entity,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize export envelope: %w", err)
	}

	return &Export{
		Envelope:     envelope,
		DownloadLink: "data:application/json;base64," + base64.StdEncoding.EncodeToString(data),
	}, nil
}

// CloneWorkflow creates a wholly independent copy of the source
// workflow under a new name: new id, fresh node ids, version 1.
func (t *Template) CloneWorkflow(ctx context.Context, sourceID, name, createdBy string) (*WorkflowSummary, error) {
	if name == "" {
		return nil, ErrNameRequired
	}

	source, err := t.workflows.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	nodes, connections := definitionsOf(source)

	return t.workflows.Create(ctx, CreateWorkflowRequest{
		Name:             name,
		Description:      source.Description,
		Category:         source.Category,
		Language:         source.Language,
		CulturalSettings: source.CulturalSettings,
		Nodes:            nodes,
		Connections:      connections,
		CreatedBy:        createdBy,
	})
}

// ImportRequest accepts an exported envelope or a bare structure
// object. Name and category fall back to defaults when absent.
type ImportRequest struct {
	Envelope  *models.ExportEnvelope
	Name      string
	Category  string
	CreatedBy string
}

// ImportWorkflow creates a new workflow from previously exported data.
func (t *Template) ImportWorkflow(ctx context.Context, req ImportRequest) (*WorkflowSummary, error) {
	if req.Envelope == nil || req.Envelope.Workflow == nil {
		return nil, ErrInvalidImportData
	}

	source := req.Envelope.Workflow
	if len(source.Nodes) == 0 {
		return nil, ErrInvalidImportData
	}

	name := req.Name
	if name == "" {
		name = source.Name
	}

	if name == "" {
		name = "Imported Workflow"
	}

	category := req.Category
	if category == "" {
		category = source.Category
	}

	if category == "" {
		category = models.CategoryGeneral
	}

	nodes, connections := definitionsOf(source)

	return t.workflows.Create(ctx, CreateWorkflowRequest{
		Name:             name,
		Description:      source.Description,
		Category:         category,
		Language:         source.Language,
		CulturalSettings: source.CulturalSettings,
		Nodes:            nodes,
		Connections:      connections,
		CreatedBy:        req.CreatedBy,
	})
}

// definitionsOf converts a stored workflow back into create-call
// definitions, using the old node ids as temp ids so connections remap
// onto the freshly minted ones.
func definitionsOf(source *models.Workflow) ([]workflow.NodeDefinition, []workflow.ConnectionDefinition) {
	nodes := make([]workflow.NodeDefinition, 0, len(source.Nodes))
	for _, node := range source.NodesByPosition() {
		nodes = append(nodes, workflow.NodeDefinition{
			TempID:      node.ID,
			Type:        node.Type,
			Label:       node.Label,
			Description: node.Description,
			Config:      node.Config,
		})
	}

	connections := make([]workflow.ConnectionDefinition, 0, len(source.Connections))
	for _, connection := range source.Connections {
		connections = append(connections, workflow.ConnectionDefinition{
			Source:       connection.SourceNodeID,
			Target:       connection.TargetNodeID,
			SourceHandle: connection.SourceHandle,
			TargetHandle: connection.TargetHandle,
			Condition:    connection.Condition,
		})
	}

	return nodes, connections
}
