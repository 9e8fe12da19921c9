package workflow

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callforge/callflow/pkg/models"
	"github.com/callforge/callflow/pkg/registry"
)

func newTestValidator() *Validator {
	return NewValidator(registry.NewDefaultRegistry(slog.Default()))
}

func TestValidate_EmptyWorkflow(t *testing.T) {
	result := newTestValidator().Validate(&models.Workflow{ID: "wf-1"})

	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors, "workflow has no nodes")
	assert.Empty(t, result.Warnings)
}

func TestValidate_SingleGreetingNodeWithoutMessage(t *testing.T) {
	workflow := &models.Workflow{
		ID: "wf-1",
		Nodes: []*models.WorkflowNode{
			{ID: "n1", Type: models.NodeTypeGreeting, Label: "Greet", Config: map[string]any{}},
		},
	}

	result := newTestValidator().Validate(workflow)

	// One node, no connections: no orphan or entry/exit noise, just the
	// missing message warning.
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "has no message")
}

func TestValidate_MenuWithoutOptionsIsError(t *testing.T) {
	workflow := &models.Workflow{
		ID: "wf-1",
		Nodes: []*models.WorkflowNode{
			{ID: "n1", Type: models.NodeTypeMenu, Label: "Main Menu", Config: map[string]any{"prompt": "Press 1"}},
		},
	}

	result := newTestValidator().Validate(workflow)

	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "has no options")
}

func TestValidate_ConditionWithoutExpressionIsError(t *testing.T) {
	workflow := &models.Workflow{
		ID: "wf-1",
		Nodes: []*models.WorkflowNode{
			{ID: "n1", Type: models.NodeTypeCondition, Label: "Branch", Config: map[string]any{}},
		},
	}

	result := newTestValidator().Validate(workflow)

	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "has no condition expression")
}

func TestValidate_OrphanNodeWarning(t *testing.T) {
	workflow := &models.Workflow{
		ID: "wf-1",
		Nodes: []*models.WorkflowNode{
			{ID: "n1", Type: models.NodeTypeGreeting, Label: "Greet", Config: map[string]any{"message": "Hi"}},
			{ID: "n2", Type: models.NodeTypeTTS, Label: "Respond", Config: map[string]any{"text": "Bye"}},
			{ID: "n3", Type: models.NodeTypeTTS, Label: "Orphan", Config: map[string]any{"text": "Lost"}},
		},
		Connections: []*models.NodeConnection{
			{ID: "c1", SourceNodeID: "n1", TargetNodeID: "n2"},
		},
	}

	result := newTestValidator().Validate(workflow)

	assert.True(t, result.IsValid)

	found := false

	for _, warning := range result.Warnings {
		if warning == `node "Orphan" (n3) is not connected to the rest of the workflow` {
			found = true
		}
	}

	assert.True(t, found, "expected orphan warning, got %v", result.Warnings)
}

func TestValidate_UnregisteredTypeWarning(t *testing.T) {
	workflow := &models.Workflow{
		ID: "wf-1",
		Nodes: []*models.WorkflowNode{
			{ID: "n1", Type: "crm_lookup", Label: "CRM", Config: map[string]any{}},
		},
	}

	result := newTestValidator().Validate(workflow)

	assert.True(t, result.IsValid)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], `unrecognized type "crm_lookup"`)
}

func TestValidate_SchemaViolationWarning(t *testing.T) {
	workflow := &models.Workflow{
		ID: "wf-1",
		Nodes: []*models.WorkflowNode{
			{ID: "n1", Type: models.NodeTypeDepartmentRouting, Label: "Route", Config: map[string]any{"queue": "vip"}},
		},
	}

	result := newTestValidator().Validate(workflow)

	// Missing the required "department" property.
	assert.True(t, result.IsValid)
	assert.NotEmpty(t, result.Warnings)
}

func TestValidate_NoEntryPointWarning(t *testing.T) {
	workflow := &models.Workflow{
		ID: "wf-1",
		Nodes: []*models.WorkflowNode{
			{ID: "a", Type: models.NodeTypeGreeting, Label: "A", Config: map[string]any{"message": "Hi"}},
			{ID: "b", Type: models.NodeTypeTTS, Label: "B", Config: map[string]any{"text": "Bye"}},
		},
		Connections: []*models.NodeConnection{
			{ID: "c1", SourceNodeID: "a", TargetNodeID: "b"},
			{ID: "c2", SourceNodeID: "b", TargetNodeID: "a"},
		},
	}

	result := newTestValidator().Validate(workflow)

	assert.Contains(t, result.Warnings, "no entry point: every node has an incoming connection")
	assert.Contains(t, result.Warnings, "no exit point: every node has an outgoing connection")
}

func TestValidate_DecompositionSuggestion(t *testing.T) {
	workflow := &models.Workflow{ID: "wf-1"}
	for i := 0; i < maxRecommendedNodes+1; i++ {
		workflow.Nodes = append(workflow.Nodes, &models.WorkflowNode{
			ID:       string(rune('a' + i)),
			Type:     models.NodeTypeTTS,
			Label:    "Step",
			Position: i,
			Config:   map[string]any{"text": "ok"},
		})
	}

	result := newTestValidator().Validate(workflow)

	require.Len(t, result.Suggestions, 1)
	assert.Contains(t, result.Suggestions[0], "consider decomposing")
}

func TestValidate_MalformedConfigIsError(t *testing.T) {
	workflow := &models.Workflow{
		ID: "wf-1",
		Nodes: []*models.WorkflowNode{
			{ID: "n1", Type: models.NodeTypeMenu, Label: "Menu", Config: map[string]any{"options": "nope"}},
		},
	}

	result := newTestValidator().Validate(workflow)

	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "malformed configuration")
}
