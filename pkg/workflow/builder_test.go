package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callforge/callflow/pkg/models"
)

func TestBuildGraph_RemapsTempIDs(t *testing.T) {
	workflow := &models.Workflow{ID: "wf-1", Language: models.DefaultLanguage}

	err := BuildGraph(workflow,
		[]NodeDefinition{
			{TempID: "greet", Type: models.NodeTypeGreeting, Label: "Greet"},
			{TempID: "menu", Type: models.NodeTypeMenu, Label: "Menu"},
		},
		[]ConnectionDefinition{
			{Source: "greet", Target: "menu"},
		},
	)
	require.NoError(t, err)

	require.Len(t, workflow.Nodes, 2)
	require.Len(t, workflow.Connections, 1)

	// Temp ids never survive into the stored graph.
	assert.NotEqual(t, "greet", workflow.Nodes[0].ID)
	assert.NotEqual(t, "menu", workflow.Nodes[1].ID)
	assert.NotEqual(t, workflow.Nodes[0].ID, workflow.Nodes[1].ID)

	connection := workflow.Connections[0]
	assert.Equal(t, workflow.Nodes[0].ID, connection.SourceNodeID)
	assert.Equal(t, workflow.Nodes[1].ID, connection.TargetNodeID)
	assert.Equal(t, "wf-1", connection.WorkflowID)
}

func TestBuildGraph_PositionFollowsArrayOrder(t *testing.T) {
	workflow := &models.Workflow{ID: "wf-1"}

	err := BuildGraph(workflow, []NodeDefinition{
		{TempID: "a", Type: models.NodeTypeGreeting, Label: "A"},
		{TempID: "b", Type: models.NodeTypeMenu, Label: "B"},
		{TempID: "c", Type: models.NodeTypeTTS, Label: "C"},
	}, nil)
	require.NoError(t, err)

	for index, node := range workflow.Nodes {
		assert.Equal(t, index, node.Position)
		assert.Equal(t, "wf-1", node.WorkflowID)
	}
}

func TestBuildGraph_UnknownEndpointPassesThrough(t *testing.T) {
	workflow := &models.Workflow{ID: "wf-1"}

	err := BuildGraph(workflow,
		[]NodeDefinition{{TempID: "greet", Type: models.NodeTypeGreeting, Label: "Greet"}},
		[]ConnectionDefinition{{Source: "greet", Target: "existing-node-id"}},
	)
	require.NoError(t, err)

	require.Len(t, workflow.Connections, 1)
	assert.Equal(t, "existing-node-id", workflow.Connections[0].TargetNodeID)
}

func TestBuildGraph_DefaultHandles(t *testing.T) {
	workflow := &models.Workflow{ID: "wf-1"}

	err := BuildGraph(workflow,
		[]NodeDefinition{
			{TempID: "a", Type: models.NodeTypeGreeting, Label: "A"},
			{TempID: "b", Type: models.NodeTypeMenu, Label: "B"},
		},
		[]ConnectionDefinition{
			{Source: "a", Target: "b"},
			{Source: "a", Target: "b", SourceHandle: "digit-1", TargetHandle: "in"},
		},
	)
	require.NoError(t, err)

	require.Len(t, workflow.Connections, 2)
	assert.Equal(t, models.DefaultSourceHandle, workflow.Connections[0].SourceHandle)
	assert.Equal(t, models.DefaultTargetHandle, workflow.Connections[0].TargetHandle)
	assert.Equal(t, "digit-1", workflow.Connections[1].SourceHandle)
	assert.Equal(t, "in", workflow.Connections[1].TargetHandle)
}

func TestBuildGraph_CulturalConfigLayering(t *testing.T) {
	workflow := &models.Workflow{ID: "wf-1", Language: "ml"}

	err := BuildGraph(workflow, []NodeDefinition{
		{
			TempID: "greet",
			Type:   models.NodeTypeGreeting,
			Label:  "Greet",
			Config: map[string]any{
				"message":  "Welcome",
				"language": "en",
			},
			CulturalConfig: map[string]any{
				"message":       "നമസ്കാരം",
				"cultural_tone": "formal",
			},
		},
	}, nil)
	require.NoError(t, err)

	config := workflow.Nodes[0].Config
	assert.Equal(t, "നമസ്കാരം", config["message"])
	assert.Equal(t, "formal", config["cultural_tone"])
	assert.Equal(t, "en", config["language"])
}

func TestBuildGraph_CulturalConfigIgnoredForDefaultLanguage(t *testing.T) {
	workflow := &models.Workflow{ID: "wf-1", Language: models.DefaultLanguage}

	err := BuildGraph(workflow, []NodeDefinition{
		{
			TempID:         "greet",
			Type:           models.NodeTypeGreeting,
			Label:          "Greet",
			Config:         map[string]any{"message": "Welcome"},
			CulturalConfig: map[string]any{"message": "override"},
		},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Welcome", workflow.Nodes[0].Config["message"])
}

func TestBuildGraph_NilConfigBecomesEmptyMap(t *testing.T) {
	workflow := &models.Workflow{ID: "wf-1"}

	err := BuildGraph(workflow, []NodeDefinition{
		{TempID: "a", Type: models.NodeTypeGreeting, Label: "A"},
	}, nil)
	require.NoError(t, err)

	assert.NotNil(t, workflow.Nodes[0].Config)
	assert.Empty(t, workflow.Nodes[0].Config)
}
