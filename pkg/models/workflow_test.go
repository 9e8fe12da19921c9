package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalCategory(t *testing.T) {
	assert.Equal(t, "CUSTOMER_SERVICE", CanonicalCategory("customer_service"))
	assert.Equal(t, "CUSTOMER_SERVICE", CanonicalCategory("  Customer_Service "))
	assert.Equal(t, "BANKING", CanonicalCategory("BANKING"))

	// Idempotent: canonicalizing twice changes nothing.
	assert.Equal(t, CanonicalCategory("banking"), CanonicalCategory(CanonicalCategory("banking")))
}

func graphFixture() *Workflow {
	return &Workflow{
		ID: "wf-1",
		Nodes: []*WorkflowNode{
			{ID: "n1", Type: NodeTypeGreeting, Position: 0},
			{ID: "n2", Type: NodeTypeMenu, Position: 1},
			{ID: "n3", Type: NodeTypeDepartmentRouting, Position: 2},
		},
		Connections: []*NodeConnection{
			{ID: "c1", SourceNodeID: "n1", TargetNodeID: "n2"},
			{ID: "c2", SourceNodeID: "n2", TargetNodeID: "n3"},
		},
	}
}

func TestWorkflow_SourceAndTargetConnections(t *testing.T) {
	workflow := graphFixture()

	sources := workflow.SourceConnections("n2")
	require.Len(t, sources, 1)
	assert.Equal(t, "c2", sources[0].ID)

	targets := workflow.TargetConnections("n2")
	require.Len(t, targets, 1)
	assert.Equal(t, "c1", targets[0].ID)

	assert.Empty(t, workflow.SourceConnections("n3"))
	assert.Empty(t, workflow.TargetConnections("n1"))
}

func TestWorkflow_EntryAndExitNodes(t *testing.T) {
	workflow := graphFixture()

	entries := workflow.EntryNodes()
	require.Len(t, entries, 1)
	assert.Equal(t, "n1", entries[0].ID)

	exits := workflow.ExitNodes()
	require.Len(t, exits, 1)
	assert.Equal(t, "n3", exits[0].ID)
}

func TestWorkflow_NodesByPosition(t *testing.T) {
	workflow := &Workflow{
		Nodes: []*WorkflowNode{
			{ID: "b", Position: 1},
			{ID: "c", Position: 2},
			{ID: "a", Position: 0},
		},
	}

	ordered := workflow.NodesByPosition()
	require.Len(t, ordered, 3)
	assert.Equal(t, "a", ordered[0].ID)
	assert.Equal(t, "b", ordered[1].ID)
	assert.Equal(t, "c", ordered[2].ID)

	// Original slice order is untouched.
	assert.Equal(t, "b", workflow.Nodes[0].ID)
}

func TestWorkflow_HasCulturalSettings(t *testing.T) {
	assert.False(t, (&Workflow{}).HasCulturalSettings())
	assert.False(t, (&Workflow{CulturalSettings: map[string]any{}}).HasCulturalSettings())
	assert.True(t, (&Workflow{CulturalSettings: map[string]any{"register": "formal"}}).HasCulturalSettings())
}

func TestDecodeNodeConfig(t *testing.T) {
	decoded, err := DecodeNodeConfig(NodeTypeMenu, map[string]any{
		"prompt": "Press 1",
		"options": []any{
			map[string]any{"digit": "1", "label": "Support"},
		},
		"timeout_seconds": 10,
	})
	require.NoError(t, err)

	menu, ok := decoded.(*MenuConfig)
	require.True(t, ok)
	assert.Equal(t, "Press 1", menu.Prompt)
	require.Len(t, menu.Options, 1)
	assert.Equal(t, "1", menu.Options[0].Digit)
	assert.Equal(t, 10, menu.Timeout)
}

func TestDecodeNodeConfig_UnknownTypePassesThrough(t *testing.T) {
	config := map[string]any{"anything": true}

	decoded, err := DecodeNodeConfig("custom_step", config)
	require.NoError(t, err)
	assert.Equal(t, config, decoded)
}

func TestDecodeNodeConfig_MalformedConfig(t *testing.T) {
	_, err := DecodeNodeConfig(NodeTypeMenu, map[string]any{
		"options": "not-an-array",
	})
	assert.Error(t, err)
}

func TestSnapshotOf(t *testing.T) {
	workflow := graphFixture()
	workflow.Name = "Support Line"
	workflow.Category = CategoryCustomerService
	workflow.Language = "ml"
	workflow.CulturalSettings = map[string]any{"register": "formal"}

	snapshot := SnapshotOf(workflow)

	assert.Equal(t, "Support Line", snapshot.Name)
	assert.Len(t, snapshot.Nodes, 3)
	assert.Len(t, snapshot.Connections, 2)
	assert.Equal(t, map[string]any{"register": "formal"}, snapshot.CulturalSettings)
	assert.Equal(t, "ml", snapshot.Metadata["language"])
}

func TestExecutionStatus_IsTerminal(t *testing.T) {
	assert.False(t, ExecutionStatusPending.IsTerminal())
	assert.False(t, ExecutionStatusRunning.IsTerminal())
	assert.True(t, ExecutionStatusSuccess.IsTerminal())
	assert.True(t, ExecutionStatusFailed.IsTerminal())
}
