package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callforge/callflow/pkg/models"
)

func branchingWorkflow() *models.Workflow {
	return &models.Workflow{
		ID: "wf-1",
		Nodes: []*models.WorkflowNode{
			{ID: "intent", Type: models.NodeTypeNLU, Position: 0},
			{ID: "balance", Type: models.NodeTypeTTS, Position: 1},
			{ID: "fallback", Type: models.NodeTypeDepartmentRouting, Position: 2},
		},
		Connections: []*models.NodeConnection{
			{ID: "c1", SourceNodeID: "intent", TargetNodeID: "balance", Condition: `intent == "account_balance"`},
			{ID: "c2", SourceNodeID: "intent", TargetNodeID: "fallback"},
		},
	}
}

func TestEntryNode_LowestPositionWins(t *testing.T) {
	workflow := &models.Workflow{
		Nodes: []*models.WorkflowNode{
			{ID: "late", Position: 5},
			{ID: "early", Position: 1},
		},
	}

	entry := EntryNode(workflow)
	require.NotNil(t, entry)
	assert.Equal(t, "early", entry.ID)
}

func TestEntryNode_NoneWhenFullyCyclic(t *testing.T) {
	workflow := &models.Workflow{
		Nodes: []*models.WorkflowNode{
			{ID: "a", Position: 0},
			{ID: "b", Position: 1},
		},
		Connections: []*models.NodeConnection{
			{ID: "c1", SourceNodeID: "a", TargetNodeID: "b"},
			{ID: "c2", SourceNodeID: "b", TargetNodeID: "a"},
		},
	}

	assert.Nil(t, EntryNode(workflow))
}

func TestNextNode_ConditionMatch(t *testing.T) {
	workflow := branchingWorkflow()

	next, err := NextNode(workflow, workflow.NodeByID("intent"), map[string]any{"intent": "account_balance"})
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "balance", next.ID)
}

func TestNextNode_DefaultBranchWhenNoConditionMatches(t *testing.T) {
	workflow := branchingWorkflow()

	next, err := NextNode(workflow, workflow.NodeByID("intent"), map[string]any{"intent": "loan_status"})
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "fallback", next.ID)
}

func TestNextNode_NilAtExit(t *testing.T) {
	workflow := branchingWorkflow()

	next, err := NextNode(workflow, workflow.NodeByID("balance"), nil)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestNextNode_BadConditionFailsTraversal(t *testing.T) {
	workflow := &models.Workflow{
		Nodes: []*models.WorkflowNode{
			{ID: "a", Position: 0},
			{ID: "b", Position: 1},
		},
		Connections: []*models.NodeConnection{
			{ID: "c1", SourceNodeID: "a", TargetNodeID: "b", Condition: "intent =="},
		},
	}

	_, err := NextNode(workflow, workflow.NodeByID("a"), map[string]any{})
	assert.Error(t, err)
}

func TestEvaluateCondition(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		env        map[string]any
		want       bool
	}{
		{"empty expression is vacuously true", "", nil, true},
		{"string equality", `language == "ml"`, map[string]any{"language": "ml"}, true},
		{"string inequality", `language == "ml"`, map[string]any{"language": "en"}, false},
		{"numeric comparison", "confidence > 0.8", map[string]any{"confidence": 0.92}, true},
		{"boolean variable", "test_mode", map[string]any{"test_mode": true}, true},
		{"undefined variable is falsy", "missing_key", map[string]any{}, false},
		{"truthy non-empty string", "transcript", map[string]any{"transcript": "hello"}, true},
		{"falsy zero", "retries", map[string]any{"retries": 0}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := EvaluateCondition(test.expression, test.env)
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestEvaluateCondition_CompileError(t *testing.T) {
	_, err := EvaluateCondition("((", map[string]any{})
	assert.Error(t, err)
}
