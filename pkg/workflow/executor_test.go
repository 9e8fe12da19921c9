package workflow

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callforge/callflow/pkg/models"
	"github.com/callforge/callflow/pkg/persistence/file"
	"github.com/callforge/callflow/pkg/registry"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	return NewExecutor(
		store.ExecutionRepository(),
		registry.NewDefaultRegistry(slog.Default()),
		nil,
		nil,
		slog.Default(),
	)
}

func activeWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:       "wf-1",
		Name:     "Banking Line",
		IsActive: true,
		Nodes: []*models.WorkflowNode{
			{ID: "greet", Type: models.NodeTypeGreeting, Label: "Greet", Position: 0, Config: map[string]any{"message": "Welcome"}},
			{ID: "listen", Type: models.NodeTypeSTT, Label: "Listen", Position: 1, Config: map[string]any{}},
			{ID: "intent", Type: models.NodeTypeNLU, Label: "Intent", Position: 2, Config: map[string]any{}},
			{ID: "balance", Type: models.NodeTypeTTS, Label: "Balance", Position: 3, Config: map[string]any{"text": "Your balance is"}},
			{ID: "fallback", Type: models.NodeTypeDepartmentRouting, Label: "Agent", Position: 4, Config: map[string]any{"department": "support"}},
		},
		Connections: []*models.NodeConnection{
			{ID: "c1", SourceNodeID: "greet", TargetNodeID: "listen"},
			{ID: "c2", SourceNodeID: "listen", TargetNodeID: "intent"},
			{ID: "c3", SourceNodeID: "intent", TargetNodeID: "balance", Condition: `intent == "account_balance"`},
			{ID: "c4", SourceNodeID: "intent", TargetNodeID: "fallback"},
		},
	}
}

func TestExecute_FollowsConditionedBranch(t *testing.T) {
	executor := newTestExecutor(t)
	workflow := activeWorkflow()

	result, err := executor.Execute(t.Context(), workflow, map[string]any{"caller_id": "+911234567890"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "wf-1", result.WorkflowID)
	assert.Equal(t, "Banking Line", result.WorkflowName)
	assert.NotEmpty(t, result.ExecutionID)

	// The canned NLU intent is account_balance, so traversal takes the
	// conditioned edge and never reaches the fallback.
	require.Len(t, result.Trace, 4)
	assert.Equal(t, "greet", result.Trace[0].NodeID)
	assert.Equal(t, "balance", result.Trace[3].NodeID)

	assert.Equal(t, 4, result.Output["nodes_executed"])
	assert.Equal(t, "balance", result.Output["final_node"])
}

func TestExecute_RecordsTerminalExecution(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	executor := NewExecutor(
		store.ExecutionRepository(),
		registry.NewDefaultRegistry(slog.Default()),
		nil,
		nil,
		slog.Default(),
	)

	workflow := activeWorkflow()

	result, err := executor.Execute(t.Context(), workflow, nil)
	require.NoError(t, err)

	execution, err := store.ExecutionRepository().GetByID(t.Context(), result.ExecutionID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusSuccess, execution.Status)
	require.NotNil(t, execution.CompletedAt)
	assert.False(t, execution.CompletedAt.Before(execution.StartedAt))
}

func TestExecute_InactiveWorkflowCreatesNoRecord(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	executor := NewExecutor(
		store.ExecutionRepository(),
		registry.NewDefaultRegistry(slog.Default()),
		nil,
		nil,
		slog.Default(),
	)

	workflow := activeWorkflow()
	workflow.IsActive = false

	_, err := executor.Execute(t.Context(), workflow, nil)
	require.ErrorIs(t, err, ErrWorkflowNotActive)

	executions, err := store.ExecutionRepository().ListByWorkflow(t.Context(), workflow.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, executions)
}

func TestExecute_CyclicGraphFailsExecution(t *testing.T) {
	executor := newTestExecutor(t)

	workflow := &models.Workflow{
		ID:       "wf-loop",
		Name:     "Loop",
		IsActive: true,
		Nodes: []*models.WorkflowNode{
			{ID: "a", Type: models.NodeTypeTTS, Label: "A", Position: 0, Config: map[string]any{"text": "a"}},
			{ID: "b", Type: models.NodeTypeTTS, Label: "B", Position: 1, Config: map[string]any{"text": "b"}},
		},
		Connections: []*models.NodeConnection{
			{ID: "c1", SourceNodeID: "a", TargetNodeID: "b"},
			{ID: "c2", SourceNodeID: "b", TargetNodeID: "a"},
		},
	}

	result, err := executor.Execute(t.Context(), workflow, nil)
	require.NoError(t, err)

	// The workflow fails, the platform does not.
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no entry node")
}

func TestExecute_StepLimitBoundsCycles(t *testing.T) {
	executor := newTestExecutor(t)

	// Entry node exists but its successors cycle.
	workflow := &models.Workflow{
		ID:       "wf-loop",
		Name:     "Loop",
		IsActive: true,
		Nodes: []*models.WorkflowNode{
			{ID: "start", Type: models.NodeTypeGreeting, Label: "Start", Position: 0, Config: map[string]any{"message": "Hi"}},
			{ID: "a", Type: models.NodeTypeTTS, Label: "A", Position: 1, Config: map[string]any{"text": "a"}},
			{ID: "b", Type: models.NodeTypeTTS, Label: "B", Position: 2, Config: map[string]any{"text": "b"}},
		},
		Connections: []*models.NodeConnection{
			{ID: "c1", SourceNodeID: "start", TargetNodeID: "a"},
			{ID: "c2", SourceNodeID: "a", TargetNodeID: "b"},
			{ID: "c3", SourceNodeID: "b", TargetNodeID: "a"},
		},
	}

	result, err := executor.Execute(t.Context(), workflow, nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "step limit")
	assert.Len(t, result.Trace, 2*len(workflow.Nodes))
}

func TestExecute_LinearFallbackWithoutConnections(t *testing.T) {
	executor := newTestExecutor(t)

	workflow := &models.Workflow{
		ID:       "wf-linear",
		Name:     "Linear",
		IsActive: true,
		Nodes: []*models.WorkflowNode{
			{ID: "second", Type: models.NodeTypeTTS, Label: "Second", Position: 1, Config: map[string]any{"text": "bye"}},
			{ID: "first", Type: models.NodeTypeGreeting, Label: "First", Position: 0, Config: map[string]any{"message": "Hi"}},
		},
	}

	result, err := executor.Execute(t.Context(), workflow, nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, "first", result.Trace[0].NodeID)
	assert.Equal(t, "second", result.Trace[1].NodeID)
}

func TestTest_DefaultPayload(t *testing.T) {
	executor := newTestExecutor(t)

	workflow := &models.Workflow{
		ID:       "wf-1",
		Name:     "Greeting Only",
		IsActive: true,
		Nodes: []*models.WorkflowNode{
			{ID: "greet", Type: models.NodeTypeGreeting, Label: "Greet", Position: 0, Config: map[string]any{}},
		},
	}

	result, err := executor.Test(t.Context(), workflow, nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	require.Len(t, result.Trace, 1)

	// The canned test payload carries language "ml", which the greeting
	// simulator picks up when its config does not pin one.
	assert.Equal(t, "ml", result.Trace[0].Output["language"])
}

func TestTest_CallerPayloadKept(t *testing.T) {
	executor := newTestExecutor(t)

	workflow := &models.Workflow{
		ID:       "wf-1",
		Name:     "Greeting Only",
		IsActive: true,
		Nodes: []*models.WorkflowNode{
			{ID: "greet", Type: models.NodeTypeGreeting, Label: "Greet", Position: 0, Config: map[string]any{}},
		},
	}

	input := map[string]any{"language": "hi"}

	result, err := executor.Test(t.Context(), workflow, input)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "hi", result.Trace[0].Output["language"])

	// The caller's payload is copied, not mutated.
	assert.NotContains(t, input, "test_execution")
	assert.Equal(t, map[string]any{"language": "hi"}, input)
}

func TestExecute_DurationsWithinBounds(t *testing.T) {
	executor := newTestExecutor(t)

	result, err := executor.Execute(t.Context(), activeWorkflow(), nil)
	require.NoError(t, err)

	for _, step := range result.Trace {
		assert.GreaterOrEqual(t, step.DurationMS, int64(minSimulatedDurationMs))
		assert.Less(t, step.DurationMS, int64(maxSimulatedDurationMs))
	}
}
