package file

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callforge/callflow/pkg/models"
	"github.com/callforge/callflow/pkg/persistence"
)

func seedWorkflow(t *testing.T, store *Persistence, name string) *models.Workflow {
	t.Helper()

	workflow := &models.Workflow{
		Name:     name,
		Category: models.CategoryCustomerService,
		Language: "en",
		IsActive: true,
		Nodes: []*models.WorkflowNode{
			{ID: "n1", Type: models.NodeTypeGreeting, Label: "Greet", Position: 0, Config: map[string]any{"message": "Hi"}},
			{ID: "n2", Type: models.NodeTypeDepartmentRouting, Label: "Route", Position: 1, Config: map[string]any{"department": "support"}},
		},
		Connections: []*models.NodeConnection{
			{ID: "c1", SourceNodeID: "n1", TargetNodeID: "n2", SourceHandle: "source", TargetHandle: "target"},
		},
	}

	require.NoError(t, store.WorkflowRepository().Save(t.Context(), workflow))

	return workflow
}

func TestSave_MintsIdentityAndTimestamps(t *testing.T) {
	store := NewPersistence(t.TempDir())

	workflow := seedWorkflow(t, store, "Support Line")

	assert.NotEmpty(t, workflow.ID)
	assert.False(t, workflow.CreatedAt.IsZero())
	assert.False(t, workflow.UpdatedAt.IsZero())

	for _, node := range workflow.Nodes {
		assert.Equal(t, workflow.ID, node.WorkflowID)
	}

	for _, connection := range workflow.Connections {
		assert.Equal(t, workflow.ID, connection.WorkflowID)
	}
}

func TestGetByID_AbsentIsNilNil(t *testing.T) {
	store := NewPersistence(t.TempDir())

	workflow, err := store.WorkflowRepository().GetByID(t.Context(), "missing")
	require.NoError(t, err)
	assert.Nil(t, workflow)
}

func TestSave_ReplacesStructureWholesale(t *testing.T) {
	store := NewPersistence(t.TempDir())

	workflow := seedWorkflow(t, store, "Support Line")

	workflow.Nodes = []*models.WorkflowNode{
		{ID: "n3", Type: models.NodeTypeTTS, Label: "Only", Position: 0, Config: map[string]any{"text": "bye"}},
	}
	workflow.Connections = nil

	require.NoError(t, store.WorkflowRepository().Save(t.Context(), workflow))

	stored, err := store.WorkflowRepository().GetByID(t.Context(), workflow.ID)
	require.NoError(t, err)
	require.Len(t, stored.Nodes, 1)
	assert.Equal(t, "n3", stored.Nodes[0].ID)
	assert.Empty(t, stored.Connections)
}

func TestSoftDelete(t *testing.T) {
	store := NewPersistence(t.TempDir())

	workflow := seedWorkflow(t, store, "Support Line")

	require.NoError(t, store.WorkflowRepository().SoftDelete(t.Context(), workflow.ID))

	stored, err := store.WorkflowRepository().GetByID(t.Context(), workflow.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.IsActive)

	err = store.WorkflowRepository().SoftDelete(t.Context(), "missing")
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestDeletePermanent_Cascades(t *testing.T) {
	store := NewPersistence(t.TempDir())

	workflow := seedWorkflow(t, store, "Support Line")

	require.NoError(t, store.VersionRepository().Save(t.Context(), &models.WorkflowVersion{
		ID:         "v1",
		WorkflowID: workflow.ID,
		Version:    1,
		Snapshot:   models.SnapshotOf(workflow),
	}))
	require.NoError(t, store.ExecutionRepository().Save(t.Context(), &models.WorkflowExecution{
		ID:         "e1",
		WorkflowID: workflow.ID,
		Status:     models.ExecutionStatusSuccess,
		StartedAt:  time.Now().UTC(),
	}))

	require.NoError(t, store.WorkflowRepository().DeletePermanent(t.Context(), workflow.ID))

	stored, err := store.WorkflowRepository().GetByID(t.Context(), workflow.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	versions, err := store.VersionRepository().ListByWorkflow(t.Context(), workflow.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, versions)

	executions, err := store.ExecutionRepository().ListByWorkflow(t.Context(), workflow.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, executions)

	err = store.WorkflowRepository().DeletePermanent(t.Context(), workflow.ID)
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestDeleteNode_RemovesTouchingConnections(t *testing.T) {
	store := NewPersistence(t.TempDir())

	workflow := seedWorkflow(t, store, "Support Line")

	require.NoError(t, store.WorkflowRepository().DeleteNode(t.Context(), workflow.ID, "n1"))

	stored, err := store.WorkflowRepository().GetByID(t.Context(), workflow.ID)
	require.NoError(t, err)
	require.Len(t, stored.Nodes, 1)
	assert.Equal(t, "n2", stored.Nodes[0].ID)
	assert.Empty(t, stored.Connections)

	err = store.WorkflowRepository().DeleteNode(t.Context(), workflow.ID, "n1")
	assert.ErrorIs(t, err, persistence.ErrNodeNotFound)

	var nodeErr *persistence.NodeError

	require.True(t, errors.As(err, &nodeErr))
	assert.Equal(t, "n1", nodeErr.NodeID)
}

func TestDeleteConnection_ScopedToWorkflow(t *testing.T) {
	store := NewPersistence(t.TempDir())

	first := seedWorkflow(t, store, "First")
	second := seedWorkflow(t, store, "Second")

	// The connection id exists, but under a different workflow.
	err := store.WorkflowRepository().DeleteConnection(t.Context(), second.ID, first.Connections[0].ID)
	require.Error(t, err)

	require.NoError(t, store.WorkflowRepository().DeleteConnection(t.Context(), first.ID, first.Connections[0].ID))

	stored, err := store.WorkflowRepository().GetByID(t.Context(), first.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Connections)
	assert.Len(t, stored.Nodes, 2)
}

func TestList_FilterSortPaginate(t *testing.T) {
	store := NewPersistence(t.TempDir())

	for _, name := range []string{"Gamma", "Alpha", "Beta"} {
		seedWorkflow(t, store, name)
	}

	cultural := seedWorkflow(t, store, "Cultural Line")
	cultural.CulturalSettings = map[string]any{"register": "formal"}
	cultural.Category = models.CategoryBanking
	cultural.IsActive = false
	require.NoError(t, store.WorkflowRepository().Save(t.Context(), cultural))

	result, err := store.WorkflowRepository().List(t.Context(), persistence.ListWorkflowsOptions{
		SortBy:    "name",
		SortOrder: "asc",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), result.TotalCount)
	assert.Equal(t, "Alpha", result.Workflows[0].Name)

	paged, err := store.WorkflowRepository().List(t.Context(), persistence.ListWorkflowsOptions{
		Limit:     2,
		SortBy:    "name",
		SortOrder: "asc",
	})
	require.NoError(t, err)
	require.Len(t, paged.Workflows, 2)
	assert.True(t, paged.HasNextPage)

	active := true

	filtered, err := store.WorkflowRepository().List(t.Context(), persistence.ListWorkflowsOptions{Active: &active})
	require.NoError(t, err)
	assert.Equal(t, int64(3), filtered.TotalCount)

	byCategory, err := store.WorkflowRepository().List(t.Context(), persistence.ListWorkflowsOptions{Category: "banking"})
	require.NoError(t, err)
	require.Len(t, byCategory.Workflows, 1)
	assert.Equal(t, "Cultural Line", byCategory.Workflows[0].Name)

	culturalOnly, err := store.WorkflowRepository().List(t.Context(), persistence.ListWorkflowsOptions{CulturalOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), culturalOnly.TotalCount)

	search, err := store.WorkflowRepository().List(t.Context(), persistence.ListWorkflowsOptions{Search: "alph"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), search.TotalCount)
}

func TestList_InvalidSortField(t *testing.T) {
	store := NewPersistence(t.TempDir())

	_, err := store.WorkflowRepository().List(t.Context(), persistence.ListWorkflowsOptions{SortBy: "category"})
	assert.True(t, persistence.IsInvalidSortField(err))
}

func TestVersions_ImmutableAppendOnly(t *testing.T) {
	store := NewPersistence(t.TempDir())

	workflow := seedWorkflow(t, store, "Support Line")

	for version := 1; version <= 3; version++ {
		require.NoError(t, store.VersionRepository().Save(t.Context(), &models.WorkflowVersion{
			WorkflowID: workflow.ID,
			Version:    version,
			Snapshot:   models.SnapshotOf(workflow),
		}))
	}

	// Rewriting an existing version number is refused.
	err := store.VersionRepository().Save(t.Context(), &models.WorkflowVersion{
		WorkflowID: workflow.ID,
		Version:    2,
		Snapshot:   models.SnapshotOf(workflow),
	})
	assert.Error(t, err)

	latest, err := store.VersionRepository().LatestByWorkflow(t.Context(), workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Version)
	assert.NotEmpty(t, latest.ID)
	assert.False(t, latest.CreatedAt.IsZero())

	versions, err := store.VersionRepository().ListByWorkflow(t.Context(), workflow.ID, 2)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 3, versions[0].Version)
	assert.Equal(t, 2, versions[1].Version)
	assert.NotEqual(t, versions[0].ID, versions[1].ID)
}

func TestVersions_EmptyHistory(t *testing.T) {
	store := NewPersistence(t.TempDir())

	latest, err := store.VersionRepository().LatestByWorkflow(t.Context(), "missing")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestExecutions_ListOrderAndStats(t *testing.T) {
	store := NewPersistence(t.TempDir())

	base := time.Now().UTC().Add(-time.Hour)

	statuses := []models.ExecutionStatus{
		models.ExecutionStatusSuccess,
		models.ExecutionStatusFailed,
		models.ExecutionStatusSuccess,
		models.ExecutionStatusRunning,
	}

	for index, status := range statuses {
		require.NoError(t, store.ExecutionRepository().Save(t.Context(), &models.WorkflowExecution{
			ID:         string(rune('a' + index)),
			WorkflowID: "wf-1",
			Status:     status,
			StartedAt:  base.Add(time.Duration(index) * time.Minute),
		}))
	}

	executions, err := store.ExecutionRepository().ListByWorkflow(t.Context(), "wf-1", 2)
	require.NoError(t, err)
	require.Len(t, executions, 2)
	assert.Equal(t, "d", executions[0].ID)
	assert.Equal(t, "c", executions[1].ID)

	active, err := store.ExecutionRepository().CountActive(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, 1, active)

	stats, err := store.ExecutionRepository().StatsByWorkflow(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Succeeded)
	assert.Equal(t, 1, stats.Failed)
	assert.InDelta(t, 2.0/3.0, stats.SuccessRate, 0.001)

	_, err = store.ExecutionRepository().GetByID(t.Context(), "a")
	require.NoError(t, err)

	_, err = store.ExecutionRepository().GetByID(t.Context(), "zz")
	assert.ErrorIs(t, err, persistence.ErrExecutionNotFound)
}

func TestHealthCheck(t *testing.T) {
	store := NewPersistence(t.TempDir())
	assert.NoError(t, store.HealthCheck(t.Context()))

	missing := NewPersistence("/nonexistent/callflow-test-root")
	assert.Error(t, missing.HealthCheck(t.Context()))
}
