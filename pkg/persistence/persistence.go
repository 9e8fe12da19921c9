// Package persistence provides the data storage abstraction for workflows,
// versions and executions.
package persistence

import (
	"context"

	"github.com/callforge/callflow/pkg/models"
)

// Persistence is the storage entry point. Implementations back it with
// PostgreSQL, SQLite or a JSON file tree.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	VersionRepository() VersionRepository
	ExecutionRepository() ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListWorkflowsOptions filters and paginates workflow listings.
type ListWorkflowsOptions struct {
	Limit  int
	Offset int

	Category     string // canonical form; empty matches all
	Active       *bool  // nil matches both active and inactive
	Search       string // free-text over name and description
	CulturalOnly bool   // keep only workflows with cultural settings

	SortBy    string // created_at, updated_at, name
	SortOrder string // asc, desc
}

// WorkflowListResult is a page of workflow summaries.
type WorkflowListResult struct {
	Workflows   []*models.Workflow
	TotalCount  int64
	HasNextPage bool
}

// WorkflowRepository stores the workflow aggregate. Save persists the
// workflow row together with a wholesale replacement of its node and
// connection sets inside a single transaction boundary.
type WorkflowRepository interface {
	List(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error)
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error

	// SoftDelete clears the active flag and bumps the updated timestamp.
	SoftDelete(ctx context.Context, id string) error

	// DeletePermanent removes the workflow and cascades to its nodes,
	// connections, versions and executions. Callers are responsible for
	// the in-flight-execution guard.
	DeletePermanent(ctx context.Context, id string) error

	// DeleteNode removes one node (cascading connections touching it)
	// after verifying it belongs to the given workflow.
	DeleteNode(ctx context.Context, workflowID, nodeID string) error

	// DeleteConnection removes one connection after verifying ownership.
	DeleteConnection(ctx context.Context, workflowID, connectionID string) error
}

// VersionRepository stores the append-only version history.
type VersionRepository interface {
	Save(ctx context.Context, version *models.WorkflowVersion) error
	LatestByWorkflow(ctx context.Context, workflowID string) (*models.WorkflowVersion, error)
	ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.WorkflowVersion, error)
}

// ExecutionRepository stores execution records. Save upserts: the same row
// is written once as RUNNING and once more with its terminal state.
type ExecutionRepository interface {
	Save(ctx context.Context, execution *models.WorkflowExecution) error
	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.WorkflowExecution, error)

	// CountActive returns the number of RUNNING or PENDING executions,
	// used by the permanent-delete guard.
	CountActive(ctx context.Context, workflowID string) (int, error)

	StatsByWorkflow(ctx context.Context, workflowID string) (*models.ExecutionStats, error)
}
