package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/callforge/callflow/pkg/models"
	"github.com/callforge/callflow/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

var workflowSortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"name":       "name",
}

// List returns a filtered, sorted, paginated page of workflows.
func (r *WorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	if opts.SortBy == "" {
		opts.SortBy = "created_at"
	}

	if opts.SortOrder == "" {
		opts.SortOrder = "desc"
	}

	sortColumn, ok := workflowSortColumns[opts.SortBy]
	if !ok {
		return nil, fmt.Errorf("%w: %s", persistence.ErrInvalidSortField, opts.SortBy)
	}

	direction := "DESC"
	if strings.EqualFold(opts.SortOrder, "asc") {
		direction = "ASC"
	}

	conditions := []string{"1=1"}
	args := []any{}

	if opts.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, models.CanonicalCategory(opts.Category))
	}

	if opts.Active != nil {
		conditions = append(conditions, "is_active = ?")
		args = append(args, *opts.Active)
	}

	if opts.Search != "" {
		conditions = append(conditions, "(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)")
		pattern := "%" + strings.ToLower(opts.Search) + "%"
		args = append(args, pattern, pattern)
	}

	if opts.CulturalOnly {
		conditions = append(conditions, "cultural_settings NOT IN ('', '{}', 'null')")
	}

	where := strings.Join(conditions, " AND ")

	var total int64

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflows WHERE "+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count workflows: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, name, description, category, language, cultural_settings,
		       is_active, is_template, created_at, updated_at
		FROM workflows
		WHERE %s
		ORDER BY %s %s
		LIMIT ? OFFSET ?
	`, where, sortColumn, direction)

	args = append(args, opts.Limit, opts.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}
	defer rows.Close()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflowBase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		err = r.loadNodesAndConnections(ctx, workflow)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow structure: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return &persistence.WorkflowListResult{
		Workflows:   workflows,
		TotalCount:  total,
		HasNextPage: int64(opts.Offset+len(workflows)) < total,
	}, nil
}

// GetByID returns a workflow with its nodes and connections, or nil.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT id, name, description, category, language, cultural_settings,
		       is_active, is_template, created_at, updated_at
		FROM workflows
		WHERE id = ?
	`

	workflow, err := scanWorkflowBase(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	err = r.loadNodesAndConnections(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow structure: %w", err)
	}

	return workflow, nil
}

// Save upserts the workflow row and replaces its node and connection sets
// wholesale inside one transaction.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) (err error) {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	culturalJSON, err := json.Marshal(workflow.CulturalSettings)
	if err != nil {
		return fmt.Errorf("failed to marshal cultural settings: %w", err)
	}

	workflowQuery := `
		INSERT INTO workflows (id, name, description, category, language,
			cultural_settings, is_active, is_template, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			category = excluded.category,
			language = excluded.language,
			cultural_settings = excluded.cultural_settings,
			is_active = excluded.is_active,
			is_template = excluded.is_template,
			updated_at = excluded.updated_at
	`

	_, err = tx.ExecContext(ctx, workflowQuery,
		workflow.ID,
		workflow.Name,
		workflow.Description,
		workflow.Category,
		workflow.Language,
		string(culturalJSON),
		workflow.IsActive,
		workflow.IsTemplate,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow base: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM node_connections WHERE workflow_id = ?", workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing connections: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_nodes WHERE workflow_id = ?", workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing nodes: %w", err)
	}

	nodeQuery := `
		INSERT INTO workflow_nodes (id, workflow_id, node_type, label, description, position, config)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	for _, node := range workflow.Nodes {
		configJSON, err := json.Marshal(node.Config)
		if err != nil {
			return fmt.Errorf("failed to marshal config for node %s: %w", node.ID, err)
		}

		_, err = tx.ExecContext(ctx, nodeQuery,
			node.ID, workflow.ID, node.Type, node.Label, node.Description, node.Position, string(configJSON))
		if err != nil {
			return fmt.Errorf("failed to insert node %s: %w", node.ID, err)
		}
	}

	connectionQuery := `
		INSERT INTO node_connections (id, workflow_id, source_node_id, target_node_id,
			source_handle, target_handle, condition)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	for _, connection := range workflow.Connections {
		_, err = tx.ExecContext(ctx, connectionQuery,
			connection.ID, workflow.ID, connection.SourceNodeID, connection.TargetNodeID,
			connection.SourceHandle, connection.TargetHandle, connection.Condition)
		if err != nil {
			return fmt.Errorf("failed to insert connection %s: %w", connection.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// SoftDelete clears the active flag.
func (r *WorkflowRepository) SoftDelete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE workflows SET is_active = 0, updated_at = ? WHERE id = ?", time.Now().UTC(), id)
	if err != nil {
		return persistence.NewWorkflowError("SoftDelete", id, err)
	}

	return checkWorkflowAffected(result, "SoftDelete", id)
}

// DeletePermanent removes the workflow; dependent rows cascade.
func (r *WorkflowRepository) DeletePermanent(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = ?", id)
	if err != nil {
		return persistence.NewWorkflowError("DeletePermanent", id, err)
	}

	return checkWorkflowAffected(result, "DeletePermanent", id)
}

// DeleteNode removes a node scoped to the workflow; connections touching
// it cascade.
func (r *WorkflowRepository) DeleteNode(ctx context.Context, workflowID, nodeID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM workflow_nodes WHERE id = ? AND workflow_id = ?", nodeID, workflowID)
	if err != nil {
		return &persistence.NodeError{Op: "DeleteNode", WorkflowID: workflowID, NodeID: nodeID, Err: err}
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return &persistence.NodeError{Op: "DeleteNode", WorkflowID: workflowID, NodeID: nodeID, Err: err}
	}

	if rowsAffected == 0 {
		return &persistence.NodeError{Op: "DeleteNode", WorkflowID: workflowID, NodeID: nodeID, Err: persistence.ErrNodeNotFound}
	}

	return nil
}

// DeleteConnection removes a connection scoped to the workflow.
func (r *WorkflowRepository) DeleteConnection(ctx context.Context, workflowID, connectionID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM node_connections WHERE id = ? AND workflow_id = ?", connectionID, workflowID)
	if err != nil {
		return &persistence.ConnectionError{Op: "DeleteConnection", WorkflowID: workflowID, ConnectionID: connectionID, Err: err}
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return &persistence.ConnectionError{Op: "DeleteConnection", WorkflowID: workflowID, ConnectionID: connectionID, Err: err}
	}

	if rowsAffected == 0 {
		return &persistence.ConnectionError{Op: "DeleteConnection", WorkflowID: workflowID, ConnectionID: connectionID, Err: persistence.ErrConnectionNotFound}
	}

	return nil
}

func checkWorkflowAffected(result sql.Result, op, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError(op, id, err)
	}

	if rowsAffected == 0 {
		return persistence.NewWorkflowError(op, id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflowBase(row rowScanner) (*models.Workflow, error) {
	var (
		workflow     models.Workflow
		culturalJSON []byte
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Description,
		&workflow.Category,
		&workflow.Language,
		&culturalJSON,
		&workflow.IsActive,
		&workflow.IsTemplate,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(culturalJSON) > 0 {
		err = json.Unmarshal(culturalJSON, &workflow.CulturalSettings)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal cultural settings: %w", err)
		}
	}

	return &workflow, nil
}

func (r *WorkflowRepository) loadNodesAndConnections(ctx context.Context, workflow *models.Workflow) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, node_type, label, description, position, config
		FROM workflow_nodes
		WHERE workflow_id = ?
		ORDER BY position
	`, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to query workflow nodes: %w", err)
	}
	defer rows.Close()

	workflow.Nodes = make([]*models.WorkflowNode, 0)

	for rows.Next() {
		var (
			node       models.WorkflowNode
			configJSON []byte
		)

		err := rows.Scan(&node.ID, &node.Type, &node.Label, &node.Description, &node.Position, &configJSON)
		if err != nil {
			return fmt.Errorf("failed to scan node: %w", err)
		}

		node.WorkflowID = workflow.ID

		if len(configJSON) > 0 {
			err = json.Unmarshal(configJSON, &node.Config)
			if err != nil {
				return fmt.Errorf("failed to unmarshal config for node %s: %w", node.ID, err)
			}
		}

		workflow.Nodes = append(workflow.Nodes, &node)
	}

	err = rows.Err()
	if err != nil {
		return fmt.Errorf("error iterating nodes: %w", err)
	}

	connRows, err := r.db.QueryContext(ctx, `
		SELECT id, source_node_id, target_node_id, source_handle, target_handle, condition
		FROM node_connections
		WHERE workflow_id = ?
		ORDER BY id
	`, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to query connections: %w", err)
	}
	defer connRows.Close()

	workflow.Connections = make([]*models.NodeConnection, 0)

	for connRows.Next() {
		var connection models.NodeConnection

		err := connRows.Scan(
			&connection.ID,
			&connection.SourceNodeID,
			&connection.TargetNodeID,
			&connection.SourceHandle,
			&connection.TargetHandle,
			&connection.Condition,
		)
		if err != nil {
			return fmt.Errorf("failed to scan connection: %w", err)
		}

		connection.WorkflowID = workflow.ID
		workflow.Connections = append(workflow.Connections, &connection)
	}

	err = connRows.Err()
	if err != nil {
		return fmt.Errorf("error iterating connections: %w", err)
	}

	return nil
}
