package postgresql

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
		args = append(args, models.CanonicalCategory(opts.Category))
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}

	if opts.Active != nil {
		args = append(args, *opts.Active)
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)))
	}

	if opts.Search != "" {
		args = append(args, "%"+strings.ToLower(opts.Search)+"%")
		conditions = append(conditions,
			fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(description) LIKE $%d)", len(args), len(args)))
	}

	if opts.CulturalOnly {
		conditions = append(conditions, "cultural_settings NOT IN ('', '{}', 'null')")
	}

	where := strings.Join(conditions, " AND ")

	var total int64

	countQuery := "SELECT COUNT(*) FROM workflows WHERE " + where

	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count workflows: %w", err)
	}

	args = append(args, opts.Limit, opts.Offset)
	query := fmt.Sprintf(`
		SELECT id, name, description, category, language, cultural_settings,
		       is_active, is_template, created_at, updated_at
		FROM workflows
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, where, sortColumn, direction, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

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
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	workflow, err := scanWorkflowBase(row)
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
// wholesale inside one transaction. A fault between the delete and the
// reinsert can therefore never surface a half-replaced graph.
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			language = EXCLUDED.language,
			cultural_settings = EXCLUDED.cultural_settings,
			is_active = EXCLUDED.is_active,
			is_template = EXCLUDED.is_template,
			updated_at = EXCLUDED.updated_at
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

	_, err = tx.ExecContext(ctx, "DELETE FROM node_connections WHERE workflow_id = $1", workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing connections: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_nodes WHERE workflow_id = $1", workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing nodes: %w", err)
	}

	err = saveNodes(ctx, tx, workflow)
	if err != nil {
		return fmt.Errorf("failed to save workflow nodes: %w", err)
	}

	err = saveConnections(ctx, tx, workflow)
	if err != nil {
		return fmt.Errorf("failed to save workflow connections: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// SoftDelete clears the active flag.
func (r *WorkflowRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE workflows SET is_active = FALSE, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return persistence.NewWorkflowError("SoftDelete", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("SoftDelete", id, err)
	}

	if rowsAffected == 0 {
		return persistence.NewWorkflowError("SoftDelete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// DeletePermanent removes the workflow; nodes, connections, versions and
// executions cascade through the foreign keys.
func (r *WorkflowRepository) DeletePermanent(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return persistence.NewWorkflowError("DeletePermanent", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("DeletePermanent", id, err)
	}

	if rowsAffected == 0 {
		return persistence.NewWorkflowError("DeletePermanent", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// DeleteNode removes a node scoped to the workflow; connections touching
// it cascade.
func (r *WorkflowRepository) DeleteNode(ctx context.Context, workflowID, nodeID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM workflow_nodes WHERE id = $1 AND workflow_id = $2", nodeID, workflowID)
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
		"DELETE FROM node_connections WHERE id = $1 AND workflow_id = $2", connectionID, workflowID)
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
	nodesQuery := `
		SELECT id, node_type, label, description, position, config
		FROM workflow_nodes
		WHERE workflow_id = $1
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, nodesQuery, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to query workflow nodes: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

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

	connectionsQuery := `
		SELECT id, source_node_id, target_node_id, source_handle, target_handle, condition
		FROM node_connections
		WHERE workflow_id = $1
		ORDER BY id
	`

	connRows, err := r.db.QueryContext(ctx, connectionsQuery, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to query connections: %w", err)
	}

	defer func() {
		err := connRows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

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

func saveNodes(ctx context.Context, tx *sql.Tx, workflow *models.Workflow) error {
	query := `
		INSERT INTO workflow_nodes (id, workflow_id, node_type, label, description, position, config)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, node := range workflow.Nodes {
		configJSON, err := json.Marshal(node.Config)
		if err != nil {
			return fmt.Errorf("failed to marshal config for node %s: %w", node.ID, err)
		}

		_, err = tx.ExecContext(ctx, query,
			node.ID,
			workflow.ID,
			node.Type,
			node.Label,
			node.Description,
			node.Position,
			string(configJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to insert node %s: %w", node.ID, err)
		}
	}

	return nil
}

func saveConnections(ctx context.Context, tx *sql.Tx, workflow *models.Workflow) error {
	query := `
		INSERT INTO node_connections (id, workflow_id, source_node_id, target_node_id,
			source_handle, target_handle, condition)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, connection := range workflow.Connections {
		_, err := tx.ExecContext(ctx, query,
			connection.ID,
			workflow.ID,
			connection.SourceNodeID,
			connection.TargetNodeID,
			connection.SourceHandle,
			connection.TargetHandle,
			connection.Condition,
		)
		if err != nil {
			return fmt.Errorf("failed to insert connection %s: %w", connection.ID, err)
		}
	}

	return nil
}
