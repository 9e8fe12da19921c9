package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/callforge/callflow/pkg/models"
	"github.com/callforge/callflow/pkg/persistence"
)

// ExecutionRepository handles execution records.
type ExecutionRepository struct {
	db *sql.DB
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

// Save upserts an execution record: once as RUNNING, once terminal.
func (r *ExecutionRepository) Save(ctx context.Context, execution *models.WorkflowExecution) error {
	inputJSON, err := json.Marshal(execution.Input)
	if err != nil {
		return fmt.Errorf("failed to marshal execution input: %w", err)
	}

	outputJSON, err := json.Marshal(execution.Output)
	if err != nil {
		return fmt.Errorf("failed to marshal execution output: %w", err)
	}

	query := `
		INSERT INTO workflow_executions (id, workflow_id, status, input, output, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			output = excluded.output,
			completed_at = excluded.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		string(execution.Status),
		string(inputJSON),
		string(outputJSON),
		execution.StartedAt,
		execution.CompletedAt,
	)
	if err != nil {
		return persistence.NewWorkflowError("SaveExecution", execution.WorkflowID, err)
	}

	return nil
}

// GetByID returns an execution record.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	query := `
		SELECT id, workflow_id, status, input, output, started_at, completed_at
		FROM workflow_executions
		WHERE id = ?
	`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

// ListByWorkflow returns executions newest-first, up to limit (0 = all).
func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.WorkflowExecution, error) {
	query := `
		SELECT id, workflow_id, status, input, output, started_at, completed_at
		FROM workflow_executions
		WHERE workflow_id = ?
		ORDER BY started_at DESC
	`

	args := []any{workflowID}

	if limit > 0 {
		query += " LIMIT ?"

		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewWorkflowError("ListExecutions", workflowID, err)
	}
	defer rows.Close()

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, persistence.NewWorkflowError("ListExecutions", workflowID, err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, persistence.NewWorkflowError("ListExecutions", workflowID, err)
	}

	return executions, nil
}

// CountActive counts RUNNING or PENDING executions for the delete guard.
func (r *ExecutionRepository) CountActive(ctx context.Context, workflowID string) (int, error) {
	var count int

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM workflow_executions
		WHERE workflow_id = ? AND status IN (?, ?)
	`, workflowID,
		string(models.ExecutionStatusRunning), string(models.ExecutionStatusPending)).Scan(&count)
	if err != nil {
		return 0, persistence.NewWorkflowError("CountActiveExecutions", workflowID, err)
	}

	return count, nil
}

// StatsByWorkflow aggregates terminal outcomes in one pass.
func (r *ExecutionRepository) StatsByWorkflow(ctx context.Context, workflowID string) (*models.ExecutionStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM workflow_executions
		WHERE workflow_id = ?
	`

	stats := &models.ExecutionStats{}

	err := r.db.QueryRowContext(ctx, query,
		string(models.ExecutionStatusSuccess), string(models.ExecutionStatusFailed), workflowID).
		Scan(&stats.Total, &stats.Succeeded, &stats.Failed)
	if err != nil {
		return nil, persistence.NewWorkflowError("ExecutionStats", workflowID, err)
	}

	if terminal := stats.Succeeded + stats.Failed; terminal > 0 {
		stats.SuccessRate = float64(stats.Succeeded) / float64(terminal)
	}

	return stats, nil
}

func scanExecution(row rowScanner) (*models.WorkflowExecution, error) {
	var (
		execution  models.WorkflowExecution
		inputJSON  []byte
		outputJSON []byte
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.Status,
		&inputJSON,
		&outputJSON,
		&execution.StartedAt,
		&execution.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(inputJSON) > 0 {
		err = json.Unmarshal(inputJSON, &execution.Input)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution input: %w", err)
		}
	}

	if len(outputJSON) > 0 {
		err = json.Unmarshal(outputJSON, &execution.Output)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution output: %w", err)
		}
	}

	return &execution, nil
}
