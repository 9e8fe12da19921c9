package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/callforge/callflow/pkg/models"
	"github.com/callforge/callflow/pkg/persistence"
)

// ExecutionRepository stores execution records under
// executions/<workflow_id>/<execution_id>.json.
type ExecutionRepository struct {
	root string
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (r *ExecutionRepository) executionDir(workflowID string) string {
	return filepath.Join(r.root, "executions", workflowID)
}

// Save upserts an execution record.
func (r *ExecutionRepository) Save(_ context.Context, execution *models.WorkflowExecution) error {
	dir := r.executionDir(execution.WorkflowID)

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return persistence.NewWorkflowError("SaveExecution", execution.WorkflowID, err)
	}

	data, err := json.MarshalIndent(execution, "", "  ")
	if err != nil {
		return persistence.NewWorkflowError("SaveExecution", execution.WorkflowID, err)
	}

	return writeFileAtomic(filepath.Join(dir, execution.ID+".json"), data)
}

// GetByID scans the execution tree for the record with the given id.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	base := filepath.Join(r.root, "executions")

	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		path := filepath.Join(base, entry.Name(), id+".json")

		execution, err := r.readExecution(path)
		if err != nil {
			continue
		}

		return execution, nil
	}

	return nil, persistence.ErrExecutionNotFound
}

// ListByWorkflow returns executions newest-first, up to limit (0 = all).
func (r *ExecutionRepository) ListByWorkflow(_ context.Context, workflowID string, limit int) ([]*models.WorkflowExecution, error) {
	dir := r.executionDir(workflowID)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return make([]*models.WorkflowExecution, 0), nil
		}

		return nil, persistence.NewWorkflowError("ListExecutions", workflowID, err)
	}

	executions := make([]*models.WorkflowExecution, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		execution, err := r.readExecution(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, persistence.NewWorkflowError("ListExecutions", workflowID, err)
		}

		executions = append(executions, execution)
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})

	if limit > 0 && len(executions) > limit {
		executions = executions[:limit]
	}

	return executions, nil
}

// CountActive counts executions still in RUNNING or PENDING state.
func (r *ExecutionRepository) CountActive(ctx context.Context, workflowID string) (int, error) {
	executions, err := r.ListByWorkflow(ctx, workflowID, 0)
	if err != nil {
		return 0, err
	}

	count := 0

	for _, execution := range executions {
		if execution.Status == models.ExecutionStatusRunning || execution.Status == models.ExecutionStatusPending {
			count++
		}
	}

	return count, nil
}

// StatsByWorkflow aggregates terminal outcomes.
func (r *ExecutionRepository) StatsByWorkflow(ctx context.Context, workflowID string) (*models.ExecutionStats, error) {
	executions, err := r.ListByWorkflow(ctx, workflowID, 0)
	if err != nil {
		return nil, err
	}

	stats := &models.ExecutionStats{}

	for _, execution := range executions {
		stats.Total++

		switch execution.Status {
		case models.ExecutionStatusSuccess:
			stats.Succeeded++
		case models.ExecutionStatusFailed:
			stats.Failed++
		}
	}

	if terminal := stats.Succeeded + stats.Failed; terminal > 0 {
		stats.SuccessRate = float64(stats.Succeeded) / float64(terminal)
	}

	return stats, nil
}

func (r *ExecutionRepository) readExecution(path string) (*models.WorkflowExecution, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var execution models.WorkflowExecution

	err = json.Unmarshal(data, &execution)
	if err != nil {
		return nil, err
	}

	return &execution, nil
}
