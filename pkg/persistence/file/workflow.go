package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/callforge/callflow/pkg/models"
	"github.com/callforge/callflow/pkg/persistence"
)

// WorkflowRepository stores each workflow aggregate as a single JSON file.
// The aggregate file carries the nodes and connections, so the wholesale
// replace-on-save the SQL backends do in a transaction is a plain atomic
// file rewrite here.
type WorkflowRepository struct {
	root          string
	versionRepo   *VersionRepository
	executionRepo *ExecutionRepository
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string, versionRepo *VersionRepository, executionRepo *ExecutionRepository) *WorkflowRepository {
	return &WorkflowRepository{
		root:          root,
		versionRepo:   versionRepo,
		executionRepo: executionRepo,
	}
}

func (r *WorkflowRepository) workflowPath(id string) string {
	return filepath.Join(r.root, "workflows", id+".json")
}

// List returns paginated and filtered workflows with in-memory operations.
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

	allowedSorts := map[string]bool{
		"created_at": true,
		"updated_at": true,
		"name":       true,
	}
	if !allowedSorts[opts.SortBy] {
		return nil, fmt.Errorf("%w: %s", persistence.ErrInvalidSortField, opts.SortBy)
	}

	workflows, err := r.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Workflow, 0, len(workflows))

	for _, workflow := range workflows {
		if opts.Category != "" && workflow.Category != models.CanonicalCategory(opts.Category) {
			continue
		}

		if opts.Active != nil && workflow.IsActive != *opts.Active {
			continue
		}

		if opts.Search != "" && !matchesSearch(workflow, opts.Search) {
			continue
		}

		if opts.CulturalOnly && !workflow.HasCulturalSettings() {
			continue
		}

		filtered = append(filtered, workflow)
	}

	sortWorkflows(filtered, opts.SortBy, opts.SortOrder)

	total := int64(len(filtered))

	start := opts.Offset
	if start > len(filtered) {
		start = len(filtered)
	}

	end := start + opts.Limit
	if end > len(filtered) {
		end = len(filtered)
	}

	return &persistence.WorkflowListResult{
		Workflows:   filtered[start:end],
		TotalCount:  total,
		HasNextPage: int64(end) < total,
	}, nil
}

func matchesSearch(workflow *models.Workflow, search string) bool {
	needle := strings.ToLower(search)

	return strings.Contains(strings.ToLower(workflow.Name), needle) ||
		strings.Contains(strings.ToLower(workflow.Description), needle)
}

func sortWorkflows(workflows []*models.Workflow, sortBy, sortOrder string) {
	sort.SliceStable(workflows, func(i, j int) bool {
		var less bool

		switch sortBy {
		case "name":
			less = workflows[i].Name < workflows[j].Name
		case "updated_at":
			less = workflows[i].UpdatedAt.Before(workflows[j].UpdatedAt)
		default:
			less = workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
		}

		if sortOrder == "desc" {
			return !less
		}

		return less
	})
}

func (r *WorkflowRepository) loadAll(ctx context.Context) ([]*models.Workflow, error) {
	dir := filepath.Join(r.root, "workflows")

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return make([]*models.Workflow, 0), nil
		}

		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		workflow, err := r.GetByID(ctx, strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			return nil, err
		}

		if workflow != nil {
			workflows = append(workflows, workflow)
		}
	}

	return workflows, nil
}

// GetByID returns the workflow with the given id, or nil when absent.
func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	data, err := os.ReadFile(r.workflowPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	var workflow models.Workflow

	err = json.Unmarshal(data, &workflow)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return &workflow, nil
}

// Save writes the full aggregate, replacing any previous node and
// connection set.
func (r *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	now := nowUTC()

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

	if workflow.Nodes == nil {
		workflow.Nodes = make([]*models.WorkflowNode, 0)
	}

	if workflow.Connections == nil {
		workflow.Connections = make([]*models.NodeConnection, 0)
	}

	for _, node := range workflow.Nodes {
		node.WorkflowID = workflow.ID
	}

	for _, connection := range workflow.Connections {
		connection.WorkflowID = workflow.ID
	}

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	path := r.workflowPath(workflow.ID)

	err = os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	err = writeFileAtomic(path, data)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

// SoftDelete clears the active flag in place.
func (r *WorkflowRepository) SoftDelete(ctx context.Context, id string) error {
	workflow, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if workflow == nil {
		return persistence.NewWorkflowError("SoftDelete", id, persistence.ErrWorkflowNotFound)
	}

	workflow.IsActive = false
	workflow.UpdatedAt = nowUTC()

	return r.Save(ctx, workflow)
}

// DeletePermanent removes the aggregate file and the version and
// execution trees that hang off it.
func (r *WorkflowRepository) DeletePermanent(_ context.Context, id string) error {
	err := os.Remove(r.workflowPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.NewWorkflowError("DeletePermanent", id, persistence.ErrWorkflowNotFound)
		}

		return persistence.NewWorkflowError("DeletePermanent", id, err)
	}

	err = os.RemoveAll(filepath.Join(r.root, "versions", id))
	if err != nil {
		return persistence.NewWorkflowError("DeletePermanent", id, err)
	}

	err = os.RemoveAll(filepath.Join(r.root, "executions", id))
	if err != nil {
		return persistence.NewWorkflowError("DeletePermanent", id, err)
	}

	return nil
}

// DeleteNode removes a node and every connection touching it.
func (r *WorkflowRepository) DeleteNode(ctx context.Context, workflowID, nodeID string) error {
	workflow, err := r.GetByID(ctx, workflowID)
	if err != nil {
		return err
	}

	if workflow == nil {
		return persistence.NewWorkflowError("DeleteNode", workflowID, persistence.ErrWorkflowNotFound)
	}

	nodes := make([]*models.WorkflowNode, 0, len(workflow.Nodes))
	found := false

	for _, node := range workflow.Nodes {
		if node.ID == nodeID {
			found = true

			continue
		}

		nodes = append(nodes, node)
	}

	if !found {
		return &persistence.NodeError{Op: "DeleteNode", WorkflowID: workflowID, NodeID: nodeID, Err: persistence.ErrNodeNotFound}
	}

	connections := make([]*models.NodeConnection, 0, len(workflow.Connections))

	for _, connection := range workflow.Connections {
		if connection.SourceNodeID == nodeID || connection.TargetNodeID == nodeID {
			continue
		}

		connections = append(connections, connection)
	}

	workflow.Nodes = nodes
	workflow.Connections = connections
	workflow.UpdatedAt = nowUTC()

	return r.Save(ctx, workflow)
}

// DeleteConnection removes a single connection scoped to the workflow.
func (r *WorkflowRepository) DeleteConnection(ctx context.Context, workflowID, connectionID string) error {
	workflow, err := r.GetByID(ctx, workflowID)
	if err != nil {
		return err
	}

	if workflow == nil {
		return persistence.NewWorkflowError("DeleteConnection", workflowID, persistence.ErrWorkflowNotFound)
	}

	connections := make([]*models.NodeConnection, 0, len(workflow.Connections))
	found := false

	for _, connection := range workflow.Connections {
		if connection.ID == connectionID {
			found = true

			continue
		}

		connections = append(connections, connection)
	}

	if !found {
		return &persistence.ConnectionError{Op: "DeleteConnection", WorkflowID: workflowID, ConnectionID: connectionID, Err: persistence.ErrConnectionNotFound}
	}

	workflow.Connections = connections
	workflow.UpdatedAt = nowUTC()

	return r.Save(ctx, workflow)
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"

	err := os.WriteFile(tmp, data, fs.FileMode(0o644))
	if err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
