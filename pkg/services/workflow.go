package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/callforge/callflow/pkg/eventbus"
	"github.com/callforge/callflow/pkg/events"
	"github.com/callforge/callflow/pkg/models"
	"github.com/callforge/callflow/pkg/persistence"
	"github.com/callforge/callflow/pkg/workflow"
)

var (
	// ErrWorkflowNotFound is returned when a workflow is not found.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound
)

const initialChangeDescription = "Initial workflow creation"

// Workflow is the application service for the workflow aggregate.
type Workflow struct {
	persistence persistence.Persistence
	validator   *workflow.Validator
	executor    *workflow.Executor
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(
	store persistence.Persistence,
	validator *workflow.Validator,
	executor *workflow.Executor,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Workflow {
	return &Workflow{
		persistence: store,
		validator:   validator,
		executor:    executor,
		publisher:   publisher,
		logger:      logger,
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// WorkflowSummary is the projection returned by create and update. Node
// and connection counts reflect the caller's input arrays.
type WorkflowSummary struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Description         string    `json:"description"`
	Category            string    `json:"category"`
	IsActive            bool      `json:"is_active"`
	NodeCount           int       `json:"node_count"`
	ConnectionCount     int       `json:"connection_count"`
	HasCulturalSettings bool      `json:"has_cultural_settings"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// CreateWorkflowRequest contains everything needed to create a workflow
// with its full structure in one call.
type CreateWorkflowRequest struct {
	Name             string
	Description      string
	Category         string
	Language         string
	CulturalSettings map[string]any
	Nodes            []workflow.NodeDefinition
	Connections      []workflow.ConnectionDefinition
	IsActive         *bool
	IsTemplate       bool
	CreatedBy        string
}

// Create persists a new workflow aggregate and its version #1.
func (w *Workflow) Create(ctx context.Context, req CreateWorkflowRequest) (*WorkflowSummary, error) {
	if req.Name == "" {
		return nil, ErrNameRequired
	}

	if req.Category == "" {
		return nil, ErrCategoryRequired
	}

	language := req.Language
	if language == "" {
		language = models.DefaultLanguage
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	entity := &models.Workflow{
		Name:             req.Name,
		Description:      req.Description,
		Category:         models.CanonicalCategory(req.Category),
		Language:         language,
		CulturalSettings: req.CulturalSettings,
		IsActive:         isActive,
		IsTemplate:       req.IsTemplate,
	}

	err := workflow.BuildGraph(entity, req.Nodes, req.Connections)
	if err != nil {
		return nil, fmt.Errorf("failed to build workflow graph: %w", err)
	}

	err = w.persistence.WorkflowRepository().Save(ctx, entity)
	if err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	err = w.appendVersion(ctx, entity, 1, initialChangeDescription, req.CreatedBy)
	if err != nil {
		return nil, err
	}

	w.publish(ctx, entity.ID, events.WorkflowCreated{
		BaseEvent: events.NewBaseEvent(events.WorkflowCreatedEvent, entity.ID),
		Name:      entity.Name,
		Category:  entity.Category,
		Language:  entity.Language,
	})

	return summaryOf(entity, len(req.Nodes), len(req.Connections)), nil
}

// UpdateWorkflowRequest updates any subset of a workflow's fields. A
// non-nil Nodes or Connections slice triggers a wholesale structural
// replacement and a new version; metadata-only updates do not version.
type UpdateWorkflowRequest struct {
	ID                string
	Name              *string
	Description       *string
	Category          *string
	IsActive          *bool
	Nodes             *[]workflow.NodeDefinition
	Connections       *[]workflow.ConnectionDefinition
	CulturalSettings  map[string]any
	ChangeDescription string
	UpdatedBy         string
}

// Update applies the request and appends a version when the structure
// changed.
func (w *Workflow) Update(ctx context.Context, req UpdateWorkflowRequest) (*WorkflowSummary, error) {
	entity, err := w.getExisting(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		entity.Name = *req.Name
	}

	if req.Description != nil {
		entity.Description = *req.Description
	}

	if req.Category != nil {
		entity.Category = models.CanonicalCategory(*req.Category)
	}

	if req.IsActive != nil {
		entity.IsActive = *req.IsActive
	}

	if req.CulturalSettings != nil {
		entity.CulturalSettings = req.CulturalSettings
	}

	structural := req.Nodes != nil || req.Connections != nil

	if structural {
		nodes := []workflow.NodeDefinition{}
		if req.Nodes != nil {
			nodes = *req.Nodes
		}

		connections := []workflow.ConnectionDefinition{}
		if req.Connections != nil {
			connections = *req.Connections
		}

		err = workflow.BuildGraph(entity, nodes, connections)
		if err != nil {
			return nil, fmt.Errorf("failed to build workflow graph: %w", err)
		}
	}

	err = w.persistence.WorkflowRepository().Save(ctx, entity)
	if err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	version := 0

	if structural {
		description := req.ChangeDescription
		if description == "" {
			description = "Workflow structure update"
		}

		next, err := w.nextVersionNumber(ctx, entity.ID)
		if err != nil {
			return nil, err
		}

		err = w.appendVersion(ctx, entity, next, description, req.UpdatedBy)
		if err != nil {
			return nil, err
		}

		version = next
	}

	w.publish(ctx, entity.ID, events.WorkflowUpdated{
		BaseEvent:         events.NewBaseEvent(events.WorkflowUpdatedEvent, entity.ID),
		Version:           version,
		ChangeDescription: req.ChangeDescription,
	})

	return summaryOf(entity, len(entity.Nodes), len(entity.Connections)), nil
}

// Delete soft-deletes by default. Permanent deletion is refused while
// any execution is RUNNING or PENDING.
func (w *Workflow) Delete(ctx context.Context, id string, permanent bool) error {
	_, err := w.getExisting(ctx, id)
	if err != nil {
		return err
	}

	if permanent {
		active, err := w.persistence.ExecutionRepository().CountActive(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to count active executions: %w", err)
		}

		if active > 0 {
			return fmt.Errorf("%w: %d in RUNNING or PENDING state", ErrActiveExecutions, active)
		}

		err = w.persistence.WorkflowRepository().DeletePermanent(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to delete workflow: %w", err)
		}
	} else {
		err = w.persistence.WorkflowRepository().SoftDelete(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to soft delete workflow: %w", err)
		}
	}

	w.publish(ctx, id, events.WorkflowDeleted{
		BaseEvent: events.NewBaseEvent(events.WorkflowDeletedEvent, id),
		Permanent: permanent,
	})

	return nil
}

// Activate sets the active flag.
func (w *Workflow) Activate(ctx context.Context, id string) (*WorkflowSummary, error) {
	entity, err := w.setActive(ctx, id, true)
	if err != nil {
		return nil, err
	}

	w.publish(ctx, id, events.WorkflowActivated{
		BaseEvent: events.NewBaseEvent(events.WorkflowActivatedEvent, id),
	})

	return summaryOf(entity, len(entity.Nodes), len(entity.Connections)), nil
}

// Deactivate clears the active flag.
func (w *Workflow) Deactivate(ctx context.Context, id string) (*WorkflowSummary, error) {
	entity, err := w.setActive(ctx, id, false)
	if err != nil {
		return nil, err
	}

	w.publish(ctx, id, events.WorkflowDeactivated{
		BaseEvent: events.NewBaseEvent(events.WorkflowDeactivatedEvent, id),
	})

	return summaryOf(entity, len(entity.Nodes), len(entity.Connections)), nil
}

// UpdateCulturalSettings appends a version whose snapshot is the latest
// version's with only cultural_settings replaced. The workflow row and
// its node tables are deliberately left untouched.
func (w *Workflow) UpdateCulturalSettings(ctx context.Context, id string, settings map[string]any, updatedBy string) (*models.WorkflowVersion, error) {
	entity, err := w.getExisting(ctx, id)
	if err != nil {
		return nil, err
	}

	latest, err := w.persistence.VersionRepository().LatestByWorkflow(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest version: %w", err)
	}

	var snapshot *models.WorkflowSnapshot
	if latest != nil && latest.Snapshot != nil {
		copied := *latest.Snapshot
		snapshot = &copied
	} else {
		snapshot = models.SnapshotOf(entity)
	}

	snapshot.CulturalSettings = settings

	next := 1
	if latest != nil {
		next = latest.Version + 1
	}

	version := &models.WorkflowVersion{
		WorkflowID:        id,
		Version:           next,
		ChangeDescription: "Cultural settings update",
		Snapshot:          snapshot,
		CreatedBy:         updatedBy,
	}

	err = w.persistence.VersionRepository().Save(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("failed to save version: %w", err)
	}

	w.publish(ctx, id, events.WorkflowUpdated{
		BaseEvent:         events.NewBaseEvent(events.WorkflowUpdatedEvent, id),
		Version:           next,
		ChangeDescription: version.ChangeDescription,
	})

	return version, nil
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	Limit  int
	Offset int

	Category     string
	Active       *bool
	Search       string
	CulturalOnly bool

	SortBy    string
	SortOrder string
}

// ListWorkflowsResponse contains the result of listing workflows.
type ListWorkflowsResponse struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

// List retrieves workflows with filtering, sorting, and pagination.
func (w *Workflow) List(ctx context.Context, req ListWorkflowsRequest) (*ListWorkflowsResponse, error) {
	result, err := w.persistence.WorkflowRepository().List(ctx, persistence.ListWorkflowsOptions{
		Limit:        req.Limit,
		Offset:       req.Offset,
		Category:     req.Category,
		Active:       req.Active,
		Search:       req.Search,
		CulturalOnly: req.CulturalOnly,
		SortBy:       req.SortBy,
		SortOrder:    req.SortOrder,
	})
	if err != nil {
		if persistence.IsInvalidSortField(err) {
			return nil, ErrInvalidSortField
		}

		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return &ListWorkflowsResponse{
		Workflows:   result.Workflows,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
	}, nil
}

// Get returns the workflow aggregate.
func (w *Workflow) Get(ctx context.Context, id string) (*models.Workflow, error) {
	return w.getExisting(ctx, id)
}

// recentExecutionsShown and recentVersionsShown bound the detail
// projection.
const (
	recentExecutionsShown = 10
	recentVersionsShown   = 5
)

// WorkflowDetail is the full projection for a single workflow.
type WorkflowDetail struct {
	Workflow         *models.Workflow            `json:"workflow"`
	RecentExecutions []*models.WorkflowExecution `json:"recent_executions"`
	RecentVersions   []*models.WorkflowVersion   `json:"recent_versions"`
	Stats            *models.ExecutionStats      `json:"stats"`
}

// Detail returns the workflow with its last executions, last versions
// and success-rate statistics.
func (w *Workflow) Detail(ctx context.Context, id string) (*WorkflowDetail, error) {
	entity, err := w.getExisting(ctx, id)
	if err != nil {
		return nil, err
	}

	executions, err := w.persistence.ExecutionRepository().ListByWorkflow(ctx, id, recentExecutionsShown)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	versions, err := w.persistence.VersionRepository().ListByWorkflow(ctx, id, recentVersionsShown)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	stats, err := w.persistence.ExecutionRepository().StatsByWorkflow(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load execution stats: %w", err)
	}

	return &WorkflowDetail{
		Workflow:         entity,
		RecentExecutions: executions,
		RecentVersions:   versions,
		Stats:            stats,
	}, nil
}

// Versions lists the version history, newest first.
func (w *Workflow) Versions(ctx context.Context, id string, limit int) ([]*models.WorkflowVersion, error) {
	_, err := w.getExisting(ctx, id)
	if err != nil {
		return nil, err
	}

	return w.persistence.VersionRepository().ListByWorkflow(ctx, id, limit)
}

// Executions lists execution records, newest first.
func (w *Workflow) Executions(ctx context.Context, id string, limit int) ([]*models.WorkflowExecution, error) {
	_, err := w.getExisting(ctx, id)
	if err != nil {
		return nil, err
	}

	return w.persistence.ExecutionRepository().ListByWorkflow(ctx, id, limit)
}

// DeleteNode removes one node after verifying it belongs to the
// workflow.
func (w *Workflow) DeleteNode(ctx context.Context, workflowID, nodeID string) error {
	_, err := w.getExisting(ctx, workflowID)
	if err != nil {
		return err
	}

	return w.persistence.WorkflowRepository().DeleteNode(ctx, workflowID, nodeID)
}

// DeleteConnection removes one connection after verifying ownership.
func (w *Workflow) DeleteConnection(ctx context.Context, workflowID, connectionID string) error {
	_, err := w.getExisting(ctx, workflowID)
	if err != nil {
		return err
	}

	return w.persistence.WorkflowRepository().DeleteConnection(ctx, workflowID, connectionID)
}

// Validate runs the validation engine against the stored structure. The
// result is always returned, never thrown.
func (w *Workflow) Validate(ctx context.Context, id string) (*workflow.ValidationResult, error) {
	entity, err := w.getExisting(ctx, id)
	if err != nil {
		return nil, err
	}

	return w.validator.Validate(entity), nil
}

// Execute runs the workflow synchronously against the given input.
func (w *Workflow) Execute(ctx context.Context, id string, input map[string]any) (*models.ExecutionResult, error) {
	entity, err := w.getExisting(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := w.executor.Execute(ctx, entity, input)
	if err != nil {
		if errors.Is(err, workflow.ErrWorkflowNotActive) {
			return nil, ErrWorkflowNotActive
		}

		return nil, err
	}

	return result, nil
}

// Test runs the workflow with a canned payload when none is supplied.
func (w *Workflow) Test(ctx context.Context, id string, input map[string]any) (*models.ExecutionResult, error) {
	entity, err := w.getExisting(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := w.executor.Test(ctx, entity, input)
	if err != nil {
		if errors.Is(err, workflow.ErrWorkflowNotActive) {
			return nil, ErrWorkflowNotActive
		}

		return nil, err
	}

	return result, nil
}

// Deployment is the synthetic descriptor returned by Deploy.
type Deployment struct {
	WorkflowID  string    `json:"workflow_id"`
	Version     int       `json:"version"`
	Environment string    `json:"environment"`
	Endpoint    string    `json:"endpoint"`
	DeployedAt  time.Time `json:"deployed_at"`
}

// Deploy activates the workflow and returns a deployment descriptor. It
// does not execute the workflow.
func (w *Workflow) Deploy(ctx context.Context, id string) (*Deployment, error) {
	entity, err := w.setActive(ctx, id, true)
	if err != nil {
		return nil, err
	}

	version := 0

	latest, err := w.persistence.VersionRepository().LatestByWorkflow(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest version: %w", err)
	}

	if latest != nil {
		version = latest.Version
	}

	deployment := &Deployment{
		WorkflowID:  entity.ID,
		Version:     version,
		Environment: "production",
		Endpoint:    "/api/calls/workflow/" + entity.ID,
		DeployedAt:  time.Now().UTC(),
	}

	w.publish(ctx, id, events.WorkflowDeployed{
		BaseEvent:   events.NewBaseEvent(events.WorkflowDeployedEvent, id),
		Version:     version,
		Environment: deployment.Environment,
		Endpoint:    deployment.Endpoint,
	})

	return deployment, nil
}

func (w *Workflow) getExisting(ctx context.Context, id string) (*models.Workflow, error) {
	if id == "" {
		return nil, ErrWorkflowIDRequired
	}

	entity, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	if entity == nil {
		return nil, ErrWorkflowNotFound
	}

	return entity, nil
}

func (w *Workflow) setActive(ctx context.Context, id string, active bool) (*models.Workflow, error) {
	entity, err := w.getExisting(ctx, id)
	if err != nil {
		return nil, err
	}

	entity.IsActive = active

	err = w.persistence.WorkflowRepository().Save(ctx, entity)
	if err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return entity, nil
}

func (w *Workflow) nextVersionNumber(ctx context.Context, workflowID string) (int, error) {
	latest, err := w.persistence.VersionRepository().LatestByWorkflow(ctx, workflowID)
	if err != nil {
		return 0, fmt.Errorf("failed to load latest version: %w", err)
	}

	if latest == nil {
		return 1, nil
	}

	return latest.Version + 1, nil
}

func (w *Workflow) appendVersion(ctx context.Context, entity *models.Workflow, number int, description, createdBy string) error {
	version := &models.WorkflowVersion{
		WorkflowID:        entity.ID,
		Version:           number,
		ChangeDescription: description,
		Snapshot:          models.SnapshotOf(entity),
		CreatedBy:         createdBy,
	}

	err := w.persistence.VersionRepository().Save(ctx, version)
	if err != nil {
		return fmt.Errorf("failed to save version: %w", err)
	}

	return nil
}

func (w *Workflow) publish(ctx context.Context, key string, event eventbus.Event) {
	if w.publisher == nil {
		return
	}

	err := w.publisher.Publish(ctx, key, event)
	if err != nil {
		w.logger.WarnContext(ctx, "failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func summaryOf(entity *models.Workflow, nodeCount, connectionCount int) *WorkflowSummary {
	return &WorkflowSummary{
		ID:                  entity.ID,
		Name:                entity.Name,
		Description:         entity.Description,
		Category:            entity.Category,
		IsActive:            entity.IsActive,
		NodeCount:           nodeCount,
		ConnectionCount:     connectionCount,
		HasCulturalSettings: entity.HasCulturalSettings(),
		CreatedAt:           entity.CreatedAt,
		UpdatedAt:           entity.UpdatedAt,
	}
}
