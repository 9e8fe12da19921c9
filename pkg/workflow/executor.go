package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/callforge/callflow/pkg/eventbus"
	"github.com/callforge/callflow/pkg/events"
	"github.com/callforge/callflow/pkg/models"
	"github.com/callforge/callflow/pkg/otelhelper"
	"github.com/callforge/callflow/pkg/persistence"
	"github.com/callforge/callflow/pkg/registry"
)

// ErrWorkflowNotActive is returned when execute is called on a
// deactivated workflow. No execution record is created in that case.
var ErrWorkflowNotActive = errors.New("workflow is not active")

// Simulated per-node processing duration bounds, in milliseconds.
const (
	minSimulatedDurationMs = 30
	maxSimulatedDurationMs = 150
)

// Executor synchronously interprets a workflow against an input
// payload. Each run creates its own execution record; concurrent runs
// against the same workflow are independent.
type Executor struct {
	executions persistence.ExecutionRepository
	registry   *registry.Registry
	publisher  eventbus.EventPublisher
	tracer     trace.Tracer
	logger     *slog.Logger
}

func NewExecutor(
	executions persistence.ExecutionRepository,
	reg *registry.Registry,
	publisher eventbus.EventPublisher,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Executor {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("callflow")
	}

	return &Executor{
		executions: executions,
		registry:   reg,
		publisher:  publisher,
		tracer:     tracer,
		logger:     logger,
	}
}

// Execute runs the workflow and returns the trace. A workflow-level
// failure is reported through the result's Success and Error fields,
// not as a Go error: the platform worked, the workflow did not.
func (e *Executor) Execute(ctx context.Context, workflow *models.Workflow, input map[string]any) (*models.ExecutionResult, error) {
	if !workflow.IsActive {
		return nil, ErrWorkflowNotActive
	}

	executionID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate execution ID: %w", err)
	}

	execution := &models.WorkflowExecution{
		ID:         executionID.String(),
		WorkflowID: workflow.ID,
		Status:     models.ExecutionStatusRunning,
		Input:      input,
		StartedAt:  time.Now().UTC(),
	}

	err = e.executions.Save(ctx, execution)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution record: %w", err)
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.WorkflowNameKey, workflow.Name),
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
	)
	defer span.End()

	e.publishStarted(ctx, workflow, execution, input)

	steps, runErr := e.runSteps(ctx, workflow, input)

	result := &models.ExecutionResult{
		ExecutionID:  execution.ID,
		WorkflowID:   workflow.ID,
		WorkflowName: workflow.Name,
		Trace:        steps,
	}

	completedAt := time.Now().UTC()
	execution.CompletedAt = &completedAt
	durationMs := completedAt.Sub(execution.StartedAt).Milliseconds()

	if runErr != nil {
		execution.Status = models.ExecutionStatusFailed
		execution.Output = map[string]any{"error": runErr.Error()}
		result.Success = false
		result.Error = runErr.Error()

		otelhelper.SetError(span, runErr)
		e.publishFailed(ctx, workflow, execution, runErr, len(steps), durationMs)
	} else {
		execution.Status = models.ExecutionStatusSuccess
		execution.Output = outputSummary(steps)
		result.Success = true
		result.Output = execution.Output

		e.publishCompleted(ctx, workflow, execution, len(steps), durationMs)
	}

	err = e.executions.Save(ctx, execution)
	if err != nil {
		return nil, fmt.Errorf("failed to finalize execution record: %w", err)
	}

	e.logger.InfoContext(ctx, "workflow execution finished",
		"workflow_id", workflow.ID,
		"execution_id", execution.ID,
		"status", execution.Status,
		"nodes_executed", len(steps),
	)

	return result, nil
}

// Test runs the workflow with a canned payload when the caller supplies
// none, and always marks the run as a test execution.
func (e *Executor) Test(ctx context.Context, workflow *models.Workflow, input map[string]any) (*models.ExecutionResult, error) {
	payload := make(map[string]any, len(input)+1)

	if len(input) == 0 {
		payload["caller_id"] = "+911234567890"
		payload["language"] = "ml"
		payload["test_mode"] = true
	} else {
		for key, value := range input {
			payload[key] = value
		}
	}

	payload["test_execution"] = true

	return e.Execute(ctx, workflow, payload)
}

// runSteps walks the graph from the entry node, following connections
// and evaluating branch conditions against the accumulated call
// context. Workflows without connections fall back to plain position
// order. The step count is bounded to twice the node count so a cyclic
// graph terminates with an error instead of spinning.
func (e *Executor) runSteps(ctx context.Context, workflow *models.Workflow, input map[string]any) ([]models.NodeTrace, error) {
	if len(workflow.Connections) == 0 {
		return e.runLinear(ctx, workflow, input)
	}

	env := make(map[string]any, len(input))
	for key, value := range input {
		env[key] = value
	}

	traces := make([]models.NodeTrace, 0, len(workflow.Nodes))

	current := EntryNode(workflow)
	if current == nil {
		return traces, errors.New("no entry node: every node has an incoming connection")
	}

	maxSteps := 2 * len(workflow.Nodes)

	for step := 0; current != nil; step++ {
		if step >= maxSteps {
			return traces, fmt.Errorf("step limit of %d exceeded, workflow graph likely cyclic", maxSteps)
		}

		nodeTrace, err := e.runNode(ctx, current, env)
		if err != nil {
			return traces, err
		}

		traces = append(traces, *nodeTrace)

		for key, value := range nodeTrace.Output {
			env[key] = value
		}

		current, err = NextNode(workflow, current, env)
		if err != nil {
			return traces, err
		}
	}

	return traces, nil
}

// runLinear interprets the node list in stored position order. Steps
// are independent: no node's output feeds the next.
func (e *Executor) runLinear(ctx context.Context, workflow *models.Workflow, input map[string]any) ([]models.NodeTrace, error) {
	traces := make([]models.NodeTrace, 0, len(workflow.Nodes))

	for _, node := range workflow.NodesByPosition() {
		nodeTrace, err := e.runNode(ctx, node, input)
		if err != nil {
			return traces, err
		}

		traces = append(traces, *nodeTrace)
	}

	return traces, nil
}

func (e *Executor) runNode(ctx context.Context, node *models.WorkflowNode, env map[string]any) (*models.NodeTrace, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.node",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, node.Type),
	)
	defer span.End()

	output, err := e.registry.Simulate(ctx, node, env)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("node %q (%s): %w", node.Label, node.ID, err)
	}

	return &models.NodeTrace{
		NodeID:     node.ID,
		NodeType:   node.Type,
		Label:      node.Label,
		DurationMS: simulatedDuration(),
		Output:     output,
	}, nil
}

func simulatedDuration() int64 {
	return int64(minSimulatedDurationMs + rand.IntN(maxSimulatedDurationMs-minSimulatedDurationMs))
}

// outputSummary condenses a trace into the execution's stored output.
func outputSummary(traces []models.NodeTrace) map[string]any {
	summary := map[string]any{
		"nodes_executed": len(traces),
	}

	if len(traces) > 0 {
		last := traces[len(traces)-1]
		summary["final_node"] = last.NodeID
		summary["final_output"] = last.Output
	}

	return summary
}

func (e *Executor) publishStarted(ctx context.Context, workflow *models.Workflow, execution *models.WorkflowExecution, input map[string]any) {
	if e.publisher == nil {
		return
	}

	testMode, _ := input["test_execution"].(bool)

	event := events.ExecutionStarted{
		BaseEvent:    events.NewBaseEvent(events.ExecutionStartedEvent, workflow.ID),
		ExecutionID:  execution.ID,
		WorkflowName: workflow.Name,
		Input:        input,
		TestMode:     testMode,
	}

	err := e.publisher.Publish(ctx, workflow.ID, event)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to publish execution started event", "error", err)
	}
}

func (e *Executor) publishCompleted(ctx context.Context, workflow *models.Workflow, execution *models.WorkflowExecution, nodesExecuted int, durationMs int64) {
	if e.publisher == nil {
		return
	}

	event := events.ExecutionCompleted{
		BaseEvent:     events.NewBaseEvent(events.ExecutionCompletedEvent, workflow.ID),
		ExecutionID:   execution.ID,
		DurationMs:    durationMs,
		NodesExecuted: nodesExecuted,
		Output:        execution.Output,
	}

	err := e.publisher.Publish(ctx, workflow.ID, event)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to publish execution completed event", "error", err)
	}
}

func (e *Executor) publishFailed(ctx context.Context, workflow *models.Workflow, execution *models.WorkflowExecution, runErr error, nodesExecuted int, durationMs int64) {
	if e.publisher == nil {
		return
	}

	event := events.ExecutionFailed{
		BaseEvent:     events.NewBaseEvent(events.ExecutionFailedEvent, workflow.ID),
		ExecutionID:   execution.ID,
		DurationMs:    durationMs,
		NodesExecuted: nodesExecuted,
		Error:         runErr.Error(),
	}

	err := e.publisher.Publish(ctx, workflow.ID, event)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to publish execution failed event", "error", err)
	}
}
