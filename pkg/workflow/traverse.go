package workflow

import (
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/callforge/callflow/pkg/models"
)

// EntryNode picks the traversal start: the node with no incoming
// connections, lowest position winning when several qualify. Returns
// nil when every node has an inbound edge.
func EntryNode(workflow *models.Workflow) *models.WorkflowNode {
	entries := workflow.EntryNodes()
	if len(entries) == 0 {
		return nil
	}

	entry := entries[0]
	for _, candidate := range entries[1:] {
		if candidate.Position < entry.Position {
			entry = candidate
		}
	}

	return entry
}

// NextNode follows the current node's outgoing connections. Conditioned
// edges are evaluated against env in declaration order and the first
// truthy one wins; an unconditioned edge is the default branch, taken
// only when no condition matches. Returns nil at an exit node.
func NextNode(workflow *models.Workflow, current *models.WorkflowNode, env map[string]any) (*models.WorkflowNode, error) {
	outgoing := workflow.SourceConnections(current.ID)
	if len(outgoing) == 0 {
		return nil, nil
	}

	var defaultBranch *models.NodeConnection

	for _, connection := range outgoing {
		if !connection.IsConditional() {
			if defaultBranch == nil {
				defaultBranch = connection
			}

			continue
		}

		matched, err := EvaluateCondition(connection.Condition, env)
		if err != nil {
			return nil, fmt.Errorf("condition on connection %s: %w", connection.ID, err)
		}

		if matched {
			return workflow.NodeByID(connection.TargetNodeID), nil
		}
	}

	if defaultBranch != nil {
		return workflow.NodeByID(defaultBranch.TargetNodeID), nil
	}

	return nil, nil
}

// EvaluateCondition compiles and runs a branch expression against the
// call context. Empty expressions are vacuously true.
func EvaluateCondition(expression string, env map[string]any) (bool, error) {
	if expression == "" {
		return true, nil
	}

	if env == nil {
		env = map[string]any{}
	}

	program, err := expr.Compile(expression, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return false, fmt.Errorf("compile condition %q: %w", expression, err)
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("evaluate condition %q: %w", expression, err)
	}

	return isTruthy(result), nil
}

// isTruthy converts a value to a boolean.
func isTruthy(v any) bool {
	if v == nil {
		return false
	}

	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	default:
		return true
	}
}
