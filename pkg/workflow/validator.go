package workflow

import (
	"fmt"

	"github.com/callforge/callflow/pkg/models"
	"github.com/callforge/callflow/pkg/registry"
)

// ValidationResult is always returned, never thrown: callers render it
// as a diagnostic report. Only Errors make a workflow undeployable.
type ValidationResult struct {
	IsValid     bool     `json:"is_valid"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
}

// maxRecommendedNodes is the point where we suggest decomposing a
// workflow into sub-workflows.
const maxRecommendedNodes = 20

// Validator certifies that a workflow's node and connection set is
// executable.
type Validator struct {
	registry *registry.Registry
}

func NewValidator(reg *registry.Registry) *Validator {
	return &Validator{registry: reg}
}

// Validate evaluates every rule; it never short-circuits, so a single
// run reports everything wrong at once.
func (v *Validator) Validate(workflow *models.Workflow) *ValidationResult {
	result := &ValidationResult{
		Errors:      []string{},
		Warnings:    []string{},
		Suggestions: []string{},
	}

	if len(workflow.Nodes) == 0 {
		result.Errors = append(result.Errors, "workflow has no nodes")
	}

	if len(workflow.Nodes) > 0 {
		entries := workflow.EntryNodes()

		switch {
		case len(entries) == 0:
			result.Warnings = append(result.Warnings, "no entry point: every node has an incoming connection")
		case len(entries) > 1:
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("ambiguous entry point: %d nodes have no incoming connections", len(entries)))
		}

		if len(workflow.ExitNodes()) == 0 {
			result.Warnings = append(result.Warnings, "no exit point: every node has an outgoing connection")
		}
	}

	for _, node := range workflow.Nodes {
		v.validateNode(workflow, node, result)
	}

	if len(workflow.Nodes) > maxRecommendedNodes {
		result.Suggestions = append(result.Suggestions,
			fmt.Sprintf("workflow has %d nodes; consider decomposing it into sub-workflows", len(workflow.Nodes)))
	}

	result.IsValid = len(result.Errors) == 0

	return result
}

func (v *Validator) validateNode(workflow *models.Workflow, node *models.WorkflowNode, result *ValidationResult) {
	// Orphan check only matters once the workflow has edges at all; a
	// single unconnected node is trivially both entry and exit.
	if len(workflow.Connections) > 0 &&
		len(workflow.SourceConnections(node.ID)) == 0 &&
		len(workflow.TargetConnections(node.ID)) == 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("node %q (%s) is not connected to the rest of the workflow", node.Label, node.ID))
	}

	decoded, err := models.DecodeNodeConfig(node.Type, node.Config)
	if err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("node %q (%s) has malformed configuration: %v", node.Label, node.ID, err))

		return
	}

	switch config := decoded.(type) {
	case *models.MenuConfig:
		if len(config.Options) == 0 {
			result.Errors = append(result.Errors,
				fmt.Sprintf("menu node %q (%s) has no options", node.Label, node.ID))
		}
	case *models.ConditionConfig:
		if config.Condition == "" {
			result.Errors = append(result.Errors,
				fmt.Sprintf("condition node %q (%s) has no condition expression", node.Label, node.ID))
		}
	case *models.GreetingConfig:
		if config.Message == "" {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("greeting node %q (%s) has no message", node.Label, node.ID))
		}
	}

	if v.registry == nil {
		return
	}

	if !v.registry.IsRegistered(node.Type) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("node %q (%s) has unrecognized type %q", node.Label, node.ID, node.Type))

		return
	}

	violations, err := v.registry.ValidateConfig(node.Type, node.Config)
	if err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("node %q (%s): %v", node.Label, node.ID, err))

		return
	}

	for _, violation := range violations {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("node %q (%s): %s", node.Label, node.ID, violation))
	}
}
