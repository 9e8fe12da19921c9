// Package registry maps IVR node types to their config schemas and
// simulation behavior. The validation engine asks it whether a node's
// config is well formed; the execution engine asks it what a node
// produces.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/xeipuuv/gojsonschema"

	"github.com/callforge/callflow/pkg/models"
)

// SimulateFunc produces a node's simulated output given the accumulated
// call context.
type SimulateFunc func(ctx context.Context, node *models.WorkflowNode, input map[string]any) (map[string]any, error)

// NodeHandler describes one registered node type.
type NodeHandler struct {
	Type         string
	Label        string
	Description  string
	ConfigSchema map[string]any
	Simulate     SimulateFunc
}

type Registry struct {
	logger   *slog.Logger
	handlers map[string]*NodeHandler
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger,
		handlers: make(map[string]*NodeHandler),
	}
}

// NewDefaultRegistry returns a registry with every built-in node type
// registered.
func NewDefaultRegistry(logger *slog.Logger) *Registry {
	registry := NewRegistry(logger)
	registerBuiltins(registry)

	return registry
}

func (r *Registry) Register(handler *NodeHandler) {
	r.handlers[handler.Type] = handler
}

func (r *Registry) Handler(nodeType string) (*NodeHandler, bool) {
	handler, ok := r.handlers[nodeType]

	return handler, ok
}

func (r *Registry) IsRegistered(nodeType string) bool {
	_, ok := r.handlers[nodeType]

	return ok
}

// Types returns registered node types in stable order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.handlers))
	for nodeType := range r.handlers {
		types = append(types, nodeType)
	}

	sort.Strings(types)

	return types
}

// ValidateConfig checks a node's config against the registered schema
// and returns one description per violation. Unregistered types pass:
// the validation engine reports those separately.
func (r *Registry) ValidateConfig(nodeType string, config map[string]any) ([]string, error) {
	handler, ok := r.handlers[nodeType]
	if !ok || handler.ConfigSchema == nil {
		return nil, nil
	}

	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(handler.ConfigSchema),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to validate config for node type %s: %w", nodeType, err)
	}

	if result.Valid() {
		return nil, nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}

	return violations, nil
}

// Simulate runs the node's simulator, falling back to a generic
// pass-through for unregistered types.
func (r *Registry) Simulate(ctx context.Context, node *models.WorkflowNode, input map[string]any) (map[string]any, error) {
	handler, ok := r.handlers[node.Type]
	if !ok || handler.Simulate == nil {
		return map[string]any{
			"node_type": node.Type,
			"label":     node.Label,
			"status":    "completed",
		}, nil
	}

	return handler.Simulate(ctx, node, input)
}
