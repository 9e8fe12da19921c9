// Package workflow contains the core engine: building workflow graphs
// from caller-supplied definitions, validating them, traversing them
// and executing them.
package workflow

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/callforge/callflow/pkg/models"
)

// NodeDefinition is the caller-facing shape of a node on create and
// update. TempID is a caller-chosen handle used only to wire
// connections; it is replaced by a minted UUID on build.
type NodeDefinition struct {
	TempID         string
	Type           string
	Label          string
	Description    string
	Config         map[string]any
	CulturalConfig map[string]any
}

// ConnectionDefinition references nodes through their TempIDs. An
// endpoint that matches no TempID is kept as-is, which permits wiring
// against pre-existing real node ids.
type ConnectionDefinition struct {
	Source       string
	Target       string
	SourceHandle string
	TargetHandle string
	Condition    string
}

// BuildGraph turns definitions into persistable nodes and connections
// for the given workflow. Nodes receive position = array index. When
// the workflow declares a non-default language, each node's cultural
// config is layered over its main config.
func BuildGraph(workflow *models.Workflow, nodes []NodeDefinition, connections []ConnectionDefinition) error {
	idByTemp := make(map[string]string, len(nodes))

	builtNodes := make([]*models.WorkflowNode, 0, len(nodes))

	for index, definition := range nodes {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate node ID: %w", err)
		}

		if definition.TempID != "" {
			idByTemp[definition.TempID] = id.String()
		}

		config := definition.Config
		if config == nil {
			config = map[string]any{}
		}

		if workflow.Language != models.DefaultLanguage && len(definition.CulturalConfig) > 0 {
			config = layerCulturalConfig(config, definition.CulturalConfig)
		}

		builtNodes = append(builtNodes, &models.WorkflowNode{
			ID:          id.String(),
			WorkflowID:  workflow.ID,
			Type:        definition.Type,
			Label:       definition.Label,
			Description: definition.Description,
			Position:    index,
			Config:      config,
		})
	}

	builtConnections := make([]*models.NodeConnection, 0, len(connections))

	for _, definition := range connections {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate connection ID: %w", err)
		}

		sourceHandle := definition.SourceHandle
		if sourceHandle == "" {
			sourceHandle = models.DefaultSourceHandle
		}

		targetHandle := definition.TargetHandle
		if targetHandle == "" {
			targetHandle = models.DefaultTargetHandle
		}

		builtConnections = append(builtConnections, &models.NodeConnection{
			ID:           id.String(),
			WorkflowID:   workflow.ID,
			SourceNodeID: remapEndpoint(idByTemp, definition.Source),
			TargetNodeID: remapEndpoint(idByTemp, definition.Target),
			SourceHandle: sourceHandle,
			TargetHandle: targetHandle,
			Condition:    definition.Condition,
		})
	}

	workflow.Nodes = builtNodes
	workflow.Connections = builtConnections

	return nil
}

// remapEndpoint resolves a temp id to the minted node id, passing
// unknown references through untouched.
func remapEndpoint(idByTemp map[string]string, endpoint string) string {
	if real, ok := idByTemp[endpoint]; ok {
		return real
	}

	return endpoint
}

// layerCulturalConfig overlays cultural adaptation hints onto the base
// config without mutating either input. Cultural keys win.
func layerCulturalConfig(base, cultural map[string]any) map[string]any {
	layered := make(map[string]any, len(base)+len(cultural))

	for key, value := range base {
		layered[key] = value
	}

	for key, value := range cultural {
		layered[key] = value
	}

	return layered
}
