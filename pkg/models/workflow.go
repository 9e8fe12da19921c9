// Package models defines the core domain models for IVR call-flow workflows.
package models

import (
	"strings"
	"time"
)

// Well-known workflow categories. Category is an open string enumeration;
// these constants cover the built-in business domains.
const (
	CategoryCustomerService = "CUSTOMER_SERVICE"
	CategoryBanking         = "BANKING"
	CategoryHealthcare      = "HEALTHCARE"
	CategoryGovernment      = "GOVERNMENT"
	CategoryGeneral         = "GENERAL"
)

// DefaultLanguage is the locale assumed when a workflow declares none.
// Nodes only receive layered cultural configuration for other locales.
const DefaultLanguage = "en"

// Workflow is the root aggregate: a named, categorized call-flow graph
// owning its nodes and, transitively, the connections between them.
type Workflow struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"              validate:"required,min=1"`
	Description      string            `json:"description"`
	Category         string            `json:"category"          validate:"required"`
	Language         string            `json:"language"`
	CulturalSettings map[string]any    `json:"cultural_settings,omitempty"`
	IsActive         bool              `json:"is_active"`
	IsTemplate       bool              `json:"is_template"`
	Nodes            []*WorkflowNode   `json:"nodes"`
	Connections      []*NodeConnection `json:"connections"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// CanonicalCategory normalizes a category tag to its stored form.
// "customer_service", " Customer_Service " and "CUSTOMER_SERVICE" all
// canonicalize identically, so re-normalizing is idempotent.
func CanonicalCategory(category string) string {
	return strings.ToUpper(strings.TrimSpace(category))
}

// NodeByID returns the owned node with the given id, or nil.
func (w *Workflow) NodeByID(id string) *WorkflowNode {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// SourceConnections returns the connections originating at the given node.
func (w *Workflow) SourceConnections(nodeID string) []*NodeConnection {
	connections := make([]*NodeConnection, 0)

	for _, connection := range w.Connections {
		if connection.SourceNodeID == nodeID {
			connections = append(connections, connection)
		}
	}

	return connections
}

// TargetConnections returns the connections terminating at the given node.
func (w *Workflow) TargetConnections(nodeID string) []*NodeConnection {
	connections := make([]*NodeConnection, 0)

	for _, connection := range w.Connections {
		if connection.TargetNodeID == nodeID {
			connections = append(connections, connection)
		}
	}

	return connections
}

// EntryNodes returns the nodes with no incoming connections, ordered by
// position. With no connections at all, every node is an entry node.
func (w *Workflow) EntryNodes() []*WorkflowNode {
	entries := make([]*WorkflowNode, 0)

	for _, node := range w.NodesByPosition() {
		if len(w.TargetConnections(node.ID)) == 0 {
			entries = append(entries, node)
		}
	}

	return entries
}

// ExitNodes returns the nodes with no outgoing connections, ordered by position.
func (w *Workflow) ExitNodes() []*WorkflowNode {
	exits := make([]*WorkflowNode, 0)

	for _, node := range w.NodesByPosition() {
		if len(w.SourceConnections(node.ID)) == 0 {
			exits = append(exits, node)
		}
	}

	return exits
}

// NodesByPosition returns the nodes sorted by their position hint.
// Storage order is not trusted; position is the sequence tiebreak.
func (w *Workflow) NodesByPosition() []*WorkflowNode {
	sorted := make([]*WorkflowNode, len(w.Nodes))
	copy(sorted, w.Nodes)

	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].Position > sorted[j].Position; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}

	return sorted
}

// HasCulturalSettings reports whether any cultural adaptation is configured.
func (w *Workflow) HasCulturalSettings() bool {
	return len(w.CulturalSettings) > 0
}
