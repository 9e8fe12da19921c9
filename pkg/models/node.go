package models

// Built-in node types. The enumeration is open: a workflow may persist
// nodes of types not listed here, and the engine falls back to generic
// handling for them.
const (
	NodeTypeGreeting          = "greeting"
	NodeTypeMenu              = "menu"
	NodeTypeCondition         = "condition"
	NodeTypeSTT               = "stt"
	NodeTypeNLU               = "nlu"
	NodeTypeTTS               = "tts"
	NodeTypeDepartmentRouting = "department_routing"
)

// Default connection handles. A connection created without explicit
// handles attaches to these named ports.
const (
	DefaultSourceHandle = "source"
	DefaultTargetHandle = "target"
)

// WorkflowNode is a typed step in the call-flow graph. Config is opaque
// at write time; per-type completeness is only checked by the validation
// engine.
type WorkflowNode struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflow_id"`
	Type        string         `json:"type"     validate:"required"`
	Label       string         `json:"label"    validate:"required,min=1"`
	Description string         `json:"description,omitempty"`
	Position    int            `json:"position"`
	Config      map[string]any `json:"config"`
}

// NodeConnection is a directed edge between two nodes. Condition is a
// free-text expression evaluated during graph traversal; an empty
// condition makes the connection an unconditional (default) branch.
type NodeConnection struct {
	ID           string `json:"id"`
	WorkflowID   string `json:"workflow_id"`
	SourceNodeID string `json:"source_node_id" validate:"required"`
	TargetNodeID string `json:"target_node_id" validate:"required"`
	SourceHandle string `json:"source_handle"`
	TargetHandle string `json:"target_handle"`
	Condition    string `json:"condition,omitempty"`
}

// IsConditional reports whether the connection carries a branch condition.
func (c *NodeConnection) IsConditional() bool {
	return c.Condition != ""
}
