package models

// WorkflowTemplate is a predefined call-flow blueprint. Templates are
// fixed in-process data, not persisted entities; instantiating one runs
// through the normal workflow create path.
type WorkflowTemplate struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Category         string          `json:"category"`
	Language         string          `json:"language"`
	CulturalFeatures []string        `json:"cultural_features"`
	Nodes            []*TemplateNode `json:"nodes"`
}

// TemplateNode is a prototypical node definition inside a template. Ref is
// the local identifier other template nodes connect against; real node ids
// are only minted at instantiation time.
type TemplateNode struct {
	Ref       string         `json:"ref"`
	Type      string         `json:"type"`
	Label     string         `json:"label"`
	Config    map[string]any `json:"config"`
	NextRef   string         `json:"next_ref,omitempty"`
	Condition string         `json:"condition,omitempty"`
}

// ExportEnvelope wraps a workflow for external transport. ExportVersion
// guards against future format changes on import.
type ExportEnvelope struct {
	Version    string    `json:"version"`
	ExportedAt string    `json:"exported_at"`
	Workflow   *Workflow `json:"workflow"`
}

// ExportFormatVersion is the current envelope format identifier.
const ExportFormatVersion = "1.0"
