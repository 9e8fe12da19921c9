// Package file provides a JSON-file persistence implementation. It backs
// tests and small single-node deployments; the SQL backends are the
// production path.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/callforge/callflow/pkg/persistence"
)

// Persistence implements persistence.Persistence on a directory tree:
// workflows/<id>.json, versions/<workflow_id>/<n>.json and
// executions/<workflow_id>/<id>.json under the root.
type Persistence struct {
	root          string
	workflowRepo  *WorkflowRepository
	versionRepo   *VersionRepository
	executionRepo *ExecutionRepository
}

// NewPersistence creates a file persistence layer rooted at the given
// directory. A "file://" scheme prefix is tolerated and stripped.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	versionRepo := NewVersionRepository(cleanRoot)
	executionRepo := NewExecutionRepository(cleanRoot)

	return &Persistence{
		root:          cleanRoot,
		workflowRepo:  NewWorkflowRepository(cleanRoot, versionRepo, executionRepo),
		versionRepo:   versionRepo,
		executionRepo: executionRepo,
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) VersionRepository() persistence.VersionRepository {
	return p.versionRepo
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}
