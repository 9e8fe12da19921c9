package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/callforge/callflow/pkg/models"
	"github.com/callforge/callflow/pkg/persistence"
)

// VersionRepository stores version snapshots under
// versions/<workflow_id>/<version>.json. Files are append-only: a version
// is written once and never rewritten.
type VersionRepository struct {
	root string
}

// NewVersionRepository creates a new version repository.
func NewVersionRepository(root string) *VersionRepository {
	return &VersionRepository{root: root}
}

func (r *VersionRepository) versionDir(workflowID string) string {
	return filepath.Join(r.root, "versions", workflowID)
}

func (r *VersionRepository) versionPath(workflowID string, version int) string {
	return filepath.Join(r.versionDir(workflowID), fmt.Sprintf("%06d.json", version))
}

// Save writes a version snapshot. Overwriting an existing version number
// is refused to keep the history immutable.
func (r *VersionRepository) Save(_ context.Context, version *models.WorkflowVersion) error {
	if version.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return persistence.NewWorkflowError("SaveVersion", version.WorkflowID, err)
		}

		version.ID = id.String()
	}

	if version.CreatedAt.IsZero() {
		version.CreatedAt = nowUTC()
	}

	dir := r.versionDir(version.WorkflowID)

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return persistence.NewWorkflowError("SaveVersion", version.WorkflowID, err)
	}

	path := r.versionPath(version.WorkflowID, version.Version)

	if _, err := os.Stat(path); err == nil {
		return persistence.NewWorkflowError("SaveVersion", version.WorkflowID,
			fmt.Errorf("version %d already exists", version.Version))
	}

	data, err := json.MarshalIndent(version, "", "  ")
	if err != nil {
		return persistence.NewWorkflowError("SaveVersion", version.WorkflowID, err)
	}

	err = writeFileAtomic(path, data)
	if err != nil {
		return persistence.NewWorkflowError("SaveVersion", version.WorkflowID, err)
	}

	return nil
}

// LatestByWorkflow returns the highest-numbered version, or nil when the
// workflow has no history yet.
func (r *VersionRepository) LatestByWorkflow(ctx context.Context, workflowID string) (*models.WorkflowVersion, error) {
	versions, err := r.ListByWorkflow(ctx, workflowID, 1)
	if err != nil {
		return nil, err
	}

	if len(versions) == 0 {
		return nil, nil
	}

	return versions[0], nil
}

// ListByWorkflow returns versions newest-first, up to limit (0 = all).
func (r *VersionRepository) ListByWorkflow(_ context.Context, workflowID string, limit int) ([]*models.WorkflowVersion, error) {
	dir := r.versionDir(workflowID)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return make([]*models.WorkflowVersion, 0), nil
		}

		return nil, persistence.NewWorkflowError("ListVersions", workflowID, err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, entry.Name())
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}

	versions := make([]*models.WorkflowVersion, 0, len(names))

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, persistence.NewWorkflowError("ListVersions", workflowID, err)
		}

		var version models.WorkflowVersion

		err = json.Unmarshal(data, &version)
		if err != nil {
			return nil, persistence.NewWorkflowError("ListVersions", workflowID, err)
		}

		versions = append(versions, &version)
	}

	return versions, nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
