package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/callforge/callflow/pkg/models"
	"github.com/callforge/callflow/pkg/persistence"
)

// VersionRepository handles the append-only version history.
type VersionRepository struct {
	db *sql.DB
}

// NewVersionRepository creates a new version repository.
func NewVersionRepository(db *sql.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// Save inserts a version row. The UNIQUE(workflow_id, version) constraint
// enforces immutability: rewriting an existing number fails.
func (r *VersionRepository) Save(ctx context.Context, version *models.WorkflowVersion) error {
	if version.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate version ID: %w", err)
		}

		version.ID = id.String()
	}

	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}

	snapshotJSON, err := json.Marshal(version.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal version snapshot: %w", err)
	}

	query := `
		INSERT INTO workflow_versions (id, workflow_id, version, change_description,
			snapshot, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		version.ID,
		version.WorkflowID,
		version.Version,
		version.ChangeDescription,
		string(snapshotJSON),
		version.CreatedBy,
		version.CreatedAt,
	)
	if err != nil {
		return persistence.NewWorkflowError("SaveVersion", version.WorkflowID, err)
	}

	return nil
}

// LatestByWorkflow returns the highest-numbered version, or nil.
func (r *VersionRepository) LatestByWorkflow(ctx context.Context, workflowID string) (*models.WorkflowVersion, error) {
	query := `
		SELECT id, workflow_id, version, change_description, snapshot, created_by, created_at
		FROM workflow_versions
		WHERE workflow_id = ?
		ORDER BY version DESC
		LIMIT 1
	`

	version, err := scanVersion(r.db.QueryRowContext(ctx, query, workflowID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, persistence.NewWorkflowError("LatestVersion", workflowID, err)
	}

	return version, nil
}

// ListByWorkflow returns versions newest-first, up to limit (0 = all).
func (r *VersionRepository) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.WorkflowVersion, error) {
	query := `
		SELECT id, workflow_id, version, change_description, snapshot, created_by, created_at
		FROM workflow_versions
		WHERE workflow_id = ?
		ORDER BY version DESC
	`

	args := []any{workflowID}

	if limit > 0 {
		query += " LIMIT ?"

		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewWorkflowError("ListVersions", workflowID, err)
	}
	defer rows.Close()

	versions := make([]*models.WorkflowVersion, 0)

	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, persistence.NewWorkflowError("ListVersions", workflowID, err)
		}

		versions = append(versions, version)
	}

	err = rows.Err()
	if err != nil {
		return nil, persistence.NewWorkflowError("ListVersions", workflowID, err)
	}

	return versions, nil
}

func scanVersion(row rowScanner) (*models.WorkflowVersion, error) {
	var (
		version      models.WorkflowVersion
		snapshotJSON []byte
	)

	err := row.Scan(
		&version.ID,
		&version.WorkflowID,
		&version.Version,
		&version.ChangeDescription,
		&snapshotJSON,
		&version.CreatedBy,
		&version.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(snapshotJSON) > 0 {
		err = json.Unmarshal(snapshotJSON, &version.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot for version %s: %w", version.ID, err)
		}
	}

	return &version, nil
}
