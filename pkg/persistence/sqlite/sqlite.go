// Package sqlite provides an embedded persistence implementation backed
// by modernc.org/sqlite, for single-node deployments that want durable
// storage without an external database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"

	"github.com/callforge/callflow/pkg/persistence"
	"github.com/callforge/callflow/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for SQLite.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	workflowRepo  *WorkflowRepository
	versionRepo   *VersionRepository
	executionRepo *ExecutionRepository
}

// NewPersistence opens (or creates) the database file, runs migrations
// and returns the persistence layer. A "sqlite://" prefix is stripped.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	path := strings.Replace(databaseURL, "sqlite://", "", 1)

	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite handles one writer at a time; serialize access through a
	// single connection instead of surfacing SQLITE_BUSY to callers.
	database.SetMaxOpenConns(1)

	_, err = database.ExecContext(ctx, "PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:            database,
		logger:        logger,
		workflowRepo:  NewWorkflowRepository(database, logger),
		versionRepo:   NewVersionRepository(database),
		executionRepo: NewExecutionRepository(database),
	}, nil
}

// Close closes the database.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database is reachable.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
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

// migrations returns the ordered schema migrations for SQLite.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				category TEXT NOT NULL,
				language TEXT NOT NULL DEFAULT 'en',
				cultural_settings TEXT NOT NULL DEFAULT '{}',
				is_active INTEGER NOT NULL DEFAULT 1,
				is_template INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			);

			CREATE TABLE IF NOT EXISTS workflow_nodes (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				node_type TEXT NOT NULL,
				label TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				position INTEGER NOT NULL DEFAULT 0,
				config TEXT NOT NULL DEFAULT '{}'
			);

			CREATE INDEX IF NOT EXISTS idx_workflow_nodes_workflow
				ON workflow_nodes(workflow_id, position);

			CREATE TABLE IF NOT EXISTS node_connections (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				source_node_id TEXT NOT NULL REFERENCES workflow_nodes(id) ON DELETE CASCADE,
				target_node_id TEXT NOT NULL REFERENCES workflow_nodes(id) ON DELETE CASCADE,
				source_handle TEXT NOT NULL DEFAULT 'source',
				target_handle TEXT NOT NULL DEFAULT 'target',
				condition TEXT NOT NULL DEFAULT ''
			);

			CREATE INDEX IF NOT EXISTS idx_node_connections_workflow
				ON node_connections(workflow_id);

			CREATE TABLE IF NOT EXISTS workflow_versions (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				version INTEGER NOT NULL,
				change_description TEXT NOT NULL DEFAULT '',
				snapshot TEXT NOT NULL,
				created_by TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP NOT NULL,
				UNIQUE (workflow_id, version)
			);

			CREATE TABLE IF NOT EXISTS workflow_executions (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				status TEXT NOT NULL,
				input TEXT NOT NULL DEFAULT '{}',
				output TEXT NOT NULL DEFAULT '{}',
				started_at TIMESTAMP NOT NULL,
				completed_at TIMESTAMP
			);

			CREATE INDEX IF NOT EXISTS idx_workflow_executions_workflow
				ON workflow_executions(workflow_id, started_at);
		`,
	}
}
