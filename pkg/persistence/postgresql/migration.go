package postgresql

// migrations returns the ordered schema migrations for PostgreSQL.
// Node config, version snapshots and execution payloads are stored as
// serialized JSON text: callers parse at the boundary.
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
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				is_template BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
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
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (workflow_id, version)
			);

			CREATE TABLE IF NOT EXISTS workflow_executions (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				status TEXT NOT NULL,
				input TEXT NOT NULL DEFAULT '{}',
				output TEXT NOT NULL DEFAULT '{}',
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_workflow_executions_workflow
				ON workflow_executions(workflow_id, started_at DESC);
		`,
	}
}
