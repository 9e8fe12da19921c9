// Package cmd wires persistence and event bus implementations from
// command-line configuration.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/callforge/callflow/pkg/persistence"
	"github.com/callforge/callflow/pkg/persistence/file"
	"github.com/callforge/callflow/pkg/persistence/postgresql"
	"github.com/callforge/callflow/pkg/persistence/sqlite"
)

// NewPersistence picks the backend from the URL scheme: postgres for
// "postgres://"/"postgresql://", sqlite for "sqlite://", and the JSON
// file tree for anything else.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "sqlite":
		return sqlite.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parseProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return scheme
}
