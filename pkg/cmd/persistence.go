// Package cmd provides common initialization for the journey binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hivecrm/journey/pkg/persistence"
	"github.com/hivecrm/journey/pkg/persistence/memory"
	"github.com/hivecrm/journey/pkg/persistence/postgresql"
)

// NewPersistence builds the persistence layer from a database URL.
// postgres:// and postgresql:// URLs get the Postgres implementation with
// migrations applied; memory:// gets the in-process store for development.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(err)
		}

		return store
	default:
		logger.InfoContext(ctx, "Using in-memory persistence, state will not survive a restart")

		return memory.NewPersistence()
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "memory"
	}

	return provider
}
