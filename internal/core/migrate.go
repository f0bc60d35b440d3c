// AngelaMos | 2026
// migrate.go

package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/carterperez-dev/templates/journal-backend/internal/migrations"
)

// Migrate applies every pending embedded migration.
func (d *Database) Migrate(ctx context.Context) error {
	provider, err := goose.NewProvider(goose.DialectPostgres, d.DB.DB, migrations.FS)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	for _, r := range results {
		slog.Info("migration applied",
			"version", r.Source.Version,
			"duration", r.Duration,
		)
	}

	return nil
}
