package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/trip-control-api/migrations"
)

// Migrate applies every pending embedded migration.
func Migrate(ctx context.Context, db *sqlx.DB, logger *zap.Logger) error {
	provider, err := goose.NewProvider(goose.DialectPostgres, db.DB, migrations.FS)
	if err != nil {
		return fmt.Errorf("create goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	for _, res := range results {
		if logger != nil {
			logger.Info("migration applied",
				zap.Int64("version", res.Source.Version),
				zap.String("file", res.Source.Path),
				zap.Duration("duration", res.Duration),
			)
		}
	}
	return nil
}

// MigrationStatus reports the applied state of each embedded migration.
func MigrationStatus(ctx context.Context, db *sqlx.DB) ([]*goose.MigrationStatus, error) {
	provider, err := goose.NewProvider(goose.DialectPostgres, db.DB, migrations.FS)
	if err != nil {
		return nil, fmt.Errorf("create goose provider: %w", err)
	}
	return provider.Status(ctx)
}
