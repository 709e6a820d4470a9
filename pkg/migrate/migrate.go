// Package migrate applies the embedded goose migrations and, for sqlite dev
// databases, the gorm model schema.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/supplyhub-backend/pkg/logger"
)

// DefaultDir is the migrations directory inside the embedded filesystem.
const DefaultDir = "migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Files exposes the embedded migrations rooted at their directory.
func Files() (fs.FS, error) {
	return fs.Sub(embedded, DefaultDir)
}

// Up applies every pending Postgres migration and logs each version applied.
func Up(ctx context.Context, db *sql.DB, logg *logger.Logger) error {
	if db == nil {
		return errors.New("db is required")
	}
	files, err := Files()
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, files)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":     res.Source.Version,
			"duration_ms": res.Duration.Milliseconds(),
		}), "migration applied")
	}
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}
