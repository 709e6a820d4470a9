package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/supplyhub-backend/pkg/config"
	"github.com/angelmondragon/supplyhub-backend/pkg/db"
	"github.com/angelmondragon/supplyhub-backend/pkg/db/models"
	"github.com/angelmondragon/supplyhub-backend/pkg/logger"
)

// MaybeRunDev migrates the database at startup when running in dev with
// auto-migrate enabled. Postgres gets the goose files; sqlite gets the gorm
// models since the SQL targets Postgres.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})

	if cfg.DB.IsSQLite() {
		if err := AutoMigrate(client); err != nil {
			return err
		}
		logg.Info(ctx, "schema synced from models")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	if err := Up(ctx, sqlDB, logg); err != nil {
		return err
	}
	logg.Info(ctx, "migrations up to date")
	return nil
}

// AutoMigrate creates the schema from the gorm models.
func AutoMigrate(client *db.Client) error {
	if err := client.DB().AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}
