package migrate_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/supplyhub-backend/pkg/config"
	"github.com/angelmondragon/supplyhub-backend/pkg/db"
	"github.com/angelmondragon/supplyhub-backend/pkg/logger"
	"github.com/angelmondragon/supplyhub-backend/pkg/migrate"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	if err := migrate.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestMigrationsContainSchemas(t *testing.T) {
	checks := map[string][]string{
		"*_create_users_table.sql": {
			"CREATE TABLE IF NOT EXISTS users",
			"CREATE UNIQUE INDEX IF NOT EXISTS users_email_key",
			"CREATE UNIQUE INDEX IF NOT EXISTS users_phone_key",
		},
		"*_create_products_table.sql": {
			"CREATE TABLE IF NOT EXISTS products",
			"available_quantity integer NOT NULL DEFAULT 0 CHECK (available_quantity >= 0)",
			"images text[]",
		},
		"*_create_orders_tables.sql": {
			"CREATE TABLE IF NOT EXISTS orders",
			"CREATE TABLE IF NOT EXISTS order_items",
			"CREATE TABLE IF NOT EXISTS order_ratings",
			"CREATE UNIQUE INDEX IF NOT EXISTS order_ratings_order_id_key",
			"rating integer NOT NULL CHECK (rating BETWEEN 1 AND 5)",
		},
		"*_create_outbox_events_table.sql": {
			"CREATE TABLE IF NOT EXISTS outbox_events",
			"WHERE published_at IS NULL",
		},
	}

	for pattern, statements := range checks {
		matches, err := filepath.Glob(filepath.Join("migrations", pattern))
		if err != nil {
			t.Fatalf("glob migrations: %v", err)
		}
		if len(matches) != 1 {
			t.Fatalf("expected one migration for %s, got %v", pattern, matches)
		}
		data, err := os.ReadFile(matches[0])
		if err != nil {
			t.Fatalf("read migration file: %v", err)
		}
		for _, sub := range statements {
			if !strings.Contains(string(data), sub) {
				t.Errorf("%s: missing expected statement %q", matches[0], sub)
			}
		}
	}
}

func TestValidateFSRejectsBadMigrations(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"bad name": {
			"m/001_init.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"missing down": {
			"m/20260101000000_init.sql": {Data: []byte("-- +goose Up\n")},
		},
		"duplicate version": {
			"m/20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
			"m/20260101000000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"impossible timestamp": {
			"m/20261399000000_init.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"down before up": {
			"m/20260101000000_init.sql": {Data: []byte("-- +goose Down\nDROP TABLE x;\n-- +goose Up\n")},
		},
		"empty": {
			"m/README.md": {Data: []byte("docs")},
		},
	}
	for name, fsys := range cases {
		if err := migrate.ValidateFS(fsys, "m"); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestValidateFSReportsEveryProblem(t *testing.T) {
	fsys := fstest.MapFS{
		"m/bad.sql":                  {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"m/20260101000000_a.sql":     {Data: []byte("-- +goose Up\n")},
		"m/20260102000000_ok.sql":    {Data: []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\n")},
		"m/20260103000000_Mixed.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
	}
	err := migrate.ValidateFS(fsys, "m")
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"bad.sql", "20260101000000_a.sql", "20260103000000_Mixed.sql"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %s to be reported, got %v", want, err)
		}
	}
	if strings.Contains(err.Error(), "_ok.sql") {
		t.Errorf("valid migration must not be reported: %v", err)
	}
}

func TestEmbeddedFilesAreRooted(t *testing.T) {
	files, err := migrate.Files()
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if err := migrate.ValidateFS(files, "."); err != nil {
		t.Fatalf("rooted files should validate: %v", err)
	}
}

func TestMaybeRunDevAutoMigratesSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migrate_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	client := db.NewFromGorm(conn)
	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvDev},
		DB:           config.DBConfig{Driver: config.DBDriverSQLite},
		FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true},
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logger.Nop(), client); err != nil {
		t.Fatalf("MaybeRunDev: %v", err)
	}
	for _, table := range []string{"users", "products", "orders", "order_items", "order_ratings", "outbox_events"} {
		if !conn.Migrator().HasTable(table) {
			t.Errorf("expected table %s", table)
		}
	}

	cfg.App.Env = config.AppEnvProd
	if err := migrate.MaybeRunDev(context.Background(), cfg, logger.Nop(), nil); err != nil {
		t.Fatalf("prod must skip auto-run: %v", err)
	}
}
