package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type DBConfig struct {
	DSN    string `envconfig:"SUPPLYHUB_DB_DSN"`
	Driver string `envconfig:"SUPPLYHUB_DB_DRIVER" default:"postgres" validate:"oneof=postgres sqlite"`

	// Split connection settings, used only when DSN is empty.
	LegacyHost     string `envconfig:"SUPPLYHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"SUPPLYHUB_DB_PORT" default:"5432" validate:"gt=0,lte=65535"`
	LegacyUser     string `envconfig:"SUPPLYHUB_DB_USER"`
	LegacyPassword string `envconfig:"SUPPLYHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"SUPPLYHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"SUPPLYHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SUPPLYHUB_DB_MAX_OPEN_CONNS" default:"20" validate:"gte=0"`
	MaxIdleConns    int           `envconfig:"SUPPLYHUB_DB_MAX_IDLE_CONNS" default:"10" validate:"gte=0"`
	ConnMaxLifetime time.Duration `envconfig:"SUPPLYHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SUPPLYHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"SUPPLYHUB_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

// ensureDSN assembles a postgres URL from the split settings when no DSN
// was given. SQLite always needs an explicit DSN.
func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required when %s=%s", EnvDBDSN, EnvDBDriver, DBDriverSQLite)
	}

	parts := map[string]string{EnvDBHost: db.LegacyHost, EnvDBUser: db.LegacyUser, EnvDBName: db.LegacyName}
	var missing []string
	for _, name := range legacyDBEnvVars {
		if parts[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	user := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		user = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   db.LegacyHost + ":" + strconv.Itoa(db.LegacyPort),
		Path:   db.LegacyName,
	}
	if db.LegacySSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {db.LegacySSLMode}}.Encode()
	}
	db.DSN = dsn.String()
	return nil
}
