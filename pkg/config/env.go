package config

const EnvPrefix = "SUPPLYHUB"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv         = "SUPPLYHUB_APP_ENV"
	EnvPort           = "SUPPLYHUB_APP_PORT"
	EnvDBDSN          = "SUPPLYHUB_DB_DSN"
	EnvDBDriver       = "SUPPLYHUB_DB_DRIVER"
	EnvDBHost         = "SUPPLYHUB_DB_HOST"
	EnvDBUser         = "SUPPLYHUB_DB_USER"
	EnvDBPassword     = "SUPPLYHUB_DB_PASSWORD"
	EnvDBName         = "SUPPLYHUB_DB_NAME"
	EnvRedisURL       = "SUPPLYHUB_REDIS_URL"
	EnvJWTSecret      = "SUPPLYHUB_JWT_SECRET"
	EnvJWTIssuer      = "SUPPLYHUB_JWT_ISSUER"
	EnvJWTExpMins     = "SUPPLYHUB_JWT_EXPIRATION_MINUTES"
	EnvCookieSameSite = "SUPPLYHUB_AUTH_COOKIE_SAMESITE"
	EnvCORSOrigins    = "SUPPLYHUB_CORS_ALLOWED_ORIGINS"
	EnvGCSBucket      = "SUPPLYHUB_GCS_BUCKET_NAME"
	EnvPubSubOrders   = "SUPPLYHUB_PUBSUB_ORDERS_TOPIC"
	EnvGCPProjectID   = "SUPPLYHUB_GCP_PROJECT_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
