package config

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Cookie        CookieConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	CORS          CORSConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	GCS           GCSConfig
	Media         MediaConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
}

// Load reads SUPPLYHUB_* variables, derives the DSN when only the split
// DB_* parts are set, then checks value ranges. Range errors name the
// offending variable.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.normalize()
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := checkRanges(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.DB.Driver = strings.ToLower(strings.TrimSpace(c.DB.Driver))
	c.Cookie.SameSite = strings.ToLower(strings.TrimSpace(c.Cookie.SameSite))
	if c.Cookie.SameSite == "" {
		c.Cookie.SameSite = "auto"
	}
}

var rangeChecker = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("envconfig")
	})
	return v
}()

func checkRanges(cfg *Config) error {
	err := rangeChecker.Struct(cfg)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		problems = append(problems, fmt.Sprintf("%s=%v violates %s", fe.Field(), fe.Value(), rule))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}

type AppConfig struct {
	Env          string `envconfig:"SUPPLYHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"SUPPLYHUB_APP_PORT" required:"true" validate:"numeric"`
	LogLevel     string `envconfig:"SUPPLYHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SUPPLYHUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type RedisConfig struct {
	URL          string        `envconfig:"SUPPLYHUB_REDIS_URL" required:"true"`
	Password     string        `envconfig:"SUPPLYHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"SUPPLYHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SUPPLYHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SUPPLYHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SUPPLYHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SUPPLYHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SUPPLYHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SUPPLYHUB_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SUPPLYHUB_JWT_ISSUER" default:"supplyhub"`
	ExpirationMinutes int    `envconfig:"SUPPLYHUB_JWT_EXPIRATION_MINUTES" default:"43200" validate:"gt=0"`
}

// TTL returns the access token lifetime.
func (j JWTConfig) TTL() time.Duration {
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type CookieConfig struct {
	Name     string `envconfig:"SUPPLYHUB_AUTH_COOKIE_NAME" default:"token"`
	SameSite string `envconfig:"SUPPLYHUB_AUTH_COOKIE_SAMESITE" default:"auto" validate:"oneof=auto lax strict none"`
	Domain   string `envconfig:"SUPPLYHUB_AUTH_COOKIE_DOMAIN"`
}

// SameSiteMode resolves the configured policy. "auto" picks None for secure
// (production) cookies so a cross-site client can send them, and Lax otherwise.
// Unknown values fall back to Lax; Load rejects them before they get here.
func (c CookieConfig) SameSiteMode(secure bool) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(c.SameSite)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "", "auto":
		if secure {
			return http.SameSiteNoneMode
		}
	}
	return http.SameSiteLaxMode
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SUPPLYHUB_ARGON_MEMORY_KB" default:"65536" validate:"gte=8192"`
	ArgonTime        int `envconfig:"SUPPLYHUB_ARGON_TIME" default:"3" validate:"gt=0"`
	ArgonParallelism int `envconfig:"SUPPLYHUB_ARGON_PARALLELISM" default:"2" validate:"gt=0,lte=255"`
	ArgonSaltLen     int `envconfig:"SUPPLYHUB_ARGON_SALT_LEN" default:"16" validate:"gte=8"`
	ArgonKeyLen      int `envconfig:"SUPPLYHUB_ARGON_KEY_LEN" default:"32" validate:"gte=16"`
}

type AuthRateLimitConfig struct {
	Enabled            bool          `envconfig:"SUPPLYHUB_AUTH_RATE_LIMIT_ENABLED" default:"true"`
	LoginWindow        time.Duration `envconfig:"SUPPLYHUB_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"SUPPLYHUB_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"SUPPLYHUB_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"SUPPLYHUB_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"SUPPLYHUB_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"SUPPLYHUB_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"SUPPLYHUB_CORS_ALLOWED_ORIGINS" default:"http://localhost:5173" validate:"dive,required"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SUPPLYHUB_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SUPPLYHUB_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"SUPPLYHUB_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SUPPLYHUB_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName    string `envconfig:"SUPPLYHUB_GCS_BUCKET_NAME" required:"true"`
	PublicBaseURL string `envconfig:"SUPPLYHUB_GCS_PUBLIC_BASE_URL" default:"https://storage.googleapis.com" validate:"omitempty,url"`
	ObjectPrefix  string `envconfig:"SUPPLYHUB_GCS_OBJECT_PREFIX" default:"products"`
}

type MediaConfig struct {
	MaxUploadMB    int `envconfig:"SUPPLYHUB_MAX_UPLOAD_MB" default:"50"`
	MaxImages      int `envconfig:"SUPPLYHUB_MAX_IMAGES" default:"5" validate:"gte=0"`
	MaxAttachments int `envconfig:"SUPPLYHUB_MAX_ATTACHMENTS" default:"10" validate:"gte=0"`
}

// MaxUploadBytes is the multipart body ceiling.
func (m MediaConfig) MaxUploadBytes() int64 {
	if m.MaxUploadMB <= 0 {
		return 50 << 20
	}
	return int64(m.MaxUploadMB) << 20
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"SUPPLYHUB_PUBSUB_ORDERS_TOPIC" default:"supplyhub-order-events" validate:"required"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SUPPLYHUB_OUTBOX_PUBLISH_BATCH_SIZE" default:"50" validate:"gt=0,lte=1000"`
	PollIntervalMS int `envconfig:"SUPPLYHUB_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SUPPLYHUB_OUTBOX_MAX_ATTEMPTS" default:"10" validate:"gt=0"`
}

// PollInterval converts the configured milliseconds into a duration.
func (o OutboxConfig) PollInterval() time.Duration {
	if o.PollIntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(o.PollIntervalMS) * time.Millisecond
}
