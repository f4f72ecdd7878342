package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	GCS          GCSConfig
	Ingestion    IngestionConfig
	Gemini       GeminiConfig
	Qdrant       QdrantConfig
	Query        QueryConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RECEIPTVAULT_APP_ENV" required:"true"`
	Port         string `envconfig:"RECEIPTVAULT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"RECEIPTVAULT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RECEIPTVAULT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"RECEIPTVAULT_DB_DSN"`
	Driver string `envconfig:"RECEIPTVAULT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RECEIPTVAULT_DB_HOST"`
	LegacyPort     int    `envconfig:"RECEIPTVAULT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RECEIPTVAULT_DB_USER"`
	LegacyPassword string `envconfig:"RECEIPTVAULT_DB_PASSWORD"`
	LegacyName     string `envconfig:"RECEIPTVAULT_DB_NAME"`
	LegacySSLMode  string `envconfig:"RECEIPTVAULT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RECEIPTVAULT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RECEIPTVAULT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RECEIPTVAULT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RECEIPTVAULT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RECEIPTVAULT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"RECEIPTVAULT_REDIS_ADDR"`
	Password     string        `envconfig:"RECEIPTVAULT_REDIS_PASSWORD"`
	DB           int           `envconfig:"RECEIPTVAULT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RECEIPTVAULT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RECEIPTVAULT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RECEIPTVAULT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RECEIPTVAULT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RECEIPTVAULT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"RECEIPTVAULT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"RECEIPTVAULT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"RECEIPTVAULT_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"RECEIPTVAULT_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"RECEIPTVAULT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"RECEIPTVAULT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"RECEIPTVAULT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"RECEIPTVAULT_GCS_BUCKET_NAME" required:"true"`

	// Clients that retry an upload after the window has elapsed get an auth
	// failure from the storage provider itself, not from this service.
	UploadURLExpiry   time.Duration `envconfig:"RECEIPTVAULT_GCS_UPLOAD_URL_EXPIRY" default:"15m"`
	DownloadURLExpiry time.Duration `envconfig:"RECEIPTVAULT_GCS_DOWNLOAD_URL_EXPIRY" default:"15m"`
}

type IngestionConfig struct {
	// SharedSecret authenticates the OCR pipeline's callback requests.
	SharedSecret  string        `envconfig:"RECEIPTVAULT_INGESTION_SHARED_SECRET" required:"true"`
	WebhookURL    string        `envconfig:"RECEIPTVAULT_INGESTION_WEBHOOK_URL"`
	NotifyTimeout time.Duration `envconfig:"RECEIPTVAULT_INGESTION_NOTIFY_TIMEOUT" default:"3s"`
}

type GeminiConfig struct {
	APIKey          string        `envconfig:"RECEIPTVAULT_GEMINI_API_KEY" required:"true"`
	BaseURL         string        `envconfig:"RECEIPTVAULT_GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta"`
	EmbedModel      string        `envconfig:"RECEIPTVAULT_GEMINI_EMBED_MODEL" default:"text-embedding-004"`
	GenerateModel   string        `envconfig:"RECEIPTVAULT_GEMINI_GENERATE_MODEL" default:"gemini-1.5-flash"`
	EmbedTimeout    time.Duration `envconfig:"RECEIPTVAULT_GEMINI_EMBED_TIMEOUT" default:"10s"`
	GenerateTimeout time.Duration `envconfig:"RECEIPTVAULT_GEMINI_GENERATE_TIMEOUT" default:"30s"`
}

type QdrantConfig struct {
	BaseURL    string        `envconfig:"RECEIPTVAULT_QDRANT_BASE_URL" required:"true"`
	APIKey     string        `envconfig:"RECEIPTVAULT_QDRANT_API_KEY"`
	Collection string        `envconfig:"RECEIPTVAULT_QDRANT_COLLECTION" default:"receipt_chunks"`
	TopK       int           `envconfig:"RECEIPTVAULT_QDRANT_TOP_K" default:"5"`
	Timeout    time.Duration `envconfig:"RECEIPTVAULT_QDRANT_TIMEOUT" default:"10s"`
}

type QueryConfig struct {
	RateLimitWindow time.Duration `envconfig:"RECEIPTVAULT_QUERY_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitCount  int64         `envconfig:"RECEIPTVAULT_QUERY_RATE_LIMIT_COUNT" default:"20"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
