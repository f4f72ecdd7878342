package config

const (
	EnvPrefix = "RECEIPTVAULT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv = "RECEIPTVAULT_APP_ENV"
	EnvPort   = "RECEIPTVAULT_APP_PORT"

	EnvDBDSN  = "RECEIPTVAULT_DB_DSN"
	EnvDBHost = "RECEIPTVAULT_DB_HOST"
	EnvDBUser = "RECEIPTVAULT_DB_USER"
	EnvDBName = "RECEIPTVAULT_DB_NAME"

	EnvRedisURL = "RECEIPTVAULT_REDIS_URL"

	EnvJWTSecret  = "RECEIPTVAULT_JWT_SECRET"
	EnvJWTIssuer  = "RECEIPTVAULT_JWT_ISSUER"
	EnvJWTExpMins = "RECEIPTVAULT_JWT_EXPIRATION_MINUTES"

	EnvGCSBucket         = "RECEIPTVAULT_GCS_BUCKET_NAME"
	EnvGCSUploadExpiry   = "RECEIPTVAULT_GCS_UPLOAD_URL_EXPIRY"
	EnvGCSDownloadExpiry = "RECEIPTVAULT_GCS_DOWNLOAD_URL_EXPIRY"

	EnvIngestionSecret = "RECEIPTVAULT_INGESTION_SHARED_SECRET"
	EnvGeminiAPIKey    = "RECEIPTVAULT_GEMINI_API_KEY"
	EnvQdrantBaseURL   = "RECEIPTVAULT_QDRANT_BASE_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
