package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvWebhookSecret = "WEBHOOK_SECRET"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvHoldTTL           = "HOLD_TTL"
	EnvReconcileInterval = "RECONCILE_INTERVAL"

	EnvGatewayBaseURL      = "GATEWAY_BASE_URL"
	EnvGatewayAPIKey       = "GATEWAY_API_KEY"
	EnvGatewayTimeout      = "GATEWAY_TIMEOUT"
	EnvGatewayMaxRetries   = "GATEWAY_MAX_RETRIES"
	EnvGatewayRetryBackoff = "GATEWAY_RETRY_BACKOFF"
	EnvGatewayCacheTTL     = "GATEWAY_CACHE_TTL"

	EnvDayFirstSlotHour = "DAY_FIRST_SLOT_HOUR"
	EnvDayLastSlotHour  = "DAY_LAST_SLOT_HOUR"
	EnvSlotDuration     = "SLOT_DURATION"
)
