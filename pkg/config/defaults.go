package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "therabook"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort = "8080"

	DefaultLogLevel = "info"

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// How long a reserved slot stays exclusively claimed while the client
	// completes payment.
	DefaultHoldTTL = 10 * time.Minute

	DefaultReconcileInterval = 2 * time.Minute

	DefaultGatewayBaseURL      = "https://api.payments.example.com"
	DefaultGatewayTimeout      = 10 * time.Second
	DefaultGatewayMaxRetries   = 3
	DefaultGatewayRetryBackoff = 500 * time.Millisecond
	DefaultGatewayCacheTTL     = 30 * time.Second

	// Hourly grid within service hours: first tick 08:00, last tick 19:00.
	DefaultDayFirstSlotHour = 8
	DefaultDayLastSlotHour  = 19
	DefaultSlotDuration     = 1 * time.Hour

	DefaultPaginationLimit = 100
)
