package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"therabook/pkg/client"
	"therabook/pkg/logger"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	WebhookSecret string

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	HoldTTL           time.Duration
	ReconcileInterval time.Duration

	GatewayBaseURL      string
	GatewayAPIKey       string
	GatewayTimeout      time.Duration
	GatewayMaxRetries   int
	GatewayRetryBackoff time.Duration
	GatewayCacheTTL     time.Duration

	DayFirstSlotHour int
	DayLastSlotHour  int
	SlotDuration     time.Duration

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		WebhookSecret: getEnvStr(EnvWebhookSecret, ""),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		HoldTTL:           getEnvDuration(EnvHoldTTL, DefaultHoldTTL),
		ReconcileInterval: getEnvDuration(EnvReconcileInterval, DefaultReconcileInterval),

		GatewayBaseURL:      getEnvStr(EnvGatewayBaseURL, DefaultGatewayBaseURL),
		GatewayAPIKey:       getEnvStr(EnvGatewayAPIKey, ""),
		GatewayTimeout:      getEnvDuration(EnvGatewayTimeout, DefaultGatewayTimeout),
		GatewayMaxRetries:   getEnvNum(EnvGatewayMaxRetries, DefaultGatewayMaxRetries),
		GatewayRetryBackoff: getEnvDuration(EnvGatewayRetryBackoff, DefaultGatewayRetryBackoff),
		GatewayCacheTTL:     getEnvDuration(EnvGatewayCacheTTL, DefaultGatewayCacheTTL),

		DayFirstSlotHour: getEnvNum(EnvDayFirstSlotHour, DefaultDayFirstSlotHour),
		DayLastSlotHour:  getEnvNum(EnvDayLastSlotHour, DefaultDayLastSlotHour),
		SlotDuration:     getEnvDuration(EnvSlotDuration, DefaultSlotDuration),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
	}

	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.HoldTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("HoldTTL must be at least 1m, got: %s", cfg.HoldTTL))
	}
	if cfg.ReconcileInterval < 30*time.Second {
		errors = append(errors, fmt.Sprintf("ReconcileInterval must be at least 30s, got: %s", cfg.ReconcileInterval))
	}

	if cfg.GatewayBaseURL == "" {
		errors = append(errors, "GatewayBaseURL cannot be empty")
	} else if !regexp.MustCompile(`^https?://`).MatchString(cfg.GatewayBaseURL) {
		errors = append(errors, fmt.Sprintf("GatewayBaseURL must start with 'http://' or 'https://', got: %s", cfg.GatewayBaseURL))
	}
	if cfg.GatewayTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("GatewayTimeout must be positive, got: %s", cfg.GatewayTimeout))
	}
	if cfg.GatewayMaxRetries < 0 {
		errors = append(errors, fmt.Sprintf("GatewayMaxRetries cannot be negative, got: %d", cfg.GatewayMaxRetries))
	}
	if cfg.GatewayRetryBackoff <= 0 {
		errors = append(errors, fmt.Sprintf("GatewayRetryBackoff must be positive, got: %s", cfg.GatewayRetryBackoff))
	}
	if cfg.GatewayCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("GatewayCacheTTL must be positive, got: %s", cfg.GatewayCacheTTL))
	}

	if cfg.DayFirstSlotHour < 0 || cfg.DayFirstSlotHour > 23 {
		errors = append(errors, fmt.Sprintf("DayFirstSlotHour must be between 0 and 23, got: %d", cfg.DayFirstSlotHour))
	}
	if cfg.DayLastSlotHour < 0 || cfg.DayLastSlotHour > 23 {
		errors = append(errors, fmt.Sprintf("DayLastSlotHour must be between 0 and 23, got: %d", cfg.DayLastSlotHour))
	}
	if cfg.DayLastSlotHour < cfg.DayFirstSlotHour {
		errors = append(errors, fmt.Sprintf("DayLastSlotHour (%d) must be >= DayFirstSlotHour (%d)", cfg.DayLastSlotHour, cfg.DayFirstSlotHour))
	}
	if cfg.SlotDuration < 15*time.Minute {
		errors = append(errors, fmt.Sprintf("SlotDuration must be at least 15m, got: %s", cfg.SlotDuration))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"webhook_secret_set", cfg.WebhookSecret != "",
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"hold_ttl", cfg.HoldTTL,
		"reconcile_interval", cfg.ReconcileInterval,
		"gateway_base_url", cfg.GatewayBaseURL,
		"gateway_api_key_set", cfg.GatewayAPIKey != "",
		"gateway_timeout", cfg.GatewayTimeout,
		"gateway_max_retries", cfg.GatewayMaxRetries,
		"gateway_retry_backoff", cfg.GatewayRetryBackoff,
		"gateway_cache_ttl", cfg.GatewayCacheTTL,
		"day_first_slot_hour", cfg.DayFirstSlotHour,
		"day_last_slot_hour", cfg.DayLastSlotHour,
		"slot_duration", cfg.SlotDuration,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown()
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
