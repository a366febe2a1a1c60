package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Переменные окружения.
const (
	EnvGRPCAddr              = "OMS_GRPC_ADDR"
	EnvMetricsAddr           = "OMS_METRICS_ADDR"
	EnvStorageDriver         = "OMS_STORAGE_DRIVER"
	EnvPostgresDSN           = "OMS_POSTGRES_DSN"
	EnvPostgresAutoMigrate   = "OMS_POSTGRES_AUTO_MIGRATE"
	EnvSeedDemoData          = "OMS_SEED_DEMO_DATA"
	EnvPaymentTimeout        = "OMS_PAYMENT_TIMEOUT"
	EnvPaymentSuccessRate    = "OMS_PAYMENT_SUCCESS_RATE"
	EnvPaymentLatency        = "OMS_PAYMENT_LATENCY"
	EnvPaymentBreakerFailure = "OMS_PAYMENT_BREAKER_FAILURES"
	EnvPaymentBreakerReset   = "OMS_PAYMENT_BREAKER_RESET"
	EnvShippingLatency       = "OMS_SHIPPING_LATENCY"
	EnvKafkaBrokers          = "KAFKA_BROKERS"
	EnvOutboxPollInterval    = "OMS_OUTBOX_POLL_INTERVAL"
	EnvOutboxBatchSize       = "OMS_OUTBOX_BATCH_SIZE"
	EnvOutboxMaxAttempts     = "OMS_OUTBOX_MAX_ATTEMPTS"
	EnvOutboxRetention       = "OMS_OUTBOX_RETENTION"
	EnvOutboxCleanupInterval = "OMS_OUTBOX_CLEANUP_INTERVAL"
	EnvRateLimitRPS          = "OMS_RATE_LIMIT_RPS"
	EnvRateLimitBurst        = "OMS_RATE_LIMIT_BURST"
	EnvOTelEndpoint          = "OMS_OTEL_ENDPOINT"
	EnvLogLevel              = "OMS_LOG_LEVEL"
	EnvLogFormat             = "OMS_LOG_FORMAT"
)

// Config описывает настройки запуска сервиса.
type Config struct {
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	SeedDemoData        bool

	PaymentTimeout         time.Duration
	PaymentSuccessRate     float64
	PaymentLatency         time.Duration
	PaymentBreakerFailures int
	PaymentBreakerReset    time.Duration

	ShippingLatency time.Duration

	// KafkaBrokers пуст — Kafka отключена, outbox копится без публикации.
	KafkaBrokers       []string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int

	// OutboxRetention — сколько хранятся опубликованные сообщения.
	OutboxRetention       time.Duration
	OutboxCleanupInterval time.Duration

	// RateLimitRPS <= 0 отключает ограничение.
	RateLimitRPS   float64
	RateLimitBurst int

	// OTelEndpoint пуст — трассировка не экспортируется.
	OTelEndpoint string

	LogLevel  string
	LogFormat string
}

// DefaultConfig возвращает настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:               ":50051",
		MetricsAddr:            ":9090",
		StorageDriver:          StorageDriverMemory,
		PostgresAutoMigrate:    true,
		PaymentTimeout:         5 * time.Second,
		PaymentSuccessRate:     0.95,
		PaymentLatency:         time.Second,
		PaymentBreakerFailures: 5,
		PaymentBreakerReset:    30 * time.Second,
		ShippingLatency:        500 * time.Millisecond,
		OutboxPollInterval:     time.Second,
		OutboxBatchSize:        100,
		OutboxMaxAttempts:      3,
		OutboxRetention:        24 * time.Hour,
		OutboxCleanupInterval:  10 * time.Minute,
		RateLimitRPS:           100,
		RateLimitBurst:         200,
		LogLevel:               "info",
		LogFormat:              "text",
	}
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%s is required for storage driver %q", EnvPostgresDSN, c.StorageDriver)
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}
	if c.GRPCAddr == "" {
		return fmt.Errorf("%s must not be empty", EnvGRPCAddr)
	}
	return nil
}

// LookupFunc совпадает по сигнатуре с os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadConfig читает настройки из окружения поверх DefaultConfig. Некорректные
// значения не прерывают загрузку: поле остаётся по умолчанию, а в warnings
// попадает описание проблемы.
func LoadConfig(lookup LookupFunc) (Config, []string) {
	cfg := DefaultConfig()
	l := loader{lookup: lookup}

	l.str(EnvGRPCAddr, &cfg.GRPCAddr)
	l.str(EnvMetricsAddr, &cfg.MetricsAddr)
	if l.str(EnvStorageDriver, &cfg.StorageDriver) {
		cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	}
	l.str(EnvPostgresDSN, &cfg.PostgresDSN)
	l.boolean(EnvPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	l.boolean(EnvSeedDemoData, &cfg.SeedDemoData)

	l.positiveDuration(EnvPaymentTimeout, &cfg.PaymentTimeout)
	l.ratio(EnvPaymentSuccessRate, &cfg.PaymentSuccessRate)
	l.nonNegativeDuration(EnvPaymentLatency, &cfg.PaymentLatency)
	l.positiveInt(EnvPaymentBreakerFailure, &cfg.PaymentBreakerFailures)
	l.positiveDuration(EnvPaymentBreakerReset, &cfg.PaymentBreakerReset)
	l.nonNegativeDuration(EnvShippingLatency, &cfg.ShippingLatency)

	var brokers string
	if l.str(EnvKafkaBrokers, &brokers) {
		cfg.KafkaBrokers = splitList(brokers)
	}
	l.positiveDuration(EnvOutboxPollInterval, &cfg.OutboxPollInterval)
	l.positiveInt(EnvOutboxBatchSize, &cfg.OutboxBatchSize)
	l.positiveInt(EnvOutboxMaxAttempts, &cfg.OutboxMaxAttempts)
	l.nonNegativeDuration(EnvOutboxRetention, &cfg.OutboxRetention)
	l.positiveDuration(EnvOutboxCleanupInterval, &cfg.OutboxCleanupInterval)

	l.float(EnvRateLimitRPS, &cfg.RateLimitRPS)
	l.positiveInt(EnvRateLimitBurst, &cfg.RateLimitBurst)
	l.str(EnvOTelEndpoint, &cfg.OTelEndpoint)
	if l.str(EnvLogLevel, &cfg.LogLevel) {
		cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	}
	if l.str(EnvLogFormat, &cfg.LogFormat) {
		cfg.LogFormat = strings.ToLower(cfg.LogFormat)
		if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
			l.warn(EnvLogFormat, cfg.LogFormat, "expected text or json")
			cfg.LogFormat = "text"
		}
	}

	return cfg, l.warnings
}

type loader struct {
	lookup   LookupFunc
	warnings []string
}

// value возвращает обрезанное значение; пустые значения считаются незаданными.
func (l *loader) value(key string) (string, bool) {
	if l.lookup == nil {
		return "", false
	}
	raw, ok := l.lookup(key)
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func (l *loader) warn(key, raw, reason string) {
	l.warnings = append(l.warnings, fmt.Sprintf("%s=%q: %s, using default", key, raw, reason))
}

func (l *loader) str(key string, dst *string) bool {
	raw, ok := l.value(key)
	if ok {
		*dst = raw
	}
	return ok
}

func (l *loader) boolean(key string, dst *bool) {
	raw, ok := l.value(key)
	if !ok {
		return
	}
	parsed, err := parseBool(raw)
	if err != nil {
		l.warn(key, raw, "expected boolean")
		return
	}
	*dst = parsed
}

func (l *loader) positiveDuration(key string, dst *time.Duration) {
	raw, ok := l.value(key)
	if !ok {
		return
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		l.warn(key, raw, "expected positive duration")
		return
	}
	*dst = parsed
}

func (l *loader) nonNegativeDuration(key string, dst *time.Duration) {
	raw, ok := l.value(key)
	if !ok {
		return
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed < 0 {
		l.warn(key, raw, "expected non-negative duration")
		return
	}
	*dst = parsed
}

func (l *loader) positiveInt(key string, dst *int) {
	raw, ok := l.value(key)
	if !ok {
		return
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		l.warn(key, raw, "expected positive integer")
		return
	}
	*dst = parsed
}

func (l *loader) float(key string, dst *float64) {
	raw, ok := l.value(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		l.warn(key, raw, "expected number")
		return
	}
	*dst = parsed
}

func (l *loader) ratio(key string, dst *float64) {
	raw, ok := l.value(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed < 0 || parsed > 1 {
		l.warn(key, raw, "expected number in [0, 1]")
		return
	}
	*dst = parsed
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
