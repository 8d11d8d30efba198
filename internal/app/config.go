package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска сервера и CLI.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	KafkaBrokers  []string
	KafkaClientID string
	KafkaTopic    string
	KafkaDLQTopic string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	// OutboxMaxPending — порог backlog, выше которого /readyz показывает degraded.
	OutboxMaxPending int

	// IdempotencyTTL — сколько хранится ключ Idempotency-Key с ответом.
	IdempotencyTTL             time.Duration
	IdempotencyCleanupInterval time.Duration
	IdempotencyCleanupBatch    int

	LogLevel  string
	LogFormat string
}

// DefaultConfig возвращает настройки для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8080",
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		KafkaClientID:       "retail",
		KafkaTopic:          "retail.order.events",
		KafkaDLQTopic:       "retail.dlq",
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    200 * time.Millisecond,
		OutboxMaxPending:    1000,

		IdempotencyTTL:             24 * time.Hour,
		IdempotencyCleanupInterval: 10 * time.Minute,
		IdempotencyCleanupBatch:    500,

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// ConfigFromEnv читает RETAIL_* поверх DefaultConfig. Файлы .env (если
// переданы или есть в текущем каталоге) загружаются до чтения окружения и не
// перетирают уже выставленные переменные.
func ConfigFromEnv(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			envFiles = []string{".env"}
		}
	}
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return Config{}, fmt.Errorf("load env files: %w", err)
		}
	}

	cfg := DefaultConfig()
	var errs []string
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = parsed
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = parsed
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = parsed
		}
	}

	str("RETAIL_HTTP_ADDR", &cfg.HTTPAddr)
	str("RETAIL_GRPC_ADDR", &cfg.GRPCAddr)
	str("RETAIL_METRICS_ADDR", &cfg.MetricsAddr)
	str("RETAIL_STORAGE_DRIVER", &cfg.StorageDriver)
	str("RETAIL_POSTGRES_DSN", &cfg.PostgresDSN)
	boolean("RETAIL_POSTGRES_AUTO_MIGRATE", &cfg.PostgresAutoMigrate)
	if v, ok := lookup("RETAIL_KAFKA_BROKERS"); ok {
		cfg.KafkaBrokers = splitList(v)
	}
	str("RETAIL_KAFKA_CLIENT_ID", &cfg.KafkaClientID)
	str("RETAIL_KAFKA_TOPIC", &cfg.KafkaTopic)
	str("RETAIL_KAFKA_DLQ_TOPIC", &cfg.KafkaDLQTopic)
	duration("RETAIL_OUTBOX_POLL_INTERVAL", &cfg.OutboxPollInterval)
	integer("RETAIL_OUTBOX_BATCH_SIZE", &cfg.OutboxBatchSize)
	integer("RETAIL_OUTBOX_MAX_ATTEMPTS", &cfg.OutboxMaxAttempts)
	duration("RETAIL_OUTBOX_RETRY_DELAY", &cfg.OutboxRetryDelay)
	integer("RETAIL_OUTBOX_MAX_PENDING", &cfg.OutboxMaxPending)
	duration("RETAIL_IDEMPOTENCY_TTL", &cfg.IdempotencyTTL)
	duration("RETAIL_IDEMPOTENCY_CLEANUP_INTERVAL", &cfg.IdempotencyCleanupInterval)
	integer("RETAIL_IDEMPOTENCY_CLEANUP_BATCH", &cfg.IdempotencyCleanupBatch)
	str("RETAIL_LOG_LEVEL", &cfg.LogLevel)
	str("RETAIL_LOG_FORMAT", &cfg.LogFormat)

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	return cfg, nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// splitList разбирает "a:9092, b:9092" в список без пустых элементов.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
