package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, ":50051", cfg.GRPCAddr)
	require.Equal(t, ":9090", cfg.MetricsAddr)
	require.Equal(t, StorageDriverMemory, cfg.StorageDriver)
	require.True(t, cfg.PostgresAutoMigrate)
	require.Empty(t, cfg.KafkaBrokers)
	require.Equal(t, "retail.order.events", cfg.KafkaTopic)
	require.Equal(t, "retail.dlq", cfg.KafkaDLQTopic)
	require.Positive(t, cfg.OutboxPollInterval)
	require.Positive(t, cfg.OutboxBatchSize)
	require.Positive(t, cfg.OutboxMaxAttempts)
	require.GreaterOrEqual(t, cfg.OutboxRetryDelay, time.Duration(0))
	require.Positive(t, cfg.OutboxMaxPending)
	require.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	require.Positive(t, cfg.IdempotencyCleanupInterval)
	require.Positive(t, cfg.IdempotencyCleanupBatch)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("RETAIL_HTTP_ADDR", "127.0.0.1:8081")
	t.Setenv("RETAIL_STORAGE_DRIVER", "Postgres")
	t.Setenv("RETAIL_POSTGRES_DSN", "postgres://retail:retail@db:5432/retail")
	t.Setenv("RETAIL_POSTGRES_AUTO_MIGRATE", "false")
	t.Setenv("RETAIL_KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("RETAIL_OUTBOX_POLL_INTERVAL", "250ms")
	t.Setenv("RETAIL_OUTBOX_BATCH_SIZE", "10")
	t.Setenv("RETAIL_OUTBOX_MAX_PENDING", "5")
	t.Setenv("RETAIL_LOG_FORMAT", "json")
	t.Setenv("RETAIL_IDEMPOTENCY_TTL", "2h")
	t.Setenv("RETAIL_IDEMPOTENCY_CLEANUP_BATCH", "50")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:8081", cfg.HTTPAddr)
	require.Equal(t, StorageDriverPostgres, cfg.StorageDriver)
	require.Equal(t, "postgres://retail:retail@db:5432/retail", cfg.PostgresDSN)
	require.False(t, cfg.PostgresAutoMigrate)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 250*time.Millisecond, cfg.OutboxPollInterval)
	require.Equal(t, 10, cfg.OutboxBatchSize)
	require.Equal(t, 5, cfg.OutboxMaxPending)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, ":9090", cfg.MetricsAddr)
	require.Equal(t, 2*time.Hour, cfg.IdempotencyTTL)
	require.Equal(t, 50, cfg.IdempotencyCleanupBatch)
}

func TestConfigFromEnv_InvalidValues(t *testing.T) {
	t.Setenv("RETAIL_OUTBOX_BATCH_SIZE", "many")
	t.Setenv("RETAIL_OUTBOX_RETRY_DELAY", "soon")
	t.Setenv("RETAIL_IDEMPOTENCY_TTL", "forever")

	_, err := ConfigFromEnv()
	require.ErrorContains(t, err, "RETAIL_IDEMPOTENCY_TTL")
	require.ErrorContains(t, err, "RETAIL_OUTBOX_BATCH_SIZE")
	require.ErrorContains(t, err, "RETAIL_OUTBOX_RETRY_DELAY")
}

func TestConfigFromEnv_LoadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retail.env")
	require.NoError(t, os.WriteFile(path, []byte("RETAIL_GRPC_ADDR=127.0.0.1:6000\nRETAIL_LOG_LEVEL=debug\n"), 0o600))
	t.Setenv("RETAIL_LOG_LEVEL", "warn")
	t.Cleanup(func() { _ = os.Unsetenv("RETAIL_GRPC_ADDR") })

	cfg, err := ConfigFromEnv(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:6000", cfg.GRPCAddr)
	// уже выставленная переменная окружения важнее файла
	require.Equal(t, "warn", cfg.LogLevel)

	_, err = ConfigFromEnv(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func TestSplitList(t *testing.T) {
	require.Nil(t, splitList(" , "))
	require.Equal(t, []string{"a", "b"}, splitList("a,b"))
}

func TestNewLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "debug"
	cfg.LogFormat = "json"
	logger, err := NewLogger(cfg, os.Stderr)
	require.NoError(t, err)
	require.Equal(t, "debug", logger.GetLevel().String())

	cfg.LogLevel = "loud"
	_, err = NewLogger(cfg, os.Stderr)
	require.Error(t, err)

	cfg.LogLevel = "info"
	cfg.LogFormat = "xml"
	_, err = NewLogger(cfg, os.Stderr)
	require.ErrorContains(t, err, "unsupported log format")
}
