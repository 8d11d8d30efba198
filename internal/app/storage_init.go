package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/storage/memory"
	"github.com/vladislavdragonenkov/retail/internal/storage/postgres"
)

// OpenStore открывает хранилище по cfg.StorageDriver. Для postgres при
// PostgresAutoMigrate схема приводится к последней версии.
func OpenStore(ctx context.Context, cfg Config, logger *log.Entry) (domain.Store, error) {
	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		logger.Info("using in-memory storage")
		return memory.New(), nil
	case StorageDriverPostgres:
		dsn := strings.TrimSpace(cfg.PostgresDSN)
		if dsn == "" {
			return nil, errors.New("RETAIL_POSTGRES_DSN is required for postgres storage")
		}
		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("migrate postgres schema: %w", err)
			}
		}
		logger.Info("using postgres storage")
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q (use %s|%s)",
			cfg.StorageDriver, StorageDriverMemory, StorageDriverPostgres)
	}
}
