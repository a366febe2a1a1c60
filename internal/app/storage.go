package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/health"
	"github.com/vladislavdragonenkov/orderflow/internal/storage/memory"
	"github.com/vladislavdragonenkov/orderflow/internal/storage/postgres"
)

// Storage объединяет репозитории выбранного драйвера.
type Storage struct {
	Orders   domain.OrderRepository
	Products domain.ProductRepository
	Users    domain.UserRepository
	Outbox   domain.OutboxRepository
	Timeline domain.TimelineRepository

	// Checker проверяет доступность хранилища; nil для памяти.
	Checker health.Checker

	closeFn func() error
}

// Close освобождает соединения хранилища.
func (s *Storage) Close() error {
	if s == nil || s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// openPostgres подменяется в тестах.
var openPostgres = func(ctx context.Context, dsn string) (*postgres.Store, error) {
	return postgres.OpenWithPool(ctx, dsn, postgres.DefaultPoolConfig())
}

// initStorage создаёт репозитории по cfg.StorageDriver.
func initStorage(ctx context.Context, cfg Config, logger *log.Entry) (*Storage, error) {
	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		logger.Info("using in-memory storage")
		return &Storage{
			Orders:   memory.NewOrderRepository(),
			Products: memory.NewProductRepository(),
			Users:    memory.NewUserRepository(),
			Outbox:   memory.NewOutboxRepository(),
			Timeline: memory.NewTimelineRepository(),
		}, nil
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("%s is required for postgres storage", EnvPostgresDSN)
		}
		store, err := openPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}
		logger.Info("using postgres storage")
		return newPostgresStorage(store), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func newPostgresStorage(store *postgres.Store) *Storage {
	return &Storage{
		Orders:   postgres.NewOrderRepository(store),
		Products: postgres.NewProductRepository(store),
		Users:    postgres.NewUserRepository(store),
		Outbox:   postgres.NewOutboxRepository(store),
		Timeline: postgres.NewTimelineRepository(store),
		Checker:  health.NewFuncChecker("storage", store.Ping),
		closeFn:  store.Close,
	}
}
