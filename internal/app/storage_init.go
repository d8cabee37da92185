package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salesops/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/salesops/internal/health"
	"github.com/vladislavdragonenkov/salesops/internal/storage/memory"
	"github.com/vladislavdragonenkov/salesops/internal/storage/postgres"
)

// runtimeDependencies собирает репозитории, выбранные конфигурацией.
// closeFn освобождает ресурсы хранилища (nil для in-memory).
type runtimeDependencies struct {
	orders    domain.OrderRepository
	clients   domain.ClientRepository
	sellers   domain.SellerRepository
	suppliers domain.SupplierRepository
	products  domain.ProductRepository
	tiers     domain.TierRepository

	outboxRepo   domain.OutboxRepository
	timelineRepo domain.TimelineRepository

	storageChecker healthcheck.Checker
	closeFn        func() error
}

// initRuntimeDependencies инициализирует хранилище по cfg.StorageDriver.
// In-memory вариант засеивается тарифной сеткой по умолчанию, postgres
// опционально применяет миграции.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		return &runtimeDependencies{
			orders:       memory.NewOrderRepository(),
			clients:      memory.NewClientRepository(),
			sellers:      memory.NewSellerRepository(),
			suppliers:    memory.NewSupplierRepository(),
			products:     memory.NewProductRepository(),
			tiers:        memory.NewTierRepository(domain.DefaultTiers()),
			outboxRepo:   memory.NewOutboxRepository(),
			timelineRepo: memory.NewTimelineRepository(),
			storageChecker: healthcheck.NewSimpleChecker("storage", func() error {
				return nil
			}),
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage driver requires a DSN")
		}

		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}

		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("postgres миграции применены")
		}

		return &runtimeDependencies{
			orders:       postgres.NewOrderRepository(store),
			clients:      postgres.NewClientRepository(store),
			sellers:      postgres.NewSellerRepository(store),
			suppliers:    postgres.NewSupplierRepository(store),
			products:     postgres.NewProductRepository(store),
			tiers:        postgres.NewTierRepository(store),
			outboxRepo:   postgres.NewOutboxRepository(store),
			timelineRepo: postgres.NewTimelineRepository(store),
			storageChecker: healthcheck.NewSimpleChecker("storage", func() error {
				return store.Ping(context.Background())
			}),
			closeFn: store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
