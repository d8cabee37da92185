package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salesops/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/salesops/internal/pricing"
	"github.com/vladislavdragonenkov/salesops/internal/service/authz"
	"github.com/vladislavdragonenkov/salesops/internal/service/clients"
	"github.com/vladislavdragonenkov/salesops/internal/service/engine"
	"github.com/vladislavdragonenkov/salesops/internal/service/inventory"
)

// Dependencies содержит собранные доменные сервисы приложения.
type Dependencies struct {
	Engine  *engine.Engine
	Clients *clients.Service
	Logger  *log.Entry
}

// NewDependencies связывает репозитории и опциональный Kafka producer
// в доменные сервисы. Producer может быть nil — события тогда остаются
// только в outbox и timeline.
func NewDependencies(rt *runtimeDependencies, producer *kafka.Producer, logger *log.Entry) *Dependencies {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	ledger := inventory.NewLedger(rt.products, logger.WithField("component", "inventory-ledger"))
	policy := pricing.NewPolicy(rt.tiers, logger.WithField("component", "pricing-policy"))
	guard := authz.NewGuard(rt.orders, logger.WithField("component", "authz-guard"))

	orderEngine := engine.New(engine.Deps{
		Orders:        rt.orders,
		Clients:       rt.clients,
		Sellers:       rt.sellers,
		Suppliers:     rt.suppliers,
		Ledger:        ledger,
		Pricing:       policy,
		Guard:         guard,
		Outbox:        rt.outboxRepo,
		Timeline:      rt.timelineRepo,
		KafkaProducer: producer,
		Logger:        logger.WithField("component", "order-engine"),
	})

	clientService := clients.NewService(rt.clients, guard, logger.WithField("component", "client-service"))

	return &Dependencies{
		Engine:  orderEngine,
		Clients: clientService,
		Logger:  logger,
	}
}
