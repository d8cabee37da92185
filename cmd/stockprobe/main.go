package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salesops/internal/domain"
	"github.com/vladislavdragonenkov/salesops/internal/pricing"
	"github.com/vladislavdragonenkov/salesops/internal/service/authz"
	"github.com/vladislavdragonenkov/salesops/internal/service/engine"
	"github.com/vladislavdragonenkov/salesops/internal/service/inventory"
	"github.com/vladislavdragonenkov/salesops/internal/storage/memory"
)

// stockprobe — in-process проба на конкурентное резервирование: несколько
// продавцов одновременно создают заказы на один товар с общим спросом выше
// остатка. Проба проверяет, что остаток никогда не уходит в минус и что
// списано ровно столько, сколько было успешно зарезервировано.

const probeProductID = "probe-product"

type config struct {
	sellers      int
	qtyPerOrder  int32
	initialStock int32
	priceMinor   int64
	timeout      time.Duration
}

type report struct {
	Sellers         int   `json:"sellers"`
	QtyPerOrder     int32 `json:"qty_per_order"`
	InitialStock    int32 `json:"initial_stock"`
	Succeeded       int64 `json:"succeeded"`
	StockRefusals   int64 `json:"stock_refusals"`
	OtherFailures   int64 `json:"other_failures"`
	RemainingStock  int32 `json:"remaining_stock"`
	Oversold        bool    `json:"oversold"`
	DurationSeconds float64 `json:"duration_seconds"`
}

func parseFlags() config {
	var cfg config
	var qty, stock int

	flag.IntVar(&cfg.sellers, "sellers", 8, "number of concurrent sellers")
	flag.IntVar(&qty, "qty", 3, "quantity each order requests")
	flag.IntVar(&stock, "stock", 10, "initial product stock")
	flag.Int64Var(&cfg.priceMinor, "price", 500, "product price in minor units")
	flag.DurationVar(&cfg.timeout, "timeout", 30*time.Second, "overall probe timeout")
	flag.Parse()

	cfg.qtyPerOrder = int32(qty)
	cfg.initialStock = int32(stock)
	return cfg
}

func main() {
	cfg := parseFlags()

	if cfg.sellers <= 0 || cfg.qtyPerOrder <= 0 || cfg.initialStock < 0 {
		fmt.Fprintln(os.Stderr, "sellers and qty must be positive, stock must be non-negative")
		os.Exit(2)
	}

	// Суммарный спрос должен превышать остаток, иначе проба ничего не проверяет.
	demand := int64(cfg.sellers) * int64(cfg.qtyPerOrder)
	if demand <= int64(cfg.initialStock) {
		fmt.Fprintf(os.Stderr, "combined demand %d does not exceed stock %d\n", demand, cfg.initialStock)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	rep, err := runProbe(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "probe failed: %v\n", err)
		os.Exit(1)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(rep)

	if rep.Oversold {
		fmt.Fprintln(os.Stderr, "OVERSELL DETECTED")
		os.Exit(1)
	}
}

// runProbe собирает движок на in-memory хранилище, засеивает товар и
// продавцов с клиентами, затем выпускает все заказы одновременно.
func runProbe(ctx context.Context, cfg config) (report, error) {
	logger := log.WithField("component", "stockprobe")

	products := memory.NewProductRepository()
	clientsRepo := memory.NewClientRepository()
	sellersRepo := memory.NewSellerRepository()
	suppliersRepo := memory.NewSupplierRepository()
	ordersRepo := memory.NewOrderRepository()

	orderEngine := engine.NewWithoutMetrics(engine.Deps{
		Orders:    ordersRepo,
		Clients:   clientsRepo,
		Sellers:   sellersRepo,
		Suppliers: suppliersRepo,
		Ledger:    inventory.NewLedgerWithoutMetrics(products, logger),
		Pricing:   pricing.NewPolicy(memory.NewTierRepository(domain.DefaultTiers()), logger),
		Guard:     authz.NewGuard(ordersRepo, logger),
		Outbox:    memory.NewOutboxRepository(),
		Timeline:  memory.NewTimelineRepository(),
		Logger:    logger,
	})

	if err := seedProbeData(cfg, products, sellersRepo, clientsRepo); err != nil {
		return report{}, err
	}

	var succeeded, stockRefusals, otherFailures int64

	start := time.Now()
	startGate := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < cfg.sellers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-startGate

			_, err := orderEngine.CreateOrder(ctx, engine.CreateOrderInput{
				ClientID: probeClientID(n),
				Items: []engine.LineItemInput{
					{ProductID: probeProductID, Qty: cfg.qtyPerOrder},
				},
				Actor: domain.Actor{ID: probeSellerID(n), Role: domain.RoleSeller},
			})
			switch {
			case err == nil:
				atomic.AddInt64(&succeeded, 1)
			case domain.IsInsufficientStock(err):
				atomic.AddInt64(&stockRefusals, 1)
			default:
				atomic.AddInt64(&otherFailures, 1)
				logger.WithError(err).Warn("unexpected create failure")
			}
		}(i)
	}
	close(startGate)
	wg.Wait()

	product, err := products.Get(probeProductID)
	if err != nil {
		return report{}, fmt.Errorf("read remaining stock: %w", err)
	}

	expectedRemaining := int64(cfg.initialStock) - succeeded*int64(cfg.qtyPerOrder)
	oversold := product.Stock < 0 || int64(product.Stock) != expectedRemaining

	return report{
		Sellers:         cfg.sellers,
		QtyPerOrder:     cfg.qtyPerOrder,
		InitialStock:    cfg.initialStock,
		Succeeded:       succeeded,
		StockRefusals:   stockRefusals,
		OtherFailures:   otherFailures,
		RemainingStock:  product.Stock,
		Oversold:        oversold,
		DurationSeconds: time.Since(start).Seconds(),
	}, nil
}

func seedProbeData(cfg config, products domain.ProductRepository, sellers domain.SellerRepository, clients domain.ClientRepository) error {
	now := time.Now().UTC()

	if err := products.Create(domain.Product{
		ID:         probeProductID,
		ProductSKU: "PROBE-SKU",
		Name:       "probe product",
		PriceMinor: cfg.priceMinor,
		Stock:      cfg.initialStock,
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		return fmt.Errorf("seed product: %w", err)
	}

	for i := 0; i < cfg.sellers; i++ {
		if err := sellers.Create(domain.Seller{
			ID:        probeSellerID(i),
			Name:      fmt.Sprintf("probe seller %d", i),
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("seed seller %d: %w", i, err)
		}
		if err := clients.Create(domain.Client{
			ID:        probeClientID(i),
			SellerID:  probeSellerID(i),
			Name:      fmt.Sprintf("probe client %d", i),
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return fmt.Errorf("seed client %d: %w", i, err)
		}
	}
	return nil
}

func probeSellerID(n int) string {
	return fmt.Sprintf("probe-seller-%d", n)
}

func probeClientID(n int) string {
	return fmt.Sprintf("probe-client-%d", n)
}
