package memory_test

import (
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/salesops/internal/domain"
	"github.com/vladislavdragonenkov/salesops/internal/storage/memory"
)

func newProduct() domain.Product {
	now := time.Now().UTC()
	return domain.Product{
		ID:          "product-1",
		SupplierID:  "supplier-1",
		SupplierSKU: "ACME",
		ProductSKU:  "0042",
		Name:        "widget",
		PriceMinor:  500,
		Stock:       10,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestProductRepository_CreateGet(t *testing.T) {
	repo := memory.NewProductRepository()
	product := newProduct()

	if err := repo.Create(product); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.Get(product.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.SKU() != "ACME0042" {
		t.Fatalf("expected derived SKU ACME0042, got %s", stored.SKU())
	}
}

func TestProductRepository_GetMissing(t *testing.T) {
	repo := memory.NewProductRepository()

	if _, err := repo.Get("missing"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestProductRepository_ReserveStock(t *testing.T) {
	repo := memory.NewProductRepository()
	if err := repo.Create(newProduct()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	price, err := repo.ReserveStock("product-1", 3)
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if price != 500 {
		t.Fatalf("expected reservation-time price 500, got %d", price)
	}

	stored, _ := repo.Get("product-1")
	if stored.Stock != 7 {
		t.Fatalf("expected stock 7 after reservation, got %d", stored.Stock)
	}
}

func TestProductRepository_ReserveStock_Insufficient(t *testing.T) {
	repo := memory.NewProductRepository()
	if err := repo.Create(newProduct()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, err := repo.ReserveStock("product-1", 11)
	if !domain.IsInsufficientStock(err) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}

	// Отказ не должен менять остаток.
	stored, _ := repo.Get("product-1")
	if stored.Stock != 10 {
		t.Fatalf("expected stock to stay 10, got %d", stored.Stock)
	}
}

func TestProductRepository_ReserveStock_Missing(t *testing.T) {
	repo := memory.NewProductRepository()

	if _, err := repo.ReserveStock("missing", 1); !domain.IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestProductRepository_ReleaseStock(t *testing.T) {
	repo := memory.NewProductRepository()
	if err := repo.Create(newProduct()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := repo.ReserveStock("product-1", 4); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if err := repo.ReleaseStock("product-1", 4); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	stored, _ := repo.Get("product-1")
	if stored.Stock != 10 {
		t.Fatalf("expected stock back to 10, got %d", stored.Stock)
	}
}

// Два конкурентных резервирования, суммарно превышающие остаток, должны
// завершиться ровно одним успехом: победитель уменьшает остаток только на
// своё количество.
func TestProductRepository_ReserveStock_ConcurrentNoOversell(t *testing.T) {
	repo := memory.NewProductRepository()
	product := newProduct()
	product.Stock = 10
	if err := repo.Create(product); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	start := make(chan struct{})
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = repo.ReserveStock("product-1", 7)
		}(i)
	}
	close(start)
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		if !domain.IsInsufficientStock(err) {
			t.Fatalf("unexpected reservation error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one successful reservation, got %d", successes)
	}

	stored, _ := repo.Get("product-1")
	if stored.Stock != 3 {
		t.Fatalf("expected stock 3 after one winning reservation of 7, got %d", stored.Stock)
	}
}

// Остаток никогда не уходит в минус под параллельной нагрузкой.
func TestProductRepository_ReserveStock_StressNonNegative(t *testing.T) {
	repo := memory.NewProductRepository()
	product := newProduct()
	product.Stock = 50
	if err := repo.Create(product); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	reserved := int32(0)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.ReserveStock("product-1", 3); err == nil {
				mu.Lock()
				reserved += 3
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	stored, _ := repo.Get("product-1")
	if stored.Stock < 0 {
		t.Fatalf("stock went negative: %d", stored.Stock)
	}
	if stored.Stock != 50-reserved {
		t.Fatalf("expected stock %d, got %d", 50-reserved, stored.Stock)
	}
}
