package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/salesops/internal/domain"
)

// productRepositoryInMemory — in-memory реализация ProductRepository.
// Проверка и уменьшение остатка выполняются под одной блокировкой, поэтому
// два конкурентных резервирования не могут оба пройти при нехватке остатка.
type productRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Product
}

// NewProductRepository возвращает in-memory репозиторий товаров.
func NewProductRepository() domain.ProductRepository {
	return &productRepositoryInMemory{
		items: make(map[string]domain.Product),
	}
}

// Create сохраняет новый товар, если ID ещё не занят.
func (r *productRepositoryInMemory) Create(product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[product.ID]; exists {
		return fmt.Errorf("product %q already exists", product.ID)
	}
	r.items[product.ID] = product
	return nil
}

// Get возвращает товар или NotFoundError, если его нет.
func (r *productRepositoryInMemory) Get(id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, &domain.NotFoundError{Kind: "product", ID: id}
	}
	return product, nil
}

// Update перезаписывает поля товара.
func (r *productRepositoryInMemory) Update(product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[product.ID]; !ok {
		return &domain.NotFoundError{Kind: "product", ID: product.ID}
	}
	product.UpdatedAt = time.Now().UTC()
	r.items[product.ID] = product
	return nil
}

// ListBySupplier возвращает товары поставщика в детерминированном порядке.
func (r *productRepositoryInMemory) ListBySupplier(supplierID string) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Product, 0)
	for _, product := range r.items {
		if product.SupplierID != supplierID {
			continue
		}
		result = append(result, product)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// ReserveStock атомарно уменьшает остаток: проверка и запись выполняются,
// не отпуская блокировку. Возвращает цену за единицу на момент резервирования.
func (r *productRepositoryInMemory) ReserveStock(productID string, qty int32) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[productID]
	if !ok {
		return 0, &domain.NotFoundError{Kind: "product", ID: productID}
	}
	if product.Stock < qty {
		return 0, &domain.StockError{
			ProductID: productID,
			Requested: qty,
			Available: product.Stock,
		}
	}

	product.Stock -= qty
	product.UpdatedAt = time.Now().UTC()
	r.items[productID] = product
	return product.PriceMinor, nil
}

// ReleaseStock возвращает количество на склад.
func (r *productRepositoryInMemory) ReleaseStock(productID string, qty int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[productID]
	if !ok {
		return &domain.NotFoundError{Kind: "product", ID: productID}
	}

	product.Stock += qty
	product.UpdatedAt = time.Now().UTC()
	r.items[productID] = product
	return nil
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
