package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/salesops/internal/domain"
)

// supplierRepositoryInMemory — простая in-memory реализация SupplierRepository.
type supplierRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Supplier
}

// NewSupplierRepository возвращает in-memory репозиторий поставщиков.
func NewSupplierRepository() domain.SupplierRepository {
	return &supplierRepositoryInMemory{
		items: make(map[string]domain.Supplier),
	}
}

// Create сохраняет нового поставщика, если ID ещё не занят.
func (r *supplierRepositoryInMemory) Create(supplier domain.Supplier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[supplier.ID]; exists {
		return fmt.Errorf("supplier %q already exists", supplier.ID)
	}
	r.items[supplier.ID] = supplier
	return nil
}

// Get возвращает поставщика или NotFoundError, если его нет.
func (r *supplierRepositoryInMemory) Get(id string) (domain.Supplier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	supplier, ok := r.items[id]
	if !ok {
		return domain.Supplier{}, &domain.NotFoundError{Kind: "supplier", ID: id}
	}
	return supplier, nil
}

// List возвращает всех поставщиков в детерминированном порядке.
func (r *supplierRepositoryInMemory) List() ([]domain.Supplier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Supplier, 0, len(r.items))
	for _, supplier := range r.items {
		result = append(result, supplier)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

var _ domain.SupplierRepository = (*supplierRepositoryInMemory)(nil)
