package memory

import (
	"fmt"
	"sync"

	"github.com/vladislavdragonenkov/salesops/internal/domain"
)

// sellerRepositoryInMemory хранит продавцов и их комиссионные записи.
// Комиссии — append-only: записи никогда не изменяются и не удаляются.
type sellerRepositoryInMemory struct {
	mu          sync.RWMutex
	items       map[string]domain.Seller
	commissions map[string][]domain.CommissionRecord
}

// NewSellerRepository возвращает in-memory репозиторий продавцов.
func NewSellerRepository() domain.SellerRepository {
	return &sellerRepositoryInMemory{
		items:       make(map[string]domain.Seller),
		commissions: make(map[string][]domain.CommissionRecord),
	}
}

// Create сохраняет нового продавца, если ID ещё не занят.
func (r *sellerRepositoryInMemory) Create(seller domain.Seller) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[seller.ID]; exists {
		return fmt.Errorf("seller %q already exists", seller.ID)
	}
	r.items[seller.ID] = seller
	return nil
}

// Get возвращает продавца или NotFoundError, если его нет.
func (r *sellerRepositoryInMemory) Get(id string) (domain.Seller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seller, ok := r.items[id]
	if !ok {
		return domain.Seller{}, &domain.NotFoundError{Kind: "seller", ID: id}
	}
	return seller, nil
}

// AppendCommission добавляет комиссионную запись в историю продавца.
func (r *sellerRepositoryInMemory) AppendCommission(record domain.CommissionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[record.SellerID]; !ok {
		return &domain.NotFoundError{Kind: "seller", ID: record.SellerID}
	}
	r.commissions[record.SellerID] = append(r.commissions[record.SellerID], record)
	return nil
}

// ListCommissions возвращает копию истории комиссий в порядке добавления.
func (r *sellerRepositoryInMemory) ListCommissions(sellerID string) ([]domain.CommissionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.items[sellerID]; !ok {
		return nil, &domain.NotFoundError{Kind: "seller", ID: sellerID}
	}

	records := r.commissions[sellerID]
	result := make([]domain.CommissionRecord, len(records))
	copy(result, records)
	return result, nil
}

var _ domain.SellerRepository = (*sellerRepositoryInMemory)(nil)
