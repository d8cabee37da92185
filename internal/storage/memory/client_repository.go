package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/salesops/internal/domain"
)

// clientRepositoryInMemory — простая in-memory реализация ClientRepository.
type clientRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Client
}

// NewClientRepository возвращает in-memory репозиторий клиентов.
func NewClientRepository() domain.ClientRepository {
	return &clientRepositoryInMemory{
		items: make(map[string]domain.Client),
	}
}

// Create сохраняет нового клиента, если ID ещё не занят.
func (r *clientRepositoryInMemory) Create(client domain.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[client.ID]; exists {
		return fmt.Errorf("client %q already exists", client.ID)
	}
	r.items[client.ID] = client
	return nil
}

// Get возвращает клиента или NotFoundError, если его нет.
func (r *clientRepositoryInMemory) Get(id string) (domain.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.items[id]
	if !ok {
		return domain.Client{}, &domain.NotFoundError{Kind: "client", ID: id}
	}
	return client, nil
}

// Update перезаписывает поля клиента.
func (r *clientRepositoryInMemory) Update(client domain.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[client.ID]; !ok {
		return &domain.NotFoundError{Kind: "client", ID: client.ID}
	}
	client.UpdatedAt = time.Now().UTC()
	r.items[client.ID] = client
	return nil
}

// Delete удаляет клиента.
func (r *clientRepositoryInMemory) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return &domain.NotFoundError{Kind: "client", ID: id}
	}
	delete(r.items, id)
	return nil
}

// ListBySeller возвращает клиентов продавца в детерминированном порядке.
func (r *clientRepositoryInMemory) ListBySeller(sellerID string) ([]domain.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Client, 0)
	for _, client := range r.items {
		if client.SellerID != sellerID {
			continue
		}
		result = append(result, client)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

var _ domain.ClientRepository = (*clientRepositoryInMemory)(nil)
