package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/salesops/internal/domain"
)

// tierRepositoryInMemory хранит тарифную сетку стоимости доставки.
type tierRepositoryInMemory struct {
	mu    sync.RWMutex
	tiers []domain.DeliveryCostTier
}

// NewTierRepository возвращает in-memory репозиторий тарифов,
// заполненный переданной сеткой.
func NewTierRepository(tiers []domain.DeliveryCostTier) domain.TierRepository {
	repo := &tierRepositoryInMemory{}
	repo.setLocked(tiers)
	return repo
}

// List возвращает копию тарифной сетки, отсортированную по нижней границе.
func (r *tierRepositoryInMemory) List() ([]domain.DeliveryCostTier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.DeliveryCostTier, len(r.tiers))
	copy(result, r.tiers)
	return result, nil
}

// Replace атомарно заменяет тарифную сетку после валидации.
func (r *tierRepositoryInMemory) Replace(tiers []domain.DeliveryCostTier) error {
	if err := domain.ValidateTiers(tiers); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.setLocked(tiers)
	return nil
}

func (r *tierRepositoryInMemory) setLocked(tiers []domain.DeliveryCostTier) {
	copied := make([]domain.DeliveryCostTier, len(tiers))
	copy(copied, tiers)
	sort.Slice(copied, func(i, j int) bool {
		return copied[i].MinSubtotalMinor < copied[j].MinSubtotalMinor
	})
	r.tiers = copied
}

var _ domain.TierRepository = (*tierRepositoryInMemory)(nil)
