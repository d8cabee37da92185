package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/salesops/internal/domain"
)

// timelineRepositoryInMemory хранит историю заказов в памяти.
// Записи складываются как есть; хронология восстанавливается при чтении.
type timelineRepositoryInMemory struct {
	mu     sync.RWMutex
	events map[string][]domain.TimelineEvent
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository() domain.TimelineRepository {
	return &timelineRepositoryInMemory{events: make(map[string][]domain.TimelineEvent)}
}

func (r *timelineRepositoryInMemory) Append(event domain.TimelineEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[event.OrderID] = append(r.events[event.OrderID], event)
	return nil
}

// List возвращает копию истории заказа, отсортированную по времени.
// Одновременные события сохраняют порядок добавления.
func (r *timelineRepositoryInMemory) List(orderID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := make([]domain.TimelineEvent, len(r.events[orderID]))
	copy(events, r.events[orderID])

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Occurred.Before(events[j].Occurred)
	})
	return events, nil
}

var _ domain.TimelineRepository = (*timelineRepositoryInMemory)(nil)
