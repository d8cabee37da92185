package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/salesops/internal/domain"
)

func TestTimelineRepository_PostgresAuditTrail(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	seedOrderGraphForIntegrationTest(t, store)
	orderRepo := NewOrderRepository(store)
	timelineRepo := NewTimelineRepository(store)

	createdAt := time.Now().UTC().Add(-time.Minute).Round(time.Microsecond)
	order := orderFixture("timeline-order", "client-1", "seller-1", createdAt)
	require.NoError(t, orderRepo.Create(order))

	// Нулевой Occurred репозиторий проставляет сам.
	require.NoError(t, timelineRepo.Append(domain.TimelineEvent{
		OrderID: order.ID,
		Type:    "order.created",
	}))

	cancelledAt := time.Now().UTC().Add(time.Minute).Round(time.Microsecond)
	require.NoError(t, timelineRepo.Append(domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     "order.cancelled",
		Reason:   "client request",
		Occurred: cancelledAt,
	}))

	events, err := timelineRepo.List(order.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Список идёт в хронологическом порядке.
	require.Equal(t, "order.created", events[0].Type)
	require.False(t, events[0].Occurred.IsZero(), "auto-filled occurred must be set")
	require.Equal(t, "order.cancelled", events[1].Type)
	require.Equal(t, "client request", events[1].Reason)
	require.True(t, events[1].Occurred.Equal(cancelledAt), "explicit occurred must be stored as-is")
}

func TestTimelineRepository_PostgresRejectsUnknownOrder(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	timelineRepo := NewTimelineRepository(store)

	// FK на orders не даёт писать события для несуществующего заказа.
	err := timelineRepo.Append(domain.TimelineEvent{
		OrderID: "missing-order",
		Type:    "order.created",
	})
	require.Error(t, err)

	events, err := timelineRepo.List("missing-order")
	require.NoError(t, err)
	require.Empty(t, events)
}
