package clients

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/salesops/internal/domain"
	"github.com/vladislavdragonenkov/salesops/internal/service/authz"
	"github.com/vladislavdragonenkov/salesops/internal/storage/memory"
)

func newService(t *testing.T) (*Service, domain.ClientRepository, domain.OrderRepository) {
	t.Helper()
	clientsRepo := memory.NewClientRepository()
	ordersRepo := memory.NewOrderRepository()
	service := NewService(clientsRepo, authz.NewGuard(ordersRepo, nil), nil)
	return service, clientsRepo, ordersRepo
}

func TestService_CreateAndGet(t *testing.T) {
	service, _, _ := newService(t)
	seller := domain.Actor{ID: "seller-1", Role: domain.RoleSeller}

	created, err := service.Create(seller, CreateInput{Name: "Клиент", Email: "client@example.com"})
	require.NoError(t, err)
	require.Equal(t, "seller-1", created.SellerID)
	require.NotEmpty(t, created.ID)

	got, err := service.Get(seller, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)

	// Чужой продавец клиента не видит.
	foreign := domain.Actor{ID: "seller-2", Role: domain.RoleSeller}
	_, err = service.Get(foreign, created.ID)
	require.True(t, domain.IsForbidden(err))
}

func TestService_Create_AdminPicksOwner(t *testing.T) {
	service, _, _ := newService(t)
	admin := domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}

	_, err := service.Create(admin, CreateInput{Name: "Без владельца"})
	require.True(t, domain.IsValidation(err))

	created, err := service.Create(admin, CreateInput{Name: "Клиент", SellerID: "seller-9"})
	require.NoError(t, err)
	require.Equal(t, "seller-9", created.SellerID)
}

func TestService_Create_Unauthenticated(t *testing.T) {
	service, _, _ := newService(t)
	_, err := service.Create(domain.Actor{}, CreateInput{Name: "Аноним"})
	require.True(t, domain.IsUnauthenticated(err))
}

func TestService_UpdateDelete(t *testing.T) {
	service, _, _ := newService(t)
	seller := domain.Actor{ID: "seller-1", Role: domain.RoleSeller}

	created, err := service.Create(seller, CreateInput{Name: "Старое имя"})
	require.NoError(t, err)

	updated, err := service.Update(seller, created.ID, UpdateInput{Name: "Новое имя", Phone: "+700"})
	require.NoError(t, err)
	require.Equal(t, "Новое имя", updated.Name)
	require.Equal(t, "+700", updated.Phone)

	require.NoError(t, service.Delete(seller, created.ID))
	_, err = service.Get(seller, created.ID)
	require.True(t, domain.IsNotFound(err))
}

// Клиент с доставленным заказом заперт для своего продавца,
// но остаётся доступным администратору. Блокировка перепроверяется
// на каждом запросе: после удаления заказа доступ возвращается.
func TestService_DeliveredOrderLocksClient(t *testing.T) {
	service, _, ordersRepo := newService(t)
	seller := domain.Actor{ID: "seller-1", Role: domain.RoleSeller}
	admin := domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}

	created, err := service.Create(seller, CreateInput{Name: "Клиент"})
	require.NoError(t, err)

	order := domain.Order{
		ID:       "order-1",
		ClientID: created.ID,
		SellerID: seller.ID,
		Items: []domain.OrderItem{
			{ID: "item-1", ProductID: "product-1", Qty: 1, PriceMinor: 5},
		},
		SubtotalMinor: 5,
		TotalMinor:    5,
		State:         domain.OrderStateDelivered,
		Version:       1,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, ordersRepo.Create(order))

	_, err = service.Get(seller, created.ID)
	require.True(t, domain.IsForbidden(err))
	_, err = service.Update(seller, created.ID, UpdateInput{Name: "Новое имя"})
	require.True(t, domain.IsForbidden(err))
	err = service.Delete(seller, created.ID)
	require.True(t, domain.IsForbidden(err))

	_, err = service.Get(admin, created.ID)
	require.NoError(t, err)

	require.NoError(t, ordersRepo.Delete(order.ID))
	_, err = service.Get(seller, created.ID)
	require.NoError(t, err)
}

func TestService_ListMine(t *testing.T) {
	service, _, _ := newService(t)
	seller := domain.Actor{ID: "seller-1", Role: domain.RoleSeller}
	admin := domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}

	_, err := service.Create(seller, CreateInput{Name: "Первый"})
	require.NoError(t, err)
	_, err = service.Create(seller, CreateInput{Name: "Второй"})
	require.NoError(t, err)
	_, err = service.Create(admin, CreateInput{Name: "Чужой", SellerID: "seller-2"})
	require.NoError(t, err)

	mine, err := service.ListMine(seller, "")
	require.NoError(t, err)
	require.Len(t, mine, 2)

	// Продавец не может подсмотреть чужой список: sellerID игнорируется.
	mine, err = service.ListMine(seller, "seller-2")
	require.NoError(t, err)
	require.Len(t, mine, 2)

	others, err := service.ListMine(admin, "seller-2")
	require.NoError(t, err)
	require.Len(t, others, 1)
}
