package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/salesops/internal/domain"
	"github.com/vladislavdragonenkov/salesops/internal/pricing"
	"github.com/vladislavdragonenkov/salesops/internal/service/authz"
	"github.com/vladislavdragonenkov/salesops/internal/service/inventory"
	"github.com/vladislavdragonenkov/salesops/internal/storage/memory"
)

type fixture struct {
	engine    *Engine
	products  domain.ProductRepository
	clients   domain.ClientRepository
	orders    domain.OrderRepository
	sellers   domain.SellerRepository
	suppliers domain.SupplierRepository
	timeline  domain.TimelineRepository
	outbox    domain.OutboxRepository

	seller domain.Actor
	admin  domain.Actor
}

// newFixture поднимает движок на memory-хранилище с базовым набором данных:
// продавец seller-1, его клиент client-1, товар product-1 (остаток 10, цена 5)
// и тарифная сетка [0,20) → 2, [20,∞) → 0.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	products := memory.NewProductRepository()
	clients := memory.NewClientRepository()
	orders := memory.NewOrderRepository()
	sellers := memory.NewSellerRepository()
	suppliers := memory.NewSupplierRepository()
	timeline := memory.NewTimelineRepository()
	outbox := memory.NewOutboxRepository()
	tiers := memory.NewTierRepository([]domain.DeliveryCostTier{
		{ID: "tier-low", MinSubtotalMinor: 0, MaxSubtotalMinor: 20, CostMinor: 2},
		{ID: "tier-high", MinSubtotalMinor: 20, MaxSubtotalMinor: 0, CostMinor: 0},
	})

	require.NoError(t, sellers.Create(domain.Seller{ID: "seller-1", Name: "Первый продавец"}))
	require.NoError(t, sellers.Create(domain.Seller{ID: "seller-2", Name: "Второй продавец"}))
	require.NoError(t, clients.Create(domain.Client{ID: "client-1", SellerID: "seller-1", Name: "Клиент"}))
	require.NoError(t, suppliers.Create(domain.Supplier{ID: "supplier-1", Code: "SUP", Name: "Поставщик", Enabled: true}))
	require.NoError(t, products.Create(domain.Product{
		ID:         "product-1",
		SupplierID: "supplier-1",
		Name:       "Товар",
		PriceMinor: 5,
		Stock:      10,
	}))

	engine := NewWithoutMetrics(Deps{
		Orders:    orders,
		Clients:   clients,
		Sellers:   sellers,
		Suppliers: suppliers,
		Ledger:    inventory.NewLedgerWithoutMetrics(products, nil),
		Pricing:   pricing.NewPolicy(tiers, nil),
		Guard:     authz.NewGuard(orders, nil),
		Outbox:    outbox,
		Timeline:  timeline,
	})

	return &fixture{
		engine:    engine,
		products:  products,
		clients:   clients,
		orders:    orders,
		sellers:   sellers,
		suppliers: suppliers,
		timeline:  timeline,
		outbox:    outbox,
		seller:    domain.Actor{ID: "seller-1", Role: domain.RoleSeller},
		admin:     domain.Actor{ID: "admin-1", Role: domain.RoleAdmin},
	}
}

func (f *fixture) createOrder(t *testing.T, qty int32) *OrderView {
	t.Helper()
	view, err := f.engine.CreateOrder(context.Background(), CreateOrderInput{
		ClientID: "client-1",
		Items:    []LineItemInput{{ProductID: "product-1", Qty: qty}},
		Actor:    f.seller,
	})
	require.NoError(t, err)
	return view
}

func (f *fixture) stock(t *testing.T, productID string) int32 {
	t.Helper()
	product, err := f.products.Get(productID)
	require.NoError(t, err)
	return product.Stock
}

// engineWithOrders собирает второй движок поверх тех же хранилищ,
// но с подменённым репозиторием заказов.
func (f *fixture) engineWithOrders(orders domain.OrderRepository) *Engine {
	return NewWithoutMetrics(Deps{
		Orders:    orders,
		Clients:   f.clients,
		Sellers:   f.sellers,
		Suppliers: f.suppliers,
		Ledger:    inventory.NewLedgerWithoutMetrics(f.products, nil),
		Guard:     authz.NewGuard(orders, nil),
		Outbox:    f.outbox,
		Timeline:  f.timeline,
	})
}

// failingOrderRepo имитирует отказ хранилища на записи или удалении;
// остальные операции делегируются базовому репозиторию.
type failingOrderRepo struct {
	domain.OrderRepository
	failSave   bool
	failDelete bool
}

func (r *failingOrderRepo) Save(order domain.Order) error {
	if r.failSave {
		return errors.New("storage unavailable")
	}
	return r.OrderRepository.Save(order)
}

func (r *failingOrderRepo) Delete(id string) error {
	if r.failDelete {
		return errors.New("storage unavailable")
	}
	return r.OrderRepository.Delete(id)
}

func TestEngine_CreateOrder(t *testing.T) {
	f := newFixture(t)

	view, err := f.engine.CreateOrder(context.Background(), CreateOrderInput{
		ClientID: "client-1",
		Items:    []LineItemInput{{ProductID: "product-1", Qty: 3}},
		Notes:    []string{"срочный"},
		Actor:    f.seller,
	})
	require.NoError(t, err)

	order := view.Order
	require.Equal(t, domain.OrderStatePending, order.State)
	require.Equal(t, int64(15), order.SubtotalMinor)
	require.Equal(t, int64(2), order.DeliveryCostMinor)
	require.Equal(t, int64(17), order.TotalMinor)
	require.Equal(t, "seller-1", order.SellerID)
	require.Equal(t, []string{"срочный"}, order.Notes)
	require.Len(t, order.Items, 1)
	require.Equal(t, int64(5), order.Items[0].PriceMinor)
	require.Empty(t, order.ValidateInvariants())

	require.Equal(t, int32(7), f.stock(t, "product-1"))

	require.Equal(t, "client-1", view.Client.ID)
	require.Equal(t, "seller-1", view.Seller.ID)
	require.Nil(t, view.Supplier)

	events, err := f.timeline.List(order.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "order.created", events[0].Type)

	pending, err := f.outbox.PullPending(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "order", pending[0].AggregateType)
	require.Equal(t, order.ID, pending[0].AggregateID)
}

func TestEngine_CreateOrder_WithSupplier(t *testing.T) {
	f := newFixture(t)

	view, err := f.engine.CreateOrder(context.Background(), CreateOrderInput{
		ClientID:   "client-1",
		Items:      []LineItemInput{{ProductID: "product-1", Qty: 1}},
		SupplierID: "supplier-1",
		Actor:      f.seller,
	})
	require.NoError(t, err)
	require.NotNil(t, view.Supplier)
	require.Equal(t, "supplier-1", view.Supplier.ID)

	_, err = f.engine.CreateOrder(context.Background(), CreateOrderInput{
		ClientID:   "client-1",
		Items:      []LineItemInput{{ProductID: "product-1", Qty: 1}},
		SupplierID: "supplier-missing",
		Actor:      f.seller,
	})
	require.True(t, domain.IsNotFound(err))
}

func TestEngine_CreateOrder_InsufficientStock(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.CreateOrder(context.Background(), CreateOrderInput{
		ClientID: "client-1",
		Items:    []LineItemInput{{ProductID: "product-1", Qty: 11}},
		Actor:    f.seller,
	})
	require.Error(t, err)
	require.True(t, domain.IsInsufficientStock(err))

	var stockErr *domain.StockError
	require.True(t, errors.As(err, &stockErr))
	require.Equal(t, "product-1", stockErr.ProductID)
	require.Equal(t, int32(11), stockErr.Requested)
	require.Equal(t, int32(10), stockErr.Available)

	// Неудачное создание не оставляет следов: остаток не тронут, заказов нет.
	require.Equal(t, int32(10), f.stock(t, "product-1"))
}

func TestEngine_CreateOrder_MultiLineRollback(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.products.Create(domain.Product{
		ID:         "product-2",
		SupplierID: "supplier-1",
		Name:       "Дефицитный товар",
		PriceMinor: 3,
		Stock:      1,
	}))

	_, err := f.engine.CreateOrder(context.Background(), CreateOrderInput{
		ClientID: "client-1",
		Items: []LineItemInput{
			{ProductID: "product-1", Qty: 4},
			{ProductID: "product-2", Qty: 2},
		},
		Actor: f.seller,
	})
	require.True(t, domain.IsInsufficientStock(err))

	// Первый резерв компенсирован, частичного списания нет.
	require.Equal(t, int32(10), f.stock(t, "product-1"))
	require.Equal(t, int32(1), f.stock(t, "product-2"))
}

func TestEngine_CreateOrder_Unauthenticated(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.CreateOrder(context.Background(), CreateOrderInput{
		ClientID: "client-1",
		Items:    []LineItemInput{{ProductID: "product-1", Qty: 1}},
	})
	require.True(t, domain.IsUnauthenticated(err))
}

func TestEngine_CreateOrder_ForeignClientForbidden(t *testing.T) {
	f := newFixture(t)

	foreign := domain.Actor{ID: "seller-2", Role: domain.RoleSeller}
	_, err := f.engine.CreateOrder(context.Background(), CreateOrderInput{
		ClientID: "client-1",
		Items:    []LineItemInput{{ProductID: "product-1", Qty: 1}},
		Actor:    foreign,
	})
	require.True(t, domain.IsForbidden(err))
	require.Equal(t, int32(10), f.stock(t, "product-1"))

	// Администратор создаёт заказ для любого клиента.
	_, err = f.engine.CreateOrder(context.Background(), CreateOrderInput{
		ClientID: "client-1",
		Items:    []LineItemInput{{ProductID: "product-1", Qty: 1}},
		Actor:    f.admin,
	})
	require.NoError(t, err)
}

func TestEngine_CreateOrder_Validation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name  string
		input CreateOrderInput
	}{
		{"no client", CreateOrderInput{Items: []LineItemInput{{ProductID: "product-1", Qty: 1}}, Actor: f.seller}},
		{"no items", CreateOrderInput{ClientID: "client-1", Actor: f.seller}},
		{"zero qty", CreateOrderInput{ClientID: "client-1", Items: []LineItemInput{{ProductID: "product-1", Qty: 0}}, Actor: f.seller}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.CreateOrder(context.Background(), tc.input)
			require.True(t, domain.IsValidation(err))
		})
	}
}

func TestEngine_CreateOrder_PricingGapReleasesStock(t *testing.T) {
	products := memory.NewProductRepository()
	clients := memory.NewClientRepository()
	orders := memory.NewOrderRepository()
	sellers := memory.NewSellerRepository()
	// Дыра в сетке: субтотал 15 не покрыт ни одним тарифом.
	tiers := memory.NewTierRepository([]domain.DeliveryCostTier{
		{ID: "tier-high", MinSubtotalMinor: 100, MaxSubtotalMinor: 0, CostMinor: 0},
	})

	require.NoError(t, sellers.Create(domain.Seller{ID: "seller-1"}))
	require.NoError(t, clients.Create(domain.Client{ID: "client-1", SellerID: "seller-1"}))
	require.NoError(t, products.Create(domain.Product{ID: "product-1", PriceMinor: 5, Stock: 10}))

	engine := NewWithoutMetrics(Deps{
		Orders:   orders,
		Clients:  clients,
		Sellers:  sellers,
		Ledger:   inventory.NewLedgerWithoutMetrics(products, nil),
		Pricing:  pricing.NewPolicy(tiers, nil),
		Guard:    authz.NewGuard(orders, nil),
		Outbox:   memory.NewOutboxRepository(),
		Timeline: memory.NewTimelineRepository(),
	})

	_, err := engine.CreateOrder(context.Background(), CreateOrderInput{
		ClientID: "client-1",
		Items:    []LineItemInput{{ProductID: "product-1", Qty: 3}},
		Actor:    domain.Actor{ID: "seller-1", Role: domain.RoleSeller},
	})
	require.True(t, domain.IsConfigError(err))

	product, getErr := products.Get("product-1")
	require.NoError(t, getErr)
	require.Equal(t, int32(10), product.Stock)
}

func TestEngine_UpdateOrder_SellerStateChangeForbidden(t *testing.T) {
	f := newFixture(t)
	view := f.createOrder(t, 3)

	state := domain.OrderStateApproved
	_, err := f.engine.UpdateOrder(context.Background(), UpdateOrderInput{
		OrderID: view.Order.ID,
		State:   &state,
		Actor:   f.seller,
	})
	require.True(t, domain.IsForbidden(err))

	updated, err := f.engine.UpdateOrder(context.Background(), UpdateOrderInput{
		OrderID: view.Order.ID,
		State:   &state,
		Actor:   f.admin,
	})
	require.NoError(t, err)
	require.Equal(t, domain.OrderStateApproved, updated.Order.State)
}

func TestEngine_UpdateOrder_ForeignSellerForbidden(t *testing.T) {
	f := newFixture(t)
	view := f.createOrder(t, 3)

	// Даже update без единого поля отклоняется до сохранения:
	// версия не растёт, новых событий не появляется.
	foreign := domain.Actor{ID: "seller-2", Role: domain.RoleSeller}
	_, err := f.engine.UpdateOrder(context.Background(), UpdateOrderInput{
		OrderID: view.Order.ID,
		Actor:   foreign,
	})
	require.True(t, domain.IsForbidden(err))

	stored, err := f.orders.Get(view.Order.ID)
	require.NoError(t, err)
	require.Equal(t, view.Order.Version, stored.Version)

	events, err := f.timeline.List(view.Order.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "order.created", events[0].Type)
}

func TestEngine_UpdateOrder_QuantityIncreaseRevalidatesStock(t *testing.T) {
	f := newFixture(t)
	view := f.createOrder(t, 3) // остаток 7

	// Увеличение до 20 требует дельту 17 при остатке 7.
	_, err := f.engine.UpdateOrder(context.Background(), UpdateOrderInput{
		OrderID:    view.Order.ID,
		Quantities: []QuantityChange{{ProductID: "product-1", Qty: 20}},
		Actor:      f.seller,
	})
	require.True(t, domain.IsInsufficientStock(err))
	require.Equal(t, int32(7), f.stock(t, "product-1"))

	stored, err := f.orders.Get(view.Order.ID)
	require.NoError(t, err)
	require.Equal(t, int32(3), stored.Items[0].Qty)

	// Увеличение в пределах остатка резервирует дельту.
	updated, err := f.engine.UpdateOrder(context.Background(), UpdateOrderInput{
		OrderID:    view.Order.ID,
		Quantities: []QuantityChange{{ProductID: "product-1", Qty: 5}},
		Actor:      f.seller,
	})
	require.NoError(t, err)
	require.Equal(t, int32(5), updated.Order.Items[0].Qty)
	require.Equal(t, int64(25), updated.Order.SubtotalMinor)
	require.Equal(t, int32(5), f.stock(t, "product-1"))
	require.Empty(t, updated.Order.ValidateInvariants())
}

func TestEngine_UpdateOrder_QuantityDecreaseReleasesStock(t *testing.T) {
	f := newFixture(t)
	view := f.createOrder(t, 5) // остаток 5

	updated, err := f.engine.UpdateOrder(context.Background(), UpdateOrderInput{
		OrderID:    view.Order.ID,
		Quantities: []QuantityChange{{ProductID: "product-1", Qty: 2}},
		Actor:      f.seller,
	})
	require.NoError(t, err)
	require.Equal(t, int32(2), updated.Order.Items[0].Qty)
	require.Equal(t, int64(10), updated.Order.SubtotalMinor)
	require.Equal(t, int32(8), f.stock(t, "product-1"))
}

func TestEngine_UpdateOrder_UnknownLineItem(t *testing.T) {
	f := newFixture(t)
	view := f.createOrder(t, 3)

	// Путь правки количеств не добавляет новых позиций.
	_, err := f.engine.UpdateOrder(context.Background(), UpdateOrderInput{
		OrderID:    view.Order.ID,
		Quantities: []QuantityChange{{ProductID: "product-unknown", Qty: 1}},
		Actor:      f.seller,
	})
	require.True(t, domain.IsNotFound(err))
}

func TestEngine_UpdateOrder_EditableGate(t *testing.T) {
	f := newFixture(t)
	view := f.createOrder(t, 3)

	delivered := domain.OrderStateDelivered
	_, err := f.engine.UpdateOrder(context.Background(), UpdateOrderInput{
		OrderID: view.Order.ID,
		State:   &delivered,
		Actor:   f.admin,
	})
	require.NoError(t, err)

	// Доставленный заказ закрыт для правок продавца-владельца.
	_, err = f.engine.UpdateOrder(context.Background(), UpdateOrderInput{
		OrderID: view.Order.ID,
		Notes:   []string{"поздняя заметка"},
		Actor:   f.seller,
	})
	require.True(t, domain.IsForbidden(err))

	// Администратору правки доступны в любом состоянии.
	updated, err := f.engine.UpdateOrder(context.Background(), UpdateOrderInput{
		OrderID: view.Order.ID,
		Notes:   []string{"правка администратора"},
		Actor:   f.admin,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"правка администратора"}, updated.Order.Notes)
}

func TestEngine_UpdateOrder_CancelReleasesStock(t *testing.T) {
	f := newFixture(t)
	view := f.createOrder(t, 4) // остаток 6

	cancelled := domain.OrderStateCancelled
	updated, err := f.engine.UpdateOrder(context.Background(), UpdateOrderInput{
		OrderID: view.Order.ID,
		State:   &cancelled,
		Actor:   f.admin,
	})
	require.NoError(t, err)
	require.Equal(t, domain.OrderStateCancelled, updated.Order.State)
	require.Equal(t, int32(10), f.stock(t, "product-1"))

	events, err := f.timeline.List(view.Order.ID)
	require.NoError(t, err)
	require.Equal(t, "order.cancelled", events[len(events)-1].Type)

	// Повторная отмена не трогает остаток.
	_, err = f.engine.UpdateOrder(context.Background(), UpdateOrderInput{
		OrderID: view.Order.ID,
		State:   &cancelled,
		Actor:   f.admin,
	})
	require.NoError(t, err)
	require.Equal(t, int32(10), f.stock(t, "product-1"))

	// Из терминального состояния выйти нельзя даже администратору.
	approved := domain.OrderStateApproved
	_, err = f.engine.UpdateOrder(context.Background(), UpdateOrderInput{
		OrderID: view.Order.ID,
		State:   &approved,
		Actor:   f.admin,
	})
	require.Error(t, err)
	require.True(t, domain.IsForbidden(err))
}

func TestEngine_UpdateOrder_CancelDeliveredForbidden(t *testing.T) {
	f := newFixture(t)
	view := f.createOrder(t, 3) // остаток 7

	delivered := domain.OrderStateDelivered
	_, err := f.engine.UpdateOrder(context.Background(), UpdateOrderInput{
		OrderID: view.Order.ID,
		State:   &delivered,
		Actor:   f.admin,
	})
	require.NoError(t, err)

	// Отгруженный товар на склад не возвращается: отмена доставленного
	// заказа запрещена даже администратору.
	cancelled := domain.OrderStateCancelled
	_, err = f.engine.UpdateOrder(context.Background(), UpdateOrderInput{
		OrderID: view.Order.ID,
		State:   &cancelled,
		Actor:   f.admin,
	})
	require.True(t, domain.IsForbidden(err))
	require.Equal(t, int32(7), f.stock(t, "product-1"))

	stored, err := f.orders.Get(view.Order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStateDelivered, stored.State)
}

func TestEngine_UpdateOrder_CancelKeepsReservationOnSaveFailure(t *testing.T) {
	f := newFixture(t)
	view := f.createOrder(t, 4) // остаток 6

	failing := &failingOrderRepo{OrderRepository: f.orders, failSave: true}
	engine := f.engineWithOrders(failing)

	cancelled := domain.OrderStateCancelled
	_, err := engine.UpdateOrder(context.Background(), UpdateOrderInput{
		OrderID: view.Order.ID,
		State:   &cancelled,
		Actor:   f.admin,
	})
	require.Error(t, err)

	// Заказ не сохранился и остался живым, его резерв не снимается.
	require.Equal(t, int32(6), f.stock(t, "product-1"))
	stored, err := f.orders.Get(view.Order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatePending, stored.State)
}

func TestEngine_UpdateOrder_DeliveryCostTrusted(t *testing.T) {
	f := newFixture(t)
	view := f.createOrder(t, 3) // subtotal 15, delivery 2

	cost := int64(7)
	updated, err := f.engine.UpdateOrder(context.Background(), UpdateOrderInput{
		OrderID:           view.Order.ID,
		DeliveryCostMinor: &cost,
		Actor:             f.seller,
	})
	require.NoError(t, err)
	require.Equal(t, int64(7), updated.Order.DeliveryCostMinor)
	require.Equal(t, int64(22), updated.Order.TotalMinor)
	require.Empty(t, updated.Order.ValidateInvariants())

	// Без нового значения стоимость доставки сохраняется.
	updated, err = f.engine.UpdateOrder(context.Background(), UpdateOrderInput{
		OrderID: view.Order.ID,
		Notes:   []string{"только заметка"},
		Actor:   f.seller,
	})
	require.NoError(t, err)
	require.Equal(t, int64(7), updated.Order.DeliveryCostMinor)

	negative := int64(-1)
	_, err = f.engine.UpdateOrder(context.Background(), UpdateOrderInput{
		OrderID:           view.Order.ID,
		DeliveryCostMinor: &negative,
		Actor:             f.seller,
	})
	require.True(t, domain.IsValidation(err))
}

func TestEngine_DeleteOrder(t *testing.T) {
	f := newFixture(t)
	view := f.createOrder(t, 4) // остаток 6

	require.NoError(t, f.engine.DeleteOrder(context.Background(), view.Order.ID, f.seller))

	_, err := f.orders.Get(view.Order.ID)
	require.True(t, domain.IsNotFound(err))
	require.Equal(t, int32(10), f.stock(t, "product-1"))
}

func TestEngine_DeleteOrder_Forbidden(t *testing.T) {
	f := newFixture(t)
	view := f.createOrder(t, 2)

	// Удаление — личная операция продавца-владельца, администратору недоступна.
	err := f.engine.DeleteOrder(context.Background(), view.Order.ID, f.admin)
	require.True(t, domain.IsForbidden(err))

	foreign := domain.Actor{ID: "seller-2", Role: domain.RoleSeller}
	err = f.engine.DeleteOrder(context.Background(), view.Order.ID, foreign)
	require.True(t, domain.IsForbidden(err))

	delivered := domain.OrderStateDelivered
	_, err = f.engine.UpdateOrder(context.Background(), UpdateOrderInput{
		OrderID: view.Order.ID,
		State:   &delivered,
		Actor:   f.admin,
	})
	require.NoError(t, err)

	err = f.engine.DeleteOrder(context.Background(), view.Order.ID, f.seller)
	require.True(t, domain.IsForbidden(err))
	require.Equal(t, int32(8), f.stock(t, "product-1"))
}

func TestEngine_DeleteOrder_KeepsReservationOnDeleteFailure(t *testing.T) {
	f := newFixture(t)
	view := f.createOrder(t, 4) // остаток 6

	failing := &failingOrderRepo{OrderRepository: f.orders, failDelete: true}
	engine := f.engineWithOrders(failing)

	err := engine.DeleteOrder(context.Background(), view.Order.ID, f.seller)
	require.Error(t, err)

	// Неудалённый заказ сохраняет свой резерв.
	require.Equal(t, int32(6), f.stock(t, "product-1"))
	_, err = f.orders.Get(view.Order.ID)
	require.NoError(t, err)
}

func TestEngine_MarkCommissionPaid(t *testing.T) {
	f := newFixture(t)
	view := f.createOrder(t, 2)

	updated, err := f.engine.MarkCommissionPaid(context.Background(), view.Order.ID)
	require.NoError(t, err)
	require.True(t, updated.Order.CommissionPaid)
	firstVersion := updated.Order.Version

	// Повторная установка — no-op с успешным результатом.
	again, err := f.engine.MarkCommissionPaid(context.Background(), view.Order.ID)
	require.NoError(t, err)
	require.True(t, again.Order.CommissionPaid)
	require.Equal(t, firstVersion, again.Order.Version)

	_, err = f.engine.MarkCommissionPaid(context.Background(), "missing-order")
	require.True(t, domain.IsNotFound(err))
}

func TestEngine_RecordCommission(t *testing.T) {
	f := newFixture(t)
	view := f.createOrder(t, 2)

	history, err := f.engine.RecordCommission(context.Background(), "seller-1", CommissionInput{
		OrderID:     view.Order.ID,
		AmountMinor: 250,
		Payer:       "client",
	})
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, int64(250), history[0].AmountMinor)
	require.Equal(t, "client", history[0].Payer)
	require.False(t, history[0].PaidAt.IsZero())

	// История только растёт, прежние записи не меняются.
	history, err = f.engine.RecordCommission(context.Background(), "seller-1", CommissionInput{
		OrderID:     view.Order.ID,
		AmountMinor: 100,
		Payer:       "supplier",
	})
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, int64(250), history[0].AmountMinor)
}

func TestEngine_RecordCommission_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.RecordCommission(context.Background(), "missing-seller", CommissionInput{
		OrderID:     "order-1",
		AmountMinor: 100,
		Payer:       "client",
	})
	require.True(t, domain.IsNotFound(err))

	_, err = f.engine.RecordCommission(context.Background(), "seller-1", CommissionInput{
		OrderID:     "",
		AmountMinor: 0,
		Payer:       "",
	})
	require.True(t, domain.IsValidation(err))
}

func TestEngine_ConcurrentCreateNoOversell(t *testing.T) {
	f := newFixture(t)

	// Две конкурирующие заявки по 7 единиц при остатке 10: проходит ровно одна.
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := f.engine.CreateOrder(context.Background(), CreateOrderInput{
				ClientID: "client-1",
				Items:    []LineItemInput{{ProductID: "product-1", Qty: 7}},
				Actor:    f.seller,
			})
			results <- err
		}()
	}

	var successes, refusals int
	for i := 0; i < 2; i++ {
		select {
		case err := <-results:
			if err == nil {
				successes++
			} else {
				require.True(t, domain.IsInsufficientStock(err))
				refusals++
			}
		case <-time.After(5 * time.Second):
			t.Fatal("create order did not finish in time")
		}
	}

	require.Equal(t, 1, successes)
	require.Equal(t, 1, refusals)
	require.Equal(t, int32(3), f.stock(t, "product-1"))
}
