package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salesops/internal/domain"
	"github.com/vladislavdragonenkov/salesops/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/salesops/internal/metrics"
	"github.com/vladislavdragonenkov/salesops/internal/pricing"
	"github.com/vladislavdragonenkov/salesops/internal/service/authz"
	"github.com/vladislavdragonenkov/salesops/internal/service/inventory"
)

// Engine оркеструет жизненный цикл заказа: создание с резервированием остатков
// и расчётом стоимости, ограниченное редактирование, удаление и учёт комиссий.
// Каждая успешная мутация оставляет событие в timeline и в transactional outbox.
type Engine struct {
	orders        domain.OrderRepository
	clients       domain.ClientRepository
	sellers       domain.SellerRepository
	suppliers     domain.SupplierRepository
	ledger        *inventory.Ledger
	stock         domain.StockLedger // подельтовые Reserve/Release идут через порт
	pricing       *pricing.Policy
	guard         *authz.Guard
	outbox        domain.OutboxRepository
	timeline      domain.TimelineRepository
	logger        *log.Entry
	metrics       *metrics.EngineMetrics
	kafkaProducer *kafka.Producer // опциональный Kafka producer, nil без брокеров
}

// Deps перечисляет зависимости движка. Всё внедряется снаружи,
// глобального состояния у движка нет.
type Deps struct {
	Orders        domain.OrderRepository
	Clients       domain.ClientRepository
	Sellers       domain.SellerRepository
	Suppliers     domain.SupplierRepository
	Ledger        *inventory.Ledger
	Pricing       *pricing.Policy
	Guard         *authz.Guard
	Outbox        domain.OutboxRepository
	Timeline      domain.TimelineRepository
	KafkaProducer *kafka.Producer
	Logger        *log.Entry
}

// New создаёт рабочий экземпляр движка.
func New(deps Deps) *Engine {
	engine := newEngine(deps)
	engine.metrics = metrics.NewEngineMetrics()
	return engine
}

// NewWithoutMetrics создаёт движок без метрик (для тестов).
func NewWithoutMetrics(deps Deps) *Engine {
	return newEngine(deps)
}

func newEngine(deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = log.New().WithField("component", "order-engine")
	}
	return &Engine{
		orders:        deps.Orders,
		clients:       deps.Clients,
		sellers:       deps.Sellers,
		suppliers:     deps.Suppliers,
		ledger:        deps.Ledger,
		stock:         deps.Ledger,
		pricing:       deps.Pricing,
		guard:         deps.Guard,
		outbox:        deps.Outbox,
		timeline:      deps.Timeline,
		logger:        logger,
		kafkaProducer: deps.KafkaProducer,
	}
}

// LineItemInput — одна позиция создаваемого заказа.
type LineItemInput struct {
	ProductID string
	Qty       int32
}

// CreateOrderInput — входные данные createOrder.
type CreateOrderInput struct {
	ClientID   string
	Items      []LineItemInput
	Notes      []string
	SupplierID string
	Actor      domain.Actor
}

// QuantityChange задаёт новое количество для существующей позиции заказа.
// Позиции этим путём не добавляются и не удаляются.
type QuantityChange struct {
	ProductID string
	Qty       int32
}

// UpdateOrderInput — входные данные updateOrder. Nil-поля означают «не менять».
type UpdateOrderInput struct {
	OrderID           string
	State             *domain.OrderState
	Quantities        []QuantityChange
	Notes             []string // nil — заметки не трогаем
	DeliveryCostMinor *int64   // доверяем вызывающему, пересчёта по тарифам нет
	Actor             domain.Actor
}

// CommissionInput — входные данные recordCommission.
type CommissionInput struct {
	OrderID     string
	AmountMinor int64
	Payer       string
}

// OrderView — заказ с раскрытыми ссылками для немедленного отображения.
type OrderView struct {
	Order    domain.Order
	Client   domain.Client
	Seller   domain.Seller
	Supplier *domain.Supplier // nil, если заказ не привязан к поставщику
}

// CreateOrder создаёт заказ: проверяет вызывающего и владение клиентом,
// резервирует остатки по принципу «все позиции или ни одной», считает
// стоимость и сохраняет заказ в состоянии pending.
func (e *Engine) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderView, error) {
	if err := e.guard.RequireActor(input.Actor); err != nil {
		e.recordCreateFailed("unauthenticated")
		return nil, err
	}
	if err := validateCreateInput(input); err != nil {
		e.recordCreateFailed("validation")
		return nil, err
	}

	client, err := e.clients.Get(input.ClientID)
	if err != nil {
		e.recordCreateFailed("client_not_found")
		return nil, fmt.Errorf("load client: %w", err)
	}
	if err := e.guard.CanCreateOrder(input.Actor, client); err != nil {
		e.recordCreateFailed("forbidden")
		return nil, err
	}

	var supplier *domain.Supplier
	if input.SupplierID != "" {
		found, err := e.suppliers.Get(input.SupplierID)
		if err != nil {
			e.recordCreateFailed("supplier_not_found")
			return nil, fmt.Errorf("load supplier: %w", err)
		}
		supplier = &found
	}

	lines := make([]inventory.ReserveLine, 0, len(input.Items))
	for _, item := range input.Items {
		lines = append(lines, inventory.ReserveLine{ProductID: item.ProductID, Qty: item.Qty})
	}

	reserved, err := e.ledger.ReserveAll(lines)
	if err != nil {
		e.recordCreateFailed(reserveFailureReason(err))
		return nil, err
	}

	now := time.Now().UTC()
	items := make([]domain.OrderItem, 0, len(reserved))
	var subtotal int64
	for _, line := range reserved {
		items = append(items, domain.OrderItem{
			ID:         uuid.NewString(),
			ProductID:  line.ProductID,
			Qty:        line.Qty,
			PriceMinor: line.PriceMinor,
			CreatedAt:  now,
		})
		subtotal += int64(line.Qty) * line.PriceMinor
	}

	deliveryCost, err := e.pricing.ResolveDeliveryCost(subtotal)
	if err != nil {
		e.ledger.ReleaseAll(reserved)
		e.recordCreateFailed("pricing")
		return nil, err
	}

	order := domain.Order{
		ID:                uuid.NewString(),
		ClientID:          client.ID,
		SellerID:          client.SellerID,
		SupplierID:        input.SupplierID,
		Items:             items,
		SubtotalMinor:     subtotal,
		DeliveryCostMinor: deliveryCost,
		TotalMinor:        subtotal + deliveryCost,
		State:             domain.OrderStatePending,
		Notes:             append([]string(nil), input.Notes...),
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := e.orders.Create(order); err != nil {
		e.ledger.ReleaseAll(reserved)
		e.recordCreateFailed("persist")
		e.logger.WithError(err).WithField("order_id", order.ID).Error("failed to persist order")
		return nil, fmt.Errorf("persist order: %w", err)
	}

	if e.metrics != nil {
		e.metrics.RecordOrderCreated()
	}
	e.emitOrderEvent(&order, string(kafka.EventTypeOrderCreated), map[string]interface{}{
		"state":          string(order.State),
		"subtotal_minor": order.SubtotalMinor,
		"total_minor":    order.TotalMinor,
		"ts":             now.Format(time.RFC3339Nano),
	})
	e.publishOrderEvent(kafka.EventTypeOrderCreated, &order, nil)

	e.logger.WithFields(log.Fields{
		"order_id":  order.ID,
		"client_id": order.ClientID,
		"seller_id": order.SellerID,
		"items":     len(order.Items),
	}).Info("order created")

	return e.resolveView(order, &client, supplier)
}

// UpdateOrder применяет ограниченное редактирование заказа: смена состояния
// доступна только администратору; продавец меняет количества и заметки,
// пока заказ в редактируемом наборе состояний и клиент принадлежит ему.
func (e *Engine) UpdateOrder(ctx context.Context, input UpdateOrderInput) (*OrderView, error) {
	if err := e.guard.RequireActor(input.Actor); err != nil {
		return nil, err
	}

	order, err := e.orders.Get(input.OrderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	client, err := e.clients.Get(order.ClientID)
	if err != nil {
		return nil, fmt.Errorf("load client: %w", err)
	}

	// Право на редактирование проверяется до разбора полей: пустой update
	// чужого заказа не должен ни сохранять, ни оставлять событий.
	if err := e.guard.CanEditOrder(input.Actor, order, client); err != nil {
		return nil, err
	}

	if input.State != nil {
		if err := e.guard.CanChangeState(input.Actor); err != nil {
			return nil, err
		}
		if !input.State.Valid() {
			return nil, &domain.ValidationError{Issues: []error{domain.ErrOrderStateInvalid}}
		}
		// Из терминального состояния выйти нельзя; повторная установка
		// того же состояния — допустимый no-op.
		if order.State.Terminal() && *input.State != order.State {
			return nil, &domain.ForbiddenError{Reason: "order is in a terminal state"}
		}
		// Отменить можно только заказ из редактируемого набора состояний:
		// по delivered товар уже отгружен, и возвращать его на склад нельзя.
		if *input.State == domain.OrderStateCancelled && *input.State != order.State && !order.State.Cancellable() {
			return nil, &domain.ForbiddenError{Reason: "order state does not allow cancellation"}
		}
	}

	applied, err := e.applyQuantityChanges(&order, input.Quantities)
	if err != nil {
		return nil, err
	}

	if input.Notes != nil {
		order.Notes = append([]string(nil), input.Notes...)
	}
	if input.DeliveryCostMinor != nil {
		if *input.DeliveryCostMinor < 0 {
			e.rollbackQuantityChanges(applied)
			return nil, &domain.ValidationError{Issues: []error{domain.ErrDeliveryCostNegative}}
		}
		order.DeliveryCostMinor = *input.DeliveryCostMinor
	}

	eventType := kafka.EventTypeOrderUpdated
	cancelling := false
	if input.State != nil && *input.State != order.State {
		if *input.State == domain.OrderStateCancelled {
			cancelling = true
			eventType = kafka.EventTypeOrderCancelled
		}
		order.State = *input.State
	}

	order.RecomputeTotals()

	mutated := order
	if err := e.saveWithRetry(&order, func(fresh *domain.Order) {
		fresh.Items = mutated.Items
		fresh.Notes = mutated.Notes
		fresh.DeliveryCostMinor = mutated.DeliveryCostMinor
		fresh.State = mutated.State
		fresh.RecomputeTotals()
	}); err != nil {
		e.rollbackQuantityChanges(applied)
		return nil, err
	}

	// Резервы снимаются только после успешной записи: если сохранение
	// упало, заказ остался живым и его товар должен остаться за ним.
	// Cancelled — терминальное состояние, повторного снятия не будет.
	if cancelling {
		e.releaseOrderStock(&order)
	}

	if e.metrics != nil {
		e.metrics.RecordOrderUpdated()
	}
	e.emitOrderEvent(&order, string(eventType), map[string]interface{}{
		"state":          string(order.State),
		"subtotal_minor": order.SubtotalMinor,
		"total_minor":    order.TotalMinor,
		"ts":             order.UpdatedAt.Format(time.RFC3339Nano),
	})
	e.publishOrderEvent(eventType, &order, nil)

	return e.resolveView(order, &client, nil)
}

// DeleteOrder удаляет заказ. Разрешено только продавцу-владельцу и только
// пока заказ в редактируемом наборе состояний; после удаления резервы
// возвращаются на склад.
func (e *Engine) DeleteOrder(ctx context.Context, orderID string, actor domain.Actor) error {
	if err := e.guard.RequireActor(actor); err != nil {
		return err
	}

	order, err := e.orders.Get(orderID)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	if err := e.guard.CanDeleteOrder(actor, order); err != nil {
		return err
	}

	if err := e.orders.Delete(order.ID); err != nil {
		e.logger.WithError(err).WithField("order_id", order.ID).Error("failed to delete order")
		return fmt.Errorf("delete order: %w", err)
	}

	// Резервы снимаются после фактического удаления: при отказе репозитория
	// заказ ещё существует и его товар нельзя отдавать обратно на склад.
	// Удаление легально только из редактируемых состояний, а cancelled в них
	// не входит, поэтому задвоить снятие при отмене здесь нельзя.
	e.releaseOrderStock(&order)

	if e.metrics != nil {
		e.metrics.RecordOrderDeleted()
	}
	e.emitOrderEvent(&order, string(kafka.EventTypeOrderDeleted), map[string]interface{}{
		"state": string(order.State),
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
	})
	e.publishOrderEvent(kafka.EventTypeOrderDeleted, &order, nil)

	e.logger.WithFields(log.Fields{
		"order_id":  order.ID,
		"seller_id": order.SellerID,
	}).Info("order deleted")

	return nil
}

// MarkCommissionPaid выставляет флаг выплаченной комиссии по заказу.
// Повторная установка уже выставленного флага — no-op с успешным результатом.
func (e *Engine) MarkCommissionPaid(ctx context.Context, orderID string) (*OrderView, error) {
	order, err := e.orders.Get(orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}

	if order.CommissionPaid {
		return e.resolveView(order, nil, nil)
	}

	order.CommissionPaid = true
	if err := e.saveWithRetry(&order, func(fresh *domain.Order) {
		fresh.CommissionPaid = true
	}); err != nil {
		return nil, err
	}

	e.emitOrderEvent(&order, string(kafka.EventTypeCommissionPaid), map[string]interface{}{
		"ts": order.UpdatedAt.Format(time.RFC3339Nano),
	})
	e.publishCommissionEvent(kafka.EventTypeCommissionPaid, order.SellerID, order.ID, 0, "")

	return e.resolveView(order, nil, nil)
}

// RecordCommission добавляет комиссионную запись в историю продавца и
// возвращает её целиком. История append-only.
func (e *Engine) RecordCommission(ctx context.Context, sellerID string, input CommissionInput) ([]domain.CommissionRecord, error) {
	if _, err := e.sellers.Get(sellerID); err != nil {
		return nil, fmt.Errorf("load seller: %w", err)
	}

	record := domain.CommissionRecord{
		ID:          uuid.NewString(),
		SellerID:    sellerID,
		OrderID:     input.OrderID,
		AmountMinor: input.AmountMinor,
		Payer:       input.Payer,
		PaidAt:      time.Now().UTC(),
	}
	if issues := record.Validate(); len(issues) > 0 {
		return nil, &domain.ValidationError{Issues: issues}
	}

	if err := e.sellers.AppendCommission(record); err != nil {
		e.logger.WithError(err).WithField("seller_id", sellerID).Error("failed to append commission record")
		return nil, fmt.Errorf("append commission: %w", err)
	}

	if e.metrics != nil {
		e.metrics.RecordCommissionRecord()
	}
	e.emitCommissionEvent(&record)
	e.publishCommissionEvent(kafka.EventTypeCommissionRecorded, record.SellerID, record.OrderID, record.AmountMinor, record.Payer)

	e.logger.WithFields(log.Fields{
		"seller_id":    sellerID,
		"order_id":     record.OrderID,
		"amount_minor": record.AmountMinor,
	}).Info("commission recorded")

	return e.sellers.ListCommissions(sellerID)
}

// appliedDelta запоминает уже применённое складское изменение,
// чтобы его можно было компенсировать при отказе дальше по пути.
type appliedDelta struct {
	productID string
	delta     int32
}

// applyQuantityChanges переводит позиции заказа на новые количества.
// Увеличение количества резервирует дельту через Ledger (повторная атомарная
// проверка остатка), уменьшение — возвращает дельту на склад. Меняются только
// существующие позиции; при отказе на середине уже применённые дельты откатываются.
func (e *Engine) applyQuantityChanges(order *domain.Order, changes []QuantityChange) ([]appliedDelta, error) {
	if len(changes) == 0 {
		return nil, nil
	}

	var applied []appliedDelta
	for _, change := range changes {
		if change.Qty <= 0 {
			e.rollbackQuantityChanges(applied)
			return nil, &domain.ValidationError{Issues: []error{domain.ErrItemQtyInvalid}}
		}

		idx, ok := order.ItemByProduct(change.ProductID)
		if !ok {
			e.rollbackQuantityChanges(applied)
			return nil, &domain.NotFoundError{Kind: "order item", ID: change.ProductID}
		}

		delta := change.Qty - order.Items[idx].Qty
		switch {
		case delta > 0:
			if _, err := e.stock.Reserve(change.ProductID, delta); err != nil {
				e.rollbackQuantityChanges(applied)
				return nil, err
			}
		case delta < 0:
			if err := e.stock.Release(change.ProductID, -delta); err != nil {
				e.rollbackQuantityChanges(applied)
				return nil, err
			}
		default:
			continue
		}

		order.Items[idx].Qty = change.Qty
		applied = append(applied, appliedDelta{productID: change.ProductID, delta: delta})
	}

	return applied, nil
}

func (e *Engine) rollbackQuantityChanges(applied []appliedDelta) {
	for i := len(applied) - 1; i >= 0; i-- {
		change := applied[i]
		var err error
		if change.delta > 0 {
			err = e.stock.Release(change.productID, change.delta)
		} else {
			_, err = e.stock.Reserve(change.productID, -change.delta)
		}
		if err != nil {
			e.logger.WithError(err).WithField("product_id", change.productID).Error("failed to roll back quantity change")
		}
	}
}

func (e *Engine) releaseOrderStock(order *domain.Order) {
	for _, item := range order.Items {
		if err := e.stock.Release(item.ProductID, item.Qty); err != nil {
			e.logger.WithError(err).WithFields(log.Fields{
				"order_id":   order.ID,
				"product_id": item.ProductID,
			}).Warn("release failed")
		}
	}
}

// saveWithRetry сохраняет заказ с retry-логикой и exponential backoff при
// конфликте версий: свежая копия перечитывается, apply повторно накладывает
// вычисленные изменения.
func (e *Engine) saveWithRetry(order *domain.Order, apply func(*domain.Order)) error {
	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		order.UpdatedAt = time.Now().UTC()
		prevVersion := order.Version

		if err := e.orders.Save(*order); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				e.logger.WithFields(log.Fields{
					"order_id": order.ID,
					"attempt":  attempt + 1,
					"version":  order.Version,
				}).Warn("version conflict detected, retrying")

				fresh, loadErr := e.orders.Get(order.ID)
				if loadErr != nil {
					e.logger.WithError(loadErr).WithField("order_id", order.ID).Error("failed to reload order after conflict")
					return loadErr
				}
				apply(&fresh)
				*order = fresh

				delay := baseDelay * time.Duration(1<<uint(attempt))
				time.Sleep(delay)
				continue
			}

			e.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"attempt":  attempt + 1,
			}).Error("failed to persist order")
			return err
		}

		order.Version = prevVersion + 1
		return nil
	}

	return domain.ErrOrderVersionConflict
}

func (e *Engine) emitOrderEvent(order *domain.Order, eventType string, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["order_id"] = order.ID
	e.enqueueOutbox("order", order.ID, eventType, payload)

	if e.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     eventType,
		Occurred: time.Now().UTC(),
	}
	if reason, ok := payload["reason"].(string); ok {
		event.Reason = reason
	}
	if err := e.timeline.Append(event); err != nil {
		e.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Warn("failed to append timeline event")
	} else if e.metrics != nil {
		e.metrics.RecordTimelineEvent()
	}
}

func (e *Engine) emitCommissionEvent(record *domain.CommissionRecord) {
	e.enqueueOutbox("commission", record.SellerID, string(kafka.EventTypeCommissionRecorded), map[string]interface{}{
		"seller_id":    record.SellerID,
		"order_id":     record.OrderID,
		"amount_minor": record.AmountMinor,
		"payer":        record.Payer,
		"ts":           record.PaidAt.Format(time.RFC3339Nano),
	})
}

func (e *Engine) enqueueOutbox(aggregateType, aggregateID, eventType string, payload map[string]interface{}) {
	if e.outbox == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.WithError(err).WithFields(log.Fields{
			"aggregate_id": aggregateID,
			"event":        eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := e.outbox.Enqueue(msg); err != nil {
		e.logger.WithError(err).WithFields(log.Fields{
			"aggregate_id": aggregateID,
			"event":        eventType,
		}).Error("enqueue event failed")
	} else if e.metrics != nil {
		e.metrics.RecordOutboxEvent()
	}
}

func (e *Engine) publishOrderEvent(eventType kafka.EventType, order *domain.Order, metadata map[string]interface{}) {
	if e.kafkaProducer == nil {
		return // Kafka не настроен, пропускаем
	}

	event := kafka.NewOrderEvent(eventType, order.ID, order.ClientID, order.SellerID, string(order.State), metadata)
	if err := e.kafkaProducer.PublishEvent(kafka.TopicOrderEvents, order.ID, event); err != nil {
		// Логируем ошибку, но не прерываем операцию - Kafka опциональный
		e.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"order_id":   order.ID,
		}).Warn("failed to publish order event to kafka")
	}
}

func (e *Engine) publishCommissionEvent(eventType kafka.EventType, sellerID, orderID string, amountMinor int64, payer string) {
	if e.kafkaProducer == nil {
		return
	}

	event := kafka.NewCommissionEvent(eventType, sellerID, orderID, amountMinor, payer)
	if err := e.kafkaProducer.PublishEvent(kafka.TopicCommissionEvents, sellerID, event); err != nil {
		e.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"seller_id":  sellerID,
		}).Warn("failed to publish commission event to kafka")
	}
}

func (e *Engine) resolveView(order domain.Order, client *domain.Client, supplier *domain.Supplier) (*OrderView, error) {
	view := &OrderView{Order: order, Supplier: supplier}

	if client != nil {
		view.Client = *client
	} else {
		loaded, err := e.clients.Get(order.ClientID)
		if err != nil {
			return nil, fmt.Errorf("resolve client: %w", err)
		}
		view.Client = loaded
	}

	seller, err := e.sellers.Get(order.SellerID)
	if err != nil {
		return nil, fmt.Errorf("resolve seller: %w", err)
	}
	view.Seller = seller

	if supplier == nil && order.SupplierID != "" {
		loaded, err := e.suppliers.Get(order.SupplierID)
		if err != nil {
			return nil, fmt.Errorf("resolve supplier: %w", err)
		}
		view.Supplier = &loaded
	}

	return view, nil
}

func (e *Engine) recordCreateFailed(reason string) {
	if e.metrics != nil {
		e.metrics.RecordCreateFailed(reason)
	}
}

func validateCreateInput(input CreateOrderInput) error {
	var issues []error
	if input.ClientID == "" {
		issues = append(issues, domain.ErrClientRequired)
	}
	if len(input.Items) == 0 {
		issues = append(issues, domain.ErrItemsRequired)
	}
	for _, item := range input.Items {
		if item.Qty <= 0 {
			issues = append(issues, domain.ErrItemQtyInvalid)
			break
		}
	}
	if len(issues) > 0 {
		return &domain.ValidationError{Issues: issues}
	}
	return nil
}

func reserveFailureReason(err error) string {
	switch {
	case domain.IsInsufficientStock(err):
		return "insufficient_stock"
	case domain.IsNotFound(err):
		return "product_not_found"
	default:
		return "reserve"
	}
}
