package domain

import "time"

// OrderState описывает жизненный цикл заказа.
type OrderState string

const (
	// OrderStatePending — заказ создан, остатки зарезервированы.
	OrderStatePending OrderState = "pending"
	// OrderStateApproved — заказ подтверждён.
	OrderStateApproved OrderState = "approved"
	// OrderStateObserved — по заказу есть замечания, но он ещё редактируем.
	OrderStateObserved OrderState = "observed"
	// OrderStateDelivered — заказ доставлен; дальнейшие правки закрыты для продавца.
	OrderStateDelivered OrderState = "delivered"
	// OrderStateCancelled — заказ отменён; терминальное состояние.
	OrderStateCancelled OrderState = "cancelled"
)

// OrderStates возвращает полный набор состояний заказа.
func OrderStates() []OrderState {
	return []OrderState{
		OrderStatePending,
		OrderStateApproved,
		OrderStateObserved,
		OrderStateDelivered,
		OrderStateCancelled,
	}
}

// Valid сообщает, известно ли состояние системе.
func (s OrderState) Valid() bool {
	switch s {
	case OrderStatePending, OrderStateApproved, OrderStateObserved,
		OrderStateDelivered, OrderStateCancelled:
		return true
	default:
		return false
	}
}

// Editable сообщает, входит ли состояние в редактируемый набор.
// Продавец может менять заказ только в этих состояниях.
func (s OrderState) Editable() bool {
	switch s {
	case OrderStatePending, OrderStateApproved, OrderStateObserved:
		return true
	case OrderStateDelivered, OrderStateCancelled:
		return false
	default:
		return false
	}
}

// Terminal сообщает, является ли состояние конечным.
func (s OrderState) Terminal() bool {
	return s == OrderStateCancelled
}

// Cancellable сообщает, можно ли из этого состояния отменить заказ.
// Отмена возвращает резервы на склад, поэтому доступна только до доставки:
// по delivered товар уже у клиента и возвращать его в остатки нельзя.
func (s OrderState) Cancellable() bool {
	return s.Editable()
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	// ID позиции нужен для однозначной идентификации и аудита.
	ID string
	// ProductID — ссылка на товар.
	ProductID string
	// Qty — количество единиц товара.
	Qty int32
	// PriceMinor — цена за единицу, зафиксированная в момент резервирования
	// остатка (в минимальных денежных единицах).
	PriceMinor int64
	// CreatedAt фиксирует момент добавления позиции в заказ.
	CreatedAt time.Time
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID                string
	ClientID          string
	SellerID          string
	SupplierID        string // опциональная ссылка на поставщика
	Items             []OrderItem
	SubtotalMinor     int64
	DeliveryCostMinor int64
	TotalMinor        int64
	State             OrderState
	Notes             []string
	CommissionPaid    bool
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.ClientID == "" {
		errs = append(errs, ErrClientRequired)
	}
	if o.SellerID == "" {
		errs = append(errs, ErrSellerRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if !o.State.Valid() {
		errs = append(errs, ErrOrderStateInvalid)
	}
	if o.DeliveryCostMinor < 0 {
		errs = append(errs, ErrDeliveryCostNegative)
	}

	// Сверяем субтотал с суммой позиций: qty * price.
	var calc int64
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc += int64(item.Qty) * item.PriceMinor
	}
	if calc != o.SubtotalMinor {
		errs = append(errs, ErrSubtotalMismatch)
	}
	if o.TotalMinor != o.SubtotalMinor+o.DeliveryCostMinor {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}

// ItemByProduct находит позицию заказа по идентификатору товара.
func (o *Order) ItemByProduct(productID string) (int, bool) {
	for i, item := range o.Items {
		if item.ProductID == productID {
			return i, true
		}
	}
	return -1, false
}

// RecomputeTotals пересчитывает субтотал и итог из текущих позиций.
// Стоимость доставки остаётся прежней.
func (o *Order) RecomputeTotals() {
	var subtotal int64
	for _, item := range o.Items {
		subtotal += int64(item.Qty) * item.PriceMinor
	}
	o.SubtotalMinor = subtotal
	o.TotalMinor = subtotal + o.DeliveryCostMinor
}
