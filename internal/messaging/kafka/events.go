package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// Order события
	EventTypeOrderCreated   EventType = "order.created"
	EventTypeOrderUpdated   EventType = "order.updated"
	EventTypeOrderCancelled EventType = "order.cancelled"
	EventTypeOrderDeleted   EventType = "order.deleted"

	// Commission события
	EventTypeCommissionPaid     EventType = "commission.paid"
	EventTypeCommissionRecorded EventType = "commission.recorded"
)

// Topics для Kafka
const (
	TopicOrderEvents      = "salesops.order.events"
	TopicCommissionEvents = "salesops.commission.events"
	TopicDeadLetterQueue  = "salesops.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType EventType              `json:"event_type"`
	OrderID   string                 `json:"order_id"`
	ClientID  string                 `json:"client_id"`
	SellerID  string                 `json:"seller_id"`
	State     string                 `json:"state"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// CommissionEvent представляет событие комиссии продавца
type CommissionEvent struct {
	EventType   EventType `json:"event_type"`
	SellerID    string    `json:"seller_id"`
	OrderID     string    `json:"order_id"`
	AmountMinor int64     `json:"amount_minor,omitempty"`
	Payer       string    `json:"payer,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, clientID, sellerID, state string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType: eventType,
		OrderID:   orderID,
		ClientID:  clientID,
		SellerID:  sellerID,
		State:     state,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}

// NewCommissionEvent создает новое событие комиссии
func NewCommissionEvent(eventType EventType, sellerID, orderID string, amountMinor int64, payer string) *CommissionEvent {
	return &CommissionEvent{
		EventType:   eventType,
		SellerID:    sellerID,
		OrderID:     orderID,
		AmountMinor: amountMinor,
		Payer:       payer,
		Timestamp:   time.Now(),
	}
}
