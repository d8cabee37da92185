package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics содержит метрики операций движка заказов.
type EngineMetrics struct {
	// Счётчики операций
	ordersCreated prometheus.Counter
	ordersUpdated prometheus.Counter
	ordersDeleted prometheus.Counter
	createFailed  *prometheus.CounterVec

	// Счётчики комиссий
	commissionRecords prometheus.Counter

	// Счётчики событий timeline/outbox
	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter
}

// NewEngineMetrics создаёт метрики движка в default registry.
func NewEngineMetrics() *EngineMetrics {
	return newEngineMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newEngineMetricsWithRegisterer(registerer prometheus.Registerer) *EngineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &EngineMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "salesops_orders_created_total",
			Help: "Total number of orders created",
		}),
		ordersUpdated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "salesops_orders_updated_total",
			Help: "Total number of orders updated",
		}),
		ordersDeleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "salesops_orders_deleted_total",
			Help: "Total number of orders deleted",
		}),
		createFailed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "salesops_order_create_failures_total",
			Help: "Total number of failed order creations grouped by reason",
		}, []string{"reason"}),
		commissionRecords: registerCounter(registerer, prometheus.CounterOpts{
			Name: "salesops_commission_records_total",
			Help: "Total number of commission payout records appended",
		}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "salesops_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "salesops_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
	}
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *EngineMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordOrderUpdated увеличивает счётчик обновлённых заказов.
func (m *EngineMetrics) RecordOrderUpdated() {
	m.ordersUpdated.Inc()
}

// RecordOrderDeleted увеличивает счётчик удалённых заказов.
func (m *EngineMetrics) RecordOrderDeleted() {
	m.ordersDeleted.Inc()
}

// RecordCreateFailed увеличивает счётчик неудачных созданий по причине отказа.
func (m *EngineMetrics) RecordCreateFailed(reason string) {
	m.createFailed.WithLabelValues(reason).Inc()
}

// RecordCommissionRecord увеличивает счётчик комиссионных записей.
func (m *EngineMetrics) RecordCommissionRecord() {
	m.commissionRecords.Inc()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *EngineMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *EngineMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}

// ReservationMetrics содержит метрики складского регистра.
type ReservationMetrics struct {
	reservations prometheus.Counter
	rejections   prometheus.Counter
	releases     prometheus.Counter
}

// NewReservationMetrics создаёт метрики резервирования в default registry.
func NewReservationMetrics() *ReservationMetrics {
	return newReservationMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newReservationMetricsWithRegisterer(registerer prometheus.Registerer) *ReservationMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &ReservationMetrics{
		reservations: registerCounter(registerer, prometheus.CounterOpts{
			Name: "salesops_stock_reservations_total",
			Help: "Total number of successful stock reservations",
		}),
		rejections: registerCounter(registerer, prometheus.CounterOpts{
			Name: "salesops_stock_reservation_rejections_total",
			Help: "Total number of reservations rejected for insufficient stock",
		}),
		releases: registerCounter(registerer, prometheus.CounterOpts{
			Name: "salesops_stock_releases_total",
			Help: "Total number of stock releases (compensations)",
		}),
	}
}

// RecordReservation увеличивает счётчик успешных резервирований.
func (m *ReservationMetrics) RecordReservation() {
	m.reservations.Inc()
}

// RecordRejection увеличивает счётчик отказов по нехватке остатка.
func (m *ReservationMetrics) RecordRejection() {
	m.rejections.Inc()
}

// RecordRelease увеличивает счётчик возвратов на склад.
func (m *ReservationMetrics) RecordRelease() {
	m.releases.Inc()
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}
