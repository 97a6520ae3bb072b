package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты попытки резерва для метки result.
const (
	ReservationReserved   = "reserved"
	ReservationOutOfStock = "out_of_stock"
	ReservationNotFound   = "not_found"
	ReservationRejected   = "rejected"
)

// StoreMetrics содержит метрики резервирования и жизненного цикла заказов.
// Все методы безопасны для nil-получателя.
type StoreMetrics struct {
	reservations  *prometheus.CounterVec
	releases      prometheus.Counter
	reservedUnits prometheus.Gauge

	ordersPlaced   prometheus.Counter
	ordersCanceled prometheus.Counter
	goodsPurged    prometheus.Counter
	orderTotal     prometheus.Histogram

	operationDuration *prometheus.HistogramVec

	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter
	notifications  *prometheus.CounterVec
}

// NewStoreMetrics регистрирует метрики в DefaultRegisterer.
func NewStoreMetrics() *StoreMetrics {
	return NewStoreMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewStoreMetricsWithRegisterer регистрирует метрики в переданном registerer;
// повторная регистрация переиспользует уже созданные коллекторы.
func NewStoreMetricsWithRegisterer(registerer prometheus.Registerer) *StoreMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &StoreMetrics{
		reservations: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eshop_reservations_total",
			Help: "Total number of add-to-cart reservation attempts grouped by result",
		}, []string{"result"})),
		releases: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eshop_reservation_releases_total",
			Help: "Total number of reserved units returned to stock",
		})),
		reservedUnits: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eshop_reserved_units",
			Help: "Number of units currently held in buyer carts",
		})),
		ordersPlaced: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eshop_orders_placed_total",
			Help: "Total number of orders placed",
		})),
		ordersCanceled: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eshop_orders_canceled_total",
			Help: "Total number of order cancellations",
		})),
		goodsPurged: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eshop_goods_purged_total",
			Help: "Total number of sold-out goods removed from the catalog",
		})),
		orderTotal: register(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eshop_order_total_amount",
			Help:    "Distribution of placed order totals",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		})),
		operationDuration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eshop_operation_duration_seconds",
			Help:    "Duration of cart and order operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}, []string{"operation"})),
		timelineEvents: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eshop_timeline_events_total",
			Help: "Total number of order history events recorded",
		})),
		outboxEvents: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eshop_outbox_events_total",
			Help: "Total number of events enqueued to the transactional outbox",
		})),
		notifications: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eshop_notifications_total",
			Help: "Total number of notifications handed to the notifier grouped by result",
		}, []string{"result"})),
	}
}

func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) T {
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(T)
			if !ok {
				panic(fmt.Sprintf("collector already registered with unexpected type %T", alreadyRegistered.ExistingCollector))
			}
			return existing
		}
		panic(fmt.Sprintf("register collector: %v", err))
	}
	return collector
}

// RecordReservation учитывает попытку резерва с результатом result.
func (m *StoreMetrics) RecordReservation(result string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(result).Inc()
	if result == ReservationReserved {
		m.reservedUnits.Inc()
	}
}

// RecordRelease учитывает возврат units единиц из корзин на склад или их списание заказом.
func (m *StoreMetrics) RecordRelease(units int64) {
	if m == nil || units <= 0 {
		return
	}
	m.releases.Add(float64(units))
	m.reservedUnits.Sub(float64(units))
}

// RecordCheckout учитывает единицы, ушедшие из корзины в оформленный заказ.
func (m *StoreMetrics) RecordCheckout(units int64) {
	if m == nil || units <= 0 {
		return
	}
	m.reservedUnits.Sub(float64(units))
}

// RecordOrderPlaced учитывает оформленный заказ и его сумму.
func (m *StoreMetrics) RecordOrderPlaced(total float64) {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
	m.orderTotal.Observe(total)
}

// RecordOrderCanceled учитывает отмену заказа.
func (m *StoreMetrics) RecordOrderCanceled() {
	if m == nil {
		return
	}
	m.ordersCanceled.Inc()
}

// RecordGoodsPurged учитывает удалённые распроданные товары.
func (m *StoreMetrics) RecordGoodsPurged(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.goodsPurged.Add(float64(count))
}

// RecordOperationDuration записывает время выполнения операции.
func (m *StoreMetrics) RecordOperationDuration(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий истории.
func (m *StoreMetrics) RecordTimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *StoreMetrics) RecordOutboxEvent() {
	if m == nil {
		return
	}
	m.outboxEvents.Inc()
}

// RecordNotification учитывает отправку уведомления.
func (m *StoreMetrics) RecordNotification(err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.notifications.WithLabelValues(result).Inc()
}
