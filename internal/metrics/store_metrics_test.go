package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("write gauge: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestNewStoreMetricsWithRegisterer(t *testing.T) {
	metrics := NewStoreMetricsWithRegisterer(prometheus.NewRegistry())

	if metrics == nil {
		t.Fatal("NewStoreMetricsWithRegisterer should not return nil")
	}
	if metrics.reservations == nil || metrics.reservedUnits == nil || metrics.orderTotal == nil {
		t.Fatal("collectors should be initialised")
	}
}

func TestRegisterReusesExistingCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewStoreMetricsWithRegisterer(reg)
	second := NewStoreMetricsWithRegisterer(reg)

	first.RecordOrderCanceled()
	second.RecordOrderCanceled()

	if got := counterValue(t, first.ordersCanceled); got != 2 {
		t.Fatalf("expected shared counter value 2, got %v", got)
	}
}

func TestReservedUnitsGaugeFollowsCart(t *testing.T) {
	metrics := NewStoreMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordReservation(ReservationReserved)
	metrics.RecordReservation(ReservationReserved)
	metrics.RecordReservation(ReservationReserved)
	metrics.RecordReservation(ReservationOutOfStock)
	metrics.RecordRelease(1)
	metrics.RecordCheckout(1)

	if got := gaugeValue(t, metrics.reservedUnits); got != 1 {
		t.Fatalf("expected 1 reserved unit, got %v", got)
	}
	if got := counterValue(t, metrics.reservations.WithLabelValues(ReservationOutOfStock)); got != 1 {
		t.Fatalf("expected 1 out-of-stock attempt, got %v", got)
	}
	if got := counterValue(t, metrics.releases); got != 1 {
		t.Fatalf("expected 1 release, got %v", got)
	}
}

func TestOrderAndNotificationCounters(t *testing.T) {
	metrics := NewStoreMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordOrderPlaced(7.5)
	metrics.RecordGoodsPurged(2)
	metrics.RecordGoodsPurged(0)
	metrics.RecordNotification(nil)
	metrics.RecordNotification(errors.New("broker down"))
	metrics.RecordTimelineEvent()
	metrics.RecordOutboxEvent()
	metrics.RecordOperationDuration("place_order", 3*time.Millisecond)

	if got := counterValue(t, metrics.ordersPlaced); got != 1 {
		t.Fatalf("expected 1 order, got %v", got)
	}
	if got := counterValue(t, metrics.goodsPurged); got != 2 {
		t.Fatalf("expected 2 purged goods, got %v", got)
	}
	if got := counterValue(t, metrics.notifications.WithLabelValues("failed")); got != 1 {
		t.Fatalf("expected 1 failed notification, got %v", got)
	}
}

func TestNilMetricsAreNoop(t *testing.T) {
	var metrics *StoreMetrics

	metrics.RecordReservation(ReservationReserved)
	metrics.RecordRelease(1)
	metrics.RecordCheckout(1)
	metrics.RecordOrderPlaced(1)
	metrics.RecordOrderCanceled()
	metrics.RecordGoodsPurged(1)
	metrics.RecordOperationDuration("noop", time.Second)
	metrics.RecordTimelineEvent()
	metrics.RecordOutboxEvent()
	metrics.RecordNotification(nil)
}
