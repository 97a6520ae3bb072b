package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestWorkerMetricsOutbox(t *testing.T) {
	metrics := NewWorkerMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordOutboxAttempt(OutboxSent)
	metrics.RecordOutboxAttempt(OutboxSent)
	metrics.RecordOutboxAttempt(OutboxRetryError)
	metrics.SetOutboxBacklog(4, 3*time.Second)

	if got := counterValue(t, metrics.outboxAttempts.WithLabelValues(OutboxSent)); got != 2 {
		t.Fatalf("expected 2 sent attempts, got %v", got)
	}
	if got := gaugeValue(t, metrics.outboxPending); got != 4 {
		t.Fatalf("expected pending 4, got %v", got)
	}
	if got := gaugeValue(t, metrics.outboxOldestAge); got != 3 {
		t.Fatalf("expected oldest age 3s, got %v", got)
	}

	metrics.SetOutboxBacklog(0, -time.Second)
	if got := gaugeValue(t, metrics.outboxOldestAge); got != 0 {
		t.Fatalf("negative age should be clamped, got %v", got)
	}
}

func TestWorkerMetricsCleanup(t *testing.T) {
	metrics := NewWorkerMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordCleanupDeleted(7)
	metrics.RecordCleanupDeleted(0)
	metrics.RecordCleanupRun(7, nil)
	metrics.RecordCleanupRun(0, errors.New("db down"))

	if got := counterValue(t, metrics.cleanupDeleted); got != 7 {
		t.Fatalf("expected 7 deleted, got %v", got)
	}
	if got := gaugeValue(t, metrics.cleanupLastDeleted); got != 7 {
		t.Fatalf("failed run must not reset last deleted, got %v", got)
	}
	if got := counterValue(t, metrics.cleanupRuns.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 failed run, got %v", got)
	}
}

func TestWorkerMetricsNilSafe(t *testing.T) {
	var metrics *WorkerMetrics
	metrics.RecordOutboxAttempt(OutboxFailed)
	metrics.SetOutboxBacklog(1, time.Second)
	metrics.RecordCleanupRun(1, nil)
	metrics.RecordCleanupDeleted(1)
}
