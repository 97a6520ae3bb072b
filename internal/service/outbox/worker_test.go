package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
	"github.com/vladislavdragonenkov/eshop/internal/metrics"
	"github.com/vladislavdragonenkov/eshop/internal/storage/memory"
)

type stubPublisher struct {
	mu        sync.Mutex
	err       error
	sequence  []error
	published []domain.OutboxMessage
	callCount int
}

func (s *stubPublisher) Publish(msg domain.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++
	err := s.err
	if len(s.sequence) > 0 {
		err, s.sequence = s.sequence[0], s.sequence[1:]
	}
	if err == nil {
		s.published = append(s.published, msg)
	}
	return err
}

func (s *stubPublisher) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

func enqueue(t *testing.T, repo *memory.OutboxRepository, aggregateID, eventType string) domain.OutboxMessage {
	t.Helper()
	msg, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       []byte(`{"order_id":` + aggregateID + `}`),
	})
	require.NoError(t, err)
	return msg
}

func newTestWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	options = append([]Option{
		WithRetryBaseDelay(0),
		WithMaxAttempts(3),
		WithMetrics(metrics.NewWorkerMetricsWithRegisterer(prometheus.NewRegistry())),
	}, options...)
	return NewWorker(repo, publisher, options...)
}

func TestProcessOncePublishesInOrder(t *testing.T) {
	repo := memory.NewOutboxRepository()
	enqueue(t, repo, "1", domain.EventOrderPlaced)
	enqueue(t, repo, "1", domain.EventOrderCanceled)
	publisher := &stubPublisher{}

	sent := newTestWorker(repo, publisher).ProcessOnce(context.Background())

	require.Equal(t, 2, sent)
	require.Len(t, publisher.published, 2)
	require.Equal(t, domain.EventOrderPlaced, publisher.published[0].EventType)
	require.Equal(t, domain.EventOrderCanceled, publisher.published[1].EventType)
	require.Empty(t, repo.AllPending())
}

func TestProcessOnceRetriesThenSucceeds(t *testing.T) {
	repo := memory.NewOutboxRepository()
	enqueue(t, repo, "2", domain.EventOrderPlaced)
	publisher := &stubPublisher{sequence: []error{errors.New("attempt 1"), errors.New("attempt 2"), nil}}

	sent := newTestWorker(repo, publisher).ProcessOnce(context.Background())

	require.Equal(t, 1, sent)
	require.Equal(t, 3, publisher.calls())
	require.Empty(t, repo.AllPending())
}

func TestProcessOnceSendsToDLQAfterRetries(t *testing.T) {
	repo := memory.NewOutboxRepository()
	msg := enqueue(t, repo, "3", domain.EventOrderCanceled)
	publisher := &stubPublisher{err: errors.New("broker down")}
	dlq := &stubPublisher{}

	sent := newTestWorker(repo, publisher, WithDLQPublisher(dlq)).ProcessOnce(context.Background())

	require.Zero(t, sent)
	require.Equal(t, 3, publisher.calls())
	require.Empty(t, repo.AllPending())
	require.Len(t, dlq.published, 1)

	var dead DeadLetter
	require.NoError(t, json.Unmarshal(dlq.published[0].Payload, &dead))
	require.Equal(t, msg.ID, dead.OutboxID)
	require.Equal(t, "3", dead.AggregateID)
	require.Contains(t, dead.PublishError, "broker down")
	require.JSONEq(t, `{"order_id":3}`, string(dead.Payload))
}

func TestBackoff(t *testing.T) {
	require.Zero(t, backoff(0, 3))
	require.Equal(t, 10*time.Millisecond, backoff(10*time.Millisecond, 1))
	require.Equal(t, 40*time.Millisecond, backoff(10*time.Millisecond, 3))
	require.Equal(t, time.Duration(1<<63-1), backoff(time.Hour, 80))
}

func TestRunStopsOnContextCancel(t *testing.T) {
	repo := memory.NewOutboxRepository()
	enqueue(t, repo, "4", domain.EventOrderPlaced)
	publisher := &stubPublisher{}

	worker := newTestWorker(repo, publisher, WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	require.Eventually(t, func() bool { return publisher.calls() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

func TestRunDisabledWithoutPublisher(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		NewWorker(memory.NewOutboxRepository(), nil).Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker without publisher must return immediately")
	}
}
