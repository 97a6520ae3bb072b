package idempotency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
	"github.com/vladislavdragonenkov/eshop/internal/metrics"
	"github.com/vladislavdragonenkov/eshop/internal/storage/memory"
)

func TestDeleteExpiredRemovesOnlyStaleKeys(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	issued := time.Now().UTC()

	for i := 0; i < 5; i++ {
		_, err := repo.CreateProcessing(fmt.Sprintf("place-%d", i), "hash", issued.Add(time.Minute))
		require.NoError(t, err)
	}
	_, err := repo.CreateProcessing("cancel-live", "hash", issued.Add(time.Hour))
	require.NoError(t, err)

	later := issued.Add(10 * time.Minute)
	worker := NewCleanupWorker(repo,
		WithBatchSize(2),
		WithClock(func() time.Time { return later }),
		WithMetrics(metrics.NewWorkerMetricsWithRegisterer(prometheus.NewRegistry())),
	)

	deleted, err := worker.DeleteExpired(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Equal(t, 5, deleted)

	_, err = repo.Get("cancel-live")
	require.NoError(t, err)
	_, err = repo.Get("place-0")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
}

func TestDeleteExpiredStopsOnShortBatch(t *testing.T) {
	repo := &scriptedRepo{results: []int{3, 3, 1, 3}}

	deleted, err := NewCleanupWorker(repo, WithBatchSize(3)).DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, 7, deleted)
	require.Equal(t, 3, repo.calls())
}

func TestDeleteExpiredReturnsPartialCountOnError(t *testing.T) {
	boom := errors.New("storage unavailable")
	repo := &scriptedRepo{results: []int{4}, errs: []error{nil, boom}}

	deleted, err := NewCleanupWorker(repo, WithBatchSize(4)).DeleteExpired(context.Background(), time.Now())
	require.ErrorIs(t, err, boom)
	require.Equal(t, 4, deleted)
}

func TestDeleteExpiredHonoursCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := &scriptedRepo{}
	deleted, err := NewCleanupWorker(repo).DeleteExpired(ctx, time.Now())
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, deleted)
	require.Zero(t, repo.calls())
}

func TestOptionsIgnoreInvalidValues(t *testing.T) {
	w := NewCleanupWorker(nil, WithInterval(0), WithBatchSize(-1), WithLogger(nil), WithClock(nil))
	require.Equal(t, defaultCleanupInterval, w.interval)
	require.Equal(t, defaultCleanupBatchSize, w.batchSize)
	require.NotNil(t, w.logger)
	require.NotNil(t, w.now)

	// Без хранилища воркер сразу завершается.
	w.Run(context.Background())
}

func TestRunSweepsUntilCanceled(t *testing.T) {
	repo := &scriptedRepo{}
	worker := NewCleanupWorker(repo, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	require.Eventually(t, func() bool { return repo.calls() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

// scriptedRepo отдаёт заранее заданные результаты DeleteExpired по очереди.
type scriptedRepo struct {
	domain.IdempotencyRepository

	mu      sync.Mutex
	results []int
	errs    []error
	n       int
}

func (s *scriptedRepo) DeleteExpired(time.Time, int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.n
	s.n++
	if i < len(s.errs) && s.errs[i] != nil {
		return 0, s.errs[i]
	}
	if i < len(s.results) {
		return s.results[i], nil
	}
	return 0, nil
}

func (s *scriptedRepo) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}
