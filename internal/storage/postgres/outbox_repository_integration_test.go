package postgres

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
)

func orderEvent(orderID int, eventType string) domain.OutboxMessage {
	payload, _ := json.Marshal(map[string]any{"order_id": orderID})
	return domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   fmt.Sprint(orderID),
		EventType:     eventType,
		Payload:       payload,
	}
}

func TestOutboxRepository_EnqueueClaimAndFinish(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	placed, err := repo.Enqueue(orderEvent(1, domain.EventOrderPlaced))
	require.NoError(t, err)
	require.NotEmpty(t, placed.ID)
	require.False(t, placed.CreatedAt.IsZero())

	fixed := orderEvent(2, domain.EventOrderCanceled)
	fixed.ID = "outbox-fixed-id"
	canceled, err := repo.Enqueue(fixed)
	require.NoError(t, err)
	require.Equal(t, "outbox-fixed-id", canceled.ID)

	batch, err := repo.PullPending(0)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	require.Equal(t, placed.ID, batch[0].ID)
	require.JSONEq(t, `{"order_id":1}`, string(batch[0].Payload))

	// Закреплённые события не выдаются повторно до истечения аренды.
	again, err := repo.PullPending(10)
	require.NoError(t, err)
	require.Empty(t, again)

	stats, err := repo.Stats()
	require.NoError(t, err)
	require.Equal(t, 2, stats.PendingCount)
	require.False(t, stats.OldestPendingAt.IsZero())

	require.NoError(t, repo.MarkSent(placed.ID))
	require.NoError(t, repo.MarkFailed(canceled.ID))

	stats, err = repo.Stats()
	require.NoError(t, err)
	require.Zero(t, stats.PendingCount)
	require.True(t, stats.OldestPendingAt.IsZero())
}

func TestOutboxRepository_ExpiredClaimIsReleased(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	now := time.Now()
	repo := &outboxRepository{db: store.DB(), now: func() time.Time { return now }, lease: time.Minute}

	_, err := repo.Enqueue(orderEvent(7, domain.EventOrderPlaced))
	require.NoError(t, err)

	batch, err := repo.PullPending(10)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	now = now.Add(2 * time.Minute)
	batch, err = repo.PullPending(10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
}

func TestOutboxRepository_ConcurrentWorkersClaimDisjointBatches(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	const events = 30
	for i := 1; i <= events; i++ {
		_, err := repo.Enqueue(orderEvent(i, domain.EventOrderPlaced))
		require.NoError(t, err)
	}

	var (
		mu      sync.Mutex
		claimed = make(map[string]int)
		wg      sync.WaitGroup
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				batch, err := repo.PullPending(4)
				if err != nil {
					t.Errorf("pull pending: %v", err)
					return
				}
				if len(batch) == 0 {
					return
				}
				mu.Lock()
				for _, msg := range batch {
					claimed[msg.ID]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, claimed, events)
	for id, times := range claimed {
		require.Equal(t, 1, times, "event %s claimed more than once", id)
	}
}

func TestOutboxRepository_FinishUnknownMessage(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	require.ErrorIs(t, repo.MarkSent("missing-outbox"), domain.ErrOutboxPublish)
	require.ErrorIs(t, repo.MarkFailed("missing-outbox"), domain.ErrOutboxPublish)
}
