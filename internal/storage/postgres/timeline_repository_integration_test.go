package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
)

func TestTimelineRepository_PostgresAppendAndList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	orderRepo := NewOrderRepository(store)
	repo := NewTimelineRepository(store)

	order := placeOrderForTest(t, orderRepo, "ann@shop.test", time.Now().UTC())
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Append(domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     domain.TimelineOrderCanceled,
		Reason:   "canceled by ann@shop.test",
		Occurred: base.Add(time.Minute),
	}))
	require.NoError(t, repo.Append(domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     domain.TimelineOrderPlaced,
		Reason:   "order placed by ann@shop.test",
		Occurred: base,
	}))

	events, err := repo.List(order.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, domain.TimelineOrderPlaced, events[0].Type)
	require.Equal(t, domain.TimelineOrderCanceled, events[1].Type)

	require.NoError(t, repo.Append(domain.TimelineEvent{OrderID: order.ID, Type: domain.TimelineCommentAdded}))
	events, err = repo.List(order.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.False(t, events[2].Occurred.IsZero())

	empty, err := repo.List(order.ID + 100)
	require.NoError(t, err)
	require.Empty(t, empty)
}
