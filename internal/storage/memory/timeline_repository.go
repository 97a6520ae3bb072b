package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
)

// TimelineRepository держит историю каждого заказа отсортированной по времени.
type TimelineRepository struct {
	mu      sync.RWMutex
	byOrder map[int64][]domain.TimelineEvent
}

// NewTimelineRepository создаёт пустую историю заказов.
func NewTimelineRepository() *TimelineRepository {
	return &TimelineRepository{byOrder: make(map[int64][]domain.TimelineEvent)}
}

// Append вставляет событие после всех событий с тем же или более ранним временем.
func (r *TimelineRepository) Append(event domain.TimelineEvent) error {
	if event.OrderID <= 0 {
		return domain.ErrOrderNotFound
	}
	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	history := r.byOrder[event.OrderID]
	at := sort.Search(len(history), func(i int) bool {
		return history[i].Occurred.After(event.Occurred)
	})
	history = append(history, domain.TimelineEvent{})
	copy(history[at+1:], history[at:])
	history[at] = event
	r.byOrder[event.OrderID] = history
	return nil
}

func (r *TimelineRepository) List(orderID int64) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]domain.TimelineEvent{}, r.byOrder[orderID]...), nil
}

var _ domain.TimelineRepository = (*TimelineRepository)(nil)
