package memory

import (
	"sort"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
)

// orderRepositoryInMemory — простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]domain.Order
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[int64]domain.Order),
	}
}

// Create присваивает заказу следующий id и сохраняет копию.
func (r *orderRepositoryInMemory) Create(order domain.Order) (domain.Order, error) {
	if strings.TrimSpace(order.BuyerLogin) == "" {
		return domain.Order{}, domain.ErrLoginRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	order.ID = r.nextID
	r.items[order.ID] = order.Clone()
	return order.Clone(), nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(id int64) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order.Clone(), nil
}

func (r *orderRepositoryInMemory) List() ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(domain.Order) bool { return true }), nil
}

// ListByBuyer возвращает заказы покупателя от новых к старым, ограничивая выборку limit (если >0).
func (r *orderRepositoryInMemory) ListByBuyer(login string, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := r.collect(func(o domain.Order) bool { return o.BuyerLogin == login })
	sort.Slice(result, func(i, j int) bool {
		if !result[i].PlacedAt.Equal(result[j].PlacedAt) {
			return result[i].PlacedAt.After(result[j].PlacedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *orderRepositoryInMemory) DetachLines(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.Lines = nil
	r.items[id] = order
	return nil
}

func (r *orderRepositoryInMemory) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.items), nil
}

// collect вызывается под блокировкой и возвращает копии в порядке id.
func (r *orderRepositoryInMemory) collect(keep func(domain.Order) bool) []domain.Order {
	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		if keep(order) {
			result = append(result, order.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
