package memory

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
	"github.com/vladislavdragonenkov/eshop/internal/query"
)

// goodRepositoryInMemory — каталог товаров в памяти процесса.
type goodRepositoryInMemory struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]domain.Good
}

// NewGoodRepository возвращает in-memory каталог для локальной разработки и тестов.
func NewGoodRepository() domain.GoodRepository {
	return &goodRepositoryInMemory{items: make(map[int64]domain.Good)}
}

func (r *goodRepositoryInMemory) List() ([]domain.Good, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedByTitle(), nil
}

func (r *goodRepositoryInMemory) Get(id int64) (domain.Good, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	good, ok := r.items[id]
	if !ok {
		return domain.Good{}, domain.ErrGoodNotFound
	}
	return good, nil
}

func (r *goodRepositoryInMemory) FindByTitleAndPrice(title string, price decimal.Decimal) (domain.Good, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Порядок по id, чтобы при дублях всегда находился один и тот же товар.
	var (
		found domain.Good
		ok    bool
	)
	for _, good := range r.items {
		if good.Matches(title, price) && (!ok || good.ID < found.ID) {
			found, ok = good, true
		}
	}
	if !ok {
		return domain.Good{}, domain.ErrProductNotFound
	}
	return found, nil
}

func (r *goodRepositoryInMemory) Search(field domain.GoodSearchField, text string) ([]domain.Good, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return query.SearchGoods(r.sortedByTitle(), field, text), nil
}

func (r *goodRepositoryInMemory) Create(good domain.Good) (domain.Good, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	good.ID = r.nextID
	good.UpdatedAt = time.Now().UTC()
	r.items[good.ID] = good
	return good, nil
}

func (r *goodRepositoryInMemory) Update(good domain.Good) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[good.ID]; !ok {
		return domain.ErrGoodNotFound
	}
	good.UpdatedAt = time.Now().UTC()
	r.items[good.ID] = good
	return nil
}

func (r *goodRepositoryInMemory) AdjustQuantity(id int64, delta int64) (domain.Good, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	good, ok := r.items[id]
	if !ok {
		return domain.Good{}, domain.ErrGoodNotFound
	}
	if good.Quantity+delta < 0 {
		return good, fmt.Errorf("%w: good %d has %d", domain.ErrOutOfStock, id, good.Quantity)
	}
	good.Quantity += delta
	good.UpdatedAt = time.Now().UTC()
	r.items[id] = good
	return good, nil
}

func (r *goodRepositoryInMemory) SetQuantity(id int64, qty int64) (domain.Good, error) {
	if qty < 0 {
		return domain.Good{}, domain.ErrQuantityNegative
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	good, ok := r.items[id]
	if !ok {
		return domain.Good{}, domain.ErrGoodNotFound
	}
	good.Quantity = qty
	good.UpdatedAt = time.Now().UTC()
	r.items[id] = good
	return good, nil
}

func (r *goodRepositoryInMemory) Delete(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return domain.ErrGoodNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *goodRepositoryInMemory) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.items), nil
}

// sortedByTitle вызывается под блокировкой.
func (r *goodRepositoryInMemory) sortedByTitle() []domain.Good {
	result := make([]domain.Good, 0, len(r.items))
	for _, good := range r.items {
		result = append(result, good)
	}
	slices.SortFunc(result, func(a, b domain.Good) int {
		if c := cmp.Compare(a.Title, b.Title); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return result
}

var _ domain.GoodRepository = (*goodRepositoryInMemory)(nil)
