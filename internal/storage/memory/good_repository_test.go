package memory_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
	"github.com/vladislavdragonenkov/eshop/internal/storage/memory"
)

func newGood(title, price string, qty int64) domain.Good {
	return domain.Good{
		Title:       title,
		Price:       decimal.RequireFromString(price),
		Description: title + " description",
		Quantity:    qty,
	}
}

func TestGoodRepository_CreateGetList(t *testing.T) {
	repo := memory.NewGoodRepository()

	widget, err := repo.Create(newGood("Widget", "5.00", 3))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	gadget, err := repo.Create(newGood("Gadget", "2.50", 1))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if widget.ID == 0 || gadget.ID == widget.ID {
		t.Fatalf("expected distinct generated ids, got %d and %d", widget.ID, gadget.ID)
	}

	stored, err := repo.Get(widget.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Title != "Widget" || stored.Quantity != 3 {
		t.Fatalf("unexpected good: %+v", stored)
	}

	list, err := repo.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 || list[0].Title != "Gadget" || list[1].Title != "Widget" {
		t.Fatalf("expected list ordered by title, got %+v", list)
	}

	if _, err := repo.Get(999); !errors.Is(err, domain.ErrGoodNotFound) {
		t.Fatalf("expected ErrGoodNotFound, got %v", err)
	}
}

func TestGoodRepository_FindByTitleAndPrice(t *testing.T) {
	repo := memory.NewGoodRepository()
	created, _ := repo.Create(newGood("Widget", "5.00", 3))

	found, err := repo.FindByTitleAndPrice("Widget", decimal.RequireFromString("5"))
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("expected id %d, got %d", created.ID, found.ID)
	}

	if _, err := repo.FindByTitleAndPrice("Widget", decimal.RequireFromString("5.01")); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestGoodRepository_UpdateDeleteCount(t *testing.T) {
	repo := memory.NewGoodRepository()
	created, _ := repo.Create(newGood("Widget", "5.00", 3))

	created.Title = "Widget XL"
	created.Quantity = 10
	if err := repo.Update(created); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	stored, _ := repo.Get(created.ID)
	if stored.Title != "Widget XL" || stored.Quantity != 10 {
		t.Fatalf("update did not replace good: %+v", stored)
	}

	if err := repo.Update(domain.Good{ID: 42}); !errors.Is(err, domain.ErrGoodNotFound) {
		t.Fatalf("expected ErrGoodNotFound, got %v", err)
	}

	if err := repo.Delete(created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if count, _ := repo.Count(); count != 0 {
		t.Fatalf("expected empty catalog, got %d", count)
	}
	if err := repo.Delete(created.ID); !errors.Is(err, domain.ErrGoodNotFound) {
		t.Fatalf("expected ErrGoodNotFound on second delete, got %v", err)
	}
}

func TestGoodRepository_AdjustQuantityNeverNegative(t *testing.T) {
	repo := memory.NewGoodRepository()
	created, _ := repo.Create(newGood("Widget", "5.00", 1))

	if _, err := repo.AdjustQuantity(created.ID, -1); err != nil {
		t.Fatalf("first decrement failed: %v", err)
	}
	if _, err := repo.AdjustQuantity(created.ID, -1); !errors.Is(err, domain.ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
	stored, _ := repo.Get(created.ID)
	if stored.Quantity != 0 {
		t.Fatalf("expected quantity 0, got %d", stored.Quantity)
	}

	if _, err := repo.SetQuantity(created.ID, -5); !errors.Is(err, domain.ErrQuantityNegative) {
		t.Fatalf("expected ErrQuantityNegative, got %v", err)
	}
}

func TestGoodRepository_ConcurrentDecrements(t *testing.T) {
	repo := memory.NewGoodRepository()
	created, _ := repo.Create(newGood("Widget", "5.00", 10))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.AdjustQuantity(created.ID, -1); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if success != 10 {
		t.Fatalf("expected exactly 10 successful decrements, got %d", success)
	}
}

func TestGoodRepository_SearchFallsBackToFullCatalog(t *testing.T) {
	repo := memory.NewGoodRepository()
	_, _ = repo.Create(newGood("Widget", "5.00", 1))
	_, _ = repo.Create(newGood("Gadget", "2.50", 1))

	found, err := repo.Search(domain.GoodSearchTitle, "widg")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(found) != 1 || found[0].Title != "Widget" {
		t.Fatalf("unexpected search result: %+v", found)
	}

	all, _ := repo.Search(domain.ParseGoodSearchField("colour"), "widg")
	if len(all) != 2 {
		t.Fatalf("expected full catalog for unknown field, got %d goods", len(all))
	}
}
