package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
	"github.com/vladislavdragonenkov/eshop/internal/storage/memory"
)

func newOrder(login string, placedAt time.Time) domain.Order {
	lines := []domain.CartLine{
		{GoodID: 1, Title: "Widget", Price: decimal.RequireFromString("5.00"), Quantity: 1},
	}
	return domain.Order{
		BuyerLogin:  login,
		BuyerName:   "Ann",
		Lines:       lines,
		TotalPrice:  domain.TotalOf(lines),
		Description: domain.Describe(lines, domain.TotalOf(lines)),
		PlacedAt:    placedAt,
	}
}

func TestOrderRepository_CreateGet(t *testing.T) {
	repo := memory.NewOrderRepository()

	created, err := repo.Create(newOrder("ann@shop.test", time.Now().UTC()))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.ID != 1 {
		t.Fatalf("expected generated id 1, got %d", created.ID)
	}

	stored, err := repo.Get(created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(stored.Lines) != 1 || stored.Lines[0].Title != "Widget" {
		t.Fatalf("unexpected lines: %+v", stored.Lines)
	}

	// Изменение возвращённой копии не затрагивает хранилище.
	stored.Lines[0].Title = "mutated"
	again, _ := repo.Get(created.ID)
	if again.Lines[0].Title != "Widget" {
		t.Fatal("repository must return copies")
	}

	if _, err := repo.Get(404); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_CreateRequiresBuyer(t *testing.T) {
	repo := memory.NewOrderRepository()
	if _, err := repo.Create(newOrder("", time.Now())); !errors.Is(err, domain.ErrLoginRequired) {
		t.Fatalf("expected ErrLoginRequired, got %v", err)
	}
}

func TestOrderRepository_ListByBuyer(t *testing.T) {
	repo := memory.NewOrderRepository()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first, _ := repo.Create(newOrder("ann@shop.test", base))
	second, _ := repo.Create(newOrder("ann@shop.test", base.Add(time.Hour)))
	_, _ = repo.Create(newOrder("bob@shop.test", base))

	orders, err := repo.ListByBuyer("ann@shop.test", 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 2 || orders[0].ID != second.ID || orders[1].ID != first.ID {
		t.Fatalf("expected newest first, got %+v", orders)
	}

	limited, _ := repo.ListByBuyer("ann@shop.test", 1)
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}

	if count, _ := repo.Count(); count != 3 {
		t.Fatalf("expected 3 orders, got %d", count)
	}
	all, _ := repo.List()
	if len(all) != 3 || all[0].ID != 1 || all[2].ID != 3 {
		t.Fatalf("expected all orders by id, got %+v", all)
	}
}

func TestOrderRepository_DetachLines(t *testing.T) {
	repo := memory.NewOrderRepository()
	created, _ := repo.Create(newOrder("ann@shop.test", time.Now()))

	if err := repo.DetachLines(created.ID); err != nil {
		t.Fatalf("detach failed: %v", err)
	}
	stored, _ := repo.Get(created.ID)
	if len(stored.Lines) != 0 {
		t.Fatalf("expected no lines, got %d", len(stored.Lines))
	}
	if !stored.TotalPrice.Equal(decimal.RequireFromString("5")) {
		t.Fatalf("order record itself must stay intact, total %s", stored.TotalPrice)
	}
	if err := repo.DetachLines(99); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}
