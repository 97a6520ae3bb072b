package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
	"github.com/vladislavdragonenkov/eshop/internal/storage/memory"
)

func TestUserRepository_SeedAndLookup(t *testing.T) {
	repo := memory.NewUserRepository(
		domain.User{Name: "Admin", Email: "admin@shop.test", Role: domain.RoleAdmin},
		domain.User{Name: "Ann", Email: "ann@shop.test", Role: domain.RoleBuyer},
		domain.User{Name: "Root", Email: "root@shop.test", Role: domain.RoleAdmin},
	)

	ann, err := repo.GetByLogin(" ann@shop.test ")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if ann.Name != "Ann" || ann.ID == 0 {
		t.Fatalf("unexpected user: %+v", ann)
	}

	admins, err := repo.ListByRole(domain.RoleAdmin)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(admins) != 2 || admins[0].Email != "admin@shop.test" {
		t.Fatalf("unexpected admins: %+v", admins)
	}

	if _, err := repo.GetByLogin("ghost@shop.test"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := repo.Create(domain.User{Email: "ann@shop.test"}); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if _, err := repo.Create(domain.User{}); !errors.Is(err, domain.ErrLoginRequired) {
		t.Fatalf("expected ErrLoginRequired, got %v", err)
	}
}

func TestFeedbackRepository_NewestFirstWithLimit(t *testing.T) {
	repo := memory.NewFeedbackRepository()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 7; i++ {
		if _, err := repo.CreateFeedback(domain.Feedback{OrderID: 1, Rate: 5, Text: "ok", CreatedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("create feedback failed: %v", err)
		}
	}
	_, _ = repo.CreateFeedback(domain.Feedback{OrderID: 2, Rate: 1, Text: "other order"})

	last, err := repo.ListFeedback(1, domain.LastEntriesLimit)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(last) != 5 || last[0].ID != 7 || last[4].ID != 3 {
		t.Fatalf("expected last five newest first, got %+v", last)
	}

	all, _ := repo.ListFeedback(1, 0)
	if len(all) != 7 {
		t.Fatalf("expected 7 feedback entries, got %d", len(all))
	}
}

func TestFeedbackRepository_Comments(t *testing.T) {
	repo := memory.NewFeedbackRepository()

	first, _ := repo.CreateComment(domain.Comment{OrderID: 3, AuthorLogin: "ann@shop.test", Text: "where is it?"})
	second, _ := repo.CreateComment(domain.Comment{OrderID: 3, AuthorLogin: "admin@shop.test", Text: "shipped"})

	comments, err := repo.ListComments(3, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(comments) != 2 || comments[0].ID != second.ID || comments[1].ID != first.ID {
		t.Fatalf("unexpected comments: %+v", comments)
	}
	if comments[0].CreatedAt.IsZero() {
		t.Fatal("expected created_at to be filled")
	}

	empty, _ := repo.ListComments(4, 5)
	if len(empty) != 0 {
		t.Fatalf("expected no comments, got %d", len(empty))
	}
}

func TestTimelineRepository_ChronologicalOrder(t *testing.T) {
	repo := memory.NewTimelineRepository()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	_ = repo.Append(domain.TimelineEvent{OrderID: 1, Type: domain.TimelineOrderCanceled, Occurred: base.Add(time.Minute)})
	_ = repo.Append(domain.TimelineEvent{OrderID: 1, Type: domain.TimelineOrderPlaced, Occurred: base})

	events, err := repo.List(1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(events) != 2 || events[0].Type != domain.TimelineOrderPlaced {
		t.Fatalf("unexpected timeline: %+v", events)
	}
}
