package memory

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
)

// feedbackRepositoryInMemory хранит отзывы и комментарии в порядке поступления.
type feedbackRepositoryInMemory struct {
	mu           sync.RWMutex
	nextFeedback int64
	nextComment  int64
	feedback     map[int64][]domain.Feedback
	comments     map[int64][]domain.Comment
}

// NewFeedbackRepository создаёт in-memory реализацию FeedbackRepository.
func NewFeedbackRepository() domain.FeedbackRepository {
	return &feedbackRepositoryInMemory{
		feedback: make(map[int64][]domain.Feedback),
		comments: make(map[int64][]domain.Comment),
	}
}

func (r *feedbackRepositoryInMemory) CreateFeedback(feedback domain.Feedback) (domain.Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextFeedback++
	feedback.ID = r.nextFeedback
	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = time.Now().UTC()
	}
	r.feedback[feedback.OrderID] = append(r.feedback[feedback.OrderID], feedback)
	return feedback, nil
}

func (r *feedbackRepositoryInMemory) ListFeedback(orderID int64, limit int) ([]domain.Feedback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return newestFirst(r.feedback[orderID], limit), nil
}

func (r *feedbackRepositoryInMemory) CreateComment(comment domain.Comment) (domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextComment++
	comment.ID = r.nextComment
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	r.comments[comment.OrderID] = append(r.comments[comment.OrderID], comment)
	return comment, nil
}

func (r *feedbackRepositoryInMemory) ListComments(orderID int64, limit int) ([]domain.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return newestFirst(r.comments[orderID], limit), nil
}

// newestFirst копирует записи в обратном порядке вставки и обрезает до limit.
func newestFirst[T any](items []T, limit int) []T {
	n := len(items)
	if limit > 0 && n > limit {
		n = limit
	}
	result := make([]T, 0, n)
	for i := len(items) - 1; i >= 0 && len(result) < n; i-- {
		result = append(result, items[i])
	}
	return result
}

var _ domain.FeedbackRepository = (*feedbackRepositoryInMemory)(nil)
