package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
)

type feedbackRepository struct {
	db *sql.DB
}

// NewFeedbackRepository создаёт PostgreSQL-реализацию FeedbackRepository.
func NewFeedbackRepository(store *Store) domain.FeedbackRepository {
	return &feedbackRepository{db: store.DB()}
}

func (r *feedbackRepository) CreateFeedback(feedback domain.Feedback) (domain.Feedback, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO feedback (order_id, author_login, rate, text, created_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, feedback.OrderID, feedback.AuthorLogin, feedback.Rate, feedback.Text, feedback.CreatedAt).Scan(&feedback.ID)
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("insert feedback: %w", err)
	}
	return feedback, nil
}

func (r *feedbackRepository) ListFeedback(orderID int64, limit int) ([]domain.Feedback, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, author_login, rate, text, created_at
		FROM feedback
		WHERE order_id = $1
		ORDER BY id DESC
		LIMIT NULLIF($2, 0)
	`, orderID, max(limit, 0))
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Feedback, 0)
	for rows.Next() {
		var f domain.Feedback
		if err := rows.Scan(&f.ID, &f.OrderID, &f.AuthorLogin, &f.Rate, &f.Text, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		f.CreatedAt = f.CreatedAt.UTC()
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback: %w", err)
	}
	return items, nil
}

func (r *feedbackRepository) CreateComment(comment domain.Comment) (domain.Comment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO comments (order_id, author_login, text, created_at)
		VALUES ($1,$2,$3,$4)
		RETURNING id
	`, comment.OrderID, comment.AuthorLogin, comment.Text, comment.CreatedAt).Scan(&comment.ID)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return comment, nil
}

func (r *feedbackRepository) ListComments(orderID int64, limit int) ([]domain.Comment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, author_login, text, created_at
		FROM comments
		WHERE order_id = $1
		ORDER BY id DESC
		LIMIT NULLIF($2, 0)
	`, orderID, max(limit, 0))
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Comment, 0)
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.OrderID, &c.AuthorLogin, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.CreatedAt = c.CreatedAt.UTC()
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

var _ domain.FeedbackRepository = (*feedbackRepository)(nil)
