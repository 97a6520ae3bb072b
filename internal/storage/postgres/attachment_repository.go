package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
)

const attachmentColumns = `id, order_id, name, content, uploaded_by, created_at`

type attachmentRepository struct {
	db *sql.DB
}

// NewAttachmentRepository создаёт PostgreSQL-реализацию AttachmentRepository.
// Содержимое файлов хранится в колонке bytea.
func NewAttachmentRepository(store *Store) domain.AttachmentRepository {
	return &attachmentRepository{db: store.DB()}
}

func (r *attachmentRepository) Create(attachment domain.Attachment) (domain.Attachment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO attachments (order_id, name, content, uploaded_by, created_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, attachment.OrderID, attachment.Name, attachment.Content, attachment.UploadedBy, attachment.CreatedAt).Scan(&attachment.ID)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("insert attachment: %w", err)
	}
	return attachment.Clone(), nil
}

func (r *attachmentRepository) Get(orderID, id int64) (domain.Attachment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	attachment, err := scanAttachment(r.db.QueryRowContext(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE order_id = $1 AND id = $2`, orderID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attachment{}, domain.ErrAttachmentNotFound
	}
	return attachment, err
}

func (r *attachmentRepository) ListByOrder(orderID int64) ([]domain.Attachment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	return collectRows(rows, "attachments", scanAttachment)
}

func (r *attachmentRepository) DeleteByName(orderID int64, name string) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM attachments WHERE order_id = $1 AND name = $2`, orderID, name)
	if err != nil {
		return 0, fmt.Errorf("delete attachment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return 0, domain.ErrAttachmentNotFound
	}
	return int(affected), nil
}

func scanAttachment(row rowScanner) (domain.Attachment, error) {
	var a domain.Attachment
	if err := row.Scan(&a.ID, &a.OrderID, &a.Name, &a.Content, &a.UploadedBy, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Attachment{}, err
		}
		return domain.Attachment{}, fmt.Errorf("scan attachment: %w", err)
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

var _ domain.AttachmentRepository = (*attachmentRepository)(nil)
