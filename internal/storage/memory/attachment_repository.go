package memory

import (
	"slices"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
)

// AttachmentRepository хранит файлы заказов в памяти в порядке добавления.
type AttachmentRepository struct {
	mu     sync.RWMutex
	nextID int64
	files  map[int64][]domain.Attachment
}

// NewAttachmentRepository создаёт in-memory реализацию AttachmentRepository.
func NewAttachmentRepository() *AttachmentRepository {
	return &AttachmentRepository{files: make(map[int64][]domain.Attachment)}
}

func (r *AttachmentRepository) Create(attachment domain.Attachment) (domain.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	attachment.ID = r.nextID
	if attachment.CreatedAt.IsZero() {
		attachment.CreatedAt = time.Now().UTC()
	}
	attachment = attachment.Clone()
	r.files[attachment.OrderID] = append(r.files[attachment.OrderID], attachment)
	return attachment.Clone(), nil
}

func (r *AttachmentRepository) Get(orderID, id int64) (domain.Attachment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := slices.IndexFunc(r.files[orderID], func(a domain.Attachment) bool { return a.ID == id })
	if idx < 0 {
		return domain.Attachment{}, domain.ErrAttachmentNotFound
	}
	return r.files[orderID][idx].Clone(), nil
}

func (r *AttachmentRepository) ListByOrder(orderID int64) ([]domain.Attachment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Attachment, 0, len(r.files[orderID]))
	for _, a := range r.files[orderID] {
		out = append(out, a.Clone())
	}
	return out, nil
}

func (r *AttachmentRepository) DeleteByName(orderID int64, name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	files := r.files[orderID]
	kept := slices.DeleteFunc(files, func(a domain.Attachment) bool { return a.Name == name })
	removed := len(files) - len(kept)
	if removed == 0 {
		return 0, domain.ErrAttachmentNotFound
	}
	if len(kept) == 0 {
		delete(r.files, orderID)
	} else {
		r.files[orderID] = kept
	}
	return removed, nil
}

var _ domain.AttachmentRepository = (*AttachmentRepository)(nil)
