package memory

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
)

// IdempotencyRepository хранит ключи идемпотентности в памяти процесса.
// Используется, когда не настроены ни Redis, ни PostgreSQL.
type IdempotencyRepository struct {
	mu   sync.Mutex
	now  func() time.Time
	keys map[string]domain.IdempotencyRecord
}

// NewIdempotencyRepository создаёт пустое хранилище ключей.
func NewIdempotencyRepository() *IdempotencyRepository {
	return &IdempotencyRepository{
		now:  time.Now,
		keys: make(map[string]domain.IdempotencyRecord),
	}
}

func (r *IdempotencyRepository) CreateProcessing(key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	now := r.now().UTC()
	claim, err := domain.NewIdempotencyClaim(key, requestHash, ttlAt, now)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.keys[claim.Key]; ok && !existing.Expired(now) {
		return existing.Clone(), existing.Conflict(claim.RequestHash)
	}
	r.keys[claim.Key] = claim
	return claim.Clone(), nil
}

func (r *IdempotencyRepository) Get(key string) (domain.IdempotencyRecord, error) {
	key, err := domain.NormalizeIdempotencyKey(key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.keys[key]
	if !ok {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	return record.Clone(), nil
}

func (r *IdempotencyRepository) MarkDone(key string, body []byte, code int) error {
	return r.complete(key, domain.IdempotencyStatusDone, body, code)
}

func (r *IdempotencyRepository) MarkFailed(key string, body []byte, code int) error {
	return r.complete(key, domain.IdempotencyStatusFailed, body, code)
}

// DeleteExpired удаляет не больше limit истёкших ключей; limit <= 0 снимает ограничение.
func (r *IdempotencyRepository) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = r.now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, record := range r.keys {
		if limit > 0 && removed == limit {
			break
		}
		if record.Expired(before) {
			delete(r.keys, key)
			removed++
		}
	}
	return removed, nil
}

func (r *IdempotencyRepository) complete(key string, status domain.IdempotencyStatus, body []byte, code int) error {
	key, err := domain.NormalizeIdempotencyKey(key)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.keys[key]
	if !ok {
		return domain.ErrIdempotencyKeyNotFound
	}
	r.keys[key] = record.Complete(status, body, code, r.now())
	return nil
}

var _ domain.IdempotencyRepository = (*IdempotencyRepository)(nil)
