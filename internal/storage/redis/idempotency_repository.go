package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
)

const (
	opTimeout = 2 * time.Second

	// KeyPrefix отделяет ключи идемпотентности от остальных данных в Redis.
	KeyPrefix = "eshop:idempotency:"
)

type idempotencyRepository struct {
	rdb    goredis.UniversalClient
	prefix string
}

// NewClient открывает клиента Redis и проверяет соединение.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("redis addr is required")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  opTimeout,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// NewIdempotencyRepository создаёт реализацию IdempotencyRepository поверх Redis.
// Срок жизни ключа совпадает с TTL записи, поэтому просроченные ключи
// удаляет сам Redis.
func NewIdempotencyRepository(rdb goredis.UniversalClient) domain.IdempotencyRepository {
	return &idempotencyRepository{rdb: rdb, prefix: KeyPrefix}
}

type storedRecord struct {
	Key          string                   `json:"key"`
	RequestHash  string                   `json:"request_hash"`
	ResponseBody []byte                   `json:"response_body,omitempty"`
	ResponseCode int                      `json:"response_code"`
	Status       domain.IdempotencyStatus `json:"status"`
	TTLAt        time.Time                `json:"ttl_at"`
	CreatedAt    time.Time                `json:"created_at"`
	UpdatedAt    time.Time                `json:"updated_at"`
}

func (r *idempotencyRepository) CreateProcessing(key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	now := time.Now().UTC()
	claim, err := domain.NewIdempotencyClaim(key, requestHash, ttlAt, now)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	data, err := encodeRecord(claim)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	created, err := r.rdb.SetNX(ctx, r.prefix+claim.Key, data, max(claim.TTLAt.Sub(now), time.Millisecond)).Result()
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("create idempotency key: %w", err)
	}
	if created {
		return claim, nil
	}

	existing, err := r.Get(claim.Key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	return existing, existing.Conflict(claim.RequestHash)
}

func (r *idempotencyRepository) Get(key string) (domain.IdempotencyRecord, error) {
	key, err := domain.NormalizeIdempotencyKey(key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	data, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
		}
		return domain.IdempotencyRecord{}, fmt.Errorf("get idempotency key: %w", err)
	}
	return decodeRecord(data)
}

func (r *idempotencyRepository) MarkDone(key string, responseBody []byte, responseCode int) error {
	return r.markStatus(key, domain.IdempotencyStatusDone, responseBody, responseCode)
}

func (r *idempotencyRepository) MarkFailed(key string, responseBody []byte, responseCode int) error {
	return r.markStatus(key, domain.IdempotencyStatusFailed, responseBody, responseCode)
}

// DeleteExpired ничего не удаляет: ключи истекают в Redis сами.
func (r *idempotencyRepository) DeleteExpired(time.Time, int) (int, error) {
	return 0, nil
}

func (r *idempotencyRepository) markStatus(key string, status domain.IdempotencyStatus, responseBody []byte, responseCode int) error {
	key, err := domain.NormalizeIdempotencyKey(key)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	redisKey := r.prefix + key
	return r.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		data, err := tx.Get(ctx, redisKey).Bytes()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				return domain.ErrIdempotencyKeyNotFound
			}
			return fmt.Errorf("load idempotency key: %w", err)
		}

		record, err := decodeRecord(data)
		if err != nil {
			return err
		}
		updated, err := encodeRecord(record.Complete(status, responseBody, responseCode, time.Now()))
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, redisKey, updated, goredis.KeepTTL)
			return nil
		})
		if err != nil {
			return fmt.Errorf("update idempotency key: %w", err)
		}
		return nil
	}, redisKey)
}

func encodeRecord(record domain.IdempotencyRecord) ([]byte, error) {
	data, err := json.Marshal(storedRecord{
		Key:          record.Key,
		RequestHash:  record.RequestHash,
		ResponseBody: record.ResponseBody,
		ResponseCode: record.ResponseCode,
		Status:       record.Status,
		TTLAt:        record.TTLAt,
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal idempotency record: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (domain.IdempotencyRecord, error) {
	var stored storedRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("unmarshal idempotency record: %w", err)
	}
	if !stored.Status.Valid() {
		return domain.IdempotencyRecord{}, fmt.Errorf("unknown idempotency status %q", stored.Status)
	}
	return domain.IdempotencyRecord{
		Key:          stored.Key,
		RequestHash:  stored.RequestHash,
		ResponseBody: stored.ResponseBody,
		ResponseCode: stored.ResponseCode,
		Status:       stored.Status,
		TTLAt:        stored.TTLAt.UTC(),
		CreatedAt:    stored.CreatedAt.UTC(),
		UpdatedAt:    stored.UpdatedAt.UTC(),
	}, nil
}

var _ domain.IdempotencyRepository = (*idempotencyRepository)(nil)
