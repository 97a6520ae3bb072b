package redis

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
)

func openRedisRepositoryForTest(t *testing.T) domain.IdempotencyRepository {
	t.Helper()

	addr := strings.TrimSpace(os.Getenv("ESHOP_REDIS_TEST_ADDR"))
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb, err := NewClient(context.Background(), addr, "", 0)
	if err != nil {
		t.Skipf("skip redis integration test: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	return NewIdempotencyRepository(rdb)
}

func TestIdempotencyRepository_RedisFlow(t *testing.T) {
	repo := openRedisRepositoryForTest(t)
	key := "test-" + uuid.NewString()

	record, err := repo.CreateProcessing(key, "hash-1", time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusProcessing, record.Status)

	_, err = repo.CreateProcessing(key, "hash-1", time.Now().Add(time.Minute))
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)

	_, err = repo.CreateProcessing(key, "hash-2", time.Now().Add(time.Minute))
	require.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)

	require.NoError(t, repo.MarkDone(key, []byte(`{"id":1}`), 0))

	got, err := repo.Get(key)
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusDone, got.Status)
	require.Equal(t, []byte(`{"id":1}`), got.ResponseBody)

	require.ErrorIs(t, repo.MarkFailed("missing-"+uuid.NewString(), nil, 13), domain.ErrIdempotencyKeyNotFound)
}

func TestIdempotencyRepository_RedisKeyExpires(t *testing.T) {
	repo := openRedisRepositoryForTest(t)
	key := "test-" + uuid.NewString()

	_, err := repo.CreateProcessing(key, "hash-1", time.Now().Add(50*time.Millisecond))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := repo.Get(key)
		return errors.Is(err, domain.ErrIdempotencyKeyNotFound)
	}, 2*time.Second, 20*time.Millisecond)

	_, err = repo.CreateProcessing(key, "hash-2", time.Now().Add(time.Minute))
	require.NoError(t, err)
}

func TestIdempotencyRepository_RedisValidation(t *testing.T) {
	repo := NewIdempotencyRepository(nil)

	_, err := repo.CreateProcessing(" ", "hash", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyRequired)
	_, err = repo.CreateProcessing("key", "", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyRequestHashRequired)
	_, err = repo.Get("")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyRequired)

	removed, err := repo.DeleteExpired(time.Now(), 10)
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestDecodeRecordRejectsUnknownStatus(t *testing.T) {
	_, err := decodeRecord([]byte(`{"key":"k","status":"lost"}`))
	require.Error(t, err)
}
