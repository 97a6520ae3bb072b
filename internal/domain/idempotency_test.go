package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIdempotencyStatus(t *testing.T) {
	require.True(t, IdempotencyStatusProcessing.Valid())
	require.False(t, IdempotencyStatusProcessing.Terminal())
	require.True(t, IdempotencyStatusDone.Terminal())
	require.True(t, IdempotencyStatusFailed.Terminal())
	require.False(t, IdempotencyStatus("broken").Valid())
}

func TestNewIdempotencyClaim(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	claim, err := NewIdempotencyClaim("  place-1 ", " hash ", time.Time{}, now)
	require.NoError(t, err)
	require.Equal(t, "place-1", claim.Key)
	require.Equal(t, "hash", claim.RequestHash)
	require.Equal(t, IdempotencyStatusProcessing, claim.Status)
	require.Equal(t, now.Add(DefaultIdempotencyTTL), claim.TTLAt)
	require.Equal(t, now, claim.CreatedAt)

	_, err = NewIdempotencyClaim(" ", "hash", now, now)
	require.ErrorIs(t, err, ErrIdempotencyKeyRequired)

	_, err = NewIdempotencyClaim("place-1", "", now, now)
	require.ErrorIs(t, err, ErrIdempotencyRequestHashRequired)
}

func TestIdempotencyRecordLifecycle(t *testing.T) {
	now := time.Now().UTC()
	claim, err := NewIdempotencyClaim("cancel-7", "hash-a", now.Add(time.Minute), now)
	require.NoError(t, err)

	require.False(t, claim.Expired(now))
	require.True(t, claim.Expired(now.Add(time.Minute)))

	require.ErrorIs(t, claim.Conflict("hash-a"), ErrIdempotencyKeyAlreadyExists)
	require.ErrorIs(t, claim.Conflict("hash-b"), ErrIdempotencyHashMismatch)

	body := []byte(`{"restored":[]}`)
	done := claim.Complete(IdempotencyStatusDone, body, 0, now.Add(time.Second))
	body[0] = 'x'
	require.Equal(t, IdempotencyStatusDone, done.Status)
	require.Equal(t, `{"restored":[]}`, string(done.ResponseBody))
	require.Equal(t, IdempotencyStatusProcessing, claim.Status)

	clone := done.Clone()
	clone.ResponseBody[0] = 'y'
	require.Equal(t, byte('{'), done.ResponseBody[0])
}
