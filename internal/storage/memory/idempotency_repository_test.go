package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/storage/memory"
)

func TestIdempotencyRepository_ClaimCompleteGet(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	repo := memory.New(memory.WithClock(func() time.Time { return now })).Repositories().Idempotency

	rec, claimed, err := repo.Claim(ctx, domain.IdempotencyRecord{
		Key: " k1 ", Operation: domain.IdempotencyOperationPayOrder, RequestHash: "h1", ExpiresAt: now.Add(time.Hour),
	})
	require.NoError(t, err)
	require.True(t, claimed)
	require.Equal(t, "k1", rec.Key)
	require.Equal(t, domain.IdempotencyStatusProcessing, rec.Status)

	rec, claimed, err = repo.Claim(ctx, domain.IdempotencyRecord{
		Key: "k1", Operation: domain.IdempotencyOperationPayOrder, RequestHash: "h2", ExpiresAt: now.Add(time.Hour),
	})
	require.NoError(t, err)
	require.False(t, claimed)
	require.Equal(t, "h1", rec.RequestHash)

	require.NoError(t, repo.Complete(ctx, "k1", []byte(`{"id":1}`)))
	got, err := repo.Get(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusDone, got.Status)
	require.JSONEq(t, `{"id":1}`, string(got.Response))

	// ответ не разделяет память с хранилищем
	got.Response[0] = 'x'
	again, err := repo.Get(ctx, "k1")
	require.NoError(t, err)
	require.JSONEq(t, `{"id":1}`, string(again.Response))

	require.ErrorIs(t, repo.Complete(ctx, "missing", nil), domain.ErrNotFound)
	_, _, err = repo.Claim(ctx, domain.IdempotencyRecord{Key: ""})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestIdempotencyRepository_DeleteExpiredInOrder(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	repo := memory.New(memory.WithClock(func() time.Time { return now })).Repositories().Idempotency

	for key, expires := range map[string]time.Time{
		"old":    now.Add(-2 * time.Hour),
		"older":  now.Add(-3 * time.Hour),
		"recent": now.Add(-time.Minute),
		"alive":  now.Add(time.Hour),
	} {
		_, claimed, err := repo.Claim(ctx, domain.IdempotencyRecord{Key: key, Operation: "op", RequestHash: "h", ExpiresAt: expires})
		require.NoError(t, err)
		require.True(t, claimed)
	}

	deleted, err := repo.DeleteExpired(ctx, now, 2)
	require.NoError(t, err)
	require.Equal(t, 2, deleted)

	_, err = repo.Get(ctx, "older")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.Get(ctx, "old")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.Get(ctx, "recent")
	require.NoError(t, err)

	deleted, err = repo.DeleteExpired(ctx, now, 0)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)
	_, err = repo.Get(ctx, "alive")
	require.NoError(t, err)
}
