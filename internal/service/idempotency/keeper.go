// Package idempotency защищает создание заказа и оплату от повторной обработки
// одного и того же запроса.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// DefaultTTL — срок хранения ключа по умолчанию.
const DefaultTTL = 24 * time.Hour

// Keeper занимает ключи и сохраняет ответы внутри транзакции операции:
// ключ, бизнес-изменения и ответ фиксируются одним COMMIT.
type Keeper struct {
	ttl time.Duration
	now func() time.Time
}

// NewKeeper создаёт Keeper. ttl <= 0 заменяется на DefaultTTL, nil now — на time.Now().UTC().
func NewKeeper(ttl time.Duration, now func() time.Time) *Keeper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Keeper{ttl: ttl, now: now}
}

// TTL возвращает срок хранения ключа.
func (k *Keeper) TTL() time.Duration {
	return k.ttl
}

// Claim — результат Begin. При Replayed операцию выполнять не нужно,
// а Response содержит сохранённый ответ первого запроса.
type Claim struct {
	Key      string
	Replayed bool
	Response []byte
}

// Begin занимает ключ в транзакции repos. Ключ с другим телом запроса даёт
// domain.ErrIdempotencyHashMismatch, незавершённый — domain.ErrIdempotencyInProgress.
func (k *Keeper) Begin(ctx context.Context, repos domain.Repositories, key, operation string, request any) (Claim, error) {
	key, err := domain.NormalizeIdempotencyKey(key)
	if err != nil {
		return Claim{}, err
	}
	hash, err := RequestHash(operation, request)
	if err != nil {
		return Claim{}, err
	}

	rec, claimed, err := repos.Idempotency.Claim(ctx, domain.IdempotencyRecord{
		Key:         key,
		Operation:   operation,
		RequestHash: hash,
		ExpiresAt:   k.now().Add(k.ttl),
	})
	if err != nil {
		return Claim{}, err
	}
	if claimed {
		return Claim{Key: key}, nil
	}

	switch {
	case rec.Operation != operation || rec.RequestHash != hash:
		return Claim{}, domain.ErrIdempotencyHashMismatch
	case rec.Status != domain.IdempotencyStatusDone:
		return Claim{}, domain.ErrIdempotencyInProgress
	}
	return Claim{Key: key, Replayed: true, Response: rec.Response}, nil
}

// Finish сохраняет ответ под ключом claim в той же транзакции.
func (k *Keeper) Finish(ctx context.Context, repos domain.Repositories, claim Claim, response any) error {
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("encode idempotent response: %w", err)
	}
	return repos.Idempotency.Complete(ctx, claim.Key, data)
}

// Decode восстанавливает сохранённый ответ.
func Decode[T any](claim Claim) (T, error) {
	var v T
	if len(claim.Response) == 0 {
		return v, fmt.Errorf("%w: idempotency key %q has no stored response", domain.ErrStoreIntegrity, claim.Key)
	}
	if err := json.Unmarshal(claim.Response, &v); err != nil {
		return v, fmt.Errorf("%w: decode stored response for %q: %v", domain.ErrStoreIntegrity, claim.Key, err)
	}
	return v, nil
}

// RequestHash — sha256 от имени операции и JSON тела запроса.
func RequestHash(operation string, request any) (string, error) {
	data, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("encode idempotent request: %w", err)
	}

	payload := make([]byte, 0, len(operation)+1+len(data))
	payload = append(payload, operation...)
	payload = append(payload, ':')
	payload = append(payload, data...)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
