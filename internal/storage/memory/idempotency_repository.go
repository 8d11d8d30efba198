package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

type idempotencyRepository struct {
	v view
}

func (r *idempotencyRepository) Claim(_ context.Context, rec domain.IdempotencyRecord) (domain.IdempotencyRecord, bool, error) {
	key, err := domain.NormalizeIdempotencyKey(rec.Key)
	if err != nil {
		return domain.IdempotencyRecord{}, false, err
	}

	var (
		result  domain.IdempotencyRecord
		claimed bool
	)
	err = r.v.write(func(st *state) error {
		now := r.v.now()
		if existing, ok := st.idem[key]; ok && !existing.Expired(now) {
			result = cloneIdempotencyRecord(existing)
			return nil
		}

		rec.Key = key
		rec.Status = domain.IdempotencyStatusProcessing
		rec.Response = nil
		rec.CreatedAt = now
		rec.UpdatedAt = now
		st.idem[key] = cloneIdempotencyRecord(rec)
		result, claimed = cloneIdempotencyRecord(rec), true
		return nil
	})
	return result, claimed, err
}

func (r *idempotencyRepository) Complete(_ context.Context, key string, response []byte) error {
	return r.v.write(func(st *state) error {
		rec, ok := st.idem[key]
		if !ok {
			return domain.NotFoundf("idempotency key %q", key)
		}
		rec.Status = domain.IdempotencyStatusDone
		rec.Response = append([]byte(nil), response...)
		rec.UpdatedAt = r.v.now()
		st.idem[key] = rec
		return nil
	})
}

func (r *idempotencyRepository) Get(_ context.Context, key string) (domain.IdempotencyRecord, error) {
	var found domain.IdempotencyRecord
	err := r.v.read(func(st *state) error {
		rec, ok := st.idem[key]
		if !ok {
			return domain.NotFoundf("idempotency key %q", key)
		}
		found = cloneIdempotencyRecord(rec)
		return nil
	})
	return found, err
}

// DeleteExpired удаляет записи в порядке истечения срока.
func (r *idempotencyRepository) DeleteExpired(_ context.Context, before time.Time, limit int) (int, error) {
	removed := 0
	err := r.v.write(func(st *state) error {
		expired := make([]domain.IdempotencyRecord, 0)
		for _, rec := range st.idem {
			if !rec.ExpiresAt.After(before) {
				expired = append(expired, rec)
			}
		}
		sort.Slice(expired, func(i, j int) bool { return expired[i].ExpiresAt.Before(expired[j].ExpiresAt) })
		for _, rec := range applyLimit(expired, limit) {
			delete(st.idem, rec.Key)
			removed++
		}
		return nil
	})
	return removed, err
}

func cloneIdempotencyRecord(src domain.IdempotencyRecord) domain.IdempotencyRecord {
	dst := src
	dst.Response = append([]byte(nil), src.Response...)
	return dst
}

var _ domain.IdempotencyRepository = (*idempotencyRepository)(nil)
