package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

const idempotencyColumns = `key, operation, request_hash, response_body, status, expires_at, created_at, updated_at`

type idempotencyRepository struct {
	db dbtx
}

// Claim вставляет ключ через INSERT ... ON CONFLICT. Параллельная транзакция с тем же
// ключом ждёт фиксации первой и затем читает её запись вместо повторной вставки.
func (r *idempotencyRepository) Claim(ctx context.Context, rec domain.IdempotencyRecord) (domain.IdempotencyRecord, bool, error) {
	key, err := domain.NormalizeIdempotencyKey(rec.Key)
	if err != nil {
		return domain.IdempotencyRecord{}, false, err
	}

	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	claimed, err := scanIdempotencyRecord(r.db.QueryRowContext(ctx, `
		INSERT INTO idempotency_keys (key, operation, request_hash, response_body, status, expires_at)
		VALUES ($1, $2, $3, NULL, $4, $5)
		ON CONFLICT (key) DO UPDATE
		SET operation = EXCLUDED.operation,
		    request_hash = EXCLUDED.request_hash,
		    response_body = NULL,
		    status = EXCLUDED.status,
		    expires_at = EXCLUDED.expires_at,
		    created_at = NOW(),
		    updated_at = NOW()
		WHERE idempotency_keys.expires_at <= NOW()
		RETURNING `+idempotencyColumns,
		key, rec.Operation, rec.RequestHash, string(domain.IdempotencyStatusProcessing), rec.ExpiresAt,
	))
	switch {
	case err == nil:
		return claimed, true, nil
	case !errors.Is(err, sql.ErrNoRows):
		return domain.IdempotencyRecord{}, false, fmt.Errorf("claim idempotency key: %w", err)
	}

	existing, err := r.Get(ctx, key)
	if err != nil {
		return domain.IdempotencyRecord{}, false, err
	}
	return existing, false, nil
}

func (r *idempotencyRepository) Complete(ctx context.Context, key string, response []byte) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE idempotency_keys
		SET response_body = $2,
		    status = $3,
		    updated_at = NOW()
		WHERE key = $1
	`, key, response, string(domain.IdempotencyStatusDone))
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("idempotency rows affected: %w", err)
	}
	if affected == 0 {
		return domain.NotFoundf("idempotency key %q", key)
	}
	return nil
}

func (r *idempotencyRepository) Get(ctx context.Context, key string) (domain.IdempotencyRecord, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	rec, err := scanIdempotencyRecord(r.db.QueryRowContext(ctx,
		`SELECT `+idempotencyColumns+` FROM idempotency_keys WHERE key = $1`, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.IdempotencyRecord{}, domain.NotFoundf("idempotency key %q", key)
		}
		return domain.IdempotencyRecord{}, fmt.Errorf("select idempotency key: %w", err)
	}
	return rec, nil
}

func (r *idempotencyRepository) DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	var (
		res sql.Result
		err error
	)
	if limit > 0 {
		res, err = r.db.ExecContext(ctx, `
			DELETE FROM idempotency_keys
			WHERE key IN (
				SELECT key
				FROM idempotency_keys
				WHERE expires_at <= $1
				ORDER BY expires_at ASC
				LIMIT $2
			)
		`, before, limit)
	} else {
		res, err = r.db.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE expires_at <= $1`, before)
	}
	if err != nil {
		return 0, fmt.Errorf("delete expired idempotency keys: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("idempotency rows affected: %w", err)
	}
	return int(affected), nil
}

func scanIdempotencyRecord(row scanner) (domain.IdempotencyRecord, error) {
	var (
		rec    domain.IdempotencyRecord
		status string
	)
	if err := row.Scan(&rec.Key, &rec.Operation, &rec.RequestHash, &rec.Response, &status,
		&rec.ExpiresAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return domain.IdempotencyRecord{}, err
	}
	rec.Status = domain.IdempotencyStatus(status)
	if !rec.Status.Valid() {
		return domain.IdempotencyRecord{}, fmt.Errorf("%w: idempotency key %q has status %q", domain.ErrStoreIntegrity, rec.Key, status)
	}
	return rec, nil
}

var _ domain.IdempotencyRepository = (*idempotencyRepository)(nil)
