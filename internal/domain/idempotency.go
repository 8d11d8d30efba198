package domain

import (
	"fmt"
	"strings"
	"time"
)

// MaxIdempotencyKeyLength ограничивает длину заголовка Idempotency-Key.
const MaxIdempotencyKeyLength = 255

// IdempotencyStatus описывает жизненный цикл ключа идемпотентности.
type IdempotencyStatus string

const (
	// IdempotencyStatusProcessing — ключ занят, операция ещё не записала ответ.
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	// IdempotencyStatusDone — операция завершена, ответ сохранён.
	IdempotencyStatusDone IdempotencyStatus = "done"
)

// Операции, защищённые ключом идемпотентности.
const (
	IdempotencyOperationCreateOrder = "create_order"
	IdempotencyOperationPayOrder    = "pay_order"
)

var (
	// ErrIdempotencyHashMismatch — ключ уже использован с другим телом запроса.
	ErrIdempotencyHashMismatch = fmt.Errorf("%w: idempotency key is already used with a different request", ErrAlreadyExists)
	// ErrIdempotencyInProgress — запрос с тем же ключом ещё не завершён.
	ErrIdempotencyInProgress = fmt.Errorf("%w: request with the same idempotency key is still processing", ErrInvalidState)
)

// IdempotencyRecord хранит ключ, хэш запроса и сохранённый ответ.
type IdempotencyRecord struct {
	Key         string
	Operation   string
	RequestHash string
	Response    []byte
	Status      IdempotencyStatus
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone:
		return true
	default:
		return false
	}
}

// Expired сообщает, истёк ли срок жизни записи к моменту now.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// NormalizeIdempotencyKey обрезает пробелы и проверяет длину ключа.
func NormalizeIdempotencyKey(raw string) (string, error) {
	key := strings.TrimSpace(raw)
	if key == "" {
		return "", Validationf("idempotency key is required")
	}
	if len(key) > MaxIdempotencyKeyLength {
		return "", Validationf("idempotency key is longer than %d bytes", MaxIdempotencyKeyLength)
	}
	return key, nil
}
