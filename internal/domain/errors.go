package domain

import (
	"errors"
	"fmt"
)

// Виды бизнес-ошибок. Конкретные ошибки оборачивают один из них через %w,
// поэтому вызывающий код различает их через errors.Is.
var (
	// ErrValidation — некорректный, пустой или вне допустимого диапазона ввод.
	ErrValidation = errors.New("validation error")
	// ErrNotFound — сущность с указанным идентификатором/email отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушена уникальность (SKU или email).
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidState — операция не допустима в текущем статусе заказа/платежа.
	ErrInvalidState = errors.New("invalid state")
	// ErrInsufficientStock — запрошенное количество превышает остаток.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrDeleteBlocked — удаление запрещено бизнес-правилом или ссылками.
	ErrDeleteBlocked = errors.New("delete blocked")
	// ErrStoreIntegrity — строка из хранилища не проходит проверку типов/инвариантов.
	ErrStoreIntegrity = errors.New("store integrity violation")
)

// Kind — стабильный код вида ошибки для CLI, HTTP и метрик.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindNotFound          Kind = "not_found"
	KindAlreadyExists     Kind = "already_exists"
	KindInvalidState      Kind = "invalid_state"
	KindInsufficientStock Kind = "insufficient_stock"
	KindDeleteBlocked     Kind = "delete_blocked"
	KindStoreIntegrity    Kind = "store_integrity"
	KindInternal          Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrValidation, KindValidation},
	{ErrNotFound, KindNotFound},
	{ErrAlreadyExists, KindAlreadyExists},
	{ErrInvalidState, KindInvalidState},
	{ErrInsufficientStock, KindInsufficientStock},
	{ErrDeleteBlocked, KindDeleteBlocked},
	{ErrStoreIntegrity, KindStoreIntegrity},
}

// KindOf возвращает вид ошибки. Ошибки инфраструктуры считаются internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// IsBusiness сообщает, относится ли ошибка к бизнес-таксономии (а не к сбою хранилища).
func IsBusiness(err error) bool {
	switch KindOf(err) {
	case "", KindInternal, KindStoreIntegrity:
		return false
	default:
		return true
	}
}

// Validationf создаёт ошибку валидации с пояснением.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf создаёт ошибку отсутствия сущности с пояснением.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InvalidStatef создаёт ошибку недопустимого статуса с пояснением.
func InvalidStatef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}
