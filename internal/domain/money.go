package domain

import (
	"encoding/json"
	"math"
	"math/bits"
	"strings"

	"github.com/shopspring/decimal"
)

const moneyScale = 2

var maxMoney = decimal.NewFromInt(math.MaxInt64)

// Money хранит сумму в минимальных денежных единицах (две цифры после запятой).
type Money int64

// ParseMoney разбирает десятичную строку ("100", "99.90") в Money.
// Больше двух знаков после запятой считается ошибкой валидации.
func ParseMoney(raw string) (Money, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, Validationf("amount is required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, Validationf("invalid amount %q", raw)
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal переводит decimal в минимальные единицы без округления.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	minor := d.Shift(moneyScale)
	if !minor.IsInteger() {
		return 0, Validationf("amount %s has more than %d decimal places", d.String(), moneyScale)
	}
	if minor.Abs().GreaterThan(maxMoney) {
		return 0, Validationf("amount %s is out of range", d.String())
	}
	return Money(minor.IntPart()), nil
}

// Decimal возвращает сумму в основных единицах.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -moneyScale)
}

// Mul умножает цену за единицу на количество. Переполнение int64 даёт ErrValidation.
func (m Money) Mul(qty int64) (Money, error) {
	if m < 0 || qty < 0 {
		return 0, Validationf("cannot multiply %s by %d", m, qty)
	}
	hi, lo := bits.Mul64(uint64(m), uint64(qty))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, Validationf("amount %s x %d is too large", m, qty)
	}
	return Money(lo), nil
}

// Add складывает суммы с проверкой переполнения.
func (m Money) Add(other Money) (Money, error) {
	sum, err := AddQuantity(int64(m), int64(other))
	if err != nil {
		return 0, Validationf("amount %s + %s is too large", m, other)
	}
	return Money(sum), nil
}

// AddQuantity складывает количества (или остаток и дельту) без переполнения int64.
func AddQuantity(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, Validationf("quantity %d + %d is out of range", a, b)
	}
	return sum, nil
}

func (m Money) String() string {
	return m.Decimal().StringFixed(moneyScale)
}

// MarshalJSON кодирует сумму строкой с фиксированной точностью ("100.00").
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON принимает как строку, так и JSON-число.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = s
	}
	parsed, err := ParseMoney(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
