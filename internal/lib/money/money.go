// Package money реализует правила фиксированной точности для USDT и BIO.
//
// Обе величины хранятся с шестью знаками после запятой. Стоимость покупки
// округляется вверх до шестого знака, поэтому положительное количество
// никогда не стоит ноль. Округление до центов применяется только при отображении.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale количество знаков после запятой для сумм и количества токенов.
const Scale int32 = 6

// DisplayScale количество знаков при отображении сумм.
const DisplayScale int32 = 2

var (
	// ErrEmptyAmount пустая строка вместо количества.
	ErrEmptyAmount = errors.New("amount is empty")
	// ErrMalformedAmount строка не является десятичным числом.
	ErrMalformedAmount = errors.New("amount is not a decimal number")
	// ErrNonPositiveAmount количество меньше или равно нулю.
	ErrNonPositiveAmount = errors.New("amount must be positive")
	// ErrTooPrecise больше шести знаков после запятой.
	ErrTooPrecise = errors.New("amount has more than 6 fractional digits")
)

// ParseAmount разбирает пользовательский ввод количества токенов.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrEmptyAmount
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrMalformedAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrNonPositiveAmount
	}
	if !d.Equal(d.Truncate(Scale)) {
		return decimal.Zero, ErrTooPrecise
	}
	return d, nil
}

// Cost считает стоимость amount единиц по цене price с округлением вверх.
func Cost(amount, price decimal.Decimal) decimal.Decimal {
	return amount.Mul(price).RoundCeil(Scale)
}

// Affordable возвращает максимальное количество единиц, которое можно оплатить балансом.
func Affordable(balance, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() || !balance.IsPositive() {
		return decimal.Zero
	}
	q, _ := balance.QuoRem(price, Scale)
	return q
}

// Display форматирует сумму для показа пользователю.
func Display(d decimal.Decimal) string {
	return d.StringFixed(DisplayScale)
}
