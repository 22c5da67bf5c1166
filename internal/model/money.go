package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const minorUnitExp = 2

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// ErrInvalidAmount возвращается для неположительных сумм и сумм с дробными минимальными единицами.
var ErrInvalidAmount = errors.New("invalid amount")

// ToMinorUnits переводит десятичную сумму в минимальные единицы валюты.
func ToMinorUnits(d decimal.Decimal) (int64, error) {
	if !d.IsPositive() {
		return 0, fmt.Errorf("%w: %s must be positive", ErrInvalidAmount, d)
	}
	shifted := d.Shift(minorUnitExp)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, d, minorUnitExp)
	}
	if shifted.GreaterThan(maxMinorUnits) {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidAmount, d)
	}
	return shifted.IntPart(), nil
}

// FromMinorUnits переводит сумму в минимальных единицах в десятичную.
func FromMinorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -minorUnitExp)
}

// FormatMinorUnits форматирует сумму с двумя знаками после запятой.
func FormatMinorUnits(v int64) string {
	return FromMinorUnits(v).StringFixed(minorUnitExp)
}
