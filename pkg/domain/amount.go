package domain

import (
	"math"
	"strconv"

	dErrors "testament/pkg/domain-errors"
)

// Amount is a quantity of currency in its smallest indivisible unit.
// Invariant: never negative. Values read back from storage go through NewAmount;
// arithmetic goes through Add/Sub which refuse to leave the valid range.
type Amount int64

// Zero is the empty amount.
const Zero Amount = 0

// Stable reasons for amount validation failures.
const (
	ReasonNegativeAmount = "Testament: amount must not be negative"
	ReasonAmountOverflow = "Testament: amount overflow"
)

// NewAmount validates a raw integer amount.
func NewAmount(v int64) (Amount, error) {
	if v < 0 {
		return Zero, dErrors.New(dErrors.CodeValidation, ReasonNegativeAmount)
	}
	return Amount(v), nil
}

// Add returns a+b, failing instead of wrapping on overflow.
func (a Amount) Add(b Amount) (Amount, error) {
	if b > 0 && a > math.MaxInt64-b {
		return Zero, dErrors.New(dErrors.CodeValidation, ReasonAmountOverflow)
	}
	return a + b, nil
}

// Sub returns a-b, failing when the result would be negative.
func (a Amount) Sub(b Amount) (Amount, error) {
	if b > a {
		return Zero, dErrors.New(dErrors.CodeInvalidState, "insufficient balance")
	}
	return a - b, nil
}

func (a Amount) IsZero() bool   { return a == 0 }
func (a Amount) Int64() int64   { return int64(a) }
func (a Amount) String() string { return strconv.FormatInt(int64(a), 10) }
