// Package zatoshi implements exact conversion between decimal ZEC strings and
// integer zatoshi amounts, and overflow-checked summation.
//
// No floating point or decimal library is used anywhere in this package;
// every monetary value is a uint64 count of zatoshi.
package zatoshi

import (
	"math/bits"
	"strconv"
	"strings"

	"github.com/ginjaninja78/laminar/internal/errs"
)

const (
	// PerZEC is the number of zatoshi in one ZEC.
	PerZEC uint64 = 100_000_000

	// MaxSupply is the maximum number of zatoshi that can ever exist.
	MaxSupply uint64 = 21_000_000 * PerZEC

	// DefaultDustThreshold is the advisory dust threshold in zatoshi.
	DefaultDustThreshold uint64 = 10_000

	// Decimals is the number of fractional digits of one ZEC.
	Decimals = 8
)

// ParseZEC converts a decimal ZEC string such as "1.5" or ".00000001" into
// zatoshi. More than eight fractional digits is a precision-loss error.
func ParseZEC(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errs.New(errs.CodeMissingField, "amount is empty")
	}
	if s[0] == '-' || s[0] == '+' {
		return 0, errs.New(errs.CodeAmountOutOfRange, "amount %q must be a positive number without sign", s)
	}

	whole, frac, hasDot := strings.Cut(s, ".")
	if hasDot && strings.Contains(frac, ".") {
		return 0, errs.New(errs.CodeParseError, "amount %q contains more than one decimal point", s)
	}
	if whole == "" && frac == "" {
		return 0, errs.New(errs.CodeParseError, "amount %q has no digits", s)
	}
	if !allDigits(whole) || !allDigits(frac) {
		return 0, errs.New(errs.CodeParseError, "amount %q is not a decimal number", s)
	}
	if len(frac) > Decimals {
		return 0, errs.New(errs.CodeAmountPrecisionLoss, "amount %q has more than %d fractional digits", s, Decimals)
	}

	var wholeZEC uint64
	if whole != "" {
		trimmed := strings.TrimLeft(whole, "0")
		if len(trimmed) > 11 {
			return 0, errs.New(errs.CodeAmountOutOfRange, "amount %q exceeds maximum supply", s)
		}
		if trimmed != "" {
			v, err := strconv.ParseUint(trimmed, 10, 64)
			if err != nil {
				return 0, errs.New(errs.CodeAmountOutOfRange, "amount %q is out of range", s)
			}
			wholeZEC = v
		}
	}

	var fracZat uint64
	if frac != "" {
		padded := frac + strings.Repeat("0", Decimals-len(frac))
		v, err := strconv.ParseUint(padded, 10, 64)
		if err != nil {
			return 0, errs.New(errs.CodeParseError, "amount %q is not a decimal number", s)
		}
		fracZat = v
	}

	hi, lo := bits.Mul64(wholeZEC, PerZEC)
	if hi != 0 {
		return 0, errs.New(errs.CodeAmountOutOfRange, "amount %q overflows", s)
	}
	total, carry := bits.Add64(lo, fracZat, 0)
	if carry != 0 {
		return 0, errs.New(errs.CodeAmountOutOfRange, "amount %q overflows", s)
	}
	return checkRange(total, s)
}

// ParseZatoshi converts an integer zatoshi string into an amount.
func ParseZatoshi(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errs.New(errs.CodeMissingField, "amount is empty")
	}
	if s[0] == '-' || s[0] == '+' {
		return 0, errs.New(errs.CodeAmountOutOfRange, "amount %q must be a positive integer without sign", s)
	}
	if strings.Contains(s, ".") {
		return 0, errs.New(errs.CodeAmountPrecisionLoss, "zatoshi amount %q must be an integer", s)
	}
	if !allDigits(s) {
		return 0, errs.New(errs.CodeParseError, "zatoshi amount %q is not an integer", s)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errs.New(errs.CodeAmountOutOfRange, "zatoshi amount %q is out of range", s)
	}
	return checkRange(v, s)
}

// Validate checks that an integer amount is within (0, MaxSupply].
func Validate(z uint64) error {
	_, err := checkRange(z, strconv.FormatUint(z, 10))
	return err
}

func checkRange(z uint64, raw string) (uint64, error) {
	if z == 0 {
		return 0, errs.New(errs.CodeAmountOutOfRange, "amount %q must be greater than zero", raw)
	}
	if z > MaxSupply {
		return 0, errs.New(errs.CodeAmountOutOfRange, "amount %q exceeds maximum supply", raw)
	}
	return z, nil
}

// Format renders zatoshi as a canonical decimal ZEC string: trailing zeros
// are trimmed and the integer part is always present ("1", "1.5", "0.00000001").
func Format(z uint64) string {
	whole := z / PerZEC
	frac := z % PerZEC
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	fracStr := strconv.FormatUint(frac, 10)
	fracStr = strings.Repeat("0", Decimals-len(fracStr)) + fracStr
	return strconv.FormatUint(whole, 10) + "." + strings.TrimRight(fracStr, "0")
}

// Add sums two amounts, rejecting integer overflow and totals above MaxSupply.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, errs.New(errs.CodeBatchTotalOverflow, "batch total overflows")
	}
	if sum > MaxSupply {
		return 0, errs.New(errs.CodeBatchTotalOverflow, "batch total %d exceeds maximum supply %d", sum, MaxSupply)
	}
	return sum, nil
}

// Sum adds all values with Add semantics.
func Sum(values []uint64) (uint64, error) {
	var total uint64
	for _, v := range values {
		var err error
		if total, err = Add(total, v); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// IsDust reports whether z is below the given dust threshold.
func IsDust(z, threshold uint64) bool {
	return z < threshold
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
