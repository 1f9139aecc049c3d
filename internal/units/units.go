// Package units converts between human-readable decimal amounts and integer
// base units of the chain's native currency.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Decimals is the fixed exponent between the native unit and its base unit.
const Decimals = 18

var (
	ErrEmptyAmount     = errors.New("amount is empty")
	ErrMalformedAmount = errors.New("amount is not a plain decimal number")
	ErrTooManyDecimals = errors.New("amount has more fractional digits than the currency supports")
	ErrAmountOverflow  = errors.New("amount does not fit in 256 bits")
)

// ToBaseUnits converts text in the native unit to base units using Decimals.
func ToBaseUnits(text string) (*big.Int, error) {
	return ParseUnits(text, Decimals)
}

// ParseUnits accepts "digits", "digits.digits" or ".digits" with no sign,
// separators or surrounding whitespace. A fractional part longer than
// decimals is rejected rather than truncated.
func ParseUnits(text string, decimals int) (*big.Int, error) {
	if text == "" {
		return nil, ErrEmptyAmount
	}

	whole, frac, hasPoint := strings.Cut(text, ".")
	if !isDigits(whole, hasPoint) || (hasPoint && !isDigits(frac, false)) {
		return nil, fmt.Errorf("%w: %q", ErrMalformedAmount, text)
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyDecimals, len(frac), decimals)
	}

	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	value, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMalformedAmount, text)
	}
	if _, overflow := uint256.FromBig(value); overflow {
		return nil, ErrAmountOverflow
	}
	return value, nil
}

// isDigits reports whether s is all ASCII digits. An empty whole part is
// only allowed in front of a decimal point (".5").
func isDigits(s string, allowEmpty bool) bool {
	if s == "" {
		return allowEmpty
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatUnits renders base units as the shortest exact decimal string in the
// native unit ("1.5", "0", "0.000000000000000001").
func FormatUnits(value *big.Int, decimals int) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, int32(-decimals)).String()
}

// FromBaseUnits is FormatUnits with Decimals.
func FromBaseUnits(value *big.Int) string {
	return FormatUnits(value, Decimals)
}
