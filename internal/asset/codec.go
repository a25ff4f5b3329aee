package asset

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// unsignedDecimal accepts digits with at most one point. Signs, exponents and
// separators are rejected.
var unsignedDecimal = regexp.MustCompile(`^[0-9]*\.?[0-9]*$`)

// ToUnits converts a decimal string into integer units with the given
// precision. Malformed input yields zero. Excess fractional digits are
// rounded half-up at the last kept digit.
func ToUnits(s string, decimals uint8) *big.Int {
	d, ok := parseUnsigned(s)
	if !ok {
		return new(big.Int)
	}
	return d.Shift(int32(decimals)).Round(0).BigInt()
}

// ValidAmount reports whether s is a well-formed unsigned decimal.
func ValidAmount(s string) bool {
	_, ok := parseUnsigned(s)
	return ok
}

// FromUnits renders integer units as a plain decimal string without
// trailing zeros. nil renders as "0". A negative value renders with a sign,
// which ToUnits rejects, so only nonnegative values round-trip.
func FromUnits(x *big.Int, decimals uint8) string {
	if x == nil {
		return "0"
	}
	return decimal.NewFromBigInt(x, -int32(decimals)).String()
}

// Truncate cuts a rendered amount to at most n characters, dropping a
// dangling decimal point.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSuffix(s[:n], ".")
}

func parseUnsigned(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "." || !unsignedDecimal.MatchString(s) {
		return decimal.Zero, false
	}

	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	s = strings.TrimSuffix(s, ".")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
