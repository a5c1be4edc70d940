// Package decimal provides exact fixed-scale decimal arithmetic for prices
// and quantities. It wraps github.com/shopspring/decimal, which backs its
// values with math/big.Int, so add/sub/compare/multiply never lose precision
// the way a float64 would. A Decimal additionally carries the scale (number
// of fractional digits) its pair was configured with, and refuses results
// that would overflow that scale's backing width.
package decimal

import (
	"fmt"

	shopspring "github.com/shopspring/decimal"
)

// maxIntegerDigits bounds the magnitude of any Decimal this package
// produces. 128-bit-equivalent headroom (38 decimal digits) is enough that
// no real-world price or quantity, multiplied against another, can overflow.
const maxIntegerDigits = 38

// OverflowError is returned when an operation's result would exceed the
// configured integer width.
type OverflowError struct {
	Op string
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("decimal: arithmetic overflow in %s", e.Op)
}

// Decimal is an exact, fixed-scale signed decimal value.
type Decimal struct {
	v     shopspring.Decimal
	scale int32
}

// Zero returns the zero value at the given scale.
func Zero(scale int32) Decimal {
	return Decimal{v: shopspring.New(0, -scale), scale: scale}
}

// NewFromString parses a canonical decimal string ("123.456789") at the
// given scale. Parsing is exact: no float64 conversion occurs.
func NewFromString(s string, scale int32) (Decimal, error) {
	v, err := shopspring.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("decimal: parse %q: %w", s, err)
	}
	d := Decimal{v: v, scale: scale}
	if err := d.checkWidth("parse"); err != nil {
		return Decimal{}, err
	}
	return d, nil
}

// NewFromInt builds a Decimal representing an integer value at the given
// scale (used by tests and config defaults; never on the hot path).
func NewFromInt(i int64, scale int32) Decimal {
	return Decimal{v: shopspring.New(i, 0), scale: scale}
}

func (d Decimal) checkWidth(op string) error {
	digits := int32(len(d.v.Coefficient().String()))
	if digits > maxIntegerDigits {
		return &OverflowError{Op: op}
	}
	return nil
}

// Scale returns the number of fractional digits this Decimal is configured
// with.
func (d Decimal) Scale() int32 { return d.scale }

// IsZero reports whether d is exactly zero.
func (d Decimal) IsZero() bool { return d.v.IsZero() }

// Sign returns -1, 0, or 1.
func (d Decimal) Sign() int { return d.v.Sign() }

// Cmp compares d to other; panics on mismatched scale, which would indicate
// a programming error mixing pairs with different configured precision.
func (d Decimal) Cmp(other Decimal) int {
	d.mustMatchScale(other)
	return d.v.Cmp(other.v)
}

func (d Decimal) mustMatchScale(other Decimal) {
	if d.scale != other.scale {
		panic(fmt.Sprintf("decimal: scale mismatch %d vs %d", d.scale, other.scale))
	}
}

// GreaterThan, LessThan, Equal are convenience wrappers over Cmp, matching
// the comparison vocabulary used throughout the matcher.
func (d Decimal) GreaterThan(o Decimal) bool { return d.Cmp(o) > 0 }
func (d Decimal) LessThan(o Decimal) bool    { return d.Cmp(o) < 0 }
func (d Decimal) Equal(o Decimal) bool       { return d.Cmp(o) == 0 }
func (d Decimal) GreaterThanOrEqual(o Decimal) bool { return d.Cmp(o) >= 0 }
func (d Decimal) LessThanOrEqual(o Decimal) bool    { return d.Cmp(o) <= 0 }

// Add returns d+o, exact, erroring only on overflow of the configured width.
func (d Decimal) Add(o Decimal) (Decimal, error) {
	d.mustMatchScale(o)
	r := Decimal{v: d.v.Add(o.v), scale: d.scale}
	if err := r.checkWidth("add"); err != nil {
		return Decimal{}, err
	}
	return r, nil
}

// Sub returns d-o, exact.
func (d Decimal) Sub(o Decimal) (Decimal, error) {
	d.mustMatchScale(o)
	r := Decimal{v: d.v.Sub(o.v), scale: d.scale}
	if err := r.checkWidth("sub"); err != nil {
		return Decimal{}, err
	}
	return r, nil
}

// MulTruncate multiplies two decimals (e.g. price x qty) and truncates the
// result to resultScale fractional digits without rounding up, matching
// conservative notional accounting: a venue never credits more than what
// was exactly paid.
func (d Decimal) MulTruncate(o Decimal, resultScale int32) (Decimal, error) {
	r := Decimal{v: d.v.Mul(o.v).Truncate(resultScale), scale: resultScale}
	if err := r.checkWidth("mul"); err != nil {
		return Decimal{}, err
	}
	return r, nil
}

// Mod returns d modulo o, used only at acceptance time to validate tick/lot
// conformance — never on the matching hot path.
func (d Decimal) Mod(o Decimal) Decimal {
	d.mustMatchScale(o)
	return Decimal{v: d.v.Mod(o.v), scale: d.scale}
}

// Min returns the smaller of a and b.
func Min(a, b Decimal) Decimal {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// String formats d canonically: fixed to its configured scale, no leading
// zeros beyond the single required integer digit.
func (d Decimal) String() string {
	return d.v.StringFixed(d.scale)
}

// MarshalJSON encodes the Decimal as a canonical JSON string, never a bare
// numeric literal, so downstream JSON decoders never round-trip through a
// float64.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts a canonical decimal string for a pre-existing scale.
// The scale must already be set (via a zero-value Decimal created through
// Zero) before unmarshalling into it; this is the pattern wire payloads use
// by first constructing the zero value from pair configuration.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := NewFromString(s, d.scale)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
