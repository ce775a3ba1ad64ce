// Package money provides exact two-decimal monetary arithmetic.
//
// Amounts are held as integer minor units (cents). All arithmetic on the
// submission and queueing paths is integral; floating point only appears at
// the API boundary when converting user-supplied prices, with explicit
// half-away-from-zero rounding to two decimals.
package money

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Cents is a monetary amount in minor units (1/100 of the business currency).
// It serializes as a plain JSON number of cents.
type Cents int64

// FromFloat converts a major-unit amount (e.g. 12.3456) to Cents,
// rounding half away from zero to two decimals.
func FromFloat(f float64) Cents {
	if f >= 0 {
		return Cents(math.Floor(f*100 + 0.5))
	}
	return Cents(math.Ceil(f*100 - 0.5))
}

// Mul scales the amount by an item quantity.
func (c Cents) Mul(qty int) Cents {
	return c * Cents(qty)
}

// Add returns c + other.
func (c Cents) Add(other Cents) Cents {
	return c + other
}

// Sub returns c - other.
func (c Cents) Sub(other Cents) Cents {
	return c - other
}

// Max0 clamps negative amounts to zero. Used for change computation:
// change is never negative even when tender falls short.
func (c Cents) Max0() Cents {
	if c < 0 {
		return 0
	}
	return c
}

// Float returns the amount in major units. Display/interop only.
func (c Cents) Float() float64 {
	return float64(c) / 100
}

// printer groups the integer part with locale separators ("1,234").
var printer = message.NewPrinter(language.English)

// String renders the amount as "1,234.00". The integer part is formatted
// through x/text so grouping stays correct for large totals; the fractional
// part is appended from the exact cent remainder.
func (c Cents) String() string {
	units := int64(c) / 100
	rem := int64(c) % 100
	if rem < 0 {
		rem = -rem
	}
	if c < 0 && units == 0 {
		return printer.Sprintf("-0.%02d", rem)
	}
	return printer.Sprintf("%d.%02d", units, rem)
}
