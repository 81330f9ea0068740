package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Cents is an amount of money in minor units. All checkout arithmetic is done
// on Cents; decimal strings only exist on the gateway wire.
type Cents int64

const centsExponent = -2

func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), centsExponent)
}

// String formats the amount the way the gateway expects it, e.g. "12.50".
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// ParseCents converts a decimal amount such as "12.5" or "12.50" into Cents.
// Amounts with more than two fractional digits are rejected rather than rounded.
func ParseCents(s string) (Cents, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	shifted := d.Shift(-centsExponent)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("amount %q has sub-cent precision", s)
	}
	return Cents(shifted.IntPart()), nil
}

// CentsFromFloat converts a catalog price stored as a float of major units.
// Rounds half away from zero to the nearest cent.
func CentsFromFloat(f float64) Cents {
	return Cents(decimal.NewFromFloat(f).Shift(-centsExponent).Round(0).IntPart())
}
