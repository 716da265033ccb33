package domain

import "github.com/shopspring/decimal"

// All monetary values use shopspring/decimal, never float64.

// ValidPrice reports whether p is usable as a user-supplied price:
// strictly positive with at most 2 decimal places.
func ValidPrice(p decimal.Decimal) bool {
	return p.IsPositive() && p.Equal(p.Round(2))
}

// Cost returns price × quantity.
func Cost(price decimal.Decimal, quantity int64) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(quantity))
}
