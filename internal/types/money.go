// README: Common money value object used across modules.
package types

import "github.com/shopspring/decimal"

// Money is a non-negative decimal amount in the workshop's single currency.
type Money = decimal.Decimal

// ParseMoney parses a decimal string such as "1250000.00".
func ParseMoney(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney is for literals in code and tests.
func MustMoney(s string) Money {
	return decimal.RequireFromString(s)
}

var ZeroMoney = decimal.Zero

// Upper bounds (exclusive) of the NUMERIC(14,2) amount and NUMERIC(8,2) hours columns.
var (
	MaxAmount = decimal.New(1, 12)
	MaxHours  = decimal.New(1, 6)
)

// CheckCents rejects values the storage columns would round or overflow:
// more than two decimal places, or not below limit.
func CheckCents(field string, m Money, limit Money) error {
	if !m.Equal(m.Truncate(2)) {
		return Invalid(field, "must have at most two decimal places")
	}
	if m.GreaterThanOrEqual(limit) {
		return Invalid(field, "must be below "+limit.String())
	}
	return nil
}
