package crm

import "github.com/shopspring/decimal"

// FromMinorUnits converts the source platform's integer minor-unit amounts
// into exact decimal currency: 12345 becomes 123.45.
func FromMinorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}
