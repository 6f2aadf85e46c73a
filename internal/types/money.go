package types

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// CashPlaces is the number of decimal places kept for cash balances.
const CashPlaces = 2

// Currency of every balance and price in the ledger.
const Currency = money.USD

// MaxCash is the largest balance or single amount the ledger accepts.
// At 15 significant digits it fits decimal(18,2) and survives SQLite's
// float64 NUMERIC storage with exact cents.
var MaxCash = decimal.RequireFromString("9999999999999.99")

// CashInRange reports whether d is a storable balance
func CashInRange(d decimal.Decimal) bool {
	return !d.IsNegative() && !d.GreaterThan(MaxCash)
}

// RoundCash rounds d to cent precision.
func RoundCash(d decimal.Decimal) decimal.Decimal {
	return d.Round(CashPlaces)
}

// FormatUSD renders d as a display string such as "$1,234.56".
func FormatUSD(d decimal.Decimal) string {
	cents := RoundCash(d).Shift(CashPlaces).IntPart()
	return money.New(cents, Currency).Display()
}
