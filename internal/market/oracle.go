// Package market provides price oracles for tradable tickers.
package market

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Quote is a price sample for one ticker
type Quote struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// Oracle looks up the current price of a ticker. Failures are reported as
// types.ErrUnknownSymbol or types.ErrPriceUnavailable.
type Oracle interface {
	Lookup(ctx context.Context, symbol string) (*Quote, error)
}

// NormalizeSymbol trims and uppercases a ticker
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
