package portfolio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joherrer/stocks/internal/types"
	"github.com/shopspring/decimal"
)

// ParseShares accepts a whole, positive share count written in digits only
func ParseShares(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, types.ErrInvalidShareCount
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", types.ErrInvalidShareCount, s)
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", types.ErrInvalidShareCount, s)
	}
	return n, nil
}

// ParseAmount accepts a positive decimal worth at least one cent
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", types.ErrInvalidAmount, s)
	}
	if err := validAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

func validAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !types.RoundCash(amount).IsPositive() {
		return fmt.Errorf("%w: %s", types.ErrInvalidAmount, amount)
	}
	if amount.GreaterThan(types.MaxCash) {
		return fmt.Errorf("%w: %s exceeds %s", types.ErrInvalidAmount, amount, types.MaxCash)
	}
	return nil
}

// checkBalance rejects a resulting balance the ledger cannot hold
func checkBalance(balance decimal.Decimal) error {
	if !types.CashInRange(types.RoundCash(balance)) {
		return fmt.Errorf("%w: resulting balance %s exceeds %s", types.ErrInvalidAmount, balance, types.MaxCash)
	}
	return nil
}
