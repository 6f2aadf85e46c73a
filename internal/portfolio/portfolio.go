// Package portfolio is the accounting engine. It validates and executes
// trades against the ledger and values holdings at live prices.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joherrer/stocks/internal/ledger"
	"github.com/joherrer/stocks/internal/market"
	"github.com/joherrer/stocks/internal/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// maxConcurrentQuotes bounds oracle calls made while valuing one portfolio
const maxConcurrentQuotes = 4

// Side of a recorded trade
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Position is one positive holding valued at a live price
type Position struct {
	Symbol string          `json:"symbol"`
	Shares int64           `json:"shares"`
	Price  decimal.Decimal `json:"price"`
	Value  decimal.Decimal `json:"value"`
}

// Summary is the current state of a user's account
type Summary struct {
	Positions []Position      `json:"positions"`
	Cash      decimal.Decimal `json:"cash"`
	Total     decimal.Decimal `json:"total"`
}

// HistoryEntry is one transaction at the price it was executed
type HistoryEntry struct {
	Reference  string          `json:"reference"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Shares     int64           `json:"shares"`
	Price      decimal.Decimal `json:"price"`
	Total      decimal.Decimal `json:"total"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// Service executes trades and reports on portfolios
type Service struct {
	db     *ledger.Database
	oracle market.Oracle
	locks  *userLocks
	now    func() time.Time
	logger zerolog.Logger
}

// NewService creates a portfolio service over the given database and price oracle
func NewService(gormDB *gorm.DB, oracle market.Oracle) *Service {
	return &Service{
		db:     ledger.NewDatabase(gormDB),
		oracle: oracle,
		locks:  newUserLocks(),
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.With().Str("service", "portfolio").Logger(),
	}
}

// Quote returns the current price of ticker. Every oracle failure is
// reported as types.ErrUnknownSymbol; transport failures also match
// types.ErrPriceUnavailable.
func (s *Service) Quote(ctx context.Context, ticker string) (*market.Quote, error) {
	symbol := market.NormalizeSymbol(ticker)
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty ticker", types.ErrUnknownSymbol)
	}

	quote, err := s.oracle.Lookup(ctx, symbol)
	if err != nil {
		if errors.Is(err, types.ErrUnknownSymbol) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", types.ErrUnknownSymbol, err)
	}
	if quote == nil || !quote.Price.IsPositive() {
		return nil, fmt.Errorf("%w: %s: no usable price", types.ErrUnknownSymbol, symbol)
	}

	return &market.Quote{Symbol: symbol, Price: quote.Price}, nil
}

// Buy purchases shares of ticker at the current price
func (s *Service) Buy(ctx context.Context, userID uint, ticker string, shares int64) (*ledger.Transaction, error) {
	if shares <= 0 {
		return nil, fmt.Errorf("%w: %d", types.ErrInvalidShareCount, shares)
	}

	quote, err := s.Quote(ctx, ticker)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	var txn *ledger.Transaction
	err = s.db.WithUserLock(ctx, userID, func(tx *ledger.Database, user *ledger.User) error {
		cost := quote.Price.Mul(decimal.NewFromInt(shares))
		if cost.GreaterThan(user.Cash) {
			return fmt.Errorf("%w: cost %s exceeds cash %s", types.ErrInsufficientFunds,
				types.FormatUSD(cost), types.FormatUSD(user.Cash))
		}

		if err := tx.UpdateCash(ctx, userID, user.Cash.Sub(cost)); err != nil {
			return err
		}

		created, err := tx.AppendTransaction(ctx, userID, quote.Symbol, shares, quote.Price, s.now())
		if err != nil {
			return err
		}
		txn = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Uint("user_id", userID).
		Str("symbol", quote.Symbol).
		Int64("shares", shares).
		Str("price", quote.Price.String()).
		Str("reference", txn.Reference).
		Msg("buy executed")

	return txn, nil
}

// Sell disposes of shares of ticker at the current price
func (s *Service) Sell(ctx context.Context, userID uint, ticker string, shares int64) (*ledger.Transaction, error) {
	if shares <= 0 {
		return nil, fmt.Errorf("%w: %d", types.ErrInvalidShareCount, shares)
	}

	quote, err := s.Quote(ctx, ticker)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	var txn *ledger.Transaction
	err = s.db.WithUserLock(ctx, userID, func(tx *ledger.Database, user *ledger.User) error {
		held, err := tx.HoldingOf(ctx, userID, quote.Symbol)
		if err != nil {
			return err
		}
		if held <= 0 || shares > held {
			return fmt.Errorf("%w: selling %d %s, holding %d", types.ErrInsufficientShares, shares, quote.Symbol, held)
		}

		proceeds := quote.Price.Mul(decimal.NewFromInt(shares))
		if err := checkBalance(user.Cash.Add(proceeds)); err != nil {
			return err
		}
		if err := tx.UpdateCash(ctx, userID, user.Cash.Add(proceeds)); err != nil {
			return err
		}

		created, err := tx.AppendTransaction(ctx, userID, quote.Symbol, -shares, quote.Price, s.now())
		if err != nil {
			return err
		}
		txn = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Uint("user_id", userID).
		Str("symbol", quote.Symbol).
		Int64("shares", shares).
		Str("price", quote.Price.String()).
		Str("reference", txn.Reference).
		Msg("sell executed")

	return txn, nil
}

// DepositCash adds amount to the user's balance and returns the updated user
func (s *Service) DepositCash(ctx context.Context, userID uint, amount decimal.Decimal) (*ledger.User, error) {
	if err := validAmount(amount); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	var updated ledger.User
	err := s.db.WithUserLock(ctx, userID, func(tx *ledger.Database, user *ledger.User) error {
		balance := types.RoundCash(user.Cash.Add(amount))
		if err := checkBalance(balance); err != nil {
			return err
		}
		if err := tx.UpdateCash(ctx, userID, balance); err != nil {
			return err
		}
		updated = *user
		updated.Cash = balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Uint("user_id", userID).
		Str("amount", amount.String()).
		Str("cash", updated.Cash.String()).
		Msg("cash deposited")

	return &updated, nil
}

// Cash returns the user's current balance
func (s *Service) Cash(ctx context.Context, userID uint) (decimal.Decimal, error) {
	user, err := s.db.GetUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return user.Cash, nil
}

// NetWorth is cash plus every positive holding at its live price. Any
// failed quote aborts the valuation.
func (s *Service) NetWorth(ctx context.Context, userID uint) (decimal.Decimal, error) {
	summary, err := s.Portfolio(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return summary.Total, nil
}

// Portfolio values each positive holding at a live price
func (s *Service) Portfolio(ctx context.Context, userID uint) (*Summary, error) {
	cash, holdings, err := s.snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	positions := make([]Position, len(holdings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentQuotes)
	for i, h := range holdings {
		i, h := i, h
		g.Go(func() error {
			quote, err := s.oracle.Lookup(gctx, h.Symbol)
			if err != nil {
				return fmt.Errorf("valuing %s: %w", h.Symbol, err)
			}
			positions[i] = Position{
				Symbol: h.Symbol,
				Shares: h.Shares,
				Price:  quote.Price,
				Value:  quote.Price.Mul(decimal.NewFromInt(h.Shares)),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn().Err(err).Uint("user_id", userID).Msg("portfolio valuation failed")
		return nil, err
	}

	total := cash
	for _, p := range positions {
		total = total.Add(p.Value)
	}

	return &Summary{
		Positions: positions,
		Cash:      cash,
		Total:     types.RoundCash(total),
	}, nil
}

// SellableTickers lists the tickers the user holds a positive amount of
func (s *Service) SellableTickers(ctx context.Context, userID uint) ([]string, error) {
	if _, err := s.db.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	holdings, err := s.db.ListHoldings(ctx, userID, true)
	if err != nil {
		return nil, err
	}

	tickers := make([]string, 0, len(holdings))
	for _, h := range holdings {
		tickers = append(tickers, h.Symbol)
	}
	return tickers, nil
}

// History returns every trade of the user, oldest first, at recorded prices
func (s *Service) History(ctx context.Context, userID uint) ([]HistoryEntry, error) {
	if _, err := s.db.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	txns, err := s.db.ListTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, 0, len(txns))
	for _, t := range txns {
		side := SideBuy
		if t.Shares < 0 {
			side = SideSell
		}
		entries = append(entries, HistoryEntry{
			Reference:  t.Reference,
			Symbol:     t.Symbol,
			Side:       side,
			Shares:     t.Shares,
			Price:      t.Price,
			Total:      types.RoundCash(t.Price.Mul(decimal.NewFromInt(t.Shares)).Abs()),
			ExecutedAt: t.CreatedAt,
		})
	}
	return entries, nil
}

// snapshot reads cash and positive holdings without a trade in between
func (s *Service) snapshot(ctx context.Context, userID uint) (decimal.Decimal, []ledger.Holding, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	var (
		cash     decimal.Decimal
		holdings []ledger.Holding
	)
	err := s.db.WithUserLock(ctx, userID, func(tx *ledger.Database, user *ledger.User) error {
		var err error
		holdings, err = tx.ListHoldings(ctx, userID, true)
		cash = user.Cash
		return err
	})
	if err != nil {
		return decimal.Zero, nil, err
	}
	return cash, holdings, nil
}
