package market

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/joherrer/stocks/internal/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Simulator is an offline price source modelled on a mock exchange feed
type Simulator struct {
	MinLatency  int     // in milliseconds
	MaxLatency  int     // in milliseconds
	SuccessRate float64 // 0-1, probability a lookup returns a price
	Variance    float64 // 0-1, maximum relative deviation from the base price

	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

var defaultPrices = map[string]string{
	"AAPL":  "150.00",
	"AMZN":  "130.00",
	"GOOGL": "140.00",
	"META":  "320.00",
	"MSFT":  "330.00",
	"NFLX":  "450.00",
	"NVDA":  "480.00",
	"TSLA":  "250.00",
}

// NewSimulator returns a simulator seeded with a handful of well-known
// tickers, 5-30ms latency, a 99% success rate and a 2% price variance.
func NewSimulator() *Simulator {
	s := &Simulator{
		MinLatency:  5,
		MaxLatency:  30,
		SuccessRate: 0.99,
		Variance:    0.02,
		prices:      make(map[string]decimal.Decimal, len(defaultPrices)),
	}
	for symbol, price := range defaultPrices {
		s.prices[symbol] = decimal.RequireFromString(price)
	}
	return s
}

// SetPrice sets the base price of a ticker
func (s *Simulator) SetPrice(symbol string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prices == nil {
		s.prices = make(map[string]decimal.Decimal)
	}
	s.prices[NormalizeSymbol(symbol)] = price
}

func (s *Simulator) Lookup(ctx context.Context, symbol string) (*Quote, error) {
	symbol = NormalizeSymbol(symbol)
	logger := log.With().
		Str("service", "simulated_oracle").
		Str("symbol", symbol).
		Logger()

	s.mu.RLock()
	base, ok := s.prices[symbol]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownSymbol, symbol)
	}

	// Simulate random latency
	if s.MaxLatency > 0 {
		latency := s.MinLatency
		if s.MaxLatency > s.MinLatency {
			latency += rand.Intn(s.MaxLatency - s.MinLatency + 1)
		}
		logger.Debug().Int("latency_ms", latency).Msg("simulated network latency")

		select {
		case <-time.After(time.Duration(latency) * time.Millisecond):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", types.ErrPriceUnavailable, symbol, ctx.Err())
		}
	}

	// Simulate feed failures based on success rate
	if rand.Float64() > s.SuccessRate {
		logger.Warn().
			Float64("success_rate", s.SuccessRate).
			Msg("price feed failed due to success rate threshold")
		return nil, fmt.Errorf("%w: %s: feed failure", types.ErrPriceUnavailable, symbol)
	}

	// Apply random variance within +/- Variance
	factor := decimal.NewFromFloat(1 + s.Variance*(rand.Float64()*2-1))
	price := types.RoundCash(base.Mul(factor))
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: %s: non-positive price", types.ErrPriceUnavailable, symbol)
	}

	logger.Debug().
		Str("base_price", base.String()).
		Str("price", price.String()).
		Msg("price variance applied")

	return &Quote{Symbol: symbol, Price: price}, nil
}
