package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/joherrer/stocks/internal/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	DefaultYahooBaseURL = "https://query2.finance.yahoo.com"

	yahooUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	resultPath     = "$.chart.result"
	pricePath      = "$.chart.result[0].meta.regularMarketPrice"
	lookbackWindow = 7 * 24 * time.Hour

	// chart responses for a week of daily bars are a few KB
	maxResponseBytes = 1 << 20
)

// Yahoo reads the regular market price from the Yahoo Finance chart API
type Yahoo struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
	logger  zerolog.Logger
}

func NewYahoo(baseURL string, timeout time.Duration) *Yahoo {
	if baseURL == "" {
		baseURL = DefaultYahooBaseURL
	}
	return &Yahoo{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
		logger:  log.With().Str("service", "yahoo_oracle").Logger(),
	}
}

func (y *Yahoo) Lookup(ctx context.Context, symbol string) (*Quote, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", types.ErrUnknownSymbol)
	}

	end := y.now()
	start := end.Add(-lookbackWindow)
	addr := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d&events=history",
		y.baseURL, url.PathEscape(symbol), start.Unix(), end.Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrPriceUnavailable, err)
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", yahooUserAgent)

	resp, err := y.client.Do(req)
	if err != nil {
		y.logger.Warn().Err(err).Str("symbol", symbol).Msg("quote request failed")
		return nil, fmt.Errorf("%w: %s: %v", types.ErrPriceUnavailable, symbol, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownSymbol, symbol)
	case resp.StatusCode != http.StatusOK:
		y.logger.Warn().Int("status", resp.StatusCode).Str("symbol", symbol).Msg("unexpected quote response")
		return nil, fmt.Errorf("%w: %s: %s", types.ErrPriceUnavailable, symbol, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrPriceUnavailable, symbol, err)
	}
	if len(body) > maxResponseBytes {
		y.logger.Warn().Str("symbol", symbol).Msg("quote response too large")
		return nil, fmt.Errorf("%w: %s: response exceeds %d bytes", types.ErrPriceUnavailable, symbol, maxResponseBytes)
	}

	price, err := extractPrice(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, symbol)
	}

	y.logger.Debug().Str("symbol", symbol).Str("price", price.String()).Msg("quote received")
	return &Quote{Symbol: symbol, Price: price}, nil
}

// extractPrice pulls the regular market price out of a chart response
func extractPrice(body []byte) (decimal.Decimal, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var jobj any
	if err := dec.Decode(&jobj); err != nil {
		return decimal.Zero, fmt.Errorf("%w: malformed response: %v", types.ErrPriceUnavailable, err)
	}

	results, err := jsonpath.Get(resultPath, jobj)
	if err != nil {
		return decimal.Zero, types.ErrUnknownSymbol
	}
	if list, ok := results.([]any); !ok || len(list) == 0 {
		return decimal.Zero, types.ErrUnknownSymbol
	}

	jval, err := jsonpath.Get(pricePath, jobj)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", types.ErrPriceUnavailable, err)
	}
	// jsonpath may wrap a single answer in a list
	if jlist, ok := jval.([]any); ok && len(jlist) > 0 {
		jval = jlist[0]
	}

	var price decimal.Decimal
	switch v := jval.(type) {
	case json.Number:
		price, err = decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: price %q: %v", types.ErrPriceUnavailable, v, err)
		}
	case float64:
		price = decimal.NewFromFloat(v)
	default:
		return decimal.Zero, fmt.Errorf("%w: price is not a number: %v", types.ErrPriceUnavailable, jval)
	}

	price = types.RoundCash(price)
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive price %s", types.ErrPriceUnavailable, price)
	}
	return price, nil
}
