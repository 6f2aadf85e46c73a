package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joherrer/stocks/internal/auth"
	"github.com/joherrer/stocks/internal/database"
	"github.com/joherrer/stocks/internal/market"
	"github.com/joherrer/stocks/internal/portfolio"
	"github.com/joherrer/stocks/internal/server"
	"github.com/joherrer/stocks/internal/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	minOrders     = 15
	maxOrders     = 150
	numWorkers    = 5
	serverAddress = "127.0.0.1:8089"
	startingCash  = "10000.00"
)

var symbols = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "META"}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	gin.SetMode(gin.ReleaseMode)
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	mu         sync.Mutex
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration, failed bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
	if failed {
		rs.failures++
	}
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// envelope mirrors the API response wrapper
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// simulationClient handles HTTP communication with the ledger API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

// newSimulationClient registers a fresh user and logs in as them
func newSimulationClient(baseURL string) (*simulationClient, error) {
	sc := &simulationClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		stats: map[string]*routeStats{
			"register": {name: "Register"},
			"login":    {name: "Login"},
			"buy":      {name: "Buy"},
			"sell":     {name: "Sell"},
			"cash":     {name: "Cash"},
			"history":  {name: "History"},
		},
	}

	username := "sim-" + uuid.New().String()[:8]
	password := uuid.New().String()

	if _, _, err := sc.call("register", http.MethodPost, "/api/v1/auth/register", map[string]string{
		"username":     username,
		"password":     password,
		"confirmation": password,
	}); err != nil {
		return nil, fmt.Errorf("failed to register: %w", err)
	}

	status, env, err := sc.call("login", http.MethodPost, "/api/v1/auth/login", auth.Credentials{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	if !env.Success {
		return nil, fmt.Errorf("authentication failed with status: %d", status)
	}

	var token types.TokenResponse
	if err := json.Unmarshal(env.Data, &token); err != nil {
		return nil, err
	}
	sc.authToken = token.Token

	log.Info().Str("username", username).Msg("Simulation user ready")
	return sc, nil
}

// call sends one request and decodes the envelope. Only transport and
// decoding problems are returned as errors.
func (sc *simulationClient) call(route, method, path string, payload interface{}) (int, *envelope, error) {
	start := time.Now()
	failed := true
	defer func() {
		sc.stats[route].addDuration(time.Since(start), failed)
	}()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if sc.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+sc.authToken)
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("route", route).Str("response", string(respBody)).Msg("API response")

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	failed = !env.Success
	return resp.StatusCode, &env, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	routes := make([]string, 0, len(sc.stats))
	for route := range sc.stats {
		routes = append(routes, route)
	}
	sort.Strings(routes)

	for _, route := range routes {
		stats := sc.stats[route]
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// outcome tallies trade responses by error code
type outcome struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *outcome) add(code string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counts[code]++
}

// main runs the trading simulation
// It starts a local API server and fires overlapping trades for one user,
// then checks that the ledger still balances
func main() {
	if err := startServer(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}

	simClient, err := newSimulationClient("http://" + serverAddress)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	targetOrders := rand.Intn(maxOrders-minOrders) + minOrders
	log.Info().Int("target_orders", targetOrders).Msg("Starting simulation")

	results := &outcome{counts: make(map[string]int)}
	startTime := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			placeOrders(workerID, targetOrders/numWorkers, simClient, results)
		}(i)
	}
	wg.Wait()
	duration := time.Since(startTime)

	if err := verifyLedger(simClient); err != nil {
		log.Error().Err(err).Msg("Ledger verification failed")
	} else {
		log.Info().Msg("Ledger verified: cash equals starting cash less buys plus sells")
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("TRADING SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Orders attempted: %d\nDuration:         %v\n\n", targetOrders/numWorkers*numWorkers, duration.Round(time.Millisecond))

	codes := make([]string, 0, len(results.counts))
	for code := range results.counts {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		fmt.Printf("%-22s %d\n", code, results.counts[code])
	}

	simClient.printPerformanceStats()
}

// placeOrders sends random buys and sells as one worker
func placeOrders(workerID, numOrders int, simClient *simulationClient, results *outcome) {
	for i := 0; i < numOrders; i++ {
		route, path := "buy", "/api/v1/trades/buy"
		if rand.Intn(4) == 0 {
			route, path = "sell", "/api/v1/trades/sell"
		}
		symbol := symbols[rand.Intn(len(symbols))]
		shares := rand.Intn(10) + 1

		_, env, err := simClient.call(route, http.MethodPost, path, map[string]interface{}{
			"symbol": symbol,
			"shares": shares,
		})
		switch {
		case err != nil:
			results.add("TRANSPORT_ERROR")
			log.Error().Err(err).Int("worker_id", workerID).Msg("Trade request failed")
		case env.Success:
			results.add(strings.ToUpper(route) + "_OK")
		default:
			results.add(env.Error.Code)
			log.Debug().
				Int("worker_id", workerID).
				Str("symbol", symbol).
				Int("shares", shares).
				Str("code", env.Error.Code).
				Msg("Trade rejected")
		}
	}
}

// verifyLedger replays the history against the reported cash balance
func verifyLedger(sc *simulationClient) error {
	_, env, err := sc.call("history", http.MethodGet, "/api/v1/history", nil)
	if err != nil {
		return err
	}
	var history []portfolio.HistoryEntry
	if err := json.Unmarshal(env.Data, &history); err != nil {
		return err
	}

	_, env, err = sc.call("cash", http.MethodGet, "/api/v1/cash", nil)
	if err != nil {
		return err
	}
	var cash types.BalanceResponse
	if err := json.Unmarshal(env.Data, &cash); err != nil {
		return err
	}

	expected := decimal.RequireFromString(startingCash)
	held := make(map[string]int64)
	for _, entry := range history {
		expected = types.RoundCash(expected.Sub(entry.Price.Mul(decimal.NewFromInt(entry.Shares))))
		held[entry.Symbol] += entry.Shares
		if held[entry.Symbol] < 0 {
			return fmt.Errorf("%s oversold at %s", entry.Symbol, entry.Reference)
		}
	}

	if cash.Amount.IsNegative() {
		return fmt.Errorf("negative cash %s", cash.Amount)
	}
	if !expected.Equal(cash.Amount) {
		return fmt.Errorf("cash %s does not match replayed %s over %d trades", cash.Amount, expected, len(history))
	}

	log.Info().
		Int("trades", len(history)).
		Str("cash", types.FormatUSD(cash.Amount)).
		Msg("Ledger replayed")
	return nil
}

// startServer serves the API from an in-memory ledger priced by the simulator
func startServer() error {
	db, err := database.NewDatabase(database.DriverSQLite, ":memory:")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	authService := auth.NewService(db, "simulation-secret", time.Hour, decimal.RequireFromString(startingCash))
	portfolioService := portfolio.NewService(db, market.NewSimulator())

	router := server.NewRouter(authService, portfolioService, server.Options{})

	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	go func() {
		if err := http.Serve(listener, router); err != nil {
			log.Fatal().Err(err).Msg("Server stopped")
		}
	}()
	return nil
}
