package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/paper-exchange/internal/auth"
	"github.com/ksred/paper-exchange/internal/engine"
	"github.com/ksred/paper-exchange/internal/ledger"
	"github.com/ksred/paper-exchange/internal/pricing"
	"github.com/ksred/paper-exchange/internal/types"
	"github.com/ksred/paper-exchange/internal/wallet"
	"github.com/ksred/paper-exchange/pkg/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	minOrders     = 15
	maxOrders     = 60
	numWorkers    = 5
	serverAddress = "http://localhost:8080"
	jwtSecret     = "paper-exchange-secret-key"
)

var (
	pairs = []string{"BTC/USDT", "ETH/USDT", "BNB/USDT", "SOL/USDT", "XRP/USDT"}
	sides = []types.OrderSide{types.SideBuy, types.SideSell}
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

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

// simulationClient handles HTTP communication with the paper exchange API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates with the API and prepares performance tracking
func newSimulationClient() (*simulationClient, error) {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"auth":      {name: "Authentication"},
			"deposit":   {name: "Deposit"},
			"place":     {name: "Place Order"},
			"get":       {name: "Get Order"},
			"portfolio": {name: "Portfolio Summary"},
		},
	}

	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	credentials := map[string]string{
		"api_key":    auth.TestAPIKey,
		"api_secret": auth.TestAPISecret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Data.Token, nil
}

// deposit credits a currency so the simulated clients have funds to trade
func (sc *simulationClient) deposit(currency string, amount float64) error {
	start := time.Now()
	defer func() {
		sc.stats["deposit"].addDuration(time.Since(start))
	}()

	body, err := json.Marshal(map[string]interface{}{
		"currency": currency,
		"amount":   amount,
	})
	if err != nil {
		return err
	}

	respBody, err := sc.do("POST", "/api/v1/wallet/deposit", body)
	if err != nil {
		sc.stats["deposit"].failures++
		return err
	}
	log.Debug().Str("response", string(respBody)).Msg("Deposit response")
	return nil
}

// placeOrder submits a new order to the API
// Returns the order ID on success
func (sc *simulationClient) placeOrder(req types.OrderRequest) (int64, error) {
	start := time.Now()
	defer func() {
		sc.stats["place"].addDuration(time.Since(start))
	}()

	body, err := json.Marshal(req)
	if err != nil {
		return 0, err
	}

	respBody, err := sc.do("POST", "/api/v1/orders", body)
	if err != nil {
		sc.stats["place"].failures++
		return 0, err
	}
	log.Debug().Str("response", string(respBody)).Msg("Place order response")

	var result struct {
		Success bool        `json:"success"`
		Data    types.Order `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	if result.Data.ID == 0 {
		return 0, fmt.Errorf("no order ID in response: %s", string(respBody))
	}

	return result.Data.ID, nil
}

// getOrder retrieves the current status of an order
func (sc *simulationClient) getOrder(orderID int64) (*types.Order, error) {
	start := time.Now()
	defer func() {
		sc.stats["get"].addDuration(time.Since(start))
	}()

	respBody, err := sc.do("GET", fmt.Sprintf("/api/v1/orders/%d", orderID), nil)
	if err != nil {
		sc.stats["get"].failures++
		return nil, err
	}

	var result struct {
		Success bool        `json:"success"`
		Data    types.Order `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	return &result.Data, nil
}

// portfolioSummary retrieves the current portfolio valuation
func (sc *simulationClient) portfolioSummary() (*types.PortfolioSummary, error) {
	start := time.Now()
	defer func() {
		sc.stats["portfolio"].addDuration(time.Since(start))
	}()

	respBody, err := sc.do("GET", "/api/v1/portfolio/summary", nil)
	if err != nil {
		sc.stats["portfolio"].failures++
		return nil, err
	}

	var result struct {
		Success bool                   `json:"success"`
		Data    types.PortfolioSummary `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	return &result.Data, nil
}

func (sc *simulationClient) do(method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewBuffer(body)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
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

// main runs the trading simulation
// It starts a local API server and simulates multiple concurrent trading clients
func main() {
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	// Fund the account so sell orders have inventory to work with
	if err := simClient.deposit("USDT", 500000); err != nil {
		log.Fatal().Err(err).Msg("Failed to fund account")
	}
	for _, pair := range pairs {
		if err := simClient.deposit(types.BaseCurrency(pair), 25); err != nil {
			log.Fatal().Err(err).Msg("Failed to fund account")
		}
	}

	targetOrders := rand.Intn(maxOrders-minOrders) + minOrders
	log.Info().Int("target_orders", targetOrders).Msg("Starting simulation")

	ordersChan := make(chan int64, targetOrders)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			placeOrdersHTTP(workerID, targetOrders/numWorkers, simClient, ordersChan)
		}(i)
	}

	wg.Wait()
	close(ordersChan)

	var orderIDs []int64
	for orderID := range ordersChan {
		orderIDs = append(orderIDs, orderID)
	}

	log.Info().Int("orders_placed", len(orderIDs)).Msg("All orders placed")

	// Give async settlement time to run, then poll each order to a stable state
	time.Sleep(4 * time.Second)

	stats := struct {
		TotalOrders  int
		FilledOrders int
		OpenOrders   int
		FailedOrders int
		TotalValue   float64
		StartTime    time.Time
		Pairs        map[string]int
		Sides        map[string]int
	}{
		StartTime: time.Now(),
		Pairs:     make(map[string]int),
		Sides:     make(map[string]int),
	}
	stats.TotalOrders = len(orderIDs)

	for _, orderID := range orderIDs {
		order, err := simClient.getOrder(orderID)
		if err != nil {
			log.Error().Err(err).Int64("order_id", orderID).Msg("Failed to fetch order")
			continue
		}

		stats.Pairs[order.Pair]++
		stats.Sides[string(order.Side)]++

		switch order.Status {
		case types.StatusFilled:
			stats.FilledOrders++
			stats.TotalValue += order.Execution.TotalValue
			log.Info().
				Int64("order_id", order.ID).
				Float64("executed_price", order.Execution.ExecutedPrice).
				Float64("total_value", order.Execution.TotalValue).
				Msg("Order filled")
		case types.StatusOpen, types.StatusPending:
			stats.OpenOrders++
			log.Info().
				Int64("order_id", order.ID).
				Str("status", string(order.Status)).
				Msg("Order still resting")
		case types.StatusFailed:
			stats.FailedOrders++
			log.Warn().
				Int64("order_id", order.ID).
				Str("error", order.Error).
				Msg("Order failed")
		}
	}

	summary, err := simClient.portfolioSummary()
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch portfolio summary")
	}

	// Print summary
	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("PAPER EXCHANGE SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
Order Statistics
------------------
Total Orders:   %d
Filled:         %d
Resting:        %d
Failed:         %d
Traded Value:   $%.2f
Duration:       %v

Pair Distribution
--------------------
`, stats.TotalOrders, stats.FilledOrders, stats.OpenOrders, stats.FailedOrders,
		stats.TotalValue, duration.Round(time.Millisecond))

	maxPairCount := 0
	for _, count := range stats.Pairs {
		if count > maxPairCount {
			maxPairCount = count
		}
	}
	for pair, count := range stats.Pairs {
		barLength := int(float64(count) / float64(maxPairCount) * 20)
		bar := strings.Repeat("#", barLength)
		fmt.Printf("%-10s: %s (%d)\n", pair, bar, count)
	}

	fmt.Println("\nSide Distribution")
	fmt.Println("------------------")
	for side, count := range stats.Sides {
		barLength := int(float64(count) / float64(stats.TotalOrders) * 20)
		bar := strings.Repeat("#", barLength)
		fmt.Printf("%-4s: %s (%d)\n", side, bar, count)
	}

	if summary != nil {
		fmt.Printf(`
Portfolio
------------------
Total Value:    $%.2f
Unrealized PnL: $%.2f (%.2f%%)
Holdings:       %d
`, summary.TotalValue, summary.TotalPnl, summary.TotalPnlPercent, len(summary.Holdings))
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	fillRate := float64(stats.FilledOrders) / float64(stats.TotalOrders) * 100
	log.Info().
		Float64("fill_rate", fillRate).
		Int("total_orders", stats.TotalOrders).
		Int("filled_orders", stats.FilledOrders).
		Float64("traded_value", stats.TotalValue).
		Dur("duration", duration).
		Msg("Simulation completed")

	simClient.printPerformanceStats()
}

// placeOrdersHTTP generates and submits random orders to the API
// Runs as a worker goroutine, sending created order IDs to ordersChan
func placeOrdersHTTP(workerID, numOrders int, simClient *simulationClient, ordersChan chan<- int64) {
	for i := 0; i < numOrders; i++ {
		pair := pairs[rand.Intn(len(pairs))]
		req := types.OrderRequest{
			Pair:   pair,
			Side:   sides[rand.Intn(len(sides))],
			Type:   types.TypeMarket,
			Amount: rand.Float64()*0.5 + 0.01,
		}

		// A third of the flow is limit orders near the default price
		if rand.Intn(3) == 0 {
			req.Type = types.TypeLimit
			base := pricing.DefaultPrices[pricing.NormalizeSymbol(pair)]
			req.LimitPrice = base * (1 + (rand.Float64()*0.1 - 0.05))
		}

		orderID, err := simClient.placeOrder(req)
		if err != nil {
			log.Error().Err(err).
				Int("worker_id", workerID).
				Str("pair", req.Pair).
				Msg("Failed to place order")
			continue
		}

		ordersChan <- orderID
		log.Info().
			Int("worker_id", workerID).
			Int64("order_id", orderID).
			Str("pair", req.Pair).
			Str("side", string(req.Side)).
			Str("order_type", string(req.Type)).
			Float64("amount", req.Amount).
			Msg("Order placed")

		// Random sleep between orders
		time.Sleep(time.Duration(rand.Intn(500)) * time.Millisecond)
	}
}

// startServer initializes and starts the paper exchange API server
// Sets up all required services, handlers and routes against an
// in-memory ledger with no audit database
func startServer() error {
	book := ledger.New(nil, types.Balance{"USDT": 10000})

	resolver := pricing.NewResolver(
		pricing.NewCache(pricing.DefaultCacheTTL),
		pricing.NewSimulatedSource(pricing.DefaultPrices),
		pricing.ResolverOptions{},
	)

	authService := auth.NewService(jwtSecret)
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	executionEngine := engine.New(book, resolver, engine.Config{
		MinSettleLatency: 500 * time.Millisecond,
		MaxSettleLatency: 2 * time.Second,
		QuoteCurrency:    "USDT",
	})
	walletService := wallet.NewService(book, 100*time.Millisecond)

	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	engineHandlers := engine.NewGinHandlers(executionEngine)
	walletHandlers := wallet.NewGinHandlers(walletService)

	setupRoutes(router, authHandlers, engineHandlers, walletHandlers)

	return router.Run(":8080")
}

// setupRoutes configures all API endpoints and their handlers
// Groups routes by functionality and applies appropriate middleware
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	engineHandlers *engine.GinHandlers,
	walletHandlers *wallet.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Order routes
		orders := v1.Group("/orders")
		orders.Use(middleware.JWTAuth(jwtSecret))
		{
			orders.POST("", engineHandlers.PlaceOrderHandler())
			orders.GET("", engineHandlers.ActiveOrdersHandler())
			orders.GET("/history", engineHandlers.OrderHistoryHandler())
			orders.GET("/:order_id", engineHandlers.GetOrderHandler())
			orders.DELETE("/:order_id", engineHandlers.CancelOrderHandler())
		}

		// Portfolio routes
		portfolio := v1.Group("/portfolio")
		portfolio.Use(middleware.JWTAuth(jwtSecret))
		{
			portfolio.GET("/balance", engineHandlers.BalanceHandler())
			portfolio.GET("/positions", engineHandlers.PositionsHandler())
			portfolio.GET("/summary", engineHandlers.PortfolioHandler())
		}

		// Wallet routes
		walletGroup := v1.Group("/wallet")
		walletGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			walletGroup.POST("/deposit", walletHandlers.DepositHandler())
			walletGroup.POST("/withdraw", walletHandlers.WithdrawHandler())
			walletGroup.GET("/transactions", walletHandlers.TransactionHistoryHandler())
		}
	}
}
