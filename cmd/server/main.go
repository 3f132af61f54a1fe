package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/ksred/paper-exchange/internal/auth"
	"github.com/ksred/paper-exchange/internal/config"
	"github.com/ksred/paper-exchange/internal/database"
	"github.com/ksred/paper-exchange/internal/engine"
	"github.com/ksred/paper-exchange/internal/ledger"
	"github.com/ksred/paper-exchange/internal/pricing"
	"github.com/ksred/paper-exchange/internal/types"
	"github.com/ksred/paper-exchange/internal/wallet"
	"github.com/ksred/paper-exchange/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via APP_DEBUG
func init() {
	// Configure pretty logging for development
	if os.Getenv("APP_ENVIRONMENT") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("APP_DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the paper exchange API server with graceful
// shutdown support. All services are constructed here once and passed by
// reference to their consumers.
func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize audit database
	db, err := database.NewDatabase(cfg.App.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Ledger seeded with the starting quote balance
	book := ledger.New(ledger.NewDatabase(db), types.Balance{
		cfg.Engine.QuoteCurrency: cfg.Engine.StartingBalance,
	})

	// Price pipeline: cache -> source -> stale cache -> defaults
	var source pricing.Source
	if cfg.Pricing.SourceURL != "" {
		source = pricing.NewHTTPSource(cfg.Pricing.SourceURL, cfg.Pricing.RequestTimeout)
	} else {
		source = pricing.NewSimulatedSource(pricing.DefaultPrices)
	}
	resolver := pricing.NewResolver(
		pricing.NewCache(cfg.Pricing.CacheTTL),
		source,
		pricing.ResolverOptions{
			MinRequestInterval: cfg.Pricing.MinRequestInterval,
			RequestTimeout:     cfg.Pricing.RequestTimeout,
		},
	)

	// Initialize services and handlers
	authService := auth.NewService(cfg.Auth.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	executionEngine := engine.New(book, resolver, engine.Config{
		MinSettleLatency: cfg.Engine.MinSettleLatency,
		MaxSettleLatency: cfg.Engine.MaxSettleLatency,
		QuoteCurrency:    cfg.Engine.QuoteCurrency,
	})
	engineHandlers := engine.NewGinHandlers(executionEngine)

	walletService := wallet.NewService(book, cfg.Engine.WalletLatency)
	walletHandlers := wallet.NewGinHandlers(walletService)

	// Create and start the resting order processor
	processor := engine.NewProcessor(executionEngine, cfg.Engine.ReevalInterval)
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go processor.Start(processorCtx)

	// Initialize router
	router := gin.Default()
	router.Use(middleware.RateLimit())

	setupRoutes(router, cfg.Auth.JWTSecret, authHandlers, engineHandlers, walletHandlers)

	// Create server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Order, portfolio and wallet routes: Protected by JWT authentication
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
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
