package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/stockledger/inventory-api/internal/auth"
	"github.com/stockledger/inventory-api/internal/database"
	"github.com/stockledger/inventory-api/internal/ledger"
	"github.com/stockledger/inventory-api/internal/stock"
	"github.com/stockledger/inventory-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	_ = godotenv.Load()

	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the Transactions ledger server with graceful
// shutdown support. It builds one shared stock gateway at startup and runs
// the adjustment processor alongside the HTTP server.
func main() {
	dsn := os.Getenv("TRANSACTIONS_DB")
	if dsn == "" {
		dsn = "transactions.db"
	}

	db, err := database.NewTransactionsDatabase(dsn)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "inventory-secret-key"
	}

	productsURL := os.Getenv("PRODUCTS_SERVICE_URL")
	if productsURL == "" {
		productsURL = "http://localhost:8081/api/v1/products"
	}

	router := gin.Default()

	apiKey := os.Getenv("API_KEY")
	if apiKey == "" {
		apiKey = auth.DefaultAPIKey
	}
	apiSecret := os.Getenv("API_SECRET")
	if apiSecret == "" {
		apiSecret = auth.DefaultAPISecret
	}

	authService := auth.NewService(jwtSecret)
	authHandlers := auth.NewGinHandlers(authService)
	authService.RegisterAPICredentials(apiKey, apiSecret)

	// Mint a service token for stock writes against the Products side.
	// Both services are configured with the same signing secret.
	serviceToken, err := authService.GenerateToken(auth.Credentials{
		APIKey:    apiKey,
		APISecret: apiSecret,
	})
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to generate service token")
	}

	gateway := stock.NewClient(productsURL, serviceToken.Token)

	ledgerService := ledger.NewService(db, gateway)
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)

	// Create and start the stock adjustment processor
	adjustmentProcessor := ledger.NewProcessor(ledger.NewDatabase(db), gateway)
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go adjustmentProcessor.Start(processorCtx)

	router.Use(middleware.RateLimit())

	setupRoutes(router, jwtSecret, authHandlers, ledgerHandlers)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
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
	zlog.Info().Msg("Shutting down transactions server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures the Transactions ledger endpoints:
// - Auth routes: Public endpoints for authentication
// - Listing: Public filtered listing of active entries
// - Mutations: Protected by JWT authentication
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		transactions := v1.Group("/transactions")
		{
			transactions.GET("", ledgerHandlers.ListEntriesHandler())
		}

		protected := v1.Group("/transactions")
		protected.Use(middleware.JWTAuth(jwtSecret))
		{
			protected.POST("", ledgerHandlers.CreateEntryHandler())
			protected.PATCH("/:entry_id", ledgerHandlers.AmendEntryHandler())
			protected.DELETE("/:entry_id", ledgerHandlers.RetireEntryHandler())
		}
	}
}
