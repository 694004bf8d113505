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
	"github.com/stockledger/inventory-api/internal/catalog"
	"github.com/stockledger/inventory-api/internal/database"
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

// main initializes and runs the Products registry server with graceful
// shutdown support
func main() {
	dsn := os.Getenv("PRODUCTS_DB")
	if dsn == "" {
		dsn = "products.db"
	}

	db, err := database.NewProductsDatabase(dsn)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "inventory-secret-key"
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

	catalogService := catalog.NewService(db)
	catalogHandlers := catalog.NewGinHandlers(catalogService)

	router.Use(middleware.RateLimit())

	setupRoutes(router, jwtSecret, authHandlers, catalogHandlers)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
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
	zlog.Info().Msg("Shutting down products server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures the Products registry endpoints:
// - Auth routes: Public endpoints for authentication
// - Read routes: Public product listing and lookup (consumed by the
//   dashboard and by the transactions side's stock gateway)
// - Write routes: Protected by JWT authentication; PATCH carries the
//   service-to-service check because it doubles as the stock write endpoint
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	catalogHandlers *catalog.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		products := v1.Group("/products")
		{
			products.GET("", catalogHandlers.ListProductsHandler())
			products.GET("/:product_id", catalogHandlers.GetProductHandler())
		}

		protected := v1.Group("/products")
		protected.Use(middleware.JWTAuth(jwtSecret))
		{
			protected.POST("", catalogHandlers.CreateProductHandler())
			protected.PUT("/:product_id", catalogHandlers.UpdateProductHandler())
			protected.DELETE("/:product_id", catalogHandlers.DeleteProductHandler())
		}

		// PATCH is the stock write endpoint the transactions side calls
		// during reconciliation, so it takes the service-to-service check.
		internal := v1.Group("/products")
		internal.Use(middleware.InternalAuth(jwtSecret))
		{
			internal.PATCH("/:product_id", catalogHandlers.PatchProductHandler())
		}
	}
}
