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
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/stockledger/inventory-api/internal/auth"
	"github.com/stockledger/inventory-api/internal/catalog"
	"github.com/stockledger/inventory-api/internal/database"
	"github.com/stockledger/inventory-api/internal/ledger"
	"github.com/stockledger/inventory-api/internal/stock"
	"github.com/stockledger/inventory-api/pkg/middleware"
)

const (
	minEntries          = 20
	maxEntries          = 120
	numWorkers          = 5
	numProducts         = 8
	initialStock        = 500
	jwtSecret           = "inventory-secret-key"
	productsAddress     = "http://localhost:8081"
	transactionsAddress = "http://localhost:8080"
)

var categories = []string{"Electronics", "Groceries", "Hardware", "Stationery"}

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

// simulationClient handles HTTP communication with both services
type simulationClient struct {
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates with the transactions API and prepares performance tracking
func newSimulationClient() (*simulationClient, error) {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		client: client,
		stats: map[string]*routeStats{
			"auth":    {name: "Authentication"},
			"product": {name: "Create Product"},
			"create":  {name: "Create Entry"},
			"amend":   {name: "Amend Entry"},
			"retire":  {name: "Retire Entry"},
			"list":    {name: "List Entries"},
			"stock":   {name: "Get Product"},
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
		"api_key":    auth.DefaultAPIKey,
		"api_secret": auth.DefaultAPISecret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", transactionsAddress),
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

// do sends an authenticated JSON request and decodes the envelope's data
// field into out when out is non-nil
func (sc *simulationClient) do(statKey, method, url string, payload, out interface{}) error {
	start := time.Now()
	defer func() {
		sc.stats[statKey].addDuration(time.Since(start))
	}()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats[statKey].failures++
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Msg("API response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sc.stats[statKey].failures++
		return fmt.Errorf("%s %s failed with status %d: %s", method, url, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return json.Unmarshal(envelope.Data, out)
}

// createProduct registers a product on the Products side
func (sc *simulationClient) createProduct(index int) (*catalog.Product, error) {
	product := &catalog.Product{
		Name:        fmt.Sprintf("Product %d", index),
		Description: "Simulation inventory item",
		Category:    categories[rand.Intn(len(categories))],
		Price:       decimal.NewFromInt(int64(rand.Intn(900) + 100)),
		Stock:       initialStock,
	}

	var created catalog.Product
	url := fmt.Sprintf("%s/api/v1/products", productsAddress)
	if err := sc.do("product", "POST", url, product, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// getProduct reads a product's current state, including stock
func (sc *simulationClient) getProduct(productID uint) (*catalog.Product, error) {
	var product catalog.Product
	url := fmt.Sprintf("%s/api/v1/products/%d", productsAddress, productID)
	if err := sc.do("stock", "GET", url, nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// createEntry records a purchase or sale on the Transactions side
func (sc *simulationClient) createEntry(draft ledger.EntryDraft) (*ledger.LedgerEntry, error) {
	var entry ledger.LedgerEntry
	url := fmt.Sprintf("%s/api/v1/transactions", transactionsAddress)
	if err := sc.do("create", "POST", url, draft, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// amendEntry changes an entry's quantity
func (sc *simulationClient) amendEntry(entryID string, quantity int) (*ledger.LedgerEntry, error) {
	payload := map[string]interface{}{"quantity": quantity}

	var entry ledger.LedgerEntry
	url := fmt.Sprintf("%s/api/v1/transactions/%s", transactionsAddress, entryID)
	if err := sc.do("amend", "PATCH", url, payload, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// retireEntry tombstones an entry
func (sc *simulationClient) retireEntry(entryID string) error {
	url := fmt.Sprintf("%s/api/v1/transactions/%s", transactionsAddress, entryID)
	return sc.do("retire", "DELETE", url, nil, nil)
}

// listEntries fetches active entries for a product
func (sc *simulationClient) listEntries(productID uint) ([]ledger.LedgerEntry, error) {
	var entries []ledger.LedgerEntry
	url := fmt.Sprintf("%s/api/v1/transactions?product_id=%d", transactionsAddress, productID)
	if err := sc.do("list", "GET", url, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
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

// main runs the inventory simulation
// It starts both services in-process and drives concurrent ledger traffic
func main() {
	go func() {
		if err := startProductsServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start products server")
		}
	}()
	go func() {
		if err := startTransactionsServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start transactions server")
		}
	}()

	// Wait for servers to start
	time.Sleep(2 * time.Second)

	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	// Seed products
	var productIDs []uint
	for i := 0; i < numProducts; i++ {
		product, err := simClient.createProduct(i + 1)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to seed product")
		}
		productIDs = append(productIDs, product.ProductID)
	}
	log.Info().Int("products", len(productIDs)).Msg("Seeded products")

	targetEntries := rand.Intn(maxEntries-minEntries) + minEntries
	log.Info().Int("target_entries", targetEntries).Msg("Starting simulation")

	entriesChan := make(chan *ledger.LedgerEntry, targetEntries)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			createEntriesHTTP(workerID, targetEntries/numWorkers, simClient, productIDs, entriesChan)
		}(i)
	}

	wg.Wait()
	close(entriesChan)

	var entries []*ledger.LedgerEntry
	for entry := range entriesChan {
		entries = append(entries, entry)
	}
	log.Info().Int("entries_created", len(entries)).Msg("All entries created")

	stats := struct {
		TotalEntries int
		Amended      int
		Retired      int
		FailedAmend  int
		FailedRetire int
		Drifted      int
		StartTime    time.Time
		Kinds        map[string]int
	}{
		StartTime: time.Now(),
		Kinds:     make(map[string]int),
	}
	stats.TotalEntries = len(entries)

	for _, entry := range entries {
		stats.Kinds[entry.Kind]++
	}

	// Amend roughly a third of the entries, retire roughly a fifth
	for _, entry := range entries {
		switch rand.Intn(15) {
		case 0, 1, 2, 3, 4:
			newQuantity := rand.Intn(10) + 1
			if _, err := simClient.amendEntry(entry.EntryID, newQuantity); err != nil {
				log.Warn().Err(err).Str("entry_id", entry.EntryID).Msg("Failed to amend entry")
				stats.FailedAmend++
				continue
			}
			stats.Amended++
		case 5, 6, 7:
			if err := simClient.retireEntry(entry.EntryID); err != nil {
				log.Warn().Err(err).Str("entry_id", entry.EntryID).Msg("Failed to retire entry")
				stats.FailedRetire++
				continue
			}
			stats.Retired++
		}
	}

	// Verify every product's stock is still non-negative and that retired
	// entries no longer surface in listings
	for _, productID := range productIDs {
		product, err := simClient.getProduct(productID)
		if err != nil {
			log.Error().Err(err).Uint("product_id", productID).Msg("Failed to read final stock")
			continue
		}
		if product.Stock < 0 {
			stats.Drifted++
			log.Error().
				Uint("product_id", productID).
				Int("stock", product.Stock).
				Msg("Negative stock observed")
		}

		active, err := simClient.listEntries(productID)
		if err != nil {
			log.Error().Err(err).Uint("product_id", productID).Msg("Failed to list entries")
			continue
		}
		log.Info().
			Uint("product_id", productID).
			Int("stock", product.Stock).
			Int("active_entries", len(active)).
			Msg("Final product state")
	}

	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("INVENTORY SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf(`
Ledger Statistics
-----------------
Total Entries:  %d
Purchases:      %d
Sales:          %d
Amended:        %d
Retired:        %d
Failed Amends:  %d
Failed Retires: %d
Stock Drift:    %d
Duration:       %v
`, stats.TotalEntries, stats.Kinds[ledger.KindPurchase], stats.Kinds[ledger.KindSale],
		stats.Amended, stats.Retired, stats.FailedAmend, stats.FailedRetire,
		stats.Drifted, duration.Round(time.Millisecond))

	fmt.Println("\n" + strings.Repeat("=", 80))
	simClient.printPerformanceStats()
}

// createEntriesHTTP generates and submits random ledger entries to the API
// Runs as a worker goroutine, sending created entries to entriesChan
func createEntriesHTTP(workerID, numEntries int, simClient *simulationClient, productIDs []uint, entriesChan chan<- *ledger.LedgerEntry) {
	for i := 0; i < numEntries; i++ {
		kind := ledger.KindPurchase
		if rand.Intn(2) == 0 {
			kind = ledger.KindSale
		}
		quantity := rand.Intn(20) + 1
		unitPrice := decimal.NewFromInt(int64(rand.Intn(500) + 50))

		draft := ledger.EntryDraft{
			Kind:       kind,
			ProductID:  productIDs[rand.Intn(len(productIDs))],
			Quantity:   quantity,
			UnitPrice:  unitPrice,
			TotalPrice: unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
			Detail:     fmt.Sprintf("simulation worker %d entry %d", workerID, i),
		}

		entry, err := simClient.createEntry(draft)
		if err != nil {
			log.Warn().Err(err).
				Int("worker_id", workerID).
				Str("kind", kind).
				Msg("Failed to create entry")
			continue
		}

		entriesChan <- entry
		log.Info().
			Int("worker_id", workerID).
			Str("entry_id", entry.EntryID).
			Str("kind", entry.Kind).
			Uint("product_id", entry.ProductID).
			Int("quantity", entry.Quantity).
			Msg("Entry created")

		// Random sleep between entries
		time.Sleep(time.Duration(rand.Intn(300)) * time.Millisecond)
	}
}

// startProductsServer initializes and starts the Products registry
func startProductsServer() error {
	db, err := database.NewProductsDatabase("simulation-products.db")
	if err != nil {
		return fmt.Errorf("failed to initialize products database: %w", err)
	}

	authService := auth.NewService(jwtSecret)
	authService.RegisterAPICredentials(auth.DefaultAPIKey, auth.DefaultAPISecret)
	authHandlers := auth.NewGinHandlers(authService)

	catalogService := catalog.NewService(db)
	catalogHandlers := catalog.NewGinHandlers(catalogService)

	router := gin.Default()
	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/token", authHandlers.GenerateTokenHandler())

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
			protected.PATCH("/:product_id", catalogHandlers.PatchProductHandler())
			protected.DELETE("/:product_id", catalogHandlers.DeleteProductHandler())
		}
	}

	return router.Run(":8081")
}

// startTransactionsServer initializes and starts the Transactions ledger
func startTransactionsServer() error {
	db, err := database.NewTransactionsDatabase("simulation-transactions.db")
	if err != nil {
		return fmt.Errorf("failed to initialize transactions database: %w", err)
	}

	authService := auth.NewService(jwtSecret)
	authService.RegisterAPICredentials(auth.DefaultAPIKey, auth.DefaultAPISecret)
	authHandlers := auth.NewGinHandlers(authService)

	serviceToken, err := authService.GenerateToken(auth.Credentials{
		APIKey:    auth.DefaultAPIKey,
		APISecret: auth.DefaultAPISecret,
	})
	if err != nil {
		return fmt.Errorf("failed to generate service token: %w", err)
	}

	gateway := stock.NewClient(productsAddress+"/api/v1/products", serviceToken.Token)
	ledgerService := ledger.NewService(db, gateway)
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)

	router := gin.Default()
	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/token", authHandlers.GenerateTokenHandler())

		v1.GET("/transactions", ledgerHandlers.ListEntriesHandler())

		protected := v1.Group("/transactions")
		protected.Use(middleware.JWTAuth(jwtSecret))
		{
			protected.POST("", ledgerHandlers.CreateEntryHandler())
			protected.PATCH("/:entry_id", ledgerHandlers.AmendEntryHandler())
			protected.DELETE("/:entry_id", ledgerHandlers.RetireEntryHandler())
		}
	}

	return router.Run(":8080")
}
