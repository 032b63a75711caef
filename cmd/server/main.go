// Package main provides the unified service that runs the whole pipeline:
// - Dispatch (scheduled): timeline ingest → signal extraction → execution
// - SSE: live new-signal / trade events for frontends
// - HTTP: health, status and Prometheus metrics
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	clsopenai "solana-signal-trader/internal/classifier/openai"
	"solana-signal-trader/internal/dex"
	"solana-signal-trader/internal/dispatch"
	"solana-signal-trader/internal/events"
	"solana-signal-trader/internal/executor"
	"solana-signal-trader/internal/ingest"
	"solana-signal-trader/internal/observability"
	"solana-signal-trader/internal/price"
	"solana-signal-trader/internal/solana"
	"solana-signal-trader/internal/storage/migrations"
	"solana-signal-trader/internal/twitter"

	chstore "solana-signal-trader/internal/storage/clickhouse"
	"solana-signal-trader/internal/storage/memory"
	pgstore "solana-signal-trader/internal/storage/postgres"
)

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("SOLANA_WS_ENDPOINT"), "Solana RPC WebSocket endpoint for fast confirmations (optional)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for the trade archive (optional)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	rapidAPIKey := flag.String("rapidapi-key", os.Getenv("RAPID_API_KEY"), "RapidAPI key for the twitter data source")
	llmKey := flag.String("llm-key", os.Getenv("OPENAI_COMPATIBLE_KEY"), "API key for the OpenAI-compatible classifier")
	llmURL := flag.String("llm-url", os.Getenv("OPENAI_COMPATIBLE_URL"), "Base URL of the OpenAI-compatible API (default DeepSeek)")
	llmModel := flag.String("llm-model", os.Getenv("LLM_MODEL"), "Chat model for classification")
	platformFee := flag.Float64("platform-fee-pct", envFloat("PLATFORM_FEE_PERCENT", executor.DefaultPlatformFeePct), "Platform fee percent of the input amount")
	pollInterval := flag.Duration("poll-interval", dispatch.DefaultInterval, "Dispatch poll interval")
	concurrency := flag.Int("concurrency", dispatch.DefaultConcurrency, "Accounts processed in parallel per pass")
	httpAddr := flag.String("http-addr", ":8080", "HTTP address for health/status/events/metrics")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if *rapidAPIKey == "" {
		logger.Fatal("--rapidapi-key is required")
	}
	if *llmKey == "" {
		logger.Fatal("--llm-key is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("")
	bus := events.NewBus()
	defer bus.Close()

	httpChain := solana.NewHTTPClient(*rpcEndpoint,
		solana.WithCallObserver(func(method string, elapsed time.Duration) {
			metrics.RPCCallLatency.WithLabelValues(method).Observe(elapsed.Seconds())
		}))
	var chain executor.ChainClient = httpChain
	if *wsEndpoint != "" {
		confirming := solana.NewConfirmingClient(httpChain, *wsEndpoint, nil)
		defer confirming.Close()
		chain = confirming
	}
	source := twitter.NewRapidAPIClient(*rapidAPIKey, logger)
	cls := clsopenai.NewTweetClassifier(*llmKey, *llmURL, *llmModel, logger)
	prices := price.NewJupiterSource(logger, price.WithFallback(price.NewCoinGeckoSource(logger)))
	aggregator := dex.NewRaydiumClient()

	hostname, _ := os.Hostname()
	exec := executor.New(
		executor.Config{
			Owner:          fmt.Sprintf("%s-%d", hostname, os.Getpid()),
			PlatformFeePct: *platformFee,
		},
		stores,
		chain,
		aggregator,
		prices,
		bus,
		metrics,
		logger,
	)

	ingestor := ingest.NewTweetIngestor(source, cls, stores.Accounts, stores.Tweets, stores.Signals, bus, logger)

	scheduler := dispatch.NewScheduler(stores.Accounts, stores.Signals, ingestor, exec, metrics, logger,
		dispatch.WithInterval(*pollInterval), dispatch.WithConcurrency(*concurrency))
	scheduler.Start(ctx)

	startedAt := time.Now()
	go startHTTPServer(*httpAddr, bus, startedAt, logger)

	logger.Printf("Pipeline running: poll interval %v, concurrency %d", *pollInterval, *concurrency)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Printf("Received signal %v, initiating graceful shutdown...", sig)

	cancel()
	scheduler.Stop()
	logger.Printf("Shutdown complete")
}

// createStores builds the storage layer, running migrations against
// PostgreSQL (and ClickHouse when configured).
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool, logger *log.Logger) (executor.Stores, func(), error) {
	if useMemory {
		tweets := memory.NewTweetStore()
		return executor.Stores{
			Accounts: memory.NewTrackedAccountStore(),
			Tweets:   tweets,
			Signals:  memory.NewTokenSignalStore(tweets),
			Users:    memory.NewUserStore(),
			Trades:   memory.NewTradeStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return executor.Stores{}, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return executor.Stores{}, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	stores := executor.Stores{
		Accounts: pgstore.NewTrackedAccountStore(pool),
		Tweets:   pgstore.NewTweetStore(pool),
		Signals:  pgstore.NewTokenSignalStore(pool),
		Users:    pgstore.NewUserStore(pool),
		Trades:   pgstore.NewTradeStore(pool),
	}
	cleanup := func() { pool.Close() }

	if clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return executor.Stores{}, nil, fmt.Errorf("connect clickhouse: %w", err)
		}
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			conn.Close()
			pool.Close()
			return executor.Stores{}, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		stores.Archive = chstore.NewTradeArchiveStore(conn)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
		logger.Printf("Trade archive enabled (ClickHouse)")
	}

	return stores, cleanup, nil
}

// startHTTPServer serves health, status, metrics and the SSE event stream.
func startHTTPServer(addr string, bus *events.Bus, startedAt time.Time, logger *log.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())
	mux.Handle("/events", events.NewSSEHandler(bus, logger))

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status": "running",
			"uptime": time.Since(startedAt).String(),
		})
	})

	logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("HTTP server error: %v", err)
	}
}

// envFloat reads a float env var, falling back on absence or parse failure.
func envFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var v float64
	if _, err := fmt.Sscanf(raw, "%g", &v); err != nil {
		return fallback
	}
	return v
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
