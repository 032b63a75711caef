// Package main provides an operational CLI for the signal pipeline:
// registering tracked accounts and users, wiring subscriptions, and
// running a one-shot ingest pass without the execution side.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	clsopenai "solana-signal-trader/internal/classifier/openai"
	"solana-signal-trader/internal/domain"
	"solana-signal-trader/internal/idhash"
	"solana-signal-trader/internal/ingest"
	"solana-signal-trader/internal/solana"
	"solana-signal-trader/internal/storage"
	"solana-signal-trader/internal/storage/migrations"
	pgstore "solana-signal-trader/internal/storage/postgres"
	"solana-signal-trader/internal/twitter"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")

	addAccount := flag.String("add-account", "", "Register a tracked account by handle")
	addUser := flag.String("add-user", "", "Register a user by ID")
	wallet := flag.String("wallet", "", "Wallet address for -add-user")
	tradeAmount := flag.Float64("trade-amount", 0, "Per-signal buy size in SOL for -add-user")
	autoTrading := flag.Bool("auto-trading", false, "Enable automatic execution for -add-user")
	maxPosition := flag.Float64("max-position", 0, "Max cumulative SOL per token for -add-user (0 = unlimited)")
	maxAllocation := flag.Float64("max-allocation", 0, "Max portfolio percent per token for -add-user (0 = unlimited)")

	subscribe := flag.String("subscribe", "", "Subscribe a user to an account, format handle:userID")

	runOnce := flag.Bool("run-once", false, "Run one ingest pass over all subscribed accounts")
	rapidAPIKey := flag.String("rapidapi-key", os.Getenv("RAPID_API_KEY"), "RapidAPI key for -run-once")
	llmKey := flag.String("llm-key", os.Getenv("OPENAI_COMPATIBLE_KEY"), "Classifier API key for -run-once")
	llmURL := flag.String("llm-url", os.Getenv("OPENAI_COMPATIBLE_URL"), "Classifier base URL for -run-once")
	llmModel := flag.String("llm-model", os.Getenv("LLM_MODEL"), "Classifier model for -run-once")

	flag.Parse()

	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Connect postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("Run migrations: %v", err)
	}

	accounts := pgstore.NewTrackedAccountStore(pool)
	tweets := pgstore.NewTweetStore(pool)
	signals := pgstore.NewTokenSignalStore(pool)
	users := pgstore.NewUserStore(pool)

	switch {
	case *addAccount != "":
		registerAccount(ctx, accounts, *addAccount, logger)

	case *addUser != "":
		registerUser(ctx, users, *addUser, *wallet, *tradeAmount, *autoTrading, *maxPosition, *maxAllocation, logger)

	case *subscribe != "":
		link(ctx, accounts, users, *subscribe, logger)

	case *runOnce:
		if *rapidAPIKey == "" || *llmKey == "" {
			logger.Fatal("--rapidapi-key and --llm-key are required for -run-once")
		}
		source := twitter.NewRapidAPIClient(*rapidAPIKey, logger)
		cls := clsopenai.NewTweetClassifier(*llmKey, *llmURL, *llmModel, logger)
		ingestor := ingest.NewTweetIngestor(source, cls, accounts, tweets, signals, nil, logger)
		runPass(ctx, accounts, ingestor, logger)

	default:
		flag.Usage()
		os.Exit(2)
	}
}

func registerAccount(ctx context.Context, accounts storage.TrackedAccountStore, handle string, logger *log.Logger) {
	account := &domain.TrackedAccount{
		AccountID: idhash.ComputeAccountID(handle),
		Handle:    handle,
		CreatedAt: time.Now().UnixMilli(),
	}

	err := accounts.Insert(ctx, account)
	if errors.Is(err, storage.ErrDuplicateKey) {
		logger.Fatalf("Account @%s already registered", handle)
	}
	if err != nil {
		logger.Fatalf("Insert account: %v", err)
	}
	fmt.Printf("Registered account @%s (%s)\n", handle, account.AccountID)
}

func registerUser(ctx context.Context, users storage.UserStore, userID, wallet string, tradeAmount float64, autoTrading bool, maxPosition, maxAllocation float64, logger *log.Logger) {
	if wallet != "" && !solana.ValidPubkey(wallet) {
		logger.Fatalf("Invalid wallet address %q", wallet)
	}

	user := &domain.User{
		UserID:        userID,
		WalletAddress: wallet,
		AutoTrading:   autoTrading,
		TradeAmount:   tradeAmount,
		CreatedAt:     time.Now().UnixMilli(),
	}
	if maxPosition > 0 {
		user.MaxPositionSize = &maxPosition
	}
	if maxAllocation > 0 {
		user.MaxTokenAllocation = &maxAllocation
	}

	err := users.Insert(ctx, user)
	if errors.Is(err, storage.ErrDuplicateKey) {
		logger.Fatalf("User %s already registered", userID)
	}
	if err != nil {
		logger.Fatalf("Insert user: %v", err)
	}
	fmt.Printf("Registered user %s (eligible for auto trading: %v)\n", userID, user.Eligible())
}

func link(ctx context.Context, accounts storage.TrackedAccountStore, users storage.UserStore, spec string, logger *log.Logger) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		logger.Fatalf("Invalid -subscribe %q, expected handle:userID", spec)
	}
	handle, userID := parts[0], parts[1]

	account, err := accounts.GetByHandle(ctx, handle)
	if err != nil {
		logger.Fatalf("Account @%s: %v", handle, err)
	}
	if _, err := users.GetByID(ctx, userID); err != nil {
		logger.Fatalf("User %s: %v", userID, err)
	}

	if err := accounts.Subscribe(ctx, account.AccountID, userID, time.Now().UnixMilli()); err != nil {
		logger.Fatalf("Subscribe: %v", err)
	}
	fmt.Printf("Subscribed %s to @%s\n", userID, handle)
}

func runPass(ctx context.Context, accounts storage.TrackedAccountStore, ingestor *ingest.TweetIngestor, logger *log.Logger) {
	list, err := accounts.ListWithSubscribers(ctx)
	if err != nil {
		logger.Fatalf("List accounts: %v", err)
	}
	if len(list) == 0 {
		fmt.Println("No subscribed accounts")
		return
	}

	for _, account := range list {
		stats, err := ingestor.Ingest(ctx, account)
		if err != nil {
			logger.Printf("@%s: %v", account.Handle, err)
			continue
		}
		fmt.Printf("@%s: %d fetched, %d fresh, %d new tweets, %d signals\n",
			account.Handle, stats.Fetched, stats.Fresh, stats.NewTweets, stats.NewSignals)
	}
}
