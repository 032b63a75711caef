// Package executor turns a claimed token signal into a confirmed swap and
// a ledger entry.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"solana-signal-trader/internal/dex"
	"solana-signal-trader/internal/domain"
	"solana-signal-trader/internal/events"
	"solana-signal-trader/internal/idhash"
	"solana-signal-trader/internal/observability"
	"solana-signal-trader/internal/price"
	"solana-signal-trader/internal/risk"
	"solana-signal-trader/internal/solana"
	"solana-signal-trader/internal/storage"
)

const (
	// ExecutionTimeout bounds one swap attempt end to end.
	ExecutionTimeout = 60 * time.Second

	// ClaimLease is the signal lease duration. It outlives the execution
	// timeout so a live executor never loses its claim mid-flight.
	ClaimLease = 2 * ExecutionTimeout

	// quoteRetries and quoteRetryDelay bound the quote fetch. Routes for
	// fresh tokens often take a moment to appear on the aggregator.
	quoteRetries    = 3
	quoteRetryDelay = 1 * time.Second

	// DefaultPlatformFeePct is the platform's cut of the input amount.
	DefaultPlatformFeePct = 0.1
)

// Sentinel errors for expected non-executions.
var (
	// ErrSignalNotClaimable means the signal is gone, terminal, or validly
	// claimed by another executor.
	ErrSignalNotClaimable = errors.New("signal not claimable")

	// ErrNoEligibleUser means no subscriber of the account qualifies for
	// automatic execution.
	ErrNoEligibleUser = errors.New("no eligible user for auto trading")

	// ErrInsufficientBalance means the wallet cannot cover the trade.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
)

// ChainClient is the Solana RPC surface the executor needs.
// *solana.HTTPClient satisfies it.
type ChainClient interface {
	GetBalance(ctx context.Context, pubkey string) (uint64, error)
	GetLatestBlockhash(ctx context.Context, commitment string) (*solana.Blockhash, error)
	SendTransaction(ctx context.Context, txBase64 string, skipPreflight bool) (string, error)
	ConfirmTransaction(ctx context.Context, signature, commitment string) error
	GetTokenAccountsByOwner(ctx context.Context, owner string) ([]solana.TokenBalance, error)
}

// Stores bundles the storage dependencies of the executor. Archive may be
// nil when no analytics sink is configured.
type Stores struct {
	Accounts storage.TrackedAccountStore
	Tweets   storage.TweetStore
	Signals  storage.TokenSignalStore
	Users    storage.UserStore
	Trades   storage.TradeStore
	Archive  storage.TradeArchiveStore
}

// Config tunes the executor.
type Config struct {
	// Owner identifies this executor instance in signal claims.
	Owner string
	// PlatformFeePct is the platform fee in percent of the input amount.
	// Zero falls back to DefaultPlatformFeePct.
	PlatformFeePct float64
	// Commitment is the confirmation commitment level. Empty means "confirmed".
	Commitment string
}

// SwapExecutor runs the signal-to-trade state machine. Safe for
// concurrent use; trades of the same user are serialized so ledger sums
// read by the risk gate are never stale mid-trade.
type SwapExecutor struct {
	cfg     Config
	stores  Stores
	chain   ChainClient
	dex     dex.Aggregator
	prices  price.Source
	gate    *risk.Gate
	bus     *events.Bus
	metrics *observability.Metrics
	logger  *log.Logger

	locksMu   sync.Mutex
	userLocks map[string]*sync.Mutex

	// stubbed in tests
	now        func() time.Time
	retryDelay time.Duration
}

// New creates a SwapExecutor. bus and metrics may be nil.
func New(
	cfg Config,
	stores Stores,
	chain ChainClient,
	aggregator dex.Aggregator,
	prices price.Source,
	bus *events.Bus,
	metrics *observability.Metrics,
	logger *log.Logger,
) *SwapExecutor {
	if cfg.PlatformFeePct == 0 {
		cfg.PlatformFeePct = DefaultPlatformFeePct
	}
	if cfg.Commitment == "" {
		cfg.Commitment = "confirmed"
	}

	return &SwapExecutor{
		cfg:        cfg,
		stores:     stores,
		chain:      chain,
		dex:        aggregator,
		prices:     prices,
		gate:       risk.NewGate(stores.Trades),
		bus:        bus,
		metrics:    metrics,
		logger:     logger,
		userLocks:  make(map[string]*sync.Mutex),
		now:        time.Now,
		retryDelay: quoteRetryDelay,
	}
}

// Execute claims the signal and runs the swap for the first eligible
// subscriber. Returns nil when the trade confirmed, a sentinel error for
// expected non-executions, and the underlying error otherwise. Past a
// successful claim the signal ends terminal (EXECUTED or FAILED), except
// when no subscriber could be resolved: that claim is released back to
// PENDING for a later pass.
func (e *SwapExecutor) Execute(ctx context.Context, signalID string) error {
	start := e.now()
	ctx, cancel := context.WithTimeout(ctx, ExecutionTimeout)
	defer cancel()

	nowMs := start.UnixMilli()
	err := e.stores.Signals.ClaimPending(ctx, signalID, e.cfg.Owner, nowMs, nowMs+ClaimLease.Milliseconds())
	if errors.Is(err, storage.ErrNotFound) {
		return ErrSignalNotClaimable
	}
	if err != nil {
		return fmt.Errorf("claim signal %s: %w", signalID, err)
	}
	if e.metrics != nil {
		e.metrics.SignalsClaimed.Inc()
	}

	signal, err := e.stores.Signals.GetByID(ctx, signalID)
	if err != nil {
		return fmt.Errorf("load signal %s: %w", signalID, err)
	}

	user, err := e.resolveUser(ctx, signal)
	if err != nil {
		// No subscriber was eligible, or a store lookup failed. Neither
		// is final: a user can re-enable auto trading, and transient
		// store errors resolve. The claim goes back to PENDING so a
		// later pass retries.
		e.releaseSignal(signalID)
		return err
	}

	// Serialize trades per user so the ledger sums the risk gate reads
	// include every prior trade of this user.
	lock := e.userLock(user.UserID)
	lock.Lock()
	defer lock.Unlock()

	avgEntry, prevPL := e.entryStats(ctx, user, signal.TokenAddress)

	trade := &domain.Trade{
		TradeID:            idhash.ComputeTradeID(signalID, user.UserID, nowMs),
		SignalID:           signalID,
		UserID:             user.UserID,
		TokenAddress:       signal.TokenAddress,
		InputAmount:        user.TradeAmount,
		PlatformFee:        user.TradeAmount * e.cfg.PlatformFeePct / 100,
		StopLoss:           user.StopLoss,
		TakeProfit:         user.TakeProfit,
		AvgEntryPrice:      avgEntry,
		PreviousProfitLoss: prevPL,
		Status:             domain.TradePending,
		CreatedAt:          nowMs,
	}
	if err := e.stores.Trades.Insert(ctx, trade); err != nil {
		e.failSignal(signalID)
		return fmt.Errorf("insert trade for signal %s: %w", signalID, err)
	}

	// The risk gate runs against the durable trade record: a rejection is
	// an auditable FAILED trade carrying the limit message.
	if err := e.gate.CheckLimits(ctx, user, signal.TokenAddress, user.TradeAmount); err != nil {
		var limitErr *risk.LimitError
		if errors.As(err, &limitErr) && e.metrics != nil {
			e.metrics.TradesRejected.WithLabelValues(string(limitErr.Limit)).Inc()
		}
		e.logger.Printf("[executor] signal %s rejected for user %s: %v", signalID, user.UserID, err)
		e.failTrade(trade, signalID, start, err)
		return err
	}

	result, err := e.runSwap(ctx, user, signal)
	if err != nil {
		e.failTrade(trade, signalID, start, err)
		return err
	}

	result.ExecutionTimeMs = e.now().Sub(start).Milliseconds()
	result.ExecutedAt = e.now().UnixMilli()

	if err := e.stores.Trades.Complete(ctx, trade.TradeID, *result); err != nil {
		return fmt.Errorf("complete trade %s: %w", trade.TradeID, err)
	}
	if err := e.stores.Signals.MarkExecuted(ctx, signalID, e.cfg.Owner, result.ExecutedAt); err != nil {
		return fmt.Errorf("mark signal %s executed: %w", signalID, err)
	}

	e.logger.Printf("[executor] signal %s executed for user %s: tx %s in %dms",
		signalID, user.UserID, result.TxSignature, result.ExecutionTimeMs)

	if e.metrics != nil {
		e.metrics.TradesCompleted.Inc()
		e.metrics.ExecutionDuration.WithLabelValues("completed").Observe(float64(result.ExecutionTimeMs) / 1000)
	}

	e.archive(trade.TradeID)
	e.publishTrade(ctx, "trade-completed", trade, signal)

	return nil
}

// resolveUser finds the first eligible subscriber of the signal's account,
// in subscription order.
func (e *SwapExecutor) resolveUser(ctx context.Context, signal *domain.TokenSignal) (*domain.User, error) {
	tweet, err := e.stores.Tweets.GetByID(ctx, signal.TweetID)
	if err != nil {
		return nil, fmt.Errorf("load tweet %s: %w", signal.TweetID, err)
	}

	subscribers, err := e.stores.Accounts.ListSubscribers(ctx, tweet.AccountID)
	if err != nil {
		return nil, fmt.Errorf("list subscribers of account %s: %w", tweet.AccountID, err)
	}

	for _, userID := range subscribers {
		user, err := e.stores.Users.GetByID(ctx, userID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load user %s: %w", userID, err)
		}
		if user.Eligible() {
			return user, nil
		}
	}

	return nil, ErrNoEligibleUser
}

// runSwap performs the on-chain part: balance check, quote, build, send,
// confirm, and execution-price readback.
func (e *SwapExecutor) runSwap(ctx context.Context, user *domain.User, signal *domain.TokenSignal) (*storage.TradeResult, error) {
	lamports := uint64(user.TradeAmount * solana.LamportsPerSOL)

	balance, err := e.chain.GetBalance(ctx, user.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("get balance of %s: %w", user.WalletAddress, err)
	}
	if balance < lamports {
		return nil, fmt.Errorf("%w: have %d lamports, need %d", ErrInsufficientBalance, balance, lamports)
	}

	fees, err := e.dex.PriorityFees(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch priority fees: %w", err)
	}

	quote, err := e.quoteWithRetry(ctx, signal.TokenAddress, lamports, user.SlippagePct())
	if err != nil {
		return nil, err
	}

	txs, err := e.dex.BuildTransactions(ctx, quote, user.WalletAddress, fees.High)
	if err != nil {
		return nil, fmt.Errorf("build swap transactions: %w", err)
	}

	var lastSig string
	for _, tx := range txs {
		sig, err := e.chain.SendTransaction(ctx, tx, true)
		if err != nil {
			return nil, fmt.Errorf("send transaction: %w", err)
		}
		lastSig = sig

		if err := e.chain.ConfirmTransaction(ctx, sig, e.cfg.Commitment); err != nil {
			return nil, fmt.Errorf("confirm transaction %s: %w", sig, err)
		}
	}

	return &storage.TradeResult{
		TxSignature:    lastSig,
		ExecutionPrice: e.readbackPrice(ctx, user.WalletAddress, signal.TokenAddress, lamports),
		NetworkFee:     float64(fees.High) / 1e6,
	}, nil
}

// quoteWithRetry fetches a route with a fixed delay between attempts.
func (e *SwapExecutor) quoteWithRetry(ctx context.Context, outputMint string, lamports uint64, slippagePct float64) (*dex.Quote, error) {
	slippageBps := int(slippagePct * 100)

	var lastErr error
	for attempt := 0; attempt < quoteRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.retryDelay):
			}
		}

		quote, err := e.dex.Quote(ctx, solana.NativeMint, outputMint, lamports, slippageBps)
		if err == nil {
			return quote, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("quote after %d attempts: %w", quoteRetries, lastErr)
}

// readbackPrice derives the effective execution price from the wallet's
// post-swap token balance. Nil when the readback fails or the token has
// not landed yet.
func (e *SwapExecutor) readbackPrice(ctx context.Context, wallet, mint string, lamports uint64) *float64 {
	balances, err := e.chain.GetTokenAccountsByOwner(ctx, wallet)
	if err != nil {
		e.logger.Printf("[executor] token balance readback for %s failed: %v", wallet, err)
		return nil
	}

	for _, b := range balances {
		if b.Mint != mint || b.Amount <= 0 {
			continue
		}
		p := float64(lamports) / (b.Amount * math.Pow10(b.Decimals))
		return &p
	}
	return nil
}

// entryStats computes the cost-weighted average entry price over prior
// completed trades and the trailing P/L percent against the current
// price. Both are informational; failures degrade to zeros.
func (e *SwapExecutor) entryStats(ctx context.Context, user *domain.User, mint string) (avgEntry, profitLoss float64) {
	trades, err := e.stores.Trades.ListCompletedByUserToken(ctx, user.UserID, mint)
	if err != nil {
		e.logger.Printf("[executor] list completed trades for %s: %v", user.UserID, err)
		return 0, 0
	}

	var totalAmount, totalCost float64
	for _, t := range trades {
		if t.ExecutionPrice == nil {
			continue
		}
		totalAmount += t.InputAmount
		totalCost += t.InputAmount * *t.ExecutionPrice
	}
	if totalAmount == 0 {
		return 0, 0
	}

	avgEntry = totalCost / totalAmount
	if current := e.prices.TokenPrice(ctx, mint); current > 0 && avgEntry > 0 {
		profitLoss = (current - avgEntry) / avgEntry * 100
	}
	return avgEntry, profitLoss
}

// failSignal marks the signal FAILED. A claimed signal whose execution
// cannot proceed would fail again identically on retry, so it goes
// terminal rather than back to PENDING.
func (e *SwapExecutor) failSignal(signalID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.stores.Signals.MarkFailed(ctx, signalID, e.cfg.Owner); err != nil {
		e.logger.Printf("[executor] mark signal %s failed: %v", signalID, err)
	}
}

// failTrade records the failure on the trade and signal. Runs on a fresh
// context: the execution context may already be expired.
func (e *SwapExecutor) failTrade(trade *domain.Trade, signalID string, start time.Time, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	elapsed := e.now().Sub(start).Milliseconds()
	if err := e.stores.Trades.Fail(ctx, trade.TradeID, cause.Error(), elapsed, e.now().UnixMilli()); err != nil {
		e.logger.Printf("[executor] mark trade %s failed: %v", trade.TradeID, err)
	}
	e.failSignal(signalID)

	e.logger.Printf("[executor] signal %s failed after %dms: %v", signalID, elapsed, cause)

	if e.metrics != nil {
		e.metrics.TradesFailed.WithLabelValues(failReason(cause)).Inc()
		e.metrics.ExecutionDuration.WithLabelValues("failed").Observe(float64(elapsed) / 1000)
	}

	e.archive(trade.TradeID)
	e.publishTrade(ctx, "trade-failed", trade, nil)
}

// releaseSignal puts the claim back to PENDING. Runs on a fresh context:
// the execution context may already be expired.
func (e *SwapExecutor) releaseSignal(signalID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.stores.Signals.ReleaseClaim(ctx, signalID, e.cfg.Owner); err != nil {
		e.logger.Printf("[executor] release signal %s: %v", signalID, err)
	}
}

// publishTrade emits the stored trade row joined with its signal. The rows
// are re-read so clients see the terminal state, not the in-flight copy.
func (e *SwapExecutor) publishTrade(ctx context.Context, eventType string, trade *domain.Trade, signal *domain.TokenSignal) {
	if e.bus == nil {
		return
	}
	if stored, err := e.stores.Trades.GetByID(ctx, trade.TradeID); err == nil {
		trade = stored
	}
	if stored, err := e.stores.Signals.GetByID(ctx, trade.SignalID); err == nil {
		signal = stored
	}
	e.publish(eventType, map[string]interface{}{
		"trade":  trade,
		"signal": signal,
	})
}

// archive appends the trade's terminal state to the analytics sink.
// Best effort: archive failures never affect the pipeline.
func (e *SwapExecutor) archive(tradeID string) {
	if e.stores.Archive == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	trade, err := e.stores.Trades.GetByID(ctx, tradeID)
	if err != nil {
		e.logger.Printf("[executor] load trade %s for archive: %v", tradeID, err)
		return
	}
	if err := e.stores.Archive.Archive(ctx, trade); err != nil {
		e.logger.Printf("[executor] archive trade %s: %v", tradeID, err)
	}
}

func (e *SwapExecutor) publish(eventType string, payload map[string]interface{}) {
	if e.bus != nil {
		e.bus.Publish(events.Event{Type: eventType, Payload: payload})
	}
}

func (e *SwapExecutor) userLock(userID string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()

	if m, ok := e.userLocks[userID]; ok {
		return m
	}
	m := &sync.Mutex{}
	e.userLocks[userID] = m
	return m
}

func failReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "execution"
	}
}
