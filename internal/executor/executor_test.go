package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"solana-signal-trader/internal/dex"
	"solana-signal-trader/internal/domain"
	"solana-signal-trader/internal/events"
	"solana-signal-trader/internal/idhash"
	"solana-signal-trader/internal/risk"
	"solana-signal-trader/internal/solana"
	"solana-signal-trader/internal/storage/memory"
)

const (
	testMint   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	testWallet = "7EcDhSYGxXyscszYEp35KHN8vvw3svAuLKTzXwCFLtV1"

	// fixedNowMs pins the executor clock so trade IDs are deterministic.
	fixedNowMs = int64(1_700_000_000_000)
)

type fakeChain struct {
	balance      uint64
	balanceErr   error
	sendErr      error
	confirmErr   error
	tokenBalance []solana.TokenBalance
	readbackErr  error

	sentTxs []string
}

func (f *fakeChain) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	return f.balance, f.balanceErr
}

func (f *fakeChain) GetLatestBlockhash(ctx context.Context, commitment string) (*solana.Blockhash, error) {
	return &solana.Blockhash{Blockhash: "hash", LastValidBlockHeight: 100}, nil
}

func (f *fakeChain) SendTransaction(ctx context.Context, txBase64 string, skipPreflight bool) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sentTxs = append(f.sentTxs, txBase64)
	return fmt.Sprintf("sig-%d", len(f.sentTxs)), nil
}

func (f *fakeChain) ConfirmTransaction(ctx context.Context, signature, commitment string) error {
	return f.confirmErr
}

func (f *fakeChain) GetTokenAccountsByOwner(ctx context.Context, owner string) ([]solana.TokenBalance, error) {
	return f.tokenBalance, f.readbackErr
}

type fakeAggregator struct {
	quoteFailures int // first N quote calls fail
	quoteCalls    int
	buildErr      error
	txCount       int
}

func (f *fakeAggregator) PriorityFees(ctx context.Context) (*dex.PriorityFees, error) {
	return &dex.PriorityFees{VeryHigh: 100000, High: 50000, Medium: 10000}, nil
}

func (f *fakeAggregator) Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*dex.Quote, error) {
	f.quoteCalls++
	if f.quoteCalls <= f.quoteFailures {
		return nil, fmt.Errorf("route not found")
	}
	return &dex.Quote{InputMint: inputMint, OutputMint: outputMint}, nil
}

func (f *fakeAggregator) BuildTransactions(ctx context.Context, quote *dex.Quote, wallet string, feeMicroLamports uint64) ([]string, error) {
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	n := f.txCount
	if n == 0 {
		n = 1
	}
	txs := make([]string, n)
	for i := range txs {
		txs[i] = fmt.Sprintf("tx-%d", i)
	}
	return txs, nil
}

type fakePrice struct {
	price float64
}

func (f *fakePrice) TokenPrice(ctx context.Context, mint string) float64 {
	return f.price
}

// fixture wires a memory-backed executor with one account, one eligible
// subscriber and one PENDING signal.
type fixture struct {
	exec     *SwapExecutor
	stores   Stores
	chain    *fakeChain
	agg      *fakeAggregator
	signalID string
	userID   string
	tradeAmt float64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	tweets := memory.NewTweetStore()
	stores := Stores{
		Accounts: memory.NewTrackedAccountStore(),
		Tweets:   tweets,
		Signals:  memory.NewTokenSignalStore(tweets),
		Users:    memory.NewUserStore(),
		Trades:   memory.NewTradeStore(),
	}

	accountID := idhash.ComputeAccountID("influencer")
	if err := stores.Accounts.Insert(ctx, &domain.TrackedAccount{
		AccountID: accountID,
		Handle:    "influencer",
		CreatedAt: 1000,
	}); err != nil {
		t.Fatalf("insert account: %v", err)
	}

	userID := "user-1"
	if err := stores.Users.Insert(ctx, &domain.User{
		UserID:        userID,
		WalletAddress: testWallet,
		AutoTrading:   true,
		TradeAmount:   0.5,
		CreatedAt:     1000,
	}); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if err := stores.Accounts.Subscribe(ctx, accountID, userID, 1000); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	tweetID := idhash.ComputeTweetID("ext-1", accountID)
	if err := stores.Tweets.Insert(ctx, &domain.Tweet{
		TweetID:    tweetID,
		ExternalID: "ext-1",
		AccountID:  accountID,
		Content:    "buy " + testMint,
		PostedAt:   1000,
		CreatedAt:  1000,
	}); err != nil {
		t.Fatalf("insert tweet: %v", err)
	}

	signalID := idhash.ComputeSignalID(tweetID, testMint)
	if err := stores.Signals.Insert(ctx, &domain.TokenSignal{
		SignalID:     signalID,
		TweetID:      tweetID,
		TokenAddress: testMint,
		Status:       domain.SignalPending,
		CreatedAt:    1000,
	}); err != nil {
		t.Fatalf("insert signal: %v", err)
	}

	chain := &fakeChain{
		balance: 1 * solana.LamportsPerSOL,
		tokenBalance: []solana.TokenBalance{
			{Mint: testMint, Amount: 1000, Decimals: 6},
		},
	}
	agg := &fakeAggregator{}

	exec := New(
		Config{Owner: "exec-1"},
		stores,
		chain,
		agg,
		&fakePrice{},
		nil,
		nil,
		log.New(io.Discard, "", 0),
	)
	exec.retryDelay = time.Millisecond
	exec.now = func() time.Time { return time.UnixMilli(fixedNowMs) }

	return &fixture{
		exec:     exec,
		stores:   stores,
		chain:    chain,
		agg:      agg,
		signalID: signalID,
		userID:   userID,
		tradeAmt: 0.5,
	}
}

func (f *fixture) signalStatus(t *testing.T) domain.SignalStatus {
	t.Helper()
	signal, err := f.stores.Signals.GetByID(context.Background(), f.signalID)
	if err != nil {
		t.Fatalf("load signal: %v", err)
	}
	return signal.Status
}

func (f *fixture) singleTrade(t *testing.T) *domain.Trade {
	t.Helper()
	trades, err := f.stores.Trades.ListCompletedByUserToken(context.Background(), f.userID, testMint)
	if err != nil {
		t.Fatalf("list trades: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 completed trade, got %d", len(trades))
	}
	return trades[0]
}

func TestExecute_CompletesTradeAndSignal(t *testing.T) {
	f := newFixture(t)

	if err := f.exec.Execute(context.Background(), f.signalID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if got := f.signalStatus(t); got != domain.SignalExecuted {
		t.Errorf("expected EXECUTED signal, got %s", got)
	}

	trade := f.singleTrade(t)
	if trade.Status != domain.TradeCompleted {
		t.Errorf("expected COMPLETED trade, got %s", trade.Status)
	}
	if trade.TxSignature == "" {
		t.Error("expected tx signature on completed trade")
	}
	if trade.InputAmount != f.tradeAmt {
		t.Errorf("expected input amount %f, got %f", f.tradeAmt, trade.InputAmount)
	}

	// 0.5 SOL over 1000 tokens at 6 decimals.
	if trade.ExecutionPrice == nil {
		t.Fatal("expected execution price from balance readback")
	}
	want := float64(uint64(f.tradeAmt*solana.LamportsPerSOL)) / (1000 * 1e6)
	if *trade.ExecutionPrice != want {
		t.Errorf("expected execution price %g, got %g", want, *trade.ExecutionPrice)
	}

	if len(f.chain.sentTxs) != 1 {
		t.Errorf("expected 1 transaction sent, got %d", len(f.chain.sentTxs))
	}
}

func TestExecute_SignalNotClaimable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Another executor holds a live claim.
	now := time.Now().UnixMilli()
	if err := f.stores.Signals.ClaimPending(ctx, f.signalID, "other", now, now+60_000); err != nil {
		t.Fatalf("claim by other: %v", err)
	}

	if err := f.exec.Execute(ctx, f.signalID); !errors.Is(err, ErrSignalNotClaimable) {
		t.Errorf("expected ErrSignalNotClaimable, got %v", err)
	}
}

func TestExecute_NoEligibleUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Disable auto trading for the only subscriber.
	user, err := f.stores.Users.GetByID(ctx, f.userID)
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	user.AutoTrading = false
	if err := f.stores.Users.Update(ctx, user); err != nil {
		t.Fatalf("update user: %v", err)
	}

	if err := f.exec.Execute(ctx, f.signalID); !errors.Is(err, ErrNoEligibleUser) {
		t.Errorf("expected ErrNoEligibleUser, got %v", err)
	}

	// The claim is released, not burned: the signal stays PENDING.
	if got := f.signalStatus(t); got != domain.SignalPending {
		t.Errorf("expected signal released to PENDING, got %s", got)
	}

	// Once the subscriber re-enables auto trading, a later pass succeeds.
	user.AutoTrading = true
	if err := f.stores.Users.Update(ctx, user); err != nil {
		t.Fatalf("re-enable user: %v", err)
	}
	if err := f.exec.Execute(ctx, f.signalID); err != nil {
		t.Fatalf("Execute after re-enable: %v", err)
	}
	if got := f.signalStatus(t); got != domain.SignalExecuted {
		t.Errorf("expected EXECUTED signal, got %s", got)
	}
}

func TestExecute_RiskLimitRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	maxPos := 0.25 // below the 0.5 trade amount
	user, err := f.stores.Users.GetByID(ctx, f.userID)
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	user.MaxPositionSize = &maxPos
	if err := f.stores.Users.Update(ctx, user); err != nil {
		t.Fatalf("update user: %v", err)
	}

	err = f.exec.Execute(ctx, f.signalID)
	var limitErr *risk.LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected LimitError, got %v", err)
	}

	if got := f.signalStatus(t); got != domain.SignalFailed {
		t.Errorf("expected FAILED signal, got %s", got)
	}

	// The rejection is on the books: a FAILED trade carrying the limit
	// message, before any on-chain action.
	tradeID := idhash.ComputeTradeID(f.signalID, f.userID, fixedNowMs)
	trade, err := f.stores.Trades.GetByID(ctx, tradeID)
	if err != nil {
		t.Fatalf("load rejected trade: %v", err)
	}
	if trade.Status != domain.TradeFailed {
		t.Errorf("expected FAILED trade, got %s", trade.Status)
	}
	if !strings.Contains(trade.Error, "position size") {
		t.Errorf("expected limit message on trade, got %q", trade.Error)
	}
	if len(f.chain.sentTxs) != 0 {
		t.Errorf("expected no transactions sent, got %d", len(f.chain.sentTxs))
	}

	// The rejected trade never counts toward the completed ledger.
	if sum, _ := f.stores.Trades.SumCompletedByUser(ctx, f.userID); sum != 0 {
		t.Errorf("expected empty completed ledger, got sum %f", sum)
	}
}

func TestExecute_InsufficientBalance(t *testing.T) {
	f := newFixture(t)
	f.chain.balance = 1000 // far below 0.5 SOL

	err := f.exec.Execute(context.Background(), f.signalID)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	if got := f.signalStatus(t); got != domain.SignalFailed {
		t.Errorf("expected FAILED signal, got %s", got)
	}

	tradeID := idhash.ComputeTradeID(f.signalID, f.userID, fixedNowMs)
	trade, err := f.stores.Trades.GetByID(context.Background(), tradeID)
	if err != nil {
		t.Fatalf("load trade: %v", err)
	}
	if trade.Status != domain.TradeFailed {
		t.Errorf("expected FAILED trade, got %s", trade.Status)
	}
	if trade.Error == "" {
		t.Error("expected failure reason on trade")
	}
}

func TestExecute_QuoteRetrySucceeds(t *testing.T) {
	f := newFixture(t)
	f.agg.quoteFailures = 2

	if err := f.exec.Execute(context.Background(), f.signalID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if f.agg.quoteCalls != 3 {
		t.Errorf("expected 3 quote attempts, got %d", f.agg.quoteCalls)
	}

	if got := f.signalStatus(t); got != domain.SignalExecuted {
		t.Errorf("expected EXECUTED signal, got %s", got)
	}
}

func TestExecute_QuoteRetriesExhausted(t *testing.T) {
	f := newFixture(t)
	f.agg.quoteFailures = 10

	err := f.exec.Execute(context.Background(), f.signalID)
	if err == nil {
		t.Fatal("expected error after exhausted quote retries")
	}

	if f.agg.quoteCalls != quoteRetries {
		t.Errorf("expected %d quote attempts, got %d", quoteRetries, f.agg.quoteCalls)
	}

	if got := f.signalStatus(t); got != domain.SignalFailed {
		t.Errorf("expected FAILED signal, got %s", got)
	}
}

func TestExecute_ReadbackFailureLeavesNilPrice(t *testing.T) {
	f := newFixture(t)
	f.chain.readbackErr = fmt.Errorf("rpc down")

	if err := f.exec.Execute(context.Background(), f.signalID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	trade := f.singleTrade(t)
	if trade.ExecutionPrice != nil {
		t.Errorf("expected nil execution price, got %v", *trade.ExecutionPrice)
	}
	if trade.Status != domain.TradeCompleted {
		t.Errorf("expected COMPLETED trade despite readback failure, got %s", trade.Status)
	}
}

func TestExecute_SecondAttemptNotClaimable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.exec.Execute(ctx, f.signalID); err != nil {
		t.Fatalf("first Execute: %v", err)
	}

	// The signal is terminal now; a repeat attempt must not run again.
	if err := f.exec.Execute(ctx, f.signalID); !errors.Is(err, ErrSignalNotClaimable) {
		t.Errorf("expected ErrSignalNotClaimable on repeat, got %v", err)
	}

	if len(f.chain.sentTxs) != 1 {
		t.Errorf("expected exactly 1 transaction overall, got %d", len(f.chain.sentTxs))
	}
}

func TestExecute_PublishesJoinedTradeEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bus := events.NewBus()
	defer bus.Close()
	ch, cancel := bus.Subscribe()
	defer cancel()
	f.exec.bus = bus

	if err := f.exec.Execute(ctx, f.signalID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	select {
	case event := <-ch:
		if event.Type != "trade-completed" {
			t.Errorf("expected trade-completed event, got %s", event.Type)
		}
		payload, ok := event.Payload.(map[string]interface{})
		if !ok {
			t.Fatalf("unexpected payload type %T", event.Payload)
		}
		trade, ok := payload["trade"].(*domain.Trade)
		if !ok {
			t.Fatalf("expected full trade row, got %T", payload["trade"])
		}
		if trade.Status != domain.TradeCompleted {
			t.Errorf("expected COMPLETED trade on payload, got %s", trade.Status)
		}
		if trade.TxSignature == "" {
			t.Error("expected tx signature on payload")
		}
		signal, ok := payload["signal"].(*domain.TokenSignal)
		if !ok {
			t.Fatalf("expected full signal row, got %T", payload["signal"])
		}
		if signal.Status != domain.SignalExecuted {
			t.Errorf("expected EXECUTED signal on payload, got %s", signal.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}
