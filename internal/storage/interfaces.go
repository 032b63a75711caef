package storage

import (
	"context"

	"solana-signal-trader/internal/domain"
)

// TrackedAccountStore provides access to tracked_accounts storage.
type TrackedAccountStore interface {
	// Insert adds a new account. Returns ErrDuplicateKey if the handle exists.
	Insert(ctx context.Context, a *domain.TrackedAccount) error

	// GetByID retrieves an account by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, accountID string) (*domain.TrackedAccount, error)

	// GetByHandle retrieves an account by handle. Returns ErrNotFound if not exists.
	GetByHandle(ctx context.Context, handle string) (*domain.TrackedAccount, error)

	// UpdateStats refreshes follower/tweet counts and the poll timestamp.
	UpdateStats(ctx context.Context, accountID string, followers, tweets, updatedAt int64) error

	// ListWithSubscribers retrieves accounts that have at least one subscriber,
	// ordered by handle for deterministic iteration.
	ListWithSubscribers(ctx context.Context) ([]*domain.TrackedAccount, error)

	// Subscribe links a user to an account. Idempotent.
	Subscribe(ctx context.Context, accountID, userID string, subscribedAt int64) error

	// Unsubscribe removes the link. No error if the link does not exist.
	Unsubscribe(ctx context.Context, accountID, userID string) error

	// ListSubscribers retrieves user IDs subscribed to an account,
	// ordered by subscription time ASC. Trade attempts resolve the first
	// eligible user in this order.
	ListSubscribers(ctx context.Context, accountID string) ([]string, error)
}

// TweetStore provides access to tweets storage. Tweets are immutable.
type TweetStore interface {
	// Insert adds a new tweet. Returns ErrDuplicateKey if the external_id exists.
	Insert(ctx context.Context, t *domain.Tweet) error

	// GetByID retrieves a tweet by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tweetID string) (*domain.Tweet, error)

	// GetByExternalID retrieves a tweet by upstream id. Returns ErrNotFound if not exists.
	GetByExternalID(ctx context.Context, externalID string) (*domain.Tweet, error)

	// ListByAccount retrieves tweets for an account, ordered by posted_at DESC.
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*domain.Tweet, error)
}

// TokenSignalStore provides access to token_signals storage and owns the
// claim/lease state machine guaranteeing at-most-one execution per signal.
type TokenSignalStore interface {
	// Insert adds a new signal with status PENDING.
	// Returns ErrDuplicateKey if the signal or its tweet already has one.
	Insert(ctx context.Context, s *domain.TokenSignal) error

	// GetByID retrieves a signal by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, signalID string) (*domain.TokenSignal, error)

	// ListPendingByAccount retrieves PENDING signals (including CLAIMED rows
	// whose lease expired before now) for tweets of the given account,
	// ordered by created_at ASC.
	ListPendingByAccount(ctx context.Context, accountID string, now int64) ([]*domain.TokenSignal, error)

	// ClaimPending atomically transitions a signal PENDING→CLAIMED with the
	// caller as owner and a lease of expiresAt. A CLAIMED signal whose lease
	// has expired is claimable again. Returns ErrNotFound when the signal is
	// absent, terminal, or validly claimed by another owner.
	ClaimPending(ctx context.Context, signalID, owner string, now, expiresAt int64) error

	// MarkExecuted transitions CLAIMED→EXECUTED for the owning claim.
	// Returns ErrInvalidInput when the signal is not CLAIMED by owner.
	MarkExecuted(ctx context.Context, signalID, owner string, executedAt int64) error

	// MarkFailed transitions CLAIMED→FAILED for the owning claim.
	// Returns ErrInvalidInput when the signal is not CLAIMED by owner.
	MarkFailed(ctx context.Context, signalID, owner string) error

	// ReleaseClaim transitions CLAIMED→PENDING for the owning claim,
	// clearing owner and lease, so a later pass can retry the signal.
	// Returns ErrInvalidInput when the signal is not CLAIMED by owner.
	ReleaseClaim(ctx context.Context, signalID, owner string) error
}

// UserStore provides access to users storage.
type UserStore interface {
	// Insert adds a new user. Returns ErrDuplicateKey if user_id exists.
	Insert(ctx context.Context, u *domain.User) error

	// GetByID retrieves a user by ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, userID string) (*domain.User, error)

	// GetByWallet retrieves a user by wallet address. Returns ErrNotFound if not exists.
	GetByWallet(ctx context.Context, walletAddress string) (*domain.User, error)

	// Update replaces the user's trading profile. Returns ErrNotFound if not exists.
	Update(ctx context.Context, u *domain.User) error
}

// TradeStore provides access to trades storage, the per-user ledger the
// risk gate sums over. Trades transition exactly once out of PENDING.
type TradeStore interface {
	// Insert adds a new trade. The trade must be PENDING; returns
	// ErrInvalidInput otherwise and ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.Trade, error)

	// ListCompletedByUserToken retrieves COMPLETED trades for (user, token),
	// ordered by executed_at ASC. Used for entry-price averaging.
	ListCompletedByUserToken(ctx context.Context, userID, tokenAddress string) ([]*domain.Trade, error)

	// SumCompletedByUserToken sums input_amount over COMPLETED trades for
	// (user, token). The position total the risk gate checks.
	SumCompletedByUserToken(ctx context.Context, userID, tokenAddress string) (float64, error)

	// SumCompletedByUser sums input_amount over all COMPLETED trades for the
	// user. The portfolio total the allocation check divides by.
	SumCompletedByUser(ctx context.Context, userID string) (float64, error)

	// Complete transitions PENDING→COMPLETED with the execution outcome.
	// Returns ErrInvalidInput when the trade is not PENDING.
	Complete(ctx context.Context, tradeID string, res TradeResult) error

	// Fail transitions PENDING→FAILED with the failure reason.
	// Returns ErrInvalidInput when the trade is not PENDING.
	Fail(ctx context.Context, tradeID, errMsg string, elapsedMs, executedAt int64) error
}

// TradeResult carries the outcome written on trade completion.
type TradeResult struct {
	TxSignature     string
	ExecutionPrice  *float64
	NetworkFee      float64
	ExecutionTimeMs int64
	ExecutedAt      int64
}

// TradeArchiveStore is an optional append-only analytics sink for terminal
// trades. Archive failures must never affect pipeline correctness.
type TradeArchiveStore interface {
	// Archive appends a terminal trade. Duplicate appends are tolerated.
	Archive(ctx context.Context, t *domain.Trade) error
}
