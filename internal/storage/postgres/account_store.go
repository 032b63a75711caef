package postgres

import (
	"context"
	"fmt"

	"solana-signal-trader/internal/domain"
	"solana-signal-trader/internal/storage"
)

// TrackedAccountStore implements storage.TrackedAccountStore using PostgreSQL.
type TrackedAccountStore struct {
	pool *Pool
}

// NewTrackedAccountStore creates a new TrackedAccountStore.
func NewTrackedAccountStore(pool *Pool) *TrackedAccountStore {
	return &TrackedAccountStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TrackedAccountStore = (*TrackedAccountStore)(nil)

// Insert adds a new account. Returns ErrDuplicateKey if the handle exists.
func (s *TrackedAccountStore) Insert(ctx context.Context, a *domain.TrackedAccount) error {
	query := `
		INSERT INTO tracked_accounts (
			account_id, handle, follower_count, tweet_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		a.AccountID, a.Handle, a.FollowerCount, a.TweetCount, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert tracked account: %w", err)
	}
	return nil
}

// GetByID retrieves an account by its ID. Returns ErrNotFound if not exists.
func (s *TrackedAccountStore) GetByID(ctx context.Context, accountID string) (*domain.TrackedAccount, error) {
	return s.getBy(ctx, "account_id = $1", accountID)
}

// GetByHandle retrieves an account by handle. Returns ErrNotFound if not exists.
func (s *TrackedAccountStore) GetByHandle(ctx context.Context, handle string) (*domain.TrackedAccount, error) {
	return s.getBy(ctx, "handle = $1", handle)
}

func (s *TrackedAccountStore) getBy(ctx context.Context, where string, arg any) (*domain.TrackedAccount, error) {
	query := `
		SELECT account_id, handle, follower_count, tweet_count, created_at, updated_at
		FROM tracked_accounts
		WHERE ` + where

	var a domain.TrackedAccount
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&a.AccountID, &a.Handle, &a.FollowerCount, &a.TweetCount, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get tracked account: %w", err)
	}
	return &a, nil
}

// UpdateStats refreshes follower/tweet counts and the poll timestamp.
func (s *TrackedAccountStore) UpdateStats(ctx context.Context, accountID string, followers, tweets, updatedAt int64) error {
	query := `
		UPDATE tracked_accounts
		SET follower_count = $2, tweet_count = $3, updated_at = $4
		WHERE account_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, accountID, followers, tweets, updatedAt)
	if err != nil {
		return fmt.Errorf("update tracked account stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListWithSubscribers retrieves accounts that have at least one subscriber,
// ordered by handle.
func (s *TrackedAccountStore) ListWithSubscribers(ctx context.Context) ([]*domain.TrackedAccount, error) {
	query := `
		SELECT a.account_id, a.handle, a.follower_count, a.tweet_count, a.created_at, a.updated_at
		FROM tracked_accounts a
		WHERE EXISTS (
			SELECT 1 FROM account_subscriptions s WHERE s.account_id = a.account_id
		)
		ORDER BY a.handle ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts with subscribers: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.TrackedAccount
	for rows.Next() {
		var a domain.TrackedAccount
		err := rows.Scan(&a.AccountID, &a.Handle, &a.FollowerCount, &a.TweetCount, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan tracked account row: %w", err)
		}
		accounts = append(accounts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracked account rows: %w", err)
	}

	return accounts, nil
}

// Subscribe links a user to an account. Idempotent.
func (s *TrackedAccountStore) Subscribe(ctx context.Context, accountID, userID string, subscribedAt int64) error {
	query := `
		INSERT INTO account_subscriptions (account_id, user_id, subscribed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, user_id) DO NOTHING
	`

	if _, err := s.pool.Exec(ctx, query, accountID, userID, subscribedAt); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

// Unsubscribe removes the link. No error if the link does not exist.
func (s *TrackedAccountStore) Unsubscribe(ctx context.Context, accountID, userID string) error {
	query := `DELETE FROM account_subscriptions WHERE account_id = $1 AND user_id = $2`

	if _, err := s.pool.Exec(ctx, query, accountID, userID); err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}

// ListSubscribers retrieves subscriber user IDs in subscription order.
func (s *TrackedAccountStore) ListSubscribers(ctx context.Context, accountID string) ([]string, error) {
	query := `
		SELECT user_id
		FROM account_subscriptions
		WHERE account_id = $1
		ORDER BY subscribed_at ASC, user_id ASC
	`

	rows, err := s.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subscriber row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriber rows: %w", err)
	}

	return ids, nil
}
