package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-signal-trader/internal/domain"
	"solana-signal-trader/internal/storage"
)

// TweetStore implements storage.TweetStore using PostgreSQL.
type TweetStore struct {
	pool *Pool
}

// NewTweetStore creates a new TweetStore.
func NewTweetStore(pool *Pool) *TweetStore {
	return &TweetStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TweetStore = (*TweetStore)(nil)

// Insert adds a new tweet. Returns ErrDuplicateKey if the external_id exists.
func (s *TweetStore) Insert(ctx context.Context, t *domain.Tweet) error {
	query := `
		INSERT INTO tweets (
			tweet_id, external_id, account_id, content, posted_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		t.TweetID, t.ExternalID, t.AccountID, t.Content, t.PostedAt, t.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert tweet: %w", err)
	}
	return nil
}

// GetByID retrieves a tweet by its ID. Returns ErrNotFound if not exists.
func (s *TweetStore) GetByID(ctx context.Context, tweetID string) (*domain.Tweet, error) {
	query := `
		SELECT tweet_id, external_id, account_id, content, posted_at, created_at
		FROM tweets
		WHERE tweet_id = $1
	`

	t, err := scanTweet(s.pool.QueryRow(ctx, query, tweetID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get tweet by id: %w", err)
	}
	return t, nil
}

// GetByExternalID retrieves a tweet by upstream id. Returns ErrNotFound if not exists.
func (s *TweetStore) GetByExternalID(ctx context.Context, externalID string) (*domain.Tweet, error) {
	query := `
		SELECT tweet_id, external_id, account_id, content, posted_at, created_at
		FROM tweets
		WHERE external_id = $1
	`

	t, err := scanTweet(s.pool.QueryRow(ctx, query, externalID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get tweet by external id: %w", err)
	}
	return t, nil
}

// ListByAccount retrieves tweets for an account, ordered by posted_at DESC.
func (s *TweetStore) ListByAccount(ctx context.Context, accountID string, limit int) ([]*domain.Tweet, error) {
	query := `
		SELECT tweet_id, external_id, account_id, content, posted_at, created_at
		FROM tweets
		WHERE account_id = $1
		ORDER BY posted_at DESC, tweet_id ASC
	`
	args := []any{accountID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tweets by account: %w", err)
	}
	defer rows.Close()

	var tweets []*domain.Tweet
	for rows.Next() {
		t, err := scanTweet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tweet row: %w", err)
		}
		tweets = append(tweets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tweet rows: %w", err)
	}

	return tweets, nil
}

// scanTweet scans a single row into a Tweet.
func scanTweet(row pgx.Row) (*domain.Tweet, error) {
	var t domain.Tweet
	err := row.Scan(&t.TweetID, &t.ExternalID, &t.AccountID, &t.Content, &t.PostedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
