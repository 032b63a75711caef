package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-signal-trader/internal/domain"
	"solana-signal-trader/internal/storage"
)

// TokenSignalStore implements storage.TokenSignalStore using PostgreSQL.
// The claim step is a single conditional UPDATE, so concurrent executors
// racing for the same signal resolve at the database.
type TokenSignalStore struct {
	pool *Pool
}

// NewTokenSignalStore creates a new TokenSignalStore.
func NewTokenSignalStore(pool *Pool) *TokenSignalStore {
	return &TokenSignalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenSignalStore = (*TokenSignalStore)(nil)

const signalColumns = `
	signal_id, tweet_id, token_address, status,
	claim_owner, claim_expires, created_at, executed_at
`

// Insert adds a new signal with status PENDING.
func (s *TokenSignalStore) Insert(ctx context.Context, sig *domain.TokenSignal) error {
	if sig.Status != domain.SignalPending {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_signals (
			signal_id, tweet_id, token_address, status, claim_owner, claim_expires, created_at
		) VALUES ($1, $2, $3, $4, '', 0, $5)
	`

	_, err := s.pool.Exec(ctx, query,
		sig.SignalID, sig.TweetID, sig.TokenAddress, sig.Status.String(), sig.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token signal: %w", err)
	}
	return nil
}

// GetByID retrieves a signal by its ID. Returns ErrNotFound if not exists.
func (s *TokenSignalStore) GetByID(ctx context.Context, signalID string) (*domain.TokenSignal, error) {
	query := `SELECT ` + signalColumns + ` FROM token_signals WHERE signal_id = $1`

	sig, err := scanSignal(s.pool.QueryRow(ctx, query, signalID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token signal by id: %w", err)
	}
	return sig, nil
}

// ListPendingByAccount retrieves claimable signals for an account's tweets,
// ordered by created_at ASC.
func (s *TokenSignalStore) ListPendingByAccount(ctx context.Context, accountID string, now int64) ([]*domain.TokenSignal, error) {
	query := `
		SELECT s.signal_id, s.tweet_id, s.token_address, s.status,
		       s.claim_owner, s.claim_expires, s.created_at, s.executed_at
		FROM token_signals s
		JOIN tweets t ON t.tweet_id = s.tweet_id
		WHERE t.account_id = $1
		  AND (s.status = 'PENDING'
		       OR (s.status = 'CLAIMED' AND s.claim_expires > 0 AND s.claim_expires <= $2))
		ORDER BY s.created_at ASC, s.signal_id ASC
	`

	rows, err := s.pool.Query(ctx, query, accountID, now)
	if err != nil {
		return nil, fmt.Errorf("list pending signals: %w", err)
	}
	defer rows.Close()

	var signals []*domain.TokenSignal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token signal row: %w", err)
		}
		signals = append(signals, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token signal rows: %w", err)
	}

	return signals, nil
}

// ClaimPending atomically transitions a claimable signal to CLAIMED.
func (s *TokenSignalStore) ClaimPending(ctx context.Context, signalID, owner string, now, expiresAt int64) error {
	if owner == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE token_signals
		SET status = 'CLAIMED', claim_owner = $2, claim_expires = $3
		WHERE signal_id = $1
		  AND (status = 'PENDING'
		       OR (status = 'CLAIMED' AND claim_expires > 0 AND claim_expires <= $4))
	`

	tag, err := s.pool.Exec(ctx, query, signalID, owner, expiresAt, now)
	if err != nil {
		return fmt.Errorf("claim token signal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkExecuted transitions CLAIMED→EXECUTED for the owning claim.
func (s *TokenSignalStore) MarkExecuted(ctx context.Context, signalID, owner string, executedAt int64) error {
	query := `
		UPDATE token_signals
		SET status = 'EXECUTED', claim_owner = '', claim_expires = 0, executed_at = $3
		WHERE signal_id = $1 AND status = 'CLAIMED' AND claim_owner = $2
	`

	tag, err := s.pool.Exec(ctx, query, signalID, owner, executedAt)
	if err != nil {
		return fmt.Errorf("mark token signal executed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrInvalidInput
	}
	return nil
}

// MarkFailed transitions CLAIMED→FAILED for the owning claim.
func (s *TokenSignalStore) MarkFailed(ctx context.Context, signalID, owner string) error {
	query := `
		UPDATE token_signals
		SET status = 'FAILED', claim_owner = '', claim_expires = 0
		WHERE signal_id = $1 AND status = 'CLAIMED' AND claim_owner = $2
	`

	tag, err := s.pool.Exec(ctx, query, signalID, owner)
	if err != nil {
		return fmt.Errorf("mark token signal failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrInvalidInput
	}
	return nil
}

// ReleaseClaim transitions CLAIMED→PENDING for the owning claim.
func (s *TokenSignalStore) ReleaseClaim(ctx context.Context, signalID, owner string) error {
	query := `
		UPDATE token_signals
		SET status = 'PENDING', claim_owner = '', claim_expires = 0
		WHERE signal_id = $1 AND status = 'CLAIMED' AND claim_owner = $2
	`

	tag, err := s.pool.Exec(ctx, query, signalID, owner)
	if err != nil {
		return fmt.Errorf("release token signal claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrInvalidInput
	}
	return nil
}

// scanSignal scans a single row into a TokenSignal.
func scanSignal(row pgx.Row) (*domain.TokenSignal, error) {
	var sig domain.TokenSignal
	var status string
	err := row.Scan(
		&sig.SignalID, &sig.TweetID, &sig.TokenAddress, &status,
		&sig.ClaimOwner, &sig.ClaimExpires, &sig.CreatedAt, &sig.ExecutedAt,
	)
	if err != nil {
		return nil, err
	}
	sig.Status = domain.SignalStatus(status)
	return &sig, nil
}
