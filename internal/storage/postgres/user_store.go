package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-signal-trader/internal/domain"
	"solana-signal-trader/internal/storage"
)

// UserStore implements storage.UserStore using PostgreSQL.
type UserStore struct {
	pool *Pool
}

// NewUserStore creates a new UserStore.
func NewUserStore(pool *Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Compile-time interface check.
var _ storage.UserStore = (*UserStore)(nil)

const userColumns = `
	user_id, wallet_address, auto_trading, trade_amount,
	max_slippage, stop_loss, take_profit,
	max_position_size, max_token_allocation, created_at
`

// Insert adds a new user. Returns ErrDuplicateKey if user_id exists.
func (s *UserStore) Insert(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (
			user_id, wallet_address, auto_trading, trade_amount,
			max_slippage, stop_loss, take_profit,
			max_position_size, max_token_allocation, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		u.UserID, u.WalletAddress, u.AutoTrading, u.TradeAmount,
		u.MaxSlippage, u.StopLoss, u.TakeProfit,
		u.MaxPositionSize, u.MaxTokenAllocation, u.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID. Returns ErrNotFound if not exists.
func (s *UserStore) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// GetByWallet retrieves a user by wallet address. Returns ErrNotFound if not exists.
func (s *UserStore) GetByWallet(ctx context.Context, walletAddress string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE wallet_address = $1 AND wallet_address <> ''`

	u, err := scanUser(s.pool.QueryRow(ctx, query, walletAddress))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get user by wallet: %w", err)
	}
	return u, nil
}

// Update replaces the user's trading profile. Returns ErrNotFound if not exists.
func (s *UserStore) Update(ctx context.Context, u *domain.User) error {
	query := `
		UPDATE users
		SET wallet_address = $2, auto_trading = $3, trade_amount = $4,
		    max_slippage = $5, stop_loss = $6, take_profit = $7,
		    max_position_size = $8, max_token_allocation = $9
		WHERE user_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		u.UserID, u.WalletAddress, u.AutoTrading, u.TradeAmount,
		u.MaxSlippage, u.StopLoss, u.TakeProfit,
		u.MaxPositionSize, u.MaxTokenAllocation,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanUser scans a single row into a User.
func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.UserID, &u.WalletAddress, &u.AutoTrading, &u.TradeAmount,
		&u.MaxSlippage, &u.StopLoss, &u.TakeProfit,
		&u.MaxPositionSize, &u.MaxTokenAllocation, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
