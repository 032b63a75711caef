package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-signal-trader/internal/domain"
	"solana-signal-trader/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
// Terminal transitions are conditional UPDATEs guarded on status = 'PENDING',
// so a trade can never leave a terminal state.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	trade_id, signal_id, user_id, token_address,
	input_amount, platform_fee, stop_loss, take_profit,
	avg_entry_price, previous_profit_loss,
	status, tx_signature, execution_price, network_fee,
	execution_time_ms, error, created_at, executed_at
`

// Insert adds a new trade. The trade must be PENDING.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	if t.Status != domain.TradePending {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trades (
			trade_id, signal_id, user_id, token_address,
			input_amount, platform_fee, stop_loss, take_profit,
			avg_entry_price, previous_profit_loss,
			status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.pool.Exec(ctx, query,
		t.TradeID, t.SignalID, t.UserID, t.TokenAddress,
		t.InputAmount, t.PlatformFee, t.StopLoss, t.TakeProfit,
		t.AvgEntryPrice, t.PreviousProfitLoss,
		t.Status.String(), t.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE trade_id = $1`

	t, err := scanTrade(s.pool.QueryRow(ctx, query, tradeID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// ListCompletedByUserToken retrieves COMPLETED trades for (user, token),
// ordered by executed_at ASC.
func (s *TradeStore) ListCompletedByUserToken(ctx context.Context, userID, tokenAddress string) ([]*domain.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE user_id = $1 AND token_address = $2 AND status = 'COMPLETED'
		ORDER BY executed_at ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, userID, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("list completed trades: %w", err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}

// SumCompletedByUserToken sums input_amount over COMPLETED trades for (user, token).
func (s *TradeStore) SumCompletedByUserToken(ctx context.Context, userID, tokenAddress string) (float64, error) {
	query := `
		SELECT COALESCE(SUM(input_amount), 0)
		FROM trades
		WHERE user_id = $1 AND token_address = $2 AND status = 'COMPLETED'
	`

	var sum float64
	if err := s.pool.QueryRow(ctx, query, userID, tokenAddress).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum completed trades by token: %w", err)
	}
	return sum, nil
}

// SumCompletedByUser sums input_amount over all COMPLETED trades for the user.
func (s *TradeStore) SumCompletedByUser(ctx context.Context, userID string) (float64, error) {
	query := `
		SELECT COALESCE(SUM(input_amount), 0)
		FROM trades
		WHERE user_id = $1 AND status = 'COMPLETED'
	`

	var sum float64
	if err := s.pool.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum completed trades: %w", err)
	}
	return sum, nil
}

// Complete transitions PENDING→COMPLETED with the execution outcome.
func (s *TradeStore) Complete(ctx context.Context, tradeID string, res storage.TradeResult) error {
	query := `
		UPDATE trades
		SET status = 'COMPLETED', tx_signature = $2, execution_price = $3,
		    network_fee = $4, execution_time_ms = $5, executed_at = $6
		WHERE trade_id = $1 AND status = 'PENDING'
	`

	tag, err := s.pool.Exec(ctx, query,
		tradeID, res.TxSignature, res.ExecutionPrice,
		res.NetworkFee, res.ExecutionTimeMs, res.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("complete trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrInvalidInput
	}
	return nil
}

// Fail transitions PENDING→FAILED with the failure reason.
func (s *TradeStore) Fail(ctx context.Context, tradeID, errMsg string, elapsedMs, executedAt int64) error {
	query := `
		UPDATE trades
		SET status = 'FAILED', error = $2, execution_time_ms = $3, executed_at = $4
		WHERE trade_id = $1 AND status = 'PENDING'
	`

	tag, err := s.pool.Exec(ctx, query, tradeID, errMsg, elapsedMs, executedAt)
	if err != nil {
		return fmt.Errorf("fail trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrInvalidInput
	}
	return nil
}

// scanTrade scans a single row into a Trade.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var t domain.Trade
	var status string
	err := row.Scan(
		&t.TradeID, &t.SignalID, &t.UserID, &t.TokenAddress,
		&t.InputAmount, &t.PlatformFee, &t.StopLoss, &t.TakeProfit,
		&t.AvgEntryPrice, &t.PreviousProfitLoss,
		&status, &t.TxSignature, &t.ExecutionPrice, &t.NetworkFee,
		&t.ExecutionTimeMs, &t.Error, &t.CreatedAt, &t.ExecutedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = domain.TradeStatus(status)
	return &t, nil
}
