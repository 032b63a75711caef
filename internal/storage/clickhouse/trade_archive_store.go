package clickhouse

import (
	"context"
	"fmt"

	"solana-signal-trader/internal/domain"
	"solana-signal-trader/internal/storage"
)

// TradeArchiveStore implements storage.TradeArchiveStore using ClickHouse.
// ReplacingMergeTree deduplicates repeated appends of the same trade_id.
type TradeArchiveStore struct {
	conn *Conn
}

// NewTradeArchiveStore creates a new TradeArchiveStore.
func NewTradeArchiveStore(conn *Conn) *TradeArchiveStore {
	return &TradeArchiveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeArchiveStore = (*TradeArchiveStore)(nil)

// Archive appends a terminal trade to the analytics table.
func (s *TradeArchiveStore) Archive(ctx context.Context, t *domain.Trade) error {
	if t == nil || !t.Status.Terminal() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trade_archive (
			trade_id, signal_id, user_id, token_address,
			input_amount, platform_fee, avg_entry_price, previous_profit_loss,
			status, tx_signature, execution_price, network_fee,
			execution_time_ms, error, created_at, executed_at
		) VALUES (
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?
		)
	`

	err := s.conn.Exec(ctx, query,
		t.TradeID, t.SignalID, t.UserID, t.TokenAddress,
		t.InputAmount, t.PlatformFee, t.AvgEntryPrice, t.PreviousProfitLoss,
		t.Status.String(), t.TxSignature, t.ExecutionPrice, t.NetworkFee,
		t.ExecutionTimeMs, t.Error, t.CreatedAt, t.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("archive trade: %w", err)
	}
	return nil
}
