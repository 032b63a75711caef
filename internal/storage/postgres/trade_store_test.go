package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-signal-trader/internal/domain"
	"solana-signal-trader/internal/storage"
	"solana-signal-trader/internal/storage/postgres"
)

func newPendingTrade(id, userID, token string, amount float64) *domain.Trade {
	return &domain.Trade{
		TradeID:      id,
		SignalID:     "sig-" + id,
		UserID:       userID,
		TokenAddress: token,
		InputAmount:  amount,
		Status:       domain.TradePending,
		CreatedAt:    1700000000000,
	}
}

func TestTradeStore_InsertAndComplete(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	trades := postgres.NewTradeStore(pool)

	require.NoError(t, trades.Insert(ctx, newPendingTrade("t1", "user-1", "TOKEN123", 0.5)))

	price := 0.000042
	require.NoError(t, trades.Complete(ctx, "t1", storage.TradeResult{
		TxSignature:     "5igSig",
		ExecutionPrice:  &price,
		NetworkFee:      0.0001,
		ExecutionTimeMs: 2500,
		ExecutedAt:      1700000005000,
	}))

	got, err := trades.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TradeCompleted, got.Status)
	assert.Equal(t, "5igSig", got.TxSignature)
	require.NotNil(t, got.ExecutionPrice)
	assert.InDelta(t, price, *got.ExecutionPrice, 1e-12)

	// Terminal monotonicity: cannot fail or re-complete.
	assert.ErrorIs(t, trades.Fail(ctx, "t1", "late", 10, 1700000006000), storage.ErrInvalidInput)
	assert.ErrorIs(t, trades.Complete(ctx, "t1", storage.TradeResult{}), storage.ErrInvalidInput)
}

func TestTradeStore_Sums(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	trades := postgres.NewTradeStore(pool)

	for _, tr := range []*domain.Trade{
		newPendingTrade("t1", "user-1", "TOKEN123", 0.5),
		newPendingTrade("t2", "user-1", "TOKEN123", 0.25),
		newPendingTrade("t3", "user-1", "OTHER", 1.0),
		newPendingTrade("t4", "user-1", "TOKEN123", 9.0), // stays pending
		newPendingTrade("t5", "user-2", "TOKEN123", 3.0),
	} {
		require.NoError(t, trades.Insert(ctx, tr))
	}
	for _, id := range []string{"t1", "t2", "t3", "t5"} {
		require.NoError(t, trades.Complete(ctx, id, storage.TradeResult{
			TxSignature: "tx-" + id,
			ExecutedAt:  1700000005000,
		}))
	}

	position, err := trades.SumCompletedByUserToken(ctx, "user-1", "TOKEN123")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, position, 1e-12)

	portfolio, err := trades.SumCompletedByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.InDelta(t, 1.75, portfolio, 1e-12)

	// Empty ledger sums to zero, not an error.
	zero, err := trades.SumCompletedByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, zero)
}

func TestTradeStore_ListCompletedOrdered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	trades := postgres.NewTradeStore(pool)

	require.NoError(t, trades.Insert(ctx, newPendingTrade("t1", "user-1", "TOKEN123", 0.5)))
	require.NoError(t, trades.Insert(ctx, newPendingTrade("t2", "user-1", "TOKEN123", 0.25)))

	// Complete t2 earlier than t1.
	require.NoError(t, trades.Complete(ctx, "t2", storage.TradeResult{ExecutedAt: 1700000001000}))
	require.NoError(t, trades.Complete(ctx, "t1", storage.TradeResult{ExecutedAt: 1700000009000}))

	got, err := trades.ListCompletedByUserToken(ctx, "user-1", "TOKEN123")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t2", got[0].TradeID)
	assert.Equal(t, "t1", got[1].TradeID)
}
