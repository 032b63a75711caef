// Package risk enforces per-user position and allocation limits before a
// trade is placed.
package risk

import (
	"context"
	"fmt"

	"solana-signal-trader/internal/domain"
	"solana-signal-trader/internal/storage"
)

// Limit names which configured limit a trade would breach.
type Limit string

const (
	LimitPositionSize    Limit = "position_size"
	LimitTokenAllocation Limit = "token_allocation"
)

// LimitError reports a trade rejected by a risk limit.
type LimitError struct {
	Limit Limit
	// Current is the value before the trade, in the limit's unit.
	Current float64
	// Attempted is the value the trade would reach.
	Attempted float64
	// Max is the configured ceiling.
	Max float64
}

func (e *LimitError) Error() string {
	switch e.Limit {
	case LimitPositionSize:
		return fmt.Sprintf("trade would exceed maximum position size: %.4f + trade > %.4f SOL", e.Current, e.Max)
	case LimitTokenAllocation:
		return fmt.Sprintf("trade would exceed maximum token allocation: %.2f%% > %.2f%%", e.Attempted, e.Max)
	default:
		return fmt.Sprintf("trade would exceed %s limit", e.Limit)
	}
}

// Gate checks trades against the user's configured limits using the
// completed-trade ledger.
type Gate struct {
	trades storage.TradeStore
}

// NewGate creates a risk gate over the trade ledger.
func NewGate(trades storage.TradeStore) *Gate {
	return &Gate{trades: trades}
}

// CheckLimits verifies that buying amount SOL of tokenAddress keeps the
// user inside their position and allocation limits. Limits left unset are
// not enforced. Reaching a limit exactly is allowed; only exceeding it is
// rejected.
func (g *Gate) CheckLimits(ctx context.Context, user *domain.User, tokenAddress string, amount float64) error {
	position, err := g.trades.SumCompletedByUserToken(ctx, user.UserID, tokenAddress)
	if err != nil {
		return fmt.Errorf("sum position for user %s token %s: %w", user.UserID, tokenAddress, err)
	}

	newPosition := position + amount
	if user.MaxPositionSize != nil && newPosition > *user.MaxPositionSize {
		return &LimitError{
			Limit:     LimitPositionSize,
			Current:   position,
			Attempted: newPosition,
			Max:       *user.MaxPositionSize,
		}
	}

	if user.MaxTokenAllocation != nil {
		portfolio, err := g.trades.SumCompletedByUser(ctx, user.UserID)
		if err != nil {
			return fmt.Errorf("sum portfolio for user %s: %w", user.UserID, err)
		}

		// The trade amount counts in both numerator and denominator: the
		// allocation is evaluated as of the portfolio after this trade.
		newAllocation := newPosition / (portfolio + amount) * 100
		if newAllocation > *user.MaxTokenAllocation {
			return &LimitError{
				Limit:     LimitTokenAllocation,
				Current:   position,
				Attempted: newAllocation,
				Max:       *user.MaxTokenAllocation,
			}
		}
	}

	return nil
}
