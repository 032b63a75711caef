// Package price resolves current token prices for risk checks and
// entry-price bookkeeping.
package price

import "context"

// Source resolves the current price of a token mint.
//
// Implementations fail open: when no price can be resolved they return 0,
// never an error, so a pricing outage degrades risk precision without
// stalling execution.
type Source interface {
	TokenPrice(ctx context.Context, mint string) float64
}
