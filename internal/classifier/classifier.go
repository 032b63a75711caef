// Package classifier decides whether a tweet is a buy signal for a
// specific Solana token.
package classifier

import "context"

// Classifier extracts a token mint address from tweet content.
//
// ExtractTokenAddress returns the mint address of the token the tweet is
// bullish on, or empty string when the tweet carries no actionable signal.
// Implementations fail open: classification errors yield no signal rather
// than an error that would stall the ingest loop.
type Classifier interface {
	ExtractTokenAddress(ctx context.Context, content string) string
}
