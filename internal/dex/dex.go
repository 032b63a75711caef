// Package dex quotes and builds swap transactions against a DEX
// aggregator. The production implementation targets the Raydium trade API.
package dex

import (
	"context"
	"encoding/json"
)

// Quote is an opaque swap route computed by the aggregator. It is passed
// back verbatim when building transactions, so the payload is kept raw.
type Quote struct {
	// Raw is the full compute response body.
	Raw json.RawMessage
	// InputMint and OutputMint echo the requested pair.
	InputMint  string
	OutputMint string
	// InAmount and OutAmount are base-unit amounts quoted for the route.
	InAmount  string
	OutAmount string
}

// PriorityFees are the aggregator-recommended compute unit prices in
// micro-lamports, by urgency tier.
type PriorityFees struct {
	VeryHigh uint64
	High     uint64
	Medium   uint64
}

// Aggregator computes swap routes and serialized transactions.
type Aggregator interface {
	// PriorityFees fetches current recommended priority fees.
	PriorityFees(ctx context.Context) (*PriorityFees, error)

	// Quote computes a swap-base-in route. amount is in input-mint base
	// units; slippageBps is tolerated slippage in basis points.
	Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error)

	// BuildTransactions turns a quote into base64-encoded unsigned
	// transactions for the wallet. feeMicroLamports is the compute unit
	// price applied to the transaction.
	BuildTransactions(ctx context.Context, quote *Quote, wallet string, feeMicroLamports uint64) ([]string, error)
}
