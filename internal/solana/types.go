// Package solana provides the JSON-RPC and WebSocket chain access the
// execution pipeline needs: balances, transaction submission, confirmation
// and token account readback.
package solana

// Well-known addresses and units.
const (
	// NativeMint is the wrapped SOL mint address.
	NativeMint = "So11111111111111111111111111111111111111112"

	// TokenProgramID is the SPL token program.
	TokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

	// LamportsPerSOL is the number of base units in one SOL.
	LamportsPerSOL = 1_000_000_000
)

// Blockhash carries the recent blockhash used to time-box confirmation.
type Blockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// TokenBalance is one SPL token holding of a wallet.
type TokenBalance struct {
	Mint     string  // token mint address
	Amount   float64 // UI amount (decimals applied)
	Decimals int     // mint decimals
}

// SignatureStatus is the confirmation state of a submitted transaction.
type SignatureStatus struct {
	Slot               uint64      `json:"slot"`
	Confirmations      *uint64     `json:"confirmations"`
	Err                interface{} `json:"err"`
	ConfirmationStatus string      `json:"confirmationStatus"` // processed | confirmed | finalized
}

// Confirmed reports whether the status reached at least the given commitment.
func (s *SignatureStatus) Confirmed(commitment string) bool {
	if s == nil || s.Err != nil {
		return false
	}
	switch commitment {
	case "finalized":
		return s.ConfirmationStatus == "finalized"
	default:
		return s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized"
	}
}
