package domain

// User holds the trading profile of a platform user. Only the fields the
// execution pipeline reads are modeled here; authentication and profile
// data live elsewhere.
type User struct {
	UserID        string  // PRIMARY KEY
	WalletAddress string  // base58 Solana pubkey, empty if no wallet linked
	AutoTrading   bool    // opt-in flag for automatic execution
	TradeAmount   float64 // per-signal buy size in SOL
	MaxSlippage   float64 // tolerated slippage in percent, 0 means default
	StopLoss      float64 // percent, informational on the trade record
	TakeProfit    float64 // percent, informational on the trade record

	// Risk limits. Nil means unconstrained.
	MaxPositionSize    *float64 // max cumulative SOL per token
	MaxTokenAllocation *float64 // max percent of portfolio in one token

	CreatedAt int64 // record creation timestamp (ms)
}

// Eligible reports whether the user qualifies for automatic execution:
// auto trading enabled, a wallet linked, and a positive trade amount.
func (u *User) Eligible() bool {
	return u.AutoTrading && u.WalletAddress != "" && u.TradeAmount > 0
}

// SlippagePct returns the user's slippage tolerance in percent,
// falling back to the platform default when unset.
func (u *User) SlippagePct() float64 {
	if u.MaxSlippage > 0 {
		return u.MaxSlippage
	}
	return DefaultSlippagePct
}

// DefaultSlippagePct is applied when a user has no explicit slippage setting.
const DefaultSlippagePct = 5.0
