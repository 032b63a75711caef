package domain

// TradeStatus represents the lifecycle state of a trade attempt.
// A trade is created PENDING before any on-chain call and transitions
// exactly once to COMPLETED or FAILED.
type TradeStatus string

const (
	TradePending   TradeStatus = "PENDING"
	TradeCompleted TradeStatus = "COMPLETED"
	TradeFailed    TradeStatus = "FAILED"
)

// String returns the string representation of TradeStatus.
func (s TradeStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s TradeStatus) IsValid() bool {
	switch s {
	case TradePending, TradeCompleted, TradeFailed:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s TradeStatus) Terminal() bool {
	return s == TradeCompleted || s == TradeFailed
}

// Trade is the system-of-record for one execution attempt against a signal.
// Risk limits are computed by summing InputAmount over COMPLETED trades.
type Trade struct {
	TradeID      string // PRIMARY KEY, deterministic hash
	SignalID     string // token signal being executed
	UserID       string // subscriber the trade runs for
	TokenAddress string // output mint

	// Intent, captured before submission.
	InputAmount        float64 // SOL spent
	PlatformFee        float64 // SOL, platform fee share of InputAmount
	StopLoss           float64 // percent, copied from user settings
	TakeProfit         float64 // percent, copied from user settings
	AvgEntryPrice      float64 // cost-weighted entry price over prior completed trades
	PreviousProfitLoss float64 // trailing P/L percent at trade time, informational

	// Outcome.
	Status          TradeStatus
	TxSignature     string   // last confirmed transaction signature
	ExecutionPrice  *float64 // SOL per token, nil when balance readback failed
	NetworkFee      float64  // SOL, priority fee paid
	ExecutionTimeMs int64    // wall-clock duration of the attempt
	Error           string   // human-readable failure reason, empty on success

	CreatedAt  int64  // record creation timestamp (ms)
	ExecutedAt *int64 // terminal transition timestamp (ms)
}
