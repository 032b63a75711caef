package domain

// SignalStatus represents the lifecycle state of a token signal.
//
// PENDING → CLAIMED → EXECUTED | FAILED
//
// CLAIMED is the in-flight state: an executor owns the signal for the
// duration of its lease. A signal whose lease expired is claimable again,
// so a crashed executor cannot strand it. EXECUTED and FAILED are terminal.
type SignalStatus string

const (
	SignalPending  SignalStatus = "PENDING"
	SignalClaimed  SignalStatus = "CLAIMED"
	SignalExecuted SignalStatus = "EXECUTED"
	SignalFailed   SignalStatus = "FAILED"
)

// String returns the string representation of SignalStatus.
func (s SignalStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s SignalStatus) IsValid() bool {
	switch s {
	case SignalPending, SignalClaimed, SignalExecuted, SignalFailed:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s SignalStatus) Terminal() bool {
	return s == SignalExecuted || s == SignalFailed
}

// TokenSignal represents an extracted buy recommendation derived from a
// single tweet. One signal per tweet (unique constraint on tweet_id).
type TokenSignal struct {
	SignalID     string       // PRIMARY KEY, deterministic hash
	TweetID      string       // source tweet, unique
	TokenAddress string       // Solana mint address extracted from the tweet
	Status       SignalStatus // see SignalStatus
	ClaimOwner   string       // executor identity holding the claim, empty unless CLAIMED
	ClaimExpires int64        // lease expiry (ms), zero unless CLAIMED
	CreatedAt    int64        // record creation timestamp (ms)
	ExecutedAt   *int64       // set when status becomes EXECUTED (ms)
}
