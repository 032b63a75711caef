package domain

// TrackedAccount represents an external social-media handle monitored for
// trading-relevant posts. Corresponds to tracked_accounts table in PostgreSQL.
type TrackedAccount struct {
	AccountID     string // PRIMARY KEY, deterministic hash
	Handle        string // external handle, unique
	FollowerCount int64  // refreshed on each poll
	TweetCount    int64  // refreshed on each poll
	CreatedAt     int64  // Unix timestamp in milliseconds
	UpdatedAt     int64  // last poll timestamp (ms)
}
