package domain

// Tweet represents a single ingested post. Immutable once created;
// external_id carries a unique constraint so re-ingestion is idempotent.
type Tweet struct {
	TweetID    string // PRIMARY KEY, deterministic hash
	ExternalID string // upstream post id, unique dedup key
	AccountID  string // tracked account the post belongs to
	Content    string // full post text
	PostedAt   int64  // upstream publication timestamp (ms)
	CreatedAt  int64  // record creation timestamp (ms)
}
