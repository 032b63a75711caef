// Package twitter fetches recent tweets of tracked accounts from the
// twttrapi RapidAPI endpoint.
package twitter

import "context"

// RecentTweet is one tweet pulled from an account timeline.
type RecentTweet struct {
	// ExternalID is the upstream tweet ID, unique across the platform.
	ExternalID string
	// Content is the tweet full text.
	Content string
	// PostedAt is the publication time, Unix milliseconds.
	PostedAt int64
}

// AccountStats carries the account-level counters embedded in a timeline
// response. Nil when the response exposed none.
type AccountStats struct {
	// FollowerCount is the account's follower count at fetch time.
	FollowerCount int64
	// TweetCount is the account's lifetime tweet count at fetch time.
	TweetCount int64
}

// DataSource retrieves the recent timeline of a handle, along with the
// account counters the timeline exposes.
type DataSource interface {
	RecentTweets(ctx context.Context, handle string) ([]RecentTweet, *AccountStats, error)
}
