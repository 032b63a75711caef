// Package idhash computes deterministic identifiers for pipeline records.
// Deterministic IDs make re-ingestion idempotent: the same upstream input
// always maps to the same primary key, so duplicate inserts surface as
// unique-constraint violations instead of shadow copies.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeAccountID computes a deterministic account_id from the handle.
// Returns hex-encoded SHA256 (64 characters).
func ComputeAccountID(handle string) string {
	return sum(fmt.Sprintf("account|%s", handle))
}

// ComputeTweetID computes a deterministic tweet_id.
// Formula: SHA256("tweet|" + external_id + "|" + account_id).
func ComputeTweetID(externalID, accountID string) string {
	return sum(fmt.Sprintf("tweet|%s|%s", externalID, accountID))
}

// ComputeSignalID computes a deterministic signal_id.
// Formula: SHA256("signal|" + tweet_id + "|" + token_address).
func ComputeSignalID(tweetID, tokenAddress string) string {
	return sum(fmt.Sprintf("signal|%s|%s", tweetID, tokenAddress))
}

// ComputeTradeID computes a deterministic trade_id.
// createdAt disambiguates repeated attempts for the same (signal, user) pair.
func ComputeTradeID(signalID, userID string, createdAt int64) string {
	return sum(fmt.Sprintf("trade|%s|%s|%d", signalID, userID, createdAt))
}

func sum(data string) string {
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:])
}
