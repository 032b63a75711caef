// Package ingest turns an account's recent timeline into stored tweets
// and token signals.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"solana-signal-trader/internal/classifier"
	"solana-signal-trader/internal/domain"
	"solana-signal-trader/internal/events"
	"solana-signal-trader/internal/idhash"
	"solana-signal-trader/internal/storage"
	"solana-signal-trader/internal/twitter"
)

// FreshnessWindow bounds how old a tweet may be and still produce a
// signal. Influencer pumps decay in minutes; anything older is noise.
const FreshnessWindow = time.Minute

// TweetIngestor pulls recent tweets of one account, deduplicates them,
// classifies fresh ones and persists the resulting signals.
type TweetIngestor struct {
	source     twitter.DataSource
	classifier classifier.Classifier
	accounts   storage.TrackedAccountStore
	tweets     storage.TweetStore
	signals    storage.TokenSignalStore
	bus        *events.Bus
	logger     *log.Logger

	// now is stubbed in tests.
	now func() time.Time
}

// NewTweetIngestor wires an ingestor. bus may be nil when no event
// consumers exist (the ingest CLI).
func NewTweetIngestor(
	source twitter.DataSource,
	cls classifier.Classifier,
	accounts storage.TrackedAccountStore,
	tweets storage.TweetStore,
	signals storage.TokenSignalStore,
	bus *events.Bus,
	logger *log.Logger,
) *TweetIngestor {
	return &TweetIngestor{
		source:     source,
		classifier: cls,
		accounts:   accounts,
		tweets:     tweets,
		signals:    signals,
		bus:        bus,
		logger:     logger,
		now:        time.Now,
	}
}

// Stats counts the outcome of one ingest pass.
type Stats struct {
	Fetched    int // tweets returned by the data source
	Fresh      int // tweets inside the freshness window
	NewTweets  int // tweets persisted (not seen before)
	NewSignals int // signals extracted and persisted
}

// Ingest runs one pass over the account's timeline. Stale and duplicate
// tweets are skipped; a classification yielding a token address becomes a
// PENDING signal and a "new-signal" event. Per-tweet failures are logged
// and do not abort the pass.
func (ing *TweetIngestor) Ingest(ctx context.Context, account *domain.TrackedAccount) (Stats, error) {
	var stats Stats

	recent, accountStats, err := ing.source.RecentTweets(ctx, account.Handle)
	if err != nil {
		return stats, fmt.Errorf("fetch timeline for %s: %w", account.Handle, err)
	}
	stats.Fetched = len(recent)

	nowMs := ing.now().UnixMilli()

	// Refresh the account counters the timeline carries. Best effort:
	// stale counters never block the pass.
	if accountStats != nil {
		err := ing.accounts.UpdateStats(ctx, account.AccountID, accountStats.FollowerCount, accountStats.TweetCount, nowMs)
		if err != nil {
			ing.logger.Printf("[ingest] update stats for @%s: %v", account.Handle, err)
		} else {
			account.FollowerCount = accountStats.FollowerCount
			account.TweetCount = accountStats.TweetCount
			account.UpdatedAt = nowMs
		}
	}
	cutoff := nowMs - FreshnessWindow.Milliseconds()

	for _, rt := range recent {
		if rt.PostedAt <= cutoff {
			continue
		}
		stats.Fresh++

		tweetID := idhash.ComputeTweetID(rt.ExternalID, account.AccountID)
		tweet := &domain.Tweet{
			TweetID:    tweetID,
			ExternalID: rt.ExternalID,
			AccountID:  account.AccountID,
			Content:    rt.Content,
			PostedAt:   rt.PostedAt,
			CreatedAt:  nowMs,
		}

		err := ing.tweets.Insert(ctx, tweet)
		if errors.Is(err, storage.ErrDuplicateKey) {
			continue
		}
		if err != nil {
			ing.logger.Printf("[ingest] persist tweet %s for %s: %v", rt.ExternalID, account.Handle, err)
			continue
		}
		stats.NewTweets++

		tokenAddress := ing.classifier.ExtractTokenAddress(ctx, rt.Content)
		if tokenAddress == "" {
			continue
		}

		signal := &domain.TokenSignal{
			SignalID:     idhash.ComputeSignalID(tweetID, tokenAddress),
			TweetID:      tweetID,
			TokenAddress: tokenAddress,
			Status:       domain.SignalPending,
			CreatedAt:    nowMs,
		}

		err = ing.signals.Insert(ctx, signal)
		if errors.Is(err, storage.ErrDuplicateKey) {
			continue
		}
		if err != nil {
			ing.logger.Printf("[ingest] persist signal for tweet %s: %v", rt.ExternalID, err)
			continue
		}
		stats.NewSignals++

		ing.logger.Printf("[ingest] new signal %s: token %s from @%s", signal.SignalID, tokenAddress, account.Handle)

		if ing.bus != nil {
			// Clients get the full rows: the signal joined with its
			// tweet and account.
			ing.bus.Publish(events.Event{
				Type: "new-signal",
				Payload: map[string]interface{}{
					"signal":  signal,
					"tweet":   tweet,
					"account": account,
				},
			})
		}
	}

	return stats, nil
}
