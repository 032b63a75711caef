package memory

import (
	"context"
	"errors"
	"testing"

	"solana-signal-trader/internal/domain"
	"solana-signal-trader/internal/storage"
)

func newTestSignal(id string) *domain.TokenSignal {
	return &domain.TokenSignal{
		SignalID:     id,
		TweetID:      "tweet-" + id,
		TokenAddress: "So11111111111111111111111111111111111111112",
		Status:       domain.SignalPending,
		CreatedAt:    1700000000000,
	}
}

func TestTokenSignalStore_InsertDuplicateTweet(t *testing.T) {
	ctx := context.Background()
	store := NewTokenSignalStore(NewTweetStore())

	sig := newTestSignal("sig-1")
	if err := store.Insert(ctx, sig); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	// A second signal for the same tweet must be rejected.
	dup := newTestSignal("sig-2")
	dup.TweetID = sig.TweetID
	if err := store.Insert(ctx, dup); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestTokenSignalStore_ClaimPending_AtMostOnce(t *testing.T) {
	ctx := context.Background()
	store := NewTokenSignalStore(NewTweetStore())

	if err := store.Insert(ctx, newTestSignal("sig-1")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	now := int64(1700000001000)
	lease := now + 60_000

	if err := store.ClaimPending(ctx, "sig-1", "worker-a", now, lease); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}

	// Second claim while the lease is live must lose.
	if err := store.ClaimPending(ctx, "sig-1", "worker-b", now+1, lease); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for concurrent claim, got %v", err)
	}
}

func TestTokenSignalStore_ClaimPending_LeaseExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewTokenSignalStore(NewTweetStore())

	if err := store.Insert(ctx, newTestSignal("sig-1")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	now := int64(1700000001000)
	if err := store.ClaimPending(ctx, "sig-1", "worker-a", now, now+60_000); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	// After the lease expires the signal is claimable by another owner.
	later := now + 61_000
	if err := store.ClaimPending(ctx, "sig-1", "worker-b", later, later+60_000); err != nil {
		t.Errorf("expected expired lease to be reclaimable, got %v", err)
	}

	// The original owner can no longer finish the signal.
	if err := store.MarkExecuted(ctx, "sig-1", "worker-a", later+1); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for stale owner, got %v", err)
	}
}

func TestTokenSignalStore_ReleaseClaim(t *testing.T) {
	ctx := context.Background()
	store := NewTokenSignalStore(NewTweetStore())

	if err := store.Insert(ctx, newTestSignal("sig-1")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	now := int64(1700000001000)
	if err := store.ClaimPending(ctx, "sig-1", "worker-a", now, now+60_000); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	// Only the claim owner may release.
	if err := store.ReleaseClaim(ctx, "sig-1", "worker-b"); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for foreign release, got %v", err)
	}

	if err := store.ReleaseClaim(ctx, "sig-1", "worker-a"); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	sig, err := store.GetByID(ctx, "sig-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if sig.Status != domain.SignalPending {
		t.Errorf("expected PENDING after release, got %s", sig.Status)
	}
	if sig.ClaimOwner != "" || sig.ClaimExpires != 0 {
		t.Errorf("expected claim fields cleared, got owner=%q expires=%d", sig.ClaimOwner, sig.ClaimExpires)
	}

	// A released signal is immediately claimable by anyone.
	if err := store.ClaimPending(ctx, "sig-1", "worker-b", now+1, now+60_001); err != nil {
		t.Errorf("expected released signal claimable, got %v", err)
	}
}

func TestTokenSignalStore_TerminalStatesNeverRevert(t *testing.T) {
	ctx := context.Background()
	store := NewTokenSignalStore(NewTweetStore())

	if err := store.Insert(ctx, newTestSignal("sig-1")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	now := int64(1700000001000)
	if err := store.ClaimPending(ctx, "sig-1", "worker-a", now, now+60_000); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := store.MarkExecuted(ctx, "sig-1", "worker-a", now+5_000); err != nil {
		t.Fatalf("mark executed failed: %v", err)
	}

	// Terminal signal is not claimable, even far in the future.
	if err := store.ClaimPending(ctx, "sig-1", "worker-b", now+120_000, now+180_000); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected terminal signal unclaimable, got %v", err)
	}
	if err := store.MarkFailed(ctx, "sig-1", "worker-a"); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for terminal transition, got %v", err)
	}

	sig, err := store.GetByID(ctx, "sig-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if sig.Status != domain.SignalExecuted {
		t.Errorf("status changed after terminal state: %s", sig.Status)
	}
	if sig.ExecutedAt == nil || *sig.ExecutedAt != now+5_000 {
		t.Errorf("unexpected executed_at: %v", sig.ExecutedAt)
	}
}

func TestTokenSignalStore_ListPendingByAccount(t *testing.T) {
	ctx := context.Background()
	tweets := NewTweetStore()
	store := NewTokenSignalStore(tweets)

	// Two tweets for acct-1, one for acct-2.
	mustInsertTweet(t, tweets, "tweet-sig-1", "acct-1", 10)
	mustInsertTweet(t, tweets, "tweet-sig-2", "acct-1", 20)
	mustInsertTweet(t, tweets, "tweet-sig-3", "acct-2", 30)

	for i, id := range []string{"sig-1", "sig-2", "sig-3"} {
		sig := newTestSignal(id)
		sig.CreatedAt = int64(1700000000000 + i)
		if err := store.Insert(ctx, sig); err != nil {
			t.Fatalf("insert %s failed: %v", id, err)
		}
	}

	now := int64(1700000010000)
	if err := store.ClaimPending(ctx, "sig-2", "worker-a", now, now+60_000); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	got, err := store.ListPendingByAccount(ctx, "acct-1", now)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 1 || got[0].SignalID != "sig-1" {
		t.Errorf("expected only sig-1 pending for acct-1, got %+v", got)
	}
}

func mustInsertTweet(t *testing.T, store *TweetStore, tweetID, accountID string, postedAt int64) {
	t.Helper()
	err := store.Insert(context.Background(), &domain.Tweet{
		TweetID:    tweetID,
		ExternalID: "ext-" + tweetID,
		AccountID:  accountID,
		Content:    "content",
		PostedAt:   postedAt,
		CreatedAt:  postedAt,
	})
	if err != nil {
		t.Fatalf("insert tweet %s failed: %v", tweetID, err)
	}
}
