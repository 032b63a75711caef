package memory

import (
	"context"
	"sort"
	"sync"

	"solana-signal-trader/internal/domain"
	"solana-signal-trader/internal/storage"
)

// TokenSignalStore is an in-memory implementation of storage.TokenSignalStore.
type TokenSignalStore struct {
	mu      sync.RWMutex
	data    map[string]*domain.TokenSignal // keyed by signal_id
	byTweet map[string]string              // tweet_id -> signal_id

	// tweetAccount resolves a tweet to its account for ListPendingByAccount.
	// The Postgres implementation joins on tweets; the memory store is fed
	// the mapping through the tweet store it is constructed with.
	tweets *TweetStore
}

// NewTokenSignalStore creates a new in-memory token signal store.
// The tweet store is consulted to resolve signals to accounts.
func NewTokenSignalStore(tweets *TweetStore) *TokenSignalStore {
	return &TokenSignalStore{
		data:    make(map[string]*domain.TokenSignal),
		byTweet: make(map[string]string),
		tweets:  tweets,
	}
}

// Insert adds a new signal with status PENDING.
func (s *TokenSignalStore) Insert(_ context.Context, sig *domain.TokenSignal) error {
	if sig == nil || sig.SignalID == "" || sig.TweetID == "" || sig.TokenAddress == "" {
		return storage.ErrInvalidInput
	}
	if sig.Status != domain.SignalPending {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sig.SignalID]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.byTweet[sig.TweetID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *sig
	s.data[sig.SignalID] = &copy
	s.byTweet[sig.TweetID] = sig.SignalID
	return nil
}

// GetByID retrieves a signal by its ID. Returns ErrNotFound if not exists.
func (s *TokenSignalStore) GetByID(_ context.Context, signalID string) (*domain.TokenSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, exists := s.data[signalID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *sig
	return &copy, nil
}

// ListPendingByAccount retrieves claimable signals for an account's tweets,
// ordered by created_at ASC.
func (s *TokenSignalStore) ListPendingByAccount(ctx context.Context, accountID string, now int64) ([]*domain.TokenSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TokenSignal
	for _, sig := range s.data {
		if !claimable(sig, now) {
			continue
		}
		tweet, err := s.tweets.GetByID(ctx, sig.TweetID)
		if err != nil {
			continue
		}
		if tweet.AccountID != accountID {
			continue
		}
		copy := *sig
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt < result[j].CreatedAt
	})

	return result, nil
}

// ClaimPending atomically transitions a claimable signal to CLAIMED.
func (s *TokenSignalStore) ClaimPending(_ context.Context, signalID, owner string, now, expiresAt int64) error {
	if owner == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sig, exists := s.data[signalID]
	if !exists {
		return storage.ErrNotFound
	}
	if !claimable(sig, now) {
		return storage.ErrNotFound
	}

	sig.Status = domain.SignalClaimed
	sig.ClaimOwner = owner
	sig.ClaimExpires = expiresAt
	return nil
}

// MarkExecuted transitions CLAIMED→EXECUTED for the owning claim.
func (s *TokenSignalStore) MarkExecuted(_ context.Context, signalID, owner string, executedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, exists := s.data[signalID]
	if !exists {
		return storage.ErrNotFound
	}
	if sig.Status != domain.SignalClaimed || sig.ClaimOwner != owner {
		return storage.ErrInvalidInput
	}

	sig.Status = domain.SignalExecuted
	sig.ClaimOwner = ""
	sig.ClaimExpires = 0
	sig.ExecutedAt = &executedAt
	return nil
}

// MarkFailed transitions CLAIMED→FAILED for the owning claim.
func (s *TokenSignalStore) MarkFailed(_ context.Context, signalID, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, exists := s.data[signalID]
	if !exists {
		return storage.ErrNotFound
	}
	if sig.Status != domain.SignalClaimed || sig.ClaimOwner != owner {
		return storage.ErrInvalidInput
	}

	sig.Status = domain.SignalFailed
	sig.ClaimOwner = ""
	sig.ClaimExpires = 0
	return nil
}

// ReleaseClaim transitions CLAIMED→PENDING for the owning claim.
func (s *TokenSignalStore) ReleaseClaim(_ context.Context, signalID, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, exists := s.data[signalID]
	if !exists {
		return storage.ErrNotFound
	}
	if sig.Status != domain.SignalClaimed || sig.ClaimOwner != owner {
		return storage.ErrInvalidInput
	}

	sig.Status = domain.SignalPending
	sig.ClaimOwner = ""
	sig.ClaimExpires = 0
	return nil
}

// claimable reports whether a signal may be claimed at time now:
// PENDING, or CLAIMED with an expired lease.
func claimable(sig *domain.TokenSignal, now int64) bool {
	if sig.Status == domain.SignalPending {
		return true
	}
	return sig.Status == domain.SignalClaimed && sig.ClaimExpires > 0 && sig.ClaimExpires <= now
}

var _ storage.TokenSignalStore = (*TokenSignalStore)(nil)
