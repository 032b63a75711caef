package memory

import (
	"context"
	"sort"
	"sync"

	"solana-signal-trader/internal/domain"
	"solana-signal-trader/internal/storage"
)

// TrackedAccountStore is an in-memory implementation of storage.TrackedAccountStore.
type TrackedAccountStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TrackedAccount // keyed by account_id

	// subs maps account_id to its subscribers in subscription order.
	subs map[string][]subscription
}

type subscription struct {
	userID       string
	subscribedAt int64
}

// NewTrackedAccountStore creates a new in-memory tracked account store.
func NewTrackedAccountStore() *TrackedAccountStore {
	return &TrackedAccountStore{
		data: make(map[string]*domain.TrackedAccount),
		subs: make(map[string][]subscription),
	}
}

// Insert adds a new account. Returns ErrDuplicateKey if the handle exists.
func (s *TrackedAccountStore) Insert(_ context.Context, a *domain.TrackedAccount) error {
	if a == nil || a.AccountID == "" || a.Handle == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.AccountID]; exists {
		return storage.ErrDuplicateKey
	}
	for _, existing := range s.data {
		if existing.Handle == a.Handle {
			return storage.ErrDuplicateKey
		}
	}

	copy := *a
	s.data[a.AccountID] = &copy
	return nil
}

// GetByID retrieves an account by its ID. Returns ErrNotFound if not exists.
func (s *TrackedAccountStore) GetByID(_ context.Context, accountID string) (*domain.TrackedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[accountID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *a
	return &copy, nil
}

// GetByHandle retrieves an account by handle. Returns ErrNotFound if not exists.
func (s *TrackedAccountStore) GetByHandle(_ context.Context, handle string) (*domain.TrackedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.data {
		if a.Handle == handle {
			copy := *a
			return &copy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// UpdateStats refreshes follower/tweet counts and the poll timestamp.
func (s *TrackedAccountStore) UpdateStats(_ context.Context, accountID string, followers, tweets, updatedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.data[accountID]
	if !exists {
		return storage.ErrNotFound
	}
	a.FollowerCount = followers
	a.TweetCount = tweets
	a.UpdatedAt = updatedAt
	return nil
}

// ListWithSubscribers retrieves accounts that have at least one subscriber.
func (s *TrackedAccountStore) ListWithSubscribers(_ context.Context) ([]*domain.TrackedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TrackedAccount
	for id, a := range s.data {
		if len(s.subs[id]) > 0 {
			copy := *a
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Handle < result[j].Handle
	})

	return result, nil
}

// Subscribe links a user to an account. Idempotent.
func (s *TrackedAccountStore) Subscribe(_ context.Context, accountID, userID string, subscribedAt int64) error {
	if accountID == "" || userID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[accountID]; !exists {
		return storage.ErrNotFound
	}
	for _, sub := range s.subs[accountID] {
		if sub.userID == userID {
			return nil
		}
	}
	s.subs[accountID] = append(s.subs[accountID], subscription{userID: userID, subscribedAt: subscribedAt})
	return nil
}

// Unsubscribe removes the link. No error if the link does not exist.
func (s *TrackedAccountStore) Unsubscribe(_ context.Context, accountID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := s.subs[accountID]
	for i, sub := range subs {
		if sub.userID == userID {
			s.subs[accountID] = append(subs[:i:i], subs[i+1:]...)
			return nil
		}
	}
	return nil
}

// ListSubscribers retrieves subscriber user IDs in subscription order.
func (s *TrackedAccountStore) ListSubscribers(_ context.Context, accountID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := s.subs[accountID]
	sorted := make([]subscription, len(subs))
	copy(sorted, subs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].subscribedAt < sorted[j].subscribedAt
	})

	ids := make([]string, len(sorted))
	for i, sub := range sorted {
		ids[i] = sub.userID
	}
	return ids, nil
}

var _ storage.TrackedAccountStore = (*TrackedAccountStore)(nil)
