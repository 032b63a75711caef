package memory

import (
	"context"
	"sort"
	"sync"

	"solana-signal-trader/internal/domain"
	"solana-signal-trader/internal/storage"
)

// TweetStore is an in-memory implementation of storage.TweetStore.
type TweetStore struct {
	mu         sync.RWMutex
	data       map[string]*domain.Tweet // keyed by tweet_id
	byExternal map[string]string        // external_id -> tweet_id
}

// NewTweetStore creates a new in-memory tweet store.
func NewTweetStore() *TweetStore {
	return &TweetStore{
		data:       make(map[string]*domain.Tweet),
		byExternal: make(map[string]string),
	}
}

// Insert adds a new tweet. Returns ErrDuplicateKey if the external_id exists.
func (s *TweetStore) Insert(_ context.Context, t *domain.Tweet) error {
	if t == nil || t.TweetID == "" || t.ExternalID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TweetID]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.byExternal[t.ExternalID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[t.TweetID] = &copy
	s.byExternal[t.ExternalID] = t.TweetID
	return nil
}

// GetByID retrieves a tweet by its ID. Returns ErrNotFound if not exists.
func (s *TweetStore) GetByID(_ context.Context, tweetID string) (*domain.Tweet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[tweetID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *t
	return &copy, nil
}

// GetByExternalID retrieves a tweet by upstream id. Returns ErrNotFound if not exists.
func (s *TweetStore) GetByExternalID(_ context.Context, externalID string) (*domain.Tweet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byExternal[externalID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *s.data[id]
	return &copy, nil
}

// ListByAccount retrieves tweets for an account, ordered by posted_at DESC.
func (s *TweetStore) ListByAccount(_ context.Context, accountID string, limit int) ([]*domain.Tweet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Tweet
	for _, t := range s.data {
		if t.AccountID == accountID {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].PostedAt > result[j].PostedAt
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

var _ storage.TweetStore = (*TweetStore)(nil)
