package memory

import (
	"context"
	"sync"

	"solana-signal-trader/internal/domain"
	"solana-signal-trader/internal/storage"
)

// UserStore is an in-memory implementation of storage.UserStore.
type UserStore struct {
	mu   sync.RWMutex
	data map[string]*domain.User // keyed by user_id
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		data: make(map[string]*domain.User),
	}
}

// Insert adds a new user. Returns ErrDuplicateKey if user_id exists.
func (s *UserStore) Insert(_ context.Context, u *domain.User) error {
	if u == nil || u.UserID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[u.UserID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := cloneUser(u)
	s.data[u.UserID] = copy
	return nil
}

// GetByID retrieves a user by ID. Returns ErrNotFound if not exists.
func (s *UserStore) GetByID(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, exists := s.data[userID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneUser(u), nil
}

// GetByWallet retrieves a user by wallet address. Returns ErrNotFound if not exists.
func (s *UserStore) GetByWallet(_ context.Context, walletAddress string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.data {
		if u.WalletAddress != "" && u.WalletAddress == walletAddress {
			return cloneUser(u), nil
		}
	}
	return nil, storage.ErrNotFound
}

// Update replaces the user's trading profile. Returns ErrNotFound if not exists.
func (s *UserStore) Update(_ context.Context, u *domain.User) error {
	if u == nil || u.UserID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[u.UserID]; !exists {
		return storage.ErrNotFound
	}
	s.data[u.UserID] = cloneUser(u)
	return nil
}

// cloneUser deep-copies a user including the nullable limit fields.
func cloneUser(u *domain.User) *domain.User {
	copy := *u
	if u.MaxPositionSize != nil {
		v := *u.MaxPositionSize
		copy.MaxPositionSize = &v
	}
	if u.MaxTokenAllocation != nil {
		v := *u.MaxTokenAllocation
		copy.MaxTokenAllocation = &v
	}
	return &copy
}

var _ storage.UserStore = (*UserStore)(nil)
