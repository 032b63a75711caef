package memory

import (
	"context"
	"sort"
	"sync"

	"solana-signal-trader/internal/domain"
	"solana-signal-trader/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Trade // keyed by trade_id
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[string]*domain.Trade),
	}
}

// Insert adds a new trade. The trade must be PENDING.
func (s *TradeStore) Insert(_ context.Context, t *domain.Trade) error {
	if t == nil || t.TradeID == "" || t.SignalID == "" || t.UserID == "" {
		return storage.ErrInvalidInput
	}
	if t.Status != domain.TradePending {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[t.TradeID] = cloneTrade(t)
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(_ context.Context, tradeID string) (*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[tradeID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneTrade(t), nil
}

// ListCompletedByUserToken retrieves COMPLETED trades for (user, token),
// ordered by executed_at ASC.
func (s *TradeStore) ListCompletedByUserToken(_ context.Context, userID, tokenAddress string) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.UserID == userID && t.TokenAddress == tokenAddress && t.Status == domain.TradeCompleted {
			result = append(result, cloneTrade(t))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		var ei, ej int64
		if result[i].ExecutedAt != nil {
			ei = *result[i].ExecutedAt
		}
		if result[j].ExecutedAt != nil {
			ej = *result[j].ExecutedAt
		}
		return ei < ej
	})

	return result, nil
}

// SumCompletedByUserToken sums input_amount over COMPLETED trades for (user, token).
func (s *TradeStore) SumCompletedByUserToken(_ context.Context, userID, tokenAddress string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum float64
	for _, t := range s.data {
		if t.UserID == userID && t.TokenAddress == tokenAddress && t.Status == domain.TradeCompleted {
			sum += t.InputAmount
		}
	}
	return sum, nil
}

// SumCompletedByUser sums input_amount over all COMPLETED trades for the user.
func (s *TradeStore) SumCompletedByUser(_ context.Context, userID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum float64
	for _, t := range s.data {
		if t.UserID == userID && t.Status == domain.TradeCompleted {
			sum += t.InputAmount
		}
	}
	return sum, nil
}

// Complete transitions PENDING→COMPLETED with the execution outcome.
func (s *TradeStore) Complete(_ context.Context, tradeID string, res storage.TradeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[tradeID]
	if !exists {
		return storage.ErrNotFound
	}
	if t.Status != domain.TradePending {
		return storage.ErrInvalidInput
	}

	t.Status = domain.TradeCompleted
	t.TxSignature = res.TxSignature
	if res.ExecutionPrice != nil {
		v := *res.ExecutionPrice
		t.ExecutionPrice = &v
	}
	t.NetworkFee = res.NetworkFee
	t.ExecutionTimeMs = res.ExecutionTimeMs
	executedAt := res.ExecutedAt
	t.ExecutedAt = &executedAt
	return nil
}

// Fail transitions PENDING→FAILED with the failure reason.
func (s *TradeStore) Fail(_ context.Context, tradeID, errMsg string, elapsedMs, executedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[tradeID]
	if !exists {
		return storage.ErrNotFound
	}
	if t.Status != domain.TradePending {
		return storage.ErrInvalidInput
	}

	t.Status = domain.TradeFailed
	t.Error = errMsg
	t.ExecutionTimeMs = elapsedMs
	t.ExecutedAt = &executedAt
	return nil
}

// cloneTrade deep-copies a trade including nullable fields.
func cloneTrade(t *domain.Trade) *domain.Trade {
	copy := *t
	if t.ExecutionPrice != nil {
		v := *t.ExecutionPrice
		copy.ExecutionPrice = &v
	}
	if t.ExecutedAt != nil {
		v := *t.ExecutedAt
		copy.ExecutedAt = &v
	}
	return &copy
}

var _ storage.TradeStore = (*TradeStore)(nil)
