package price

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// defaultJupiterURL is the Jupiter price API.
const defaultJupiterURL = "https://price.jup.ag/v4/price"

// JupiterSource implements Source against the Jupiter price API with a
// CoinGecko fallback slot.
type JupiterSource struct {
	baseURL    string
	httpClient *resty.Client
	fallback   Source
	logger     *log.Logger
}

var _ Source = (*JupiterSource)(nil)

// JupiterOption configures JupiterSource.
type JupiterOption func(*JupiterSource)

// WithBaseURL overrides the price API base URL.
func WithBaseURL(url string) JupiterOption {
	return func(s *JupiterSource) {
		s.baseURL = url
	}
}

// WithFallback sets the source consulted when Jupiter has no price.
func WithFallback(fallback Source) JupiterOption {
	return func(s *JupiterSource) {
		s.fallback = fallback
	}
}

// NewJupiterSource creates a Jupiter-backed price source.
func NewJupiterSource(logger *log.Logger, opts ...JupiterOption) *JupiterSource {
	s := &JupiterSource{
		baseURL:    defaultJupiterURL,
		httpClient: resty.New().SetTimeout(10 * time.Second),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TokenPrice returns the Jupiter price of a mint, the fallback price when
// Jupiter has none, or 0 when neither resolves.
func (s *JupiterSource) TokenPrice(ctx context.Context, mint string) float64 {
	p, err := s.jupiterPrice(ctx, mint)
	if err != nil {
		s.logger.Printf("[price] jupiter lookup for %s failed: %v", mint, err)
	} else if p > 0 {
		return p
	}

	if s.fallback != nil {
		return s.fallback.TokenPrice(ctx, mint)
	}
	return 0
}

func (s *JupiterSource) jupiterPrice(ctx context.Context, mint string) (float64, error) {
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetQueryParam("ids", mint).
		Get(s.baseURL)
	if err != nil {
		return 0, fmt.Errorf("price request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("price request: unexpected status %d", resp.StatusCode())
	}

	var payload struct {
		Data map[string]struct {
			ID         string  `json:"id"`
			MintSymbol string  `json:"mintSymbol"`
			Price      float64 `json:"price"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return 0, fmt.Errorf("decode price response: %w", err)
	}

	entry, ok := payload.Data[mint]
	if !ok {
		return 0, nil
	}
	return entry.Price, nil
}

// CoinGeckoSource is the fallback slot. CoinGecko keys prices by its own
// coin IDs, not Solana mint addresses, so until a mint-to-ID mapping
// exists every lookup resolves to 0.
type CoinGeckoSource struct {
	logger *log.Logger
}

var _ Source = (*CoinGeckoSource)(nil)

// NewCoinGeckoSource creates the fallback source.
func NewCoinGeckoSource(logger *log.Logger) *CoinGeckoSource {
	return &CoinGeckoSource{logger: logger}
}

// TokenPrice always returns 0.
// TODO: map Solana mints to CoinGecko coin IDs and query /simple/price.
func (s *CoinGeckoSource) TokenPrice(ctx context.Context, mint string) float64 {
	s.logger.Printf("[price] no coingecko mapping for mint %s", mint)
	return 0
}
