package price

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
)

const testMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

func discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestJupiterSource_TokenPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ids"); got != testMint {
			t.Errorf("expected ids=%s, got %s", testMint, got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data": {%q: {"id": %q, "mintSymbol": "USDC", "price": 0.0051}}}`, testMint, testMint)
	}))
	defer server.Close()

	source := NewJupiterSource(discard(), WithBaseURL(server.URL))

	p := source.TokenPrice(context.Background(), testMint)
	if p != 0.0051 {
		t.Errorf("expected price 0.0051, got %f", p)
	}
}

func TestJupiterSource_UnknownMintFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data": {}}`)
	}))
	defer server.Close()

	fallback := &staticSource{price: 1.25}
	source := NewJupiterSource(discard(), WithBaseURL(server.URL), WithFallback(fallback))

	p := source.TokenPrice(context.Background(), testMint)
	if p != 1.25 {
		t.Errorf("expected fallback price 1.25, got %f", p)
	}
}

func TestJupiterSource_ErrorResolvesToZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	source := NewJupiterSource(discard(), WithBaseURL(server.URL))

	if p := source.TokenPrice(context.Background(), testMint); p != 0 {
		t.Errorf("expected 0 on upstream failure, got %f", p)
	}
}

func TestCoinGeckoSource_AlwaysZero(t *testing.T) {
	source := NewCoinGeckoSource(discard())

	if p := source.TokenPrice(context.Background(), testMint); p != 0 {
		t.Errorf("expected 0 without mint mapping, got %f", p)
	}
}

type staticSource struct {
	price float64
}

func (s *staticSource) TokenPrice(ctx context.Context, mint string) float64 {
	return s.price
}
