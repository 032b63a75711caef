package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPClient_GetBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		if req.Method != "getBalance" {
			t.Errorf("expected method getBalance, got %s", req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"context": map[string]interface{}{"slot": int64(123)},
				"value":   int64(2_500_000_000),
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithFallbackEndpoints(nil))
	ctx := context.Background()

	lamports, err := client.GetBalance(ctx, "11111111111111111111111111111111")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}

	if lamports != 2_500_000_000 {
		t.Errorf("expected 2500000000 lamports, got %d", lamports)
	}
}

func TestHTTPClient_GetLatestBlockhash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "getLatestBlockhash" {
			t.Errorf("expected method getLatestBlockhash, got %s", req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": map[string]interface{}{
					"blockhash":            "GHtXQBsoZHVnNFa9YevAzFr17DJjgHXk3ycTKD5xD3Zi",
					"lastValidBlockHeight": int64(3090),
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithFallbackEndpoints(nil))

	bh, err := client.GetLatestBlockhash(context.Background(), "")
	if err != nil {
		t.Fatalf("GetLatestBlockhash: %v", err)
	}

	if bh.Blockhash != "GHtXQBsoZHVnNFa9YevAzFr17DJjgHXk3ycTKD5xD3Zi" {
		t.Errorf("unexpected blockhash %s", bh.Blockhash)
	}

	if bh.LastValidBlockHeight != 3090 {
		t.Errorf("expected lastValidBlockHeight 3090, got %d", bh.LastValidBlockHeight)
	}
}

func TestHTTPClient_SendTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "sendTransaction" {
			t.Errorf("expected method sendTransaction, got %s", req.Method)
		}

		if len(req.Params) != 2 {
			t.Fatalf("expected 2 params, got %d", len(req.Params))
		}

		cfg, ok := req.Params[1].(map[string]interface{})
		if !ok {
			t.Fatalf("expected config map, got %T", req.Params[1])
		}

		if cfg["encoding"] != "base64" {
			t.Errorf("expected base64 encoding, got %v", cfg["encoding"])
		}

		if cfg["skipPreflight"] != true {
			t.Errorf("expected skipPreflight true, got %v", cfg["skipPreflight"])
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7",
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithFallbackEndpoints(nil))

	sig, err := client.SendTransaction(context.Background(), "AQABAg==", true)
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}

	if sig == "" {
		t.Fatal("expected signature, got empty string")
	}
}

func TestHTTPClient_RotatesOn429(t *testing.T) {
	var primaryHits atomic.Int64
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryHits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer primary.Close()

	var fallbackHits atomic.Int64
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallbackHits.Add(1)
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": int64(42),
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer fallback.Close()

	client := NewHTTPClient(primary.URL,
		WithFallbackEndpoints([]string{fallback.URL}),
		WithRetryDelay(time.Millisecond),
	)

	lamports, err := client.GetBalance(context.Background(), "11111111111111111111111111111111")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}

	if lamports != 42 {
		t.Errorf("expected 42 lamports, got %d", lamports)
	}

	if primaryHits.Load() != 1 {
		t.Errorf("expected 1 primary hit, got %d", primaryHits.Load())
	}

	if fallbackHits.Load() != 1 {
		t.Errorf("expected 1 fallback hit, got %d", fallbackHits.Load())
	}
}

func TestHTTPClient_RetriesExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithFallbackEndpoints(nil),
		WithMaxRetries(2),
		WithRetryDelay(time.Millisecond),
	)

	_, err := client.GetBalance(context.Background(), "11111111111111111111111111111111")
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
}

func TestHTTPClient_RPCErrorNotRetried(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    int64(-32602),
				"message": "Invalid param: WrongSize",
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithFallbackEndpoints(nil), WithRetryDelay(time.Millisecond))

	_, err := client.GetBalance(context.Background(), "tooshort")
	if err == nil {
		t.Fatal("expected RPC error")
	}

	if hits.Load() != 1 {
		t.Errorf("expected exactly 1 request, got %d", hits.Load())
	}
}

func TestHTTPClient_ConfirmTransaction(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "getSignatureStatuses" {
			t.Errorf("expected method getSignatureStatuses, got %s", req.Method)
		}

		// Unknown on the first poll, confirmed on the second.
		var value []interface{}
		if n == 1 {
			value = []interface{}{nil}
		} else {
			value = []interface{}{map[string]interface{}{
				"slot":               int64(100),
				"confirmations":      int64(5),
				"err":                nil,
				"confirmationStatus": "confirmed",
			}}
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]interface{}{"value": value},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithFallbackEndpoints(nil),
		WithConfirmPollInterval(5*time.Millisecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.ConfirmTransaction(ctx, "sig123", "confirmed"); err != nil {
		t.Fatalf("ConfirmTransaction: %v", err)
	}

	if calls.Load() < 2 {
		t.Errorf("expected at least 2 polls, got %d", calls.Load())
	}
}

func TestHTTPClient_ConfirmTransaction_OnChainFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": []interface{}{map[string]interface{}{
					"slot":               int64(100),
					"err":                map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
					"confirmationStatus": "confirmed",
				}},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithFallbackEndpoints(nil))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := client.ConfirmTransaction(ctx, "sig123", "confirmed")
	if err == nil {
		t.Fatal("expected error for failed transaction")
	}
}

func TestHTTPClient_GetTokenAccountsByOwner(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "getTokenAccountsByOwner" {
			t.Errorf("expected method getTokenAccountsByOwner, got %s", req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": []interface{}{
					map[string]interface{}{
						"pubkey": "acct1",
						"account": map[string]interface{}{
							"data": map[string]interface{}{
								"parsed": map[string]interface{}{
									"info": map[string]interface{}{
										"mint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
										"tokenAmount": map[string]interface{}{
											"uiAmount": 12.5,
											"decimals": int64(6),
										},
									},
								},
							},
						},
					},
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithFallbackEndpoints(nil))

	balances, err := client.GetTokenAccountsByOwner(context.Background(), "ownerpubkey")
	if err != nil {
		t.Fatalf("GetTokenAccountsByOwner: %v", err)
	}

	if len(balances) != 1 {
		t.Fatalf("expected 1 balance, got %d", len(balances))
	}

	if balances[0].Mint != "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v" {
		t.Errorf("unexpected mint %s", balances[0].Mint)
	}

	if balances[0].Amount != 12.5 {
		t.Errorf("expected amount 12.5, got %f", balances[0].Amount)
	}

	if balances[0].Decimals != 6 {
		t.Errorf("expected 6 decimals, got %d", balances[0].Decimals)
	}
}

func TestHTTPClient_CallObserver(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": int64(1_000),
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	type observation struct {
		method  string
		elapsed time.Duration
	}
	var observed []observation

	client := NewHTTPClient(server.URL,
		WithFallbackEndpoints(nil),
		WithCallObserver(func(method string, elapsed time.Duration) {
			observed = append(observed, observation{method, elapsed})
		}))

	if _, err := client.GetBalance(context.Background(), "11111111111111111111111111111111"); err != nil {
		t.Fatalf("GetBalance: %v", err)
	}

	if len(observed) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(observed))
	}
	if observed[0].method != "getBalance" {
		t.Errorf("expected method getBalance, got %s", observed[0].method)
	}
	if observed[0].elapsed <= 0 {
		t.Errorf("expected positive elapsed duration, got %v", observed[0].elapsed)
	}
}
