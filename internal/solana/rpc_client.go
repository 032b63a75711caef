package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0

	// DefaultConfirmPollInterval is the polling cadence for ConfirmTransaction.
	DefaultConfirmPollInterval = 2 * time.Second
)

// FallbackEndpoints are public RPC endpoints rotated to when the primary
// endpoint rate-limits or fails.
var FallbackEndpoints = []string{
	"https://api.mainnet-beta.solana.com",
	"https://solana-api.projectserum.com",
	"https://rpc.ankr.com/solana",
}

// HTTPClient implements Solana JSON-RPC 2.0 over HTTP with bounded retries,
// exponential backoff and endpoint rotation on rate limiting.
type HTTPClient struct {
	endpoints    []string
	endpointIdx  atomic.Uint64
	client       *http.Client
	maxRetries   int
	retryDelay   time.Duration
	maxDelay     time.Duration
	backoffMult  float64
	pollInterval time.Duration
	requestID    atomic.Uint64
	observer     func(method string, elapsed time.Duration)
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithFallbackEndpoints sets the rotation list appended after the primary.
func WithFallbackEndpoints(endpoints []string) ClientOption {
	return func(c *HTTPClient) {
		c.endpoints = append(c.endpoints[:1], endpoints...)
	}
}

// WithConfirmPollInterval sets the ConfirmTransaction polling cadence.
func WithConfirmPollInterval(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.pollInterval = d
	}
}

// WithCallObserver registers a callback invoked after every JSON-RPC call
// with the method name and wall-clock duration, retries included.
func WithCallObserver(fn func(method string, elapsed time.Duration)) ClientOption {
	return func(c *HTTPClient) {
		c.observer = fn
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client. The primary endpoint is
// tried first; on 429 or transport failure the client rotates through the
// fallback list.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoints:    append([]string{endpoint}, FallbackEndpoints...),
		client:       &http.Client{Timeout: DefaultTimeout},
		maxRetries:   DefaultMaxRetries,
		retryDelay:   DefaultRetryDelay,
		maxDelay:     DefaultMaxDelay,
		backoffMult:  DefaultBackoffMult,
		pollInterval: DefaultConfirmPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// currentEndpoint returns the endpoint in rotation.
func (c *HTTPClient) currentEndpoint() string {
	return c.endpoints[c.endpointIdx.Load()%uint64(len(c.endpoints))]
}

// rotateEndpoint advances to the next endpoint in the list.
func (c *HTTPClient) rotateEndpoint() {
	c.endpointIdx.Add(1)
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries, exponential backoff and
// endpoint rotation on 429/transport failure.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if c.observer != nil {
		start := time.Now()
		defer func() { c.observer(method, time.Since(start)) }()
	}

	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.currentEndpoint(), bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			c.rotateEndpoint()
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Rate limiting moves us to the next endpoint in the rotation.
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			c.rotateEndpoint()
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// GetBalance retrieves the lamport balance of a pubkey.
func (c *HTTPClient) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	params := []interface{}{pubkey}

	var wrapper struct {
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", params, &wrapper); err != nil {
		return 0, err
	}
	return wrapper.Value, nil
}

// GetLatestBlockhash retrieves a recent blockhash at the given commitment.
func (c *HTTPClient) GetLatestBlockhash(ctx context.Context, commitment string) (*Blockhash, error) {
	if commitment == "" {
		commitment = "finalized"
	}
	params := []interface{}{
		map[string]interface{}{"commitment": commitment},
	}

	var wrapper struct {
		Value Blockhash `json:"value"`
	}
	if err := c.call(ctx, "getLatestBlockhash", params, &wrapper); err != nil {
		return nil, err
	}
	return &wrapper.Value, nil
}

// SendTransaction submits a base64-encoded signed transaction and returns
// its signature. Preflight simulation is skipped when skipPreflight is set;
// the swap aggregator has already validated the route.
func (c *HTTPClient) SendTransaction(ctx context.Context, txBase64 string, skipPreflight bool) (string, error) {
	params := []interface{}{
		txBase64,
		map[string]interface{}{
			"encoding":      "base64",
			"skipPreflight": skipPreflight,
		},
	}

	var signature string
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}
	return signature, nil
}

// GetSignatureStatuses retrieves confirmation status for the signatures.
// The result slice is positionally aligned with the input; nil means unknown.
func (c *HTTPClient) GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error) {
	params := []interface{}{
		signatures,
		map[string]interface{}{"searchTransactionHistory": true},
	}

	var wrapper struct {
		Value []*SignatureStatus `json:"value"`
	}
	if err := c.call(ctx, "getSignatureStatuses", params, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Value, nil
}

// ConfirmTransaction polls signature status until the commitment is reached,
// the transaction fails on-chain, or ctx expires.
func (c *HTTPClient) ConfirmTransaction(ctx context.Context, signature, commitment string) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		statuses, err := c.GetSignatureStatuses(ctx, []string{signature})
		if err == nil && len(statuses) > 0 && statuses[0] != nil {
			st := statuses[0]
			if st.Err != nil {
				return fmt.Errorf("transaction %s failed on-chain: %v", signature, st.Err)
			}
			if st.Confirmed(commitment) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("confirm %s: %w", signature, ctx.Err())
		case <-ticker.C:
		}
	}
}

// GetTokenAccountsByOwner retrieves all SPL token holdings of a wallet.
func (c *HTTPClient) GetTokenAccountsByOwner(ctx context.Context, owner string) ([]TokenBalance, error) {
	params := []interface{}{
		owner,
		map[string]interface{}{"programId": TokenProgramID},
		map[string]interface{}{"encoding": "jsonParsed"},
	}

	var wrapper struct {
		Value []tokenAccountEntry `json:"value"`
	}
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &wrapper); err != nil {
		return nil, err
	}

	balances := make([]TokenBalance, 0, len(wrapper.Value))
	for _, entry := range wrapper.Value {
		info := entry.Account.Data.Parsed.Info
		balances = append(balances, TokenBalance{
			Mint:     info.Mint,
			Amount:   info.TokenAmount.UIAmount,
			Decimals: info.TokenAmount.Decimals,
		})
	}
	return balances, nil
}

// tokenAccountEntry is the raw jsonParsed token account shape.
type tokenAccountEntry struct {
	Account struct {
		Data struct {
			Parsed struct {
				Info struct {
					Mint        string `json:"mint"`
					TokenAmount struct {
						UIAmount float64 `json:"uiAmount"`
						Decimals int     `json:"decimals"`
					} `json:"tokenAmount"`
				} `json:"info"`
			} `json:"parsed"`
		} `json:"data"`
	} `json:"account"`
}
