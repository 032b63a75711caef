package dex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// defaultAPIBase serves market-wide endpoints like the priority fee.
	defaultAPIBase = "https://api-v3.raydium.io"

	// defaultSwapBase serves quote computation and transaction building.
	defaultSwapBase = "https://transaction-v1.raydium.io"
)

// RaydiumClient implements Aggregator against the Raydium trade API.
type RaydiumClient struct {
	apiBase    string
	swapBase   string
	httpClient *resty.Client
}

var _ Aggregator = (*RaydiumClient)(nil)

// RaydiumOption configures RaydiumClient.
type RaydiumOption func(*RaydiumClient)

// WithAPIBase overrides the market API base URL.
func WithAPIBase(url string) RaydiumOption {
	return func(c *RaydiumClient) {
		c.apiBase = url
	}
}

// WithSwapBase overrides the swap API base URL.
func WithSwapBase(url string) RaydiumOption {
	return func(c *RaydiumClient) {
		c.swapBase = url
	}
}

// NewRaydiumClient creates a Raydium trade API client.
func NewRaydiumClient(opts ...RaydiumOption) *RaydiumClient {
	c := &RaydiumClient{
		apiBase:    defaultAPIBase,
		swapBase:   defaultSwapBase,
		httpClient: resty.New().SetTimeout(30 * time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PriorityFees fetches the recommended compute unit prices.
func (c *RaydiumClient) PriorityFees(ctx context.Context) (*PriorityFees, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get(c.apiBase + "/main/auto-fee")
	if err != nil {
		return nil, fmt.Errorf("priority fee request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("priority fee request: unexpected status %d", resp.StatusCode())
	}

	var payload struct {
		ID      string `json:"id"`
		Success bool   `json:"success"`
		Data    struct {
			Default struct {
				VH uint64 `json:"vh"`
				H  uint64 `json:"h"`
				M  uint64 `json:"m"`
			} `json:"default"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("decode priority fee response: %w", err)
	}
	if !payload.Success {
		return nil, fmt.Errorf("priority fee request rejected")
	}

	return &PriorityFees{
		VeryHigh: payload.Data.Default.VH,
		High:     payload.Data.Default.H,
		Medium:   payload.Data.Default.M,
	}, nil
}

// Quote computes a swap-base-in route.
func (c *RaydiumClient) Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"inputMint":   inputMint,
			"outputMint":  outputMint,
			"amount":      strconv.FormatUint(amount, 10),
			"slippageBps": strconv.Itoa(slippageBps),
			"txVersion":   "V0",
		}).
		Get(c.swapBase + "/compute/swap-base-in")
	if err != nil {
		return nil, fmt.Errorf("quote request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("quote request: unexpected status %d", resp.StatusCode())
	}

	var payload struct {
		ID      string `json:"id"`
		Success bool   `json:"success"`
		Msg     string `json:"msg"`
		Data    struct {
			InputMint  string `json:"inputMint"`
			OutputMint string `json:"outputMint"`
			InAmount   string `json:"inputAmount"`
			OutAmount  string `json:"outputAmount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("decode quote response: %w", err)
	}
	if !payload.Success {
		return nil, fmt.Errorf("quote rejected: %s", payload.Msg)
	}

	return &Quote{
		Raw:        json.RawMessage(resp.Body()),
		InputMint:  payload.Data.InputMint,
		OutputMint: payload.Data.OutputMint,
		InAmount:   payload.Data.InAmount,
		OutAmount:  payload.Data.OutAmount,
	}, nil
}

// BuildTransactions turns a quote into unsigned base64 transactions.
// SOL legs are wrapped on the way in and left wrapped on the way out, as
// the bought token stays in the wallet.
func (c *RaydiumClient) BuildTransactions(ctx context.Context, quote *Quote, wallet string, feeMicroLamports uint64) ([]string, error) {
	body := map[string]interface{}{
		"computeUnitPriceMicroLamports": strconv.FormatUint(feeMicroLamports, 10),
		"swapResponse":                  quote.Raw,
		"txVersion":                     "V0",
		"wallet":                        wallet,
		"wrapSol":                       true,
		"unwrapSol":                     false,
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(c.swapBase + "/transaction/swap-base-in")
	if err != nil {
		return nil, fmt.Errorf("transaction request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("transaction request: unexpected status %d", resp.StatusCode())
	}

	var payload struct {
		ID      string `json:"id"`
		Version string `json:"version"`
		Success bool   `json:"success"`
		Data    []struct {
			Transaction string `json:"transaction"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("decode transaction response: %w", err)
	}
	if !payload.Success {
		return nil, fmt.Errorf("transaction build rejected")
	}
	if len(payload.Data) == 0 {
		return nil, fmt.Errorf("transaction build returned no transactions")
	}

	txs := make([]string, 0, len(payload.Data))
	for _, entry := range payload.Data {
		txs = append(txs, entry.Transaction)
	}
	return txs, nil
}
