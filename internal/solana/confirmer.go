package solana

import (
	"context"
	"fmt"
	"sync"
)

// ConfirmingClient layers WebSocket signature confirmation on top of an
// HTTP client. Confirmations go through signatureSubscribe when a
// connection is available and fall back to HTTP polling when the dial
// or the subscription fails. All other RPC methods pass straight
// through to the embedded HTTP client.
type ConfirmingClient struct {
	*HTTPClient

	wsEndpoint string
	wsConfig   *WSConfig

	mu sync.Mutex
	ws *WSClient
}

// NewConfirmingClient wraps httpClient with a WebSocket confirmation
// path against wsEndpoint. The WebSocket connection is dialed lazily on
// the first confirmation and redialed after a connection loss.
func NewConfirmingClient(httpClient *HTTPClient, wsEndpoint string, config *WSConfig) *ConfirmingClient {
	return &ConfirmingClient{
		HTTPClient: httpClient,
		wsEndpoint: wsEndpoint,
		wsConfig:   config,
	}
}

// ConfirmTransaction waits for the signature to reach the requested
// commitment, preferring a signatureSubscribe notification over polling.
func (c *ConfirmingClient) ConfirmTransaction(ctx context.Context, signature, commitment string) error {
	ws, err := c.wsClient(ctx)
	if err != nil {
		return c.HTTPClient.ConfirmTransaction(ctx, signature, commitment)
	}

	ch, err := ws.SubscribeSignature(ctx, signature, commitment)
	if err != nil {
		c.dropWS(ws)
		return c.HTTPClient.ConfirmTransaction(ctx, signature, commitment)
	}

	select {
	case result, ok := <-ch:
		if !ok {
			// Connection died before the notification fired.
			c.dropWS(ws)
			return c.HTTPClient.ConfirmTransaction(ctx, signature, commitment)
		}
		if result.Err != nil {
			return fmt.Errorf("transaction %s failed on-chain: %v", signature, result.Err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("confirm %s: %w", signature, ctx.Err())
	}
}

// Close shuts down the WebSocket connection if one is open.
func (c *ConfirmingClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return nil
	}
	err := c.ws.Close()
	c.ws = nil
	return err
}

func (c *ConfirmingClient) wsClient(ctx context.Context) (*WSClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ws != nil {
		return c.ws, nil
	}

	ws, err := NewWSClient(ctx, c.wsEndpoint, c.wsConfig)
	if err != nil {
		return nil, err
	}
	c.ws = ws
	return ws, nil
}

// dropWS discards a dead connection so the next confirmation redials.
func (c *ConfirmingClient) dropWS(ws *WSClient) {
	ws.Close()
	c.mu.Lock()
	if c.ws == ws {
		c.ws = nil
	}
	c.mu.Unlock()
}
