package polkadot

import (
	"context"
	"fmt"
	"time"

	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v4"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
)

// queryTimeout bounds each storage query so a hung node connection cannot
// stall a whole reconciliation pass.
const queryTimeout = 30 * time.Second

// Client is a Polkadot RPC client
type Client struct {
	api *gsrpc.SubstrateAPI
	url string
}

// NewClient creates a new Polkadot client
func NewClient(url string) (*Client, error) {
	api, err := gsrpc.NewSubstrateAPI(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return &Client{api: api, url: url}, nil
}

// URL returns the endpoint this client is connected to
func (c *Client) URL() string {
	return c.url
}

// Close closes the connection
func (c *Client) Close() error {
	// No explicit close needed for gsrpc
	return nil
}

// GetStorage queries latest storage at a hex key under a bounded deadline.
// Returns "" when the key has no value.
func (c *Client) GetStorage(ctx context.Context, key string) (string, error) {
	keyBytes, err := DecodeHex(key)
	if err != nil {
		return "", err
	}
	storageKey := types.NewStorageKey(keyBytes)

	return fetchWithDeadline(ctx, queryTimeout, func() (string, error) {
		var raw types.StorageDataRaw
		ok, err := c.api.RPC.State.GetStorageLatest(storageKey, &raw)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", nil
		}
		return codec.HexEncodeToString(raw), nil
	})
}

// fetchWithDeadline runs fn in a goroutine and abandons it once the
// deadline passes; gsrpc calls carry no context plumbing of their own.
func fetchWithDeadline(ctx context.Context, timeout time.Duration, fn func() (string, error)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value string
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{value: v, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("storage query: %w", ctx.Err())
	case res := <-done:
		return res.value, res.err
	}
}
