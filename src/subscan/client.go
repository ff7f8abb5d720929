package subscan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client is a Subscan API client for one network.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Subscan client. endpoint is the network API base,
// e.g. https://polkadot.api.subscan.io
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// Param is one decoded call parameter of an extrinsic.
type Param struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// Extrinsic is one transaction row from the extrinsics endpoint.
type Extrinsic struct {
	CallModule         string  `json:"call_module"`
	CallModuleFunction string  `json:"call_module_function"`
	ExtrinsicHash      string  `json:"extrinsic_hash"`
	Params             []Param `json:"params"`
}

type extrinsicsRequest struct {
	Address string `json:"address"`
	Row     int    `json:"row"`
	Page    int    `json:"page"`
	Order   string `json:"order"`
}

type extrinsicsResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Count      int         `json:"count"`
		Extrinsics []Extrinsic `json:"extrinsics"`
	} `json:"data"`
}

// Extrinsics fetches one page of an account's transaction history, newest
// first, bounded to row entries.
func (c *Client) Extrinsics(ctx context.Context, account string, row, page int) ([]Extrinsic, error) {
	body, err := json.Marshal(extrinsicsRequest{
		Address: account,
		Row:     row,
		Page:    page,
		Order:   "desc",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/scan/extrinsics", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("subscan status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed extrinsicsResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode extrinsics response: %w", err)
	}
	if parsed.Code != 0 {
		return nil, fmt.Errorf("subscan code %d: %s", parsed.Code, parsed.Message)
	}

	return parsed.Data.Extrinsics, nil
}
