// Package intentchain provides the Go client for the intent engine REST API.
package intentchain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. It is intentionally short to avoid hanging network calls.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the intent engine REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu       sync.RWMutex
	govToken string
}

// Preview mirrors the engine's dry-run view of a command.
type Preview struct {
	RequestID string `json:"request_id"`
	Action    string `json:"action"`
	Summary   string `json:"summary,omitempty"`
	Payload   string `json:"payload,omitempty"`
	To        string `json:"to,omitempty"`
	Asset     string `json:"asset,omitempty"`
	Amount    string `json:"amount,omitempty"`
	AssetIn   string `json:"asset_in,omitempty"`
	AssetOut  string `json:"asset_out,omitempty"`
	AmountIn  string `json:"amount_in,omitempty"`
	MinAmount string `json:"min_amount,omitempty"`
	Route     *Route `json:"route,omitempty"`
}

// Route reports the venue a swap would settle against.
type Route struct {
	Pool       string `json:"pool"`
	Fee        uint32 `json:"fee"`
	ZeroForOne bool   `json:"zero_for_one"`
}

// Result reports an executed command.
type Result struct {
	RequestID string       `json:"request_id"`
	Action    string       `json:"action"`
	Payload   string       `json:"payload,omitempty"`
	To        string       `json:"to,omitempty"`
	Asset     string       `json:"asset,omitempty"`
	Amount    string       `json:"amount,omitempty"`
	Receipt   *SwapReceipt `json:"receipt,omitempty"`
}

// SwapReceipt reports a settled swap.
type SwapReceipt struct {
	Pool       string `json:"pool"`
	Fee        uint32 `json:"fee"`
	ZeroForOne bool   `json:"zero_for_one"`
	AmountIn   string `json:"amount_in"`
	AmountOut  string `json:"amount_out"`
}

// Balance is a raw plus decimal-adjusted amount read.
type Balance struct {
	Asset   string `json:"asset"`
	Raw     string `json:"raw"`
	Display string `json:"display"`
}

// Resolution reports a resolved account name.
type Resolution struct {
	Account string `json:"account"`
	Source  string `json:"source"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("intentchain api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("intentchain api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the intent engine API. When httpClient
// is nil, a default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) *Client {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		panic(fmt.Sprintf("invalid base url: %v", err))
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}
}

// SetGovernanceToken stores the bearer token used by governance calls.
func (c *Client) SetGovernanceToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.govToken = token
}

// GovernanceToken returns the currently stored token string.
func (c *Client) GovernanceToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.govToken
}

// Preview parses and resolves a command without executing it. requester may
// be empty; the previewed payload then renders its recipient as the zero
// address.
func (c *Client) Preview(ctx context.Context, requester, text string) (Preview, error) {
	var preview Preview
	err := c.post(ctx, "/api/v1/preview", map[string]string{
		"requester": requester,
		"text":      text,
	}, &preview, false)
	return preview, err
}

// Execute runs a command on behalf of the requester address.
func (c *Client) Execute(ctx context.Context, requester, text string) (Result, error) {
	var result Result
	err := c.post(ctx, "/api/v1/execute", map[string]string{
		"requester": requester,
		"text":      text,
	}, &result, false)
	return result, err
}

// Describe reconstructs the command text for a transfer payload.
func (c *Client) Describe(ctx context.Context, payloadHex string) (string, error) {
	var resp struct {
		Text string `json:"text"`
	}
	err := c.post(ctx, "/api/v1/describe", map[string]string{"payload": payloadHex}, &resp, false)
	return resp.Text, err
}

// Verify checks a stated intent against an operation payload byte for byte.
func (c *Client) Verify(ctx context.Context, intentText, payloadHex string) (bool, error) {
	var resp struct {
		Verified bool `json:"verified"`
	}
	err := c.post(ctx, "/api/v1/verify", map[string]string{
		"intent":  intentText,
		"payload": payloadHex,
	}, &resp, false)
	return resp.Verified, err
}

// Balance reads an account's balance in a named asset.
func (c *Client) Balance(ctx context.Context, account, asset string) (Balance, error) {
	var balance Balance
	endpoint := fmt.Sprintf("/api/v1/balance?account=%s&asset=%s",
		url.QueryEscape(account), url.QueryEscape(asset))
	err := c.get(ctx, endpoint, &balance)
	return balance, err
}

// TotalSupply reads the circulating amount of a named asset.
func (c *Client) TotalSupply(ctx context.Context, asset string) (Balance, error) {
	var supply Balance
	err := c.get(ctx, "/api/v1/supply?asset="+url.QueryEscape(asset), &supply)
	return supply, err
}

// ResolveName resolves an account name through the active name service.
func (c *Client) ResolveName(ctx context.Context, name string) (Resolution, error) {
	var res Resolution
	err := c.get(ctx, "/api/v1/resolve?name="+url.QueryEscape(name), &res)
	return res, err
}

// RegisterAlias binds a name to an asset through governance.
func (c *Client) RegisterAlias(ctx context.Context, caller, name, asset string) error {
	return c.post(ctx, "/api/v1/governance/aliases", map[string]any{
		"caller": caller,
		"name":   name,
		"asset":  asset,
	}, nil, true)
}

// RegisterAliasFromToken derives aliases from a token's own metadata.
func (c *Client) RegisterAliasFromToken(ctx context.Context, caller, token string) error {
	return c.post(ctx, "/api/v1/governance/aliases", map[string]any{
		"caller":     caller,
		"asset":      token,
		"from_token": true,
	}, nil, true)
}

// RegisterRoute pins a governance route for an asset pair.
func (c *Client) RegisterRoute(ctx context.Context, caller, assetA, assetB, pool string, fee uint32) error {
	return c.post(ctx, "/api/v1/governance/routes", map[string]any{
		"caller":  caller,
		"asset_a": assetA,
		"asset_b": assetB,
		"pool":    pool,
		"fee":     fee,
	}, nil, true)
}

// RegisterName binds an account name in the engine's directory.
func (c *Client) RegisterName(ctx context.Context, caller, name, account string) error {
	return c.post(ctx, "/api/v1/governance/names", map[string]any{
		"caller":  caller,
		"name":    name,
		"account": account,
	}, nil, true)
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any, withAuth bool) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body), withAuth)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil, false)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader, withAuth bool) (*http.Request, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	rel := &url.URL{Path: path.Join(c.baseURL.Path, parsed.Path), RawQuery: parsed.RawQuery}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if withAuth {
		token := c.GovernanceToken()
		if token == "" {
			return nil, fmt.Errorf("intentchain: governance token is not set")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &apiErr)
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return &apiErr
	}

	if out == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
