// HTTP client for the FastAPI proxy wrapping ytmusicapi
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/ytmix/internal/shared"
	"golang.org/x/time/rate"
)

const defaultProxyURL string = "http://localhost:8080"

// ProxyClient performs JSON requests against the ytmusicapi proxy.
type ProxyClient struct {
	baseURL    string
	authFile   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewProxyClient creates a proxy client. An empty baseURL uses the local default,
// a nil client uses [http.DefaultClient] and a non-positive rps disables rate limiting.
func NewProxyClient(baseURL, authFile string, client *http.Client, rps float64) *ProxyClient {
	if baseURL == "" {
		baseURL = defaultProxyURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}

	return &ProxyClient{
		baseURL:    baseURL,
		authFile:   authFile,
		httpClient: client,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// ProxyError is a non-2xx response from the proxy.
type ProxyError struct {
	StatusCode int
	Detail     string
}

func (e *ProxyError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("youtube music API error (status %d): %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("youtube music API error: status %d", e.StatusCode)
}

func (e *ProxyError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return shared.ErrNotAuthenticated
	}
	return shared.ErrAPIRequest
}

// Get decodes the JSON response of GET path into result.
func (p *ProxyClient) Get(ctx context.Context, path string, result any) error {
	return p.do(ctx, http.MethodGet, path, nil, result)
}

// Post sends body as JSON and decodes the response into result (which may be nil).
func (p *ProxyClient) Post(ctx context.Context, path string, body, result any) error {
	return p.do(ctx, http.MethodPost, path, body, result)
}

// Health reports the proxy status and whether it holds valid credentials.
func (p *ProxyClient) Health(ctx context.Context) (status string, authenticated bool, err error) {
	var health struct {
		Status        string `json:"status"`
		Authenticated bool   `json:"authenticated"`
	}
	if err := p.Get(ctx, "/health", &health); err != nil {
		return "", false, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	return health.Status, health.Authenticated, nil
}

func (p *ProxyClient) do(ctx context.Context, method, path string, body, result any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if p.authFile != "" {
		req.Header.Set("X-Auth-File", p.authFile)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return &ProxyError{StatusCode: resp.StatusCode, Detail: errResp.Detail}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
