// Package apiclient is the HTTP client for the artifactfs registry server.
//
// All storage traffic in client mode flows through this client. Requests
// carry a bearer token acquired from the auth/token route; failed requests
// are retried up to three times with a token refresh between attempts.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mlvault/artifactfs/internal/logger"
	"github.com/mlvault/artifactfs/pkg/storage"
)

const (
	// maxAttempts bounds RequestWithRetry.
	maxAttempts = 3

	// defaultTimeout is the per-request HTTP timeout.
	defaultTimeout = 30 * time.Second

	// refreshWindow refreshes tokens this close to expiry.
	refreshWindow = 30 * time.Second

	// prodTokenHeader carries the deployment token on every request.
	prodTokenHeader = "X-Prod-Token"
)

// Config holds the registry server connection settings.
type Config struct {
	// BaseURL is the server address, e.g. "http://localhost:8888".
	BaseURL string

	// PathPrefix is prepended to every route.
	PathPrefix string

	// UseAuth enables bearer-token acquisition with Username/Password.
	UseAuth  bool
	Username string
	Password string

	// ProdToken is sent as the deployment token header when set.
	ProdToken string

	// Timeout overrides the default 30s per-request timeout.
	Timeout time.Duration
}

// Client talks to the registry server. Safe for concurrent use.
type Client struct {
	http *http.Client
	base *url.URL
	cfg  Config

	mu    sync.Mutex
	token string
}

// New creates a registry server client and, when auth is enabled, acquires an
// initial token.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: api base URL is required", storage.ErrInvalidArgument)
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid api base URL %q", storage.ErrInvalidArgument, cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		http: &http.Client{Timeout: timeout},
		base: base,
		cfg:  cfg,
	}

	if cfg.UseAuth {
		if err := c.RefreshToken(ctx); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// BaseURL returns the configured server address.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// endpoint builds the full URL for a route.
func (c *Client) endpoint(route string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/")
	if prefix := strings.Trim(c.cfg.PathPrefix, "/"); prefix != "" {
		u.Path += "/" + prefix
	}
	u.Path += "/" + route
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// RefreshToken exchanges the configured credentials for a fresh bearer token.
func (c *Client) RefreshToken(ctx context.Context) error {
	if !c.cfg.UseAuth {
		return nil
	}

	body, err := json.Marshal(map[string]string{
		"username": c.cfg.Username,
		"password": c.cfg.Password,
	})
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint(RouteAuthToken, nil), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.ProdToken != "" {
		req.Header.Set(prodTokenHeader, c.cfg.ProdToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: token request returned %d", storage.ErrAuthFailed, resp.StatusCode)
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return fmt.Errorf("%w: invalid token response: %v", storage.ErrDecode, err)
	}

	c.mu.Lock()
	c.token = token.AccessToken
	c.mu.Unlock()
	return nil
}

// currentToken returns the bearer token, refreshing it first when it is close
// to expiry. Opaque tokens that do not parse as JWTs are used as-is.
func (c *Client) currentToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	if token == "" || !tokenNeedsRefresh(token) {
		return token, nil
	}

	logger.Debug("bearer token near expiry, refreshing")
	if err := c.RefreshToken(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	token = c.token
	c.mu.Unlock()
	return token, nil
}

func tokenNeedsRefresh(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Until(exp.Time) < refreshWindow
}

// NewRequest builds a request for a route with auth headers applied. Callers
// that need a custom body (multipart forms, raw streams) start here and pass
// the result to Do.
func (c *Client) NewRequest(ctx context.Context, method, route string, query url.Values, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(route, query), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s %s: %w", method, route, err)
	}

	token, err := c.currentToken(ctx)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.cfg.ProdToken != "" {
		req.Header.Set(prodTokenHeader, c.cfg.ProdToken)
	}
	return req, nil
}

// Do executes a request and maps non-2xx responses to APIError. The caller
// owns the response body on success.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return nil, apiErr
}

// Request performs one JSON request without retries.
func (c *Client) Request(ctx context.Context, method, route string, query url.Values, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := c.NewRequest(ctx, method, route, query, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.Do(req)
}

// RequestWithRetry performs a JSON request with up to three attempts,
// refreshing the bearer token between failures.
func (c *Client) RequestWithRetry(ctx context.Context, method, route string, query url.Values, body any) (*http.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.Request(ctx, method, route, query, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt < maxAttempts {
			logger.Debug("request failed, refreshing token and retrying",
				"route", route, "attempt", attempt, "error", err)
			if refreshErr := c.RefreshToken(ctx); refreshErr != nil {
				logger.Warn("token refresh failed", "error", refreshErr)
			}
		}
	}
	return nil, fmt.Errorf("%w: %s %s after %d attempts: %v",
		storage.ErrExhaustedRetries, method, route, maxAttempts, lastErr)
}

// GetJSON performs a retried GET and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, route string, query url.Values, out any) error {
	resp, err := c.RequestWithRetry(ctx, http.MethodGet, route, query, nil)
	if err != nil {
		return err
	}
	return decodeBody(resp, out)
}

// PostJSON performs a retried POST and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, route string, body, out any) error {
	resp, err := c.RequestWithRetry(ctx, http.MethodPost, route, nil, body)
	if err != nil {
		return err
	}
	return decodeBody(resp, out)
}

// DeleteJSON performs a retried DELETE and decodes the response into out.
func (c *Client) DeleteJSON(ctx context.Context, route string, query url.Values, out any) error {
	resp, err := c.RequestWithRetry(ctx, http.MethodDelete, route, query, nil)
	if err != nil {
		return err
	}
	return decodeBody(resp, out)
}

func decodeBody(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrDecode, err)
	}
	return nil
}

// Healthcheck verifies the server is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	return c.GetJSON(ctx, RouteHealthcheck, nil, nil)
}

// StorageSettings reports the real storage backend behind the server.
func (c *Client) StorageSettings(ctx context.Context) (*StorageSettingsResponse, error) {
	var settings StorageSettingsResponse
	if err := c.GetJSON(ctx, RouteStorageSettings, nil, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}
