// Package lark is the REST client for the Lark (Feishu) open API. It
// owns tenant-token authentication and exposes one typed method per
// endpoint the bridge consumes. Methods return the raw data member of
// the response envelope so callers decode exactly the fields they need.
package lark

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

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultBaseURL is the production Lark open-API endpoint.
const DefaultBaseURL = "https://open.feishu.cn/open-apis"

// Config holds everything needed to construct a Client.
type Config struct {
	AppID     string
	AppSecret string
	// BaseURL overrides DefaultBaseURL, mainly for tests.
	BaseURL string
	// Timeout bounds every outbound request. Zero means 30 seconds.
	Timeout time.Duration
	// TokenMargin is subtracted from the token lifetime so a token is
	// refreshed before the server expires it. Zero means 60 seconds.
	TokenMargin time.Duration
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// APIError is a Lark response with a non-zero business code.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API Error (%d): %s", e.Code, e.Msg)
}

// Client is a Lark API client. It is safe for concurrent use; token
// refresh is coalesced so parallel callers trigger one request.
type Client struct {
	appID       string
	appSecret   string
	baseURL     string
	tokenMargin time.Duration
	httpClient  *http.Client
	logger      *zap.Logger

	group singleflight.Group
	now   func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewClient validates the config and returns a ready client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, fmt.Errorf("lark: app id and app secret are required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("lark: invalid base URL %q: %w", baseURL, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	margin := cfg.TokenMargin
	if margin <= 0 {
		margin = 60 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		appID:       cfg.AppID,
		appSecret:   cfg.AppSecret,
		baseURL:     strings.TrimRight(baseURL, "/"),
		tokenMargin: margin,
		httpClient:  httpClient,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// envelope is the standard Lark response wrapper.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// tokenResponse is the auth endpoint's shape; the token rides at the
// top level rather than inside data.
type tokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"`
}

// accessToken returns the cached tenant token, refreshing it when
// missing or expired. Concurrent refreshes collapse into one call.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && c.now().Before(c.expiresAt) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("tenant_token", func() (any, error) {
		return c.refreshToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) refreshToken(ctx context.Context) (string, error) {
	c.logger.Info("requesting new lark access token")

	body, err := json.Marshal(map[string]string{
		"app_id":     c.appID,
		"app_secret": c.appSecret,
	})
	if err != nil {
		return "", fmt.Errorf("lark: encode token request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/auth/v3/tenant_access_token/internal", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("lark: create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("lark: token request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("lark: read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("lark: token endpoint returned %d: %s", resp.StatusCode, respBody)
	}

	var tr tokenResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return "", fmt.Errorf("lark: parse token response: %w", err)
	}
	if tr.Code != 0 {
		return "", fmt.Errorf("lark: failed to get access token: %s", tr.Msg)
	}

	c.mu.Lock()
	c.token = tr.TenantAccessToken
	c.expiresAt = c.now().Add(time.Duration(tr.Expire)*time.Second - c.tokenMargin)
	c.mu.Unlock()

	c.logger.Info("obtained new lark access token",
		zap.Int("expire_sec", tr.Expire))
	return tr.TenantAccessToken, nil
}

// doRequest performs an authenticated call and unwraps the response
// envelope. A non-zero business code comes back as *APIError.
func (c *Client) doRequest(ctx context.Context, method, path string, requestBody any, query url.Values) (json.RawMessage, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("lark: encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("lark: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("lark request", zap.String("method", method), zap.String("path", path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lark: %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("lark: read response from %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("lark: unexpected %d response from %s %s: %s",
			resp.StatusCode, method, path, respBody)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("lark: invalid JSON response from %s %s: %w", method, path, err)
	}
	if env.Code != 0 {
		apiErr := &APIError{Code: env.Code, Msg: env.Msg}
		if apiErr.Msg == "" {
			apiErr.Msg = "Unknown error"
		}
		c.logger.Error("lark api error",
			zap.String("path", path),
			zap.Int("code", apiErr.Code),
			zap.String("msg", apiErr.Msg))
		return nil, apiErr
	}
	return env.Data, nil
}
