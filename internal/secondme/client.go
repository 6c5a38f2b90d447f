// Package secondme talks to the SecondMe platform: the OAuth endpoints
// used for login and token refresh, the user/info endpoint, and the
// streamed chat endpoint that drives each negotiation proxy.
package secondme

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultAPIBase      = "https://app.mindos.com/gate/lab/api"
	DefaultAuthorizeURL = "https://go.second.me/oauth/"
	DefaultScope        = "user.info chat"

	maxErrorBody = 4 << 10
)

// ErrUpstream wraps every non-2xx answer from the platform.
var ErrUpstream = errors.New("secondme: upstream error")

// Config holds the OAuth client registration and endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	APIBase      string // defaults to DefaultAPIBase
	AuthorizeURL string // defaults to DefaultAuthorizeURL
}

// Client is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient returns a Client.  httpClient may be nil, in which case a
// client without an overall timeout is used; callers bound each call
// with their context instead, since chat streams can be long.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.AuthorizeURL == "" {
		cfg.AuthorizeURL = DefaultAuthorizeURL
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	if httpClient == nil {
		httpClient = &http.Client{Transport: http.DefaultTransport}
	}
	return &Client{cfg: cfg, http: httpClient}
}

// AuthorizeURL builds the URL the browser is redirected to for login.
func (c *Client) AuthorizeURL(state, redirectURI, scope string) string {
	if scope == "" {
		scope = DefaultScope
	}
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", scope)
	q.Set("state", state)
	u := c.cfg.AuthorizeURL
	if strings.Contains(u, "?") {
		return u + "&" + q.Encode()
	}
	return u + "?" + q.Encode()
}

// ExchangeCode trades an authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (Token, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	return c.postToken(ctx, "/oauth/token/code", form)
}

// RefreshToken renews an access token.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("refresh_token", refreshToken)
	return c.postToken(ctx, "/oauth/token/refresh", form)
}

func (c *Client) postToken(ctx context.Context, path string, form url.Values) (Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBase+path, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	body, err := c.do(req)
	if err != nil {
		return Token{}, fmt.Errorf("token %s: %w", path, err)
	}
	tok, err := decodeToken(body)
	if err != nil {
		return Token{}, fmt.Errorf("token %s: %w", path, err)
	}
	return tok, nil
}

// UserInfo fetches the profile behind accessToken.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBase+"/secondme/user/info", nil)
	if err != nil {
		return UserInfo{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	body, err := c.do(req)
	if err != nil {
		return UserInfo{}, fmt.Errorf("user/info: %w", err)
	}
	info, err := decodeUserInfo(body)
	if err != nil {
		return UserInfo{}, fmt.Errorf("user/info: %w", err)
	}
	return info, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstreamError(resp.StatusCode, body)
	}
	return body, nil
}

func upstreamError(status int, body []byte) error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return fmt.Errorf("%w: %d %s", ErrUpstream, status, strings.TrimSpace(string(body)))
}

// ExpiresAt converts a relative expiry into an absolute time, or nil when
// the provider did not send one.
func (t Token) ExpiresAt(now time.Time) *time.Time {
	if t.ExpiresIn <= 0 {
		return nil
	}
	at := now.Add(time.Duration(t.ExpiresIn) * time.Second).UTC()
	return &at
}
