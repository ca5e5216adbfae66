package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"github.com/wellsight/plunger-monitor/pkg/config"
)

const userAgent = "plunger-monitor/1.0"

// AuthManager logs in to the OnPing source and keeps the session
// cookies in the HTTP client's jar, backed by the Redis session cache.
type AuthManager struct {
	cfg     config.OnPingConfig
	client  *http.Client
	session *SessionCache
	baseURL *url.URL
}

// NewAuthManager creates an auth manager. session may be nil to
// disable cross-run session caching.
func NewAuthManager(cfg config.OnPingConfig, session *SessionCache) (*AuthManager, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("credentials not found: set ONPING_USERNAME and ONPING_PASSWORD")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &AuthManager{
		cfg:     cfg,
		client:  &http.Client{Jar: jar, Timeout: cfg.RequestTimeout},
		session: session,
		baseURL: base,
	}, nil
}

// Client returns the HTTP client carrying the session cookies.
func (a *AuthManager) Client() *http.Client {
	return a.client
}

// Authenticate establishes a session. Unless forceNew is set it first
// tries cookies cached in Redis, validated with a cheap probe request.
func (a *AuthManager) Authenticate(ctx context.Context, forceNew bool) error {
	if !forceNew && a.session != nil {
		cookies, err := a.session.Get(ctx)
		if err != nil {
			fmt.Printf("Session cache read failed: %v\n", err)
		} else if len(cookies) > 0 {
			a.client.Jar.SetCookies(a.baseURL, cookies)
			if a.probe(ctx) {
				fmt.Println("Using cached session")
				return nil
			}
		}
	}

	fmt.Println("Authenticating...")

	// Step one: exchange credentials for a login token.
	tokenReq := map[string]string{
		"username":  a.cfg.Username,
		"password":  a.cfg.Password,
		"useragent": userAgent,
	}
	var tokenResp struct {
		Left  json.RawMessage `json:"Left"`
		Right json.RawMessage `json:"Right"`
	}
	if err := a.postJSON(ctx, "/auth/page/plow/getAuthToken", tokenReq, &tokenResp); err != nil {
		return a.authFailed(ctx, err)
	}
	if len(tokenResp.Left) > 0 {
		return a.authFailed(ctx, fmt.Errorf("auth rejected: %s", tokenResp.Left))
	}

	// Step two: redeem the token; the response sets session cookies.
	if err := a.postJSON(ctx, "/auth/page/plow/plowlogin", json.RawMessage(tokenResp.Right), nil); err != nil {
		return a.authFailed(ctx, err)
	}

	if a.session != nil {
		if err := a.session.Set(ctx, a.client.Jar.Cookies(a.baseURL)); err != nil {
			fmt.Printf("Session cache write failed: %v\n", err)
		}
	}

	fmt.Println("Auth successful")
	return nil
}

// authFailed drops any cached session so the next attempt starts clean.
func (a *AuthManager) authFailed(ctx context.Context, err error) error {
	if a.session != nil {
		if delErr := a.session.Delete(ctx); delErr != nil {
			fmt.Printf("Failed to clear cached session: %v\n", delErr)
		}
	}
	return fmt.Errorf("authentication failed: %w", err)
}

// probe checks whether the current session cookies are still accepted.
func (a *AuthManager) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		a.cfg.BaseURL+"/json/listers/companyLister", nil)
	if err != nil {
		return false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (a *AuthManager) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
