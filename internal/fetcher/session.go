package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// sessionKey is the Redis key holding the cached OnPing session.
const sessionKey = "onping:session"

// storedCookie is the serializable subset of an http.Cookie we need to
// restore a session across runs.
type storedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path,omitempty"`
	Domain  string    `json:"domain,omitempty"`
	Expires time.Time `json:"expires,omitempty"`
}

// SessionCache stores authenticated session cookies in Redis so
// separate fetch runs can share a login.
type SessionCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewSessionCache creates a session cache with the given TTL.
func NewSessionCache(redisClient *redis.Client, ttl time.Duration) *SessionCache {
	return &SessionCache{redis: redisClient, ttl: ttl}
}

// Get retrieves cached session cookies. A missing key returns nil
// cookies and no error.
func (sc *SessionCache) Get(ctx context.Context) ([]*http.Cookie, error) {
	data, err := sc.redis.Get(ctx, sessionKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	var stored []storedCookie
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	cookies := make([]*http.Cookie, len(stored))
	for i, c := range stored {
		cookies[i] = &http.Cookie{
			Name:    c.Name,
			Value:   c.Value,
			Path:    c.Path,
			Domain:  c.Domain,
			Expires: c.Expires,
		}
	}
	return cookies, nil
}

// Set saves session cookies with the cache TTL.
func (sc *SessionCache) Set(ctx context.Context, cookies []*http.Cookie) error {
	stored := make([]storedCookie, len(cookies))
	for i, c := range cookies {
		stored[i] = storedCookie{
			Name:    c.Name,
			Value:   c.Value,
			Path:    c.Path,
			Domain:  c.Domain,
			Expires: c.Expires,
		}
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := sc.redis.Set(ctx, sessionKey, data, sc.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session in Redis: %w", err)
	}
	return nil
}

// Delete drops the cached session, forcing the next run to log in.
func (sc *SessionCache) Delete(ctx context.Context) error {
	return sc.redis.Del(ctx, sessionKey).Err()
}
