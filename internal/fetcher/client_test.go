package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellsight/plunger-monitor/pkg/config"
)

func testOnPingConfig(baseURL string) config.OnPingConfig {
	return config.OnPingConfig{
		BaseURL:        baseURL,
		Username:       "operator",
		Password:       "secret",
		RequestTimeout: 2 * time.Second,
	}
}

func TestAuthenticate_TwoStepLogin(t *testing.T) {
	var gotToken, gotLogin bool

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/page/plow/getAuthToken", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "operator", body["username"])
		gotToken = true
		json.NewEncoder(w).Encode(map[string]any{"Right": map[string]string{"token": "abc"}})
	})
	mux.HandleFunc("/auth/page/plow/plowlogin", func(w http.ResponseWriter, r *http.Request) {
		gotLogin = true
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "xyz"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	auth, err := NewAuthManager(testOnPingConfig(srv.URL), nil)
	require.NoError(t, err)
	require.NoError(t, auth.Authenticate(context.Background(), false))

	assert.True(t, gotToken)
	assert.True(t, gotLogin)
}

func TestAuthenticate_RejectedCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/page/plow/getAuthToken", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"Left": "bad credentials"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	auth, err := NewAuthManager(testOnPingConfig(srv.URL), nil)
	require.NoError(t, err)

	err = auth.Authenticate(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth rejected")
}

func TestFetchRange_RetriesAfterExpiredSession(t *testing.T) {
	historyCalls := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/page/plow/getAuthToken", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"Right": map[string]string{"token": "abc"}})
	})
	mux.HandleFunc("/auth/page/plow/plowlogin", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/json/listers/parameterHistoryLister", func(w http.ResponseWriter, r *http.Request) {
		historyCalls++
		if historyCalls == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode([]Reading{
			{Time: "2025-06-29T08:08:20Z", Val: 4.5},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testOnPingConfig(srv.URL)
	auth, err := NewAuthManager(cfg, nil)
	require.NoError(t, err)
	client := NewClient(cfg, auth, t.TempDir())

	start := time.Date(2025, 6, 28, 0, 0, 0, 0, time.UTC)
	readings, err := client.FetchRange(context.Background(), 42, start, start.Add(24*time.Hour), 60)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, 4.5, readings[0].Val)
	assert.Equal(t, 2, historyCalls)
}

func TestFetchWindow(t *testing.T) {
	now := time.Date(2025, 6, 29, 12, 0, 0, 0, time.UTC)

	cfg := &WellsConfig{}
	start, end := cfg.FetchWindow(now)
	assert.True(t, start.Equal(now.AddDate(0, 0, -1)))
	assert.True(t, end.Equal(now))

	cfg.LastFetchTime = "2025-06-29T08:00:00Z"
	start, _ = cfg.FetchWindow(now)
	assert.True(t, start.Equal(time.Date(2025, 6, 29, 8, 0, 0, 0, time.UTC)))
}
