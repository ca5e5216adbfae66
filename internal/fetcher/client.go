package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/wellsight/plunger-monitor/internal/loader"
	"github.com/wellsight/plunger-monitor/pkg/config"
)

// Reading is one remote history point as the source returns it.
type Reading struct {
	Time string  `json:"time"`
	Val  float64 `json:"val"`
}

// Client pulls parameter history from the OnPing source and dumps it
// to per-well channel CSVs for the processor.
type Client struct {
	cfg     config.OnPingConfig
	auth    *AuthManager
	dataDir string
}

// NewClient creates a history client.
func NewClient(cfg config.OnPingConfig, auth *AuthManager, dataDir string) *Client {
	return &Client{cfg: cfg, auth: auth, dataDir: dataDir}
}

// FetchRange retrieves one parameter's history for a time range. A 401
// triggers a single forced re-authentication and retry.
func (c *Client) FetchRange(ctx context.Context, pid int, start, end time.Time, stepSeconds int) ([]Reading, error) {
	params := map[string]any{
		"pid":   pid,
		"steps": []int{stepSeconds},
		"time_ranges": [][]string{{
			start.UTC().Format("2006-01-02T15:04:05Z"),
			end.UTC().Format("2006-01-02T15:04:05Z"),
		}},
		"delta": 15,
	}
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode history request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		// The source expects the parameters as a JSON body on a GET.
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.cfg.BaseURL+"/json/listers/parameterHistoryLister", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.auth.Client().Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			fmt.Println("Session expired, retrying auth...")
			if err := c.auth.Authenticate(ctx, true); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("history request returned status %d", resp.StatusCode)
			continue
		}

		var readings []Reading
		err = json.NewDecoder(resp.Body).Decode(&readings)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to decode history response: %w", err)
			continue
		}
		return readings, nil
	}

	return nil, fmt.Errorf("history fetch failed for pid %d: %w", pid, lastErr)
}

// FetchAll pulls every configured well and parameter for the window
// derived from the wells config, writes the CSVs, and records the new
// last-fetch time.
func (c *Client) FetchAll(ctx context.Context, configPath string) error {
	wellsCfg, err := LoadWellsConfig(configPath)
	if err != nil {
		return err
	}

	now := time.Now()
	start, end := wellsCfg.FetchWindow(now)
	fmt.Printf("Fetching history from %s to %s\n",
		start.Format(time.RFC3339), end.Format(time.RFC3339))

	wellsCfg.LastFetchTime = end.Format(time.RFC3339)
	if err := SaveWellsConfig(configPath, wellsCfg); err != nil {
		return err
	}

	for _, well := range wellsCfg.Wells {
		fmt.Printf("\nWell: %s\n", well.Name)
		for _, pid := range well.PIDs {
			readings, err := c.FetchRange(ctx, pid.PID, start, end, wellsCfg.StepSeconds)
			if err != nil {
				fmt.Printf("✗ %s - %s (%d): %v\n", well.Name, pid.Name, pid.PID, err)
				continue
			}
			if len(readings) == 0 {
				fmt.Printf("✗ %s - %s (%d): no data for range\n", well.Name, pid.Name, pid.PID)
				continue
			}

			path := filepath.Join(c.dataDir, well.Name, pid.Name+".csv")
			rows := make([][2]string, len(readings))
			for i, r := range readings {
				rows[i] = [2]string{r.Time, strconv.FormatFloat(r.Val, 'f', -1, 64)}
			}
			if err := loader.WriteChannelFile(path, rows); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Printf("✓ %s - %s (%d): %d readings fetched\n", well.Name, pid.Name, pid.PID, len(readings))
		}
	}

	return nil
}
