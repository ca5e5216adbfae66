package fetcher

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// WellsConfig describes which wells and parameters to fetch, plus the
// bookkeeping for incremental runs.
type WellsConfig struct {
	StepSeconds   int    `json:"step_seconds"`
	LastFetchTime string `json:"lastFetchTime,omitempty"`
	Wells         []Well `json:"wells"`
}

// Well groups the remote parameter ids for one wellsite.
type Well struct {
	Name string `json:"name"`
	PIDs []PID  `json:"pids"`
}

// PID is one remote parameter: its display name doubles as the CSV
// file name (without extension).
type PID struct {
	Name string `json:"name"`
	PID  int    `json:"pid"`
}

// LoadWellsConfig reads the wells config JSON.
func LoadWellsConfig(path string) (*WellsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wells config: %w", err)
	}

	var cfg WellsConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse wells config: %w", err)
	}
	return &cfg, nil
}

// SaveWellsConfig writes the wells config back, preserving its shape.
func SaveWellsConfig(path string, cfg *WellsConfig) error {
	data, err := json.MarshalIndent(cfg, "", "   ")
	if err != nil {
		return fmt.Errorf("failed to encode wells config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write wells config: %w", err)
	}
	return nil
}

// FetchWindow resolves the time range for this run: from the last
// recorded fetch time (or one day back when absent) to now.
func (c *WellsConfig) FetchWindow(now time.Time) (start, end time.Time) {
	end = now
	if c.LastFetchTime != "" {
		if t, err := time.Parse(time.RFC3339, c.LastFetchTime); err == nil {
			return t, end
		}
	}
	return now.AddDate(0, 0, -1), end
}
