package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/wellsight/plunger-monitor/internal/series"
)

// DefaultFileMapping maps the exported CSV file names to channel
// names. The exports are named after the source parameter, one file
// per channel per well directory.
var DefaultFileMapping = map[string]string{
	"Sales Meter Flow Rate (MCF_Day).csv": series.ChannelFlowRate,
	"Tubing Pressure (PSI).csv":           series.ChannelTubingPressure,
	"Casing Pressure (PSI).csv":           series.ChannelCasingPressure,
	"Line Pressure (PSIA).csv":            series.ChannelLinePressure,
	"Arrival Speed.csv":                   series.ChannelArrivalSpeed,
	"Current Non-Arrival Count.csv":       series.ChannelNonArrivalCount,
}

// Loader reads per-channel CSV exports for one well.
type Loader struct {
	dataDir string
	mapping map[string]string
}

// New creates a loader rooted at dataDir using the default file
// mapping.
func New(dataDir string) *Loader {
	return &Loader{dataDir: dataDir, mapping: DefaultFileMapping}
}

// LoadWell reads every mapped channel file under dataDir/wellName and
// returns the channel set. All required channels must be present.
func (l *Loader) LoadWell(wellName string) (map[string][]series.Sample, error) {
	wellDir := filepath.Join(l.dataDir, wellName)

	channels := make(map[string][]series.Sample, len(l.mapping))
	for fileName, channel := range l.mapping {
		path := filepath.Join(wellDir, fileName)
		samples, err := readChannelFile(path)
		if os.IsNotExist(err) {
			continue // reported as MissingChannelError below
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", fileName, err)
		}
		channels[channel] = samples
	}

	if err := series.CheckChannels(channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// readChannelFile parses one "timestamp,val" CSV with a header row.
// Timestamps are ISO 8601 with a Z suffix and become unix seconds.
func readChannelFile(path string) ([]series.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 2

	var samples []series.Sample
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++
		if line == 1 {
			continue // header
		}

		ts, err := parseISOTimestamp(record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid value %q: %w", line, record[1], err)
		}

		samples = append(samples, series.Sample{Timestamp: ts, Value: value})
	}

	return samples, nil
}

// parseISOTimestamp converts "2006-01-02T15:04:05Z" to unix seconds.
func parseISOTimestamp(s string) (int64, error) {
	t, err := time.Parse("2006-01-02T15:04:05Z", s)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.Unix(), nil
}

// WriteChannelFile writes samples to a "timestamp,val" CSV, replacing
// any existing file. Used by the fetcher when dumping remote history.
func WriteChannelFile(path string, rows [][2]string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "val"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row[:]); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
