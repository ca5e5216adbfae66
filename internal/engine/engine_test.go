package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellsight/plunger-monitor/internal/protocol"
	"github.com/wellsight/plunger-monitor/internal/series"
	"github.com/wellsight/plunger-monitor/internal/store"
	"github.com/wellsight/plunger-monitor/pkg/config"
)

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		AlignWindowSeconds: 60,

		SpecificGravity:  0.6,
		LiquidLoadHeight: 1000,
		MCFToCubicMeters: 28.3168,
		SecondsPerDay:    86400,

		CasingDeltaThreshold: -5.0,
		UnsafeVelocity:       2.5,
		LowVolumeThreshold:   10.0,

		LowTotalDuration:   600,
		LowFlowDuration:    300,
		LowShutinDuration:  300,
		HighTotalDuration:  7200,
		HighFlowDuration:   3600,
		HighShutinDuration: 3600,
	}
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.CreateTables())
	return s
}

func samplesAt(ts []int64, values []float64) []series.Sample {
	samples := make([]series.Sample, len(ts))
	for i := range ts {
		samples[i] = series.Sample{Timestamp: ts[i], Value: values[i]}
	}
	return samples
}

func constant(n int, v float64) []float64 {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = v
	}
	return vals
}

// testChannels builds all six channels sampled on the same timestamps.
// Defaults keep every anomaly quiet; overrides replace whole channels.
func testChannels(ts []int64, flow []float64, overrides map[string][]float64) map[string][]series.Sample {
	n := len(ts)
	values := map[string][]float64{
		series.ChannelTubingPressure:  constant(n, 200),
		series.ChannelCasingPressure:  constant(n, 500),
		series.ChannelLinePressure:    constant(n, 100),
		series.ChannelArrivalSpeed:    constant(n, 1.5),
		series.ChannelNonArrivalCount: constant(n, 0),
	}
	for name, vals := range overrides {
		values[name] = vals
	}

	channels := map[string][]series.Sample{
		series.ChannelFlowRate: samplesAt(ts, flow),
	}
	for name, vals := range values {
		channels[name] = samplesAt(ts, vals)
	}
	return channels
}

type captureNotifier struct {
	keys     []string
	payloads [][]byte
}

func (c *captureNotifier) Publish(ctx context.Context, key string, value []byte) error {
	c.keys = append(c.keys, key)
	c.payloads = append(c.payloads, value)
	return nil
}

// A quiet single cycle: shut-in 0..400, flowing 600..1000. Total 1000,
// flow 400, shutin 400, neither duration anomaly fires.
func quietCycle(overrides map[string][]float64) map[string][]series.Sample {
	ts := []int64{0, 400, 600, 1000}
	flow := []float64{0, 0, 5.0, 5.0}
	return testChannels(ts, flow, overrides)
}

func TestRun_QuietCycleBasics(t *testing.T) {
	s := openTestStore(t)
	e := New(s, nil, testEngineConfig(), "test-well")

	summary, err := e.Run(context.Background(), quietCycle(nil))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Cycles)

	records, err := s.FetchAll(store.KindCycleRecord)
	require.NoError(t, err)
	require.Len(t, records, 1)
	record := records[0]

	// Basics, gas volume and arrival status always produce records.
	assert.NotNil(t, record["basic_pressure_id"])
	assert.NotNil(t, record["cycle_duration_id"])
	assert.NotNil(t, record["arrival_velocity_id"])
	assert.NotNil(t, record["gas_volume_id"])
	assert.NotNil(t, record["arrival_status_id"])

	// No anomaly fired except low flow (tiny volume), so duration,
	// casing and velocity roles stay absent, not zero placeholders.
	assert.Nil(t, record["low_casing_pressure_id"])
	assert.Nil(t, record["unsafe_velocity_id"])
	assert.Nil(t, record["low_cycle_duration_id"])
	assert.Nil(t, record["high_cycle_duration_id"])
	assert.NotNil(t, record["low_flow_id"])

	duration, err := s.FetchByID(store.KindCycleDuration, record["cycle_duration_id"].(int64))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), duration["total_duration"])
	assert.Equal(t, int64(400), duration["flow_duration"])
	assert.Equal(t, int64(400), duration["shutin_duration"])

	pressure, err := s.FetchByID(store.KindBasicPressure, record["basic_pressure_id"].(int64))
	require.NoError(t, err)
	assert.Equal(t, 0.0, pressure["delta_cp"])
	// ph = 0.433 * 0.6 * 1000, rounded to 3 decimals.
	assert.Equal(t, 259.8, pressure["ph"])
}

func TestRun_LowCasingPressureThreshold(t *testing.T) {
	tests := []struct {
		name      string
		finalCp   float64
		triggered bool
	}{
		{"delta below threshold", 494.0, true},  // delta -6.0
		{"delta above threshold", 496.0, false}, // delta -4.0
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestStore(t)
			e := New(s, nil, testEngineConfig(), "test-well")

			casing := []float64{500, 500, 500, tt.finalCp}
			_, err := e.Run(context.Background(), quietCycle(map[string][]float64{
				series.ChannelCasingPressure: casing,
			}))
			require.NoError(t, err)

			anomalies, err := s.FetchAll(store.KindLowCasingPressure)
			require.NoError(t, err)

			if !tt.triggered {
				assert.Empty(t, anomalies)
				return
			}

			require.Len(t, anomalies, 1)
			assert.Equal(t, -6.0, anomalies[0]["delta_cp"])

			// The anomaly references the pressure event it was derived from.
			pressures, err := s.FetchAll(store.KindBasicPressure)
			require.NoError(t, err)
			require.Len(t, pressures, 1)
			assert.Equal(t, pressures[0]["_id"], anomalies[0]["basic_pressure_id"])

			// Arrival status records the co-occurrence.
			statuses, err := s.FetchAll(store.KindArrivalStatus)
			require.NoError(t, err)
			require.Len(t, statuses, 1)
			assert.Equal(t, int64(1), statuses[0]["unexpected_casing_pressure"])
		})
	}
}

func TestRun_NeverFlowingCycle(t *testing.T) {
	s := openTestStore(t)
	e := New(s, nil, testEngineConfig(), "test-well")

	// All shut-in: gas volume must be exactly 0 and low flow triggers.
	ts := []int64{0, 300, 600, 900}
	_, err := e.Run(context.Background(), testChannels(ts, constant(4, 0), nil))
	require.NoError(t, err)

	volumes, err := s.FetchAll(store.KindGasVolume)
	require.NoError(t, err)
	require.Len(t, volumes, 1)
	assert.Equal(t, 0.0, volumes[0]["gas_volume"])

	lowFlow, err := s.FetchAll(store.KindLowFlow)
	require.NoError(t, err)
	assert.Len(t, lowFlow, 1)
}

func TestRun_DurationThresholds(t *testing.T) {
	run := func(t *testing.T, ts []int64, flow []float64) *store.Store {
		s := openTestStore(t)
		e := New(s, nil, testEngineConfig(), "test-well")
		_, err := e.Run(context.Background(), testChannels(ts, flow, nil))
		require.NoError(t, err)
		return s
	}

	t.Run("short cycle triggers low duration", func(t *testing.T) {
		s := run(t, []int64{0, 500}, []float64{0, 0})
		low, err := s.FetchAll(store.KindLowCycleDuration)
		require.NoError(t, err)
		assert.Len(t, low, 1)
	})

	t.Run("long cycle triggers high duration", func(t *testing.T) {
		s := run(t, []int64{0, 8000}, []float64{0, 0})
		high, err := s.FetchAll(store.KindHighCycleDuration)
		require.NoError(t, err)
		assert.Len(t, high, 1)
	})

	t.Run("balanced cycle triggers neither", func(t *testing.T) {
		s := run(t, []int64{0, 400, 600, 1000}, []float64{0, 0, 5, 5})
		low, err := s.FetchAll(store.KindLowCycleDuration)
		require.NoError(t, err)
		assert.Empty(t, low)
		high, err := s.FetchAll(store.KindHighCycleDuration)
		require.NoError(t, err)
		assert.Empty(t, high)
	})
}

func TestRun_UnsafeVelocity(t *testing.T) {
	s := openTestStore(t)
	notifier := &captureNotifier{}
	e := New(s, notifier, testEngineConfig(), "la-vista-1h")

	_, err := e.Run(context.Background(), quietCycle(map[string][]float64{
		series.ChannelArrivalSpeed: constant(4, 3.2),
	}))
	require.NoError(t, err)

	unsafe, err := s.FetchAll(store.KindUnsafeVelocity)
	require.NoError(t, err)
	require.Len(t, unsafe, 1)
	assert.Equal(t, 3.2, unsafe[0]["arrival_speed"])

	// One anomaly notification per triggered anomaly (unsafe velocity
	// and the quiet cycle's low flow) plus the run summary.
	var kinds []string
	for _, payload := range notifier.payloads {
		if n, err := protocol.DecodeAnomalyNotification(payload); err == nil {
			kinds = append(kinds, n.EventKind)
			assert.Equal(t, "la-vista-1h", n.Well)
		}
	}
	assert.Contains(t, kinds, store.KindUnsafeVelocity)
	assert.Contains(t, kinds, store.KindLowFlow)
}

func TestRun_RoundsToThreeDecimals(t *testing.T) {
	s := openTestStore(t)
	e := New(s, nil, testEngineConfig(), "test-well")

	_, err := e.Run(context.Background(), quietCycle(map[string][]float64{
		series.ChannelArrivalSpeed: constant(4, 12.34567),
	}))
	require.NoError(t, err)

	velocities, err := s.FetchAll(store.KindArrivalVelocity)
	require.NoError(t, err)
	require.Len(t, velocities, 1)
	assert.Equal(t, 12.346, velocities[0]["arrival_speed"])
}

func TestRun_SparseChannelSkipsComputation(t *testing.T) {
	s := openTestStore(t)
	e := New(s, nil, testEngineConfig(), "test-well")

	channels := quietCycle(nil)
	// Casing pressure only mid-cycle: absent at the cycle boundary, so
	// the pressure delta (and its dependent anomaly) is skipped while
	// the rest of the cycle still commits.
	channels[series.ChannelCasingPressure] = []series.Sample{{Timestamp: 500, Value: 500}}

	summary, err := e.Run(context.Background(), channels)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Cycles)

	records, err := s.FetchAll(store.KindCycleRecord)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0]["basic_pressure_id"])
	assert.Nil(t, records[0]["low_casing_pressure_id"])
	assert.NotNil(t, records[0]["cycle_duration_id"])
	assert.NotNil(t, records[0]["gas_volume_id"])
}

func TestRun_MissingChannelFatal(t *testing.T) {
	s := openTestStore(t)
	e := New(s, nil, testEngineConfig(), "test-well")

	channels := quietCycle(nil)
	delete(channels, series.ChannelCasingPressure)

	_, err := e.Run(context.Background(), channels)
	var missing *series.MissingChannelError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, series.ChannelCasingPressure, missing.Channel)
}

func TestRun_TrimsLeadingFlow(t *testing.T) {
	s := openTestStore(t)
	e := New(s, nil, testEngineConfig(), "test-well")

	// Flowing before the first zero crossing: the partial leading
	// cycle is trimmed, so segmentation starts at the crossing and
	// exactly one cycle (id 0) is produced.
	ts := []int64{0, 60, 120, 400, 600, 1000}
	flow := []float64{7, 7, 0, 0, 5, 5}
	_, err := e.Run(context.Background(), testChannels(ts, flow, nil))
	require.NoError(t, err)

	records, err := s.FetchAll(store.KindCycleRecord)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(0), records[0]["cycle_id"])

	durations, err := s.FetchAll(store.KindCycleDuration)
	require.NoError(t, err)
	require.Len(t, durations, 1)
	// Cycle starts at the zero crossing (t=120), not the input start.
	assert.Equal(t, int64(120), durations[0]["start_time"])
}

func TestRun_DeterministicFieldValues(t *testing.T) {
	input := func() map[string][]series.Sample {
		return quietCycle(map[string][]float64{
			series.ChannelCasingPressure: {500, 498, 497, 493.7},
			series.ChannelArrivalSpeed:   {1.1, 2.9, 3.3, 2.8},
		})
	}

	runOnce := func(t *testing.T) map[string][]map[string]any {
		s := openTestStore(t)
		e := New(s, nil, testEngineConfig(), "test-well")
		_, err := e.Run(context.Background(), input())
		require.NoError(t, err)

		out := make(map[string][]map[string]any)
		for _, kind := range store.Kinds() {
			if kind == store.KindCycleRecord {
				continue // run_id differs by design
			}
			events, err := s.FetchAll(kind)
			require.NoError(t, err)
			for _, fields := range events {
				delete(fields, "_id")
			}
			out[kind] = events
		}
		return out
	}

	first := runOnce(t)
	second := runOnce(t)
	assert.Equal(t, first, second)
}

func TestRun_CanceledBetweenCycles(t *testing.T) {
	s := openTestStore(t)
	e := New(s, nil, testEngineConfig(), "test-well")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, quietCycle(nil))
	assert.True(t, errors.Is(err, context.Canceled))

	// Nothing was committed: the run was aborted before the first cycle.
	records, err := s.FetchAll(store.KindCycleRecord)
	require.NoError(t, err)
	assert.Empty(t, records)
}
