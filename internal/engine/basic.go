package engine

import (
	"fmt"

	"github.com/wellsight/plunger-monitor/internal/series"
)

// Basic computations read channel samples directly and always emit a
// record when their inputs are present.

// computePressureDelta produces final-minus-initial deltas for the
// three pressure channels, plus the hydrostatic reference
// ph = 0.433 * SG * hl (constants, not per-cycle data).
func computePressureDelta(e *Engine, c *cycleState) (map[string]any, error) {
	first := c.rows[0]
	last := c.rows[len(c.rows)-1]

	deltas := make(map[string]float64, 3)
	for field, channel := range map[string]string{
		"delta_pt": series.ChannelTubingPressure,
		"delta_cp": series.ChannelCasingPressure,
		"delta_pl": series.ChannelLinePressure,
	} {
		initial, ok := first.Value(channel)
		if !ok {
			return nil, fmt.Errorf("%s at cycle start: %w", channel, ErrValueAbsent)
		}
		final, ok := last.Value(channel)
		if !ok {
			return nil, fmt.Errorf("%s at cycle end: %w", channel, ErrValueAbsent)
		}
		deltas[field] = final - initial
	}

	ph := 0.433 * e.cfg.SpecificGravity * e.cfg.LiquidLoadHeight

	return map[string]any{
		"delta_pt": round3(deltas["delta_pt"]),
		"delta_cp": round3(deltas["delta_cp"]),
		"delta_pl": round3(deltas["delta_pl"]),
		"ph":       round3(ph),
	}, nil
}

// computeCycleDuration measures the whole cycle span plus the flowing
// and shut-in sub-spans. A cycle that never flowed (or never shut in)
// gets a zero sub-span, not an error.
func computeCycleDuration(e *Engine, c *cycleState) (map[string]any, error) {
	start := c.rows[0].Timestamp
	end := c.rows[len(c.rows)-1].Timestamp

	var flowDuration, shutinDuration int64
	if first, last, ok := spanWhere(c.rows, func(r series.Row) bool { return r.FlowRate > 0 }); ok {
		flowDuration = last - first
	}
	if first, last, ok := spanWhere(c.rows, func(r series.Row) bool { return r.FlowRate == 0 }); ok {
		shutinDuration = last - first
	}

	return map[string]any{
		"start_time":      start,
		"end_time":        end,
		"total_duration":  end - start,
		"flow_duration":   flowDuration,
		"shutin_duration": shutinDuration,
	}, nil
}

// spanWhere returns the timestamps of the first and last row matching
// the predicate.
func spanWhere(rows []series.Row, match func(series.Row) bool) (first, last int64, ok bool) {
	for _, r := range rows {
		if !match(r) {
			continue
		}
		if !ok {
			first = r.Timestamp
			ok = true
		}
		last = r.Timestamp
	}
	return first, last, ok
}

// computeArrivalVelocity averages the plunger arrival speed over the
// samples present in the cycle.
func computeArrivalVelocity(e *Engine, c *cycleState) (map[string]any, error) {
	var sum float64
	var n int
	for _, r := range c.rows {
		if v, ok := r.Value(series.ChannelArrivalSpeed); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return nil, fmt.Errorf("%s over cycle: %w", series.ChannelArrivalSpeed, ErrValueAbsent)
	}

	return map[string]any{
		"arrival_speed": round3(sum / float64(n)),
	}, nil
}
