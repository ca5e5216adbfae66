package engine

import (
	"fmt"

	"github.com/wellsight/plunger-monitor/internal/series"
)

// Complex computations depend on events already persisted for the same
// cycle. They resolve those dependencies by re-fetching fields from
// the store by id, never by reusing in-memory values.

// computeGasVolume converts the mean flowing rate (MCF/day) to cubic
// meters per second and multiplies by the flowing span. A cycle that
// never flowed produces volume 0.
func computeGasVolume(e *Engine, c *cycleState) (map[string]any, error) {
	duration, err := c.fetchUpstream(e.store, RoleCycleDuration)
	if err != nil {
		return nil, err
	}
	flowDuration, err := fieldFloat(duration, "flow_duration")
	if err != nil {
		return nil, err
	}

	var sum float64
	var n int
	for _, r := range c.rows {
		if r.FlowRate > 0 {
			sum += r.FlowRate
			n++
		}
	}

	gasVolume := 0.0
	if n > 0 {
		// MCF/day to cubic meters per second, times the flowing span.
		avgRate := sum / float64(n)
		ratePerSecond := avgRate * e.cfg.MCFToCubicMeters / e.cfg.SecondsPerDay
		gasVolume = ratePerSecond * flowDuration
	}

	return map[string]any{
		"gas_volume":        round3(gasVolume),
		"cycle_duration_id": c.ids[RoleCycleDuration],
	}, nil
}

// computeLowCasingPressure triggers when the casing pressure delta
// falls below the configured threshold.
func computeLowCasingPressure(e *Engine, c *cycleState) (map[string]any, error) {
	pressure, err := c.fetchUpstream(e.store, RoleBasicPressure)
	if err != nil {
		return nil, err
	}
	deltaCp, err := fieldFloat(pressure, "delta_cp")
	if err != nil {
		return nil, err
	}

	if deltaCp >= e.cfg.CasingDeltaThreshold {
		return nil, nil
	}

	return map[string]any{
		"delta_cp":          deltaCp,
		"threshold":         e.cfg.CasingDeltaThreshold,
		"basic_pressure_id": c.ids[RoleBasicPressure],
		"description":       "Abnormally low casing pressure change detected.",
	}, nil
}

// computeArrivalStatus records whether the plunger failed to arrive
// during the cycle and whether a low casing pressure anomaly
// co-occurred. Always emitted.
func computeArrivalStatus(e *Engine, c *cycleState) (map[string]any, error) {
	var maxCount float64
	var n int
	for _, r := range c.rows {
		if v, ok := r.Value(series.ChannelNonArrivalCount); ok {
			if n == 0 || v > maxCount {
				maxCount = v
			}
			n++
		}
	}
	if n == 0 {
		return nil, fmt.Errorf("%s over cycle: %w", series.ChannelNonArrivalCount, ErrValueAbsent)
	}

	nonArrival := maxCount > 0
	lowCasingID, lowCasing := c.ids[RoleLowCasingPressure]

	description := "Plunger arrived; "
	if nonArrival {
		description = "Plunger did not arrive; "
	}
	if lowCasing {
		description += "Unexpected low casing pressure detected."
	} else {
		description += "Casing pressure normal."
	}

	fields := map[string]any{
		"non_arrival":                boolToInt(nonArrival),
		"unexpected_casing_pressure": boolToInt(lowCasing),
		"description":                description,
	}
	if lowCasing {
		fields["low_casing_pressure_id"] = lowCasingID
	}
	return fields, nil
}

// computeUnsafeVelocity triggers when the mean arrival speed exceeds
// the configured safety threshold.
func computeUnsafeVelocity(e *Engine, c *cycleState) (map[string]any, error) {
	velocity, err := c.fetchUpstream(e.store, RoleArrivalVelocity)
	if err != nil {
		return nil, err
	}
	speed, err := fieldFloat(velocity, "arrival_speed")
	if err != nil {
		return nil, err
	}

	if speed <= e.cfg.UnsafeVelocity {
		return nil, nil
	}

	return map[string]any{
		"arrival_speed":     speed,
		"safety_threshold":  e.cfg.UnsafeVelocity,
		"velocity_event_id": c.ids[RoleArrivalVelocity],
		"description":       "Plunger arrival speed exceeded the safety threshold; check for aggressive flow conditions or mechanical wear.",
	}, nil
}

// computeLowFlow triggers when the produced gas volume falls below the
// configured floor.
func computeLowFlow(e *Engine, c *cycleState) (map[string]any, error) {
	volume, err := c.fetchUpstream(e.store, RoleGasVolume)
	if err != nil {
		return nil, err
	}
	gasVolume, err := fieldFloat(volume, "gas_volume")
	if err != nil {
		return nil, err
	}

	if gasVolume >= e.cfg.LowVolumeThreshold {
		return nil, nil
	}

	return map[string]any{
		"gas_volume":       gasVolume,
		"volume_threshold": e.cfg.LowVolumeThreshold,
		"gas_volume_id":    c.ids[RoleGasVolume],
		"description":      "Gas volume produced during the cycle was lower than expected; possible underperformance or early plunger fallback.",
	}, nil
}

// computeLowCycleDuration triggers when any duration falls below its
// configured floor.
func computeLowCycleDuration(e *Engine, c *cycleState) (map[string]any, error) {
	total, flow, shutin, err := fetchDurations(e, c)
	if err != nil {
		return nil, err
	}

	isShort := total < e.cfg.LowTotalDuration ||
		flow < e.cfg.LowFlowDuration ||
		shutin < e.cfg.LowShutinDuration
	if !isShort {
		return nil, nil
	}

	return map[string]any{
		"total_duration":    total,
		"flow_duration":     flow,
		"shutin_duration":   shutin,
		"total_threshold":   e.cfg.LowTotalDuration,
		"flow_threshold":    e.cfg.LowFlowDuration,
		"shutin_threshold":  e.cfg.LowShutinDuration,
		"cycle_duration_id": c.ids[RoleCycleDuration],
		"description":       "Abnormally short cycle; possible premature venting or mistimed plunger launch.",
	}, nil
}

// computeHighCycleDuration triggers when any duration exceeds its
// configured ceiling.
func computeHighCycleDuration(e *Engine, c *cycleState) (map[string]any, error) {
	total, flow, shutin, err := fetchDurations(e, c)
	if err != nil {
		return nil, err
	}

	isLong := total > e.cfg.HighTotalDuration ||
		flow > e.cfg.HighFlowDuration ||
		shutin > e.cfg.HighShutinDuration
	if !isLong {
		return nil, nil
	}

	return map[string]any{
		"total_duration":    total,
		"flow_duration":     flow,
		"shutin_duration":   shutin,
		"total_threshold":   e.cfg.HighTotalDuration,
		"flow_threshold":    e.cfg.HighFlowDuration,
		"shutin_threshold":  e.cfg.HighShutinDuration,
		"cycle_duration_id": c.ids[RoleCycleDuration],
		"description":       "Abnormally long cycle; possible poor liquid unloading or excessive shut-in.",
	}, nil
}

func fetchDurations(e *Engine, c *cycleState) (total, flow, shutin int64, err error) {
	duration, err := c.fetchUpstream(e.store, RoleCycleDuration)
	if err != nil {
		return 0, 0, 0, err
	}
	if total, err = fieldInt(duration, "total_duration"); err != nil {
		return 0, 0, 0, err
	}
	if flow, err = fieldInt(duration, "flow_duration"); err != nil {
		return 0, 0, 0, err
	}
	if shutin, err = fieldInt(duration, "shutin_duration"); err != nil {
		return 0, 0, 0, err
	}
	return total, flow, shutin, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// fieldFloat reads a numeric field from fetched event fields. Drivers
// return INTEGER columns as int64, so both arrive here.
func fieldFloat(fields map[string]any, name string) (float64, error) {
	switch v := fields[name].(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case nil:
		return 0, fmt.Errorf("field %q missing from fetched event", name)
	default:
		return 0, fmt.Errorf("field %q has unexpected type %T", name, v)
	}
}

func fieldInt(fields map[string]any, name string) (int64, error) {
	switch v := fields[name].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case nil:
		return 0, fmt.Errorf("field %q missing from fetched event", name)
	default:
		return 0, fmt.Errorf("field %q has unexpected type %T", name, v)
	}
}
