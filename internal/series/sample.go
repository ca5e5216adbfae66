package series

import (
	"fmt"
	"sort"
)

// Sample is a single channel reading at a unix-second timestamp.
// Sequences are stored in non-decreasing timestamp order; duplicate
// timestamps are allowed and treated as independent samples.
type Sample struct {
	Timestamp int64
	Value     float64
}

// Channel names for the fixed set of wellsite measurements.
const (
	ChannelFlowRate        = "flow_rate" // MCF/day, the reference channel
	ChannelTubingPressure  = "tubing_pressure"
	ChannelCasingPressure  = "casing_pressure"
	ChannelLinePressure    = "line_pressure"
	ChannelArrivalSpeed    = "arrival_speed"
	ChannelNonArrivalCount = "non_arrival_count"
)

// RequiredChannels is the closed set of channels a run needs. Alignment
// fails if any of them is absent from the input.
var RequiredChannels = []string{
	ChannelFlowRate,
	ChannelTubingPressure,
	ChannelCasingPressure,
	ChannelLinePressure,
	ChannelArrivalSpeed,
	ChannelNonArrivalCount,
}

// MissingChannelError reports a required channel absent from the input.
// It is fatal for the whole run.
type MissingChannelError struct {
	Channel string
}

func (e *MissingChannelError) Error() string {
	return fmt.Sprintf("required channel %q missing from input", e.Channel)
}

// Row is one unified per-sample record on the reference timeline.
// Values holds only the channels that matched within the join window;
// an absent channel stays absent, never zero.
type Row struct {
	CycleID   int
	Timestamp int64
	FlowRate  float64
	Values    map[string]float64
}

// Value returns the channel value for the row and whether it was
// present after alignment.
func (r *Row) Value(channel string) (float64, bool) {
	v, ok := r.Values[channel]
	return v, ok
}

// CheckChannels verifies that every required channel is present and
// non-empty. Returns a MissingChannelError for the first gap found.
func CheckChannels(channels map[string][]Sample) error {
	for _, name := range RequiredChannels {
		if len(channels[name]) == 0 {
			return &MissingChannelError{Channel: name}
		}
	}
	return nil
}

// GroupByCycle splits aligned rows into per-cycle groups, ordered by
// ascending cycle id. Rows within a group keep their input order.
func GroupByCycle(rows []Row) map[int][]Row {
	groups := make(map[int][]Row)
	for _, row := range rows {
		groups[row.CycleID] = append(groups[row.CycleID], row)
	}
	return groups
}

// CycleIDs returns the sorted cycle ids present in the grouped rows.
func CycleIDs(groups map[int][]Row) []int {
	ids := make([]int, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
