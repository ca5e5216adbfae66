package series

// SegmentResult carries the per-sample cycle ids plus bookkeeping the
// caller may want to report.
type SegmentResult struct {
	CycleIDs []int
	// NegativeSamples counts flow-rate readings below zero. Negative
	// flow is physically unexpected here; such samples are treated
	// like positive flow (they clear the new-cycle latch) and the
	// caller should warn when the count is non-zero.
	NegativeSamples int
}

// Segment assigns a cycle id to every reference sample in one
// left-to-right pass. A cycle begins when the flow rate drops to
// exactly zero after having been flowing; consecutive zero samples
// belong to the same shut-in because the latch holds until flow
// resumes. A leading zero sample starts cycle 0 immediately. Samples
// before the first zero carry cycle id -1.
func Segment(reference []Sample) SegmentResult {
	result := SegmentResult{CycleIDs: make([]int, len(reference))}

	cycleID := -1
	inNewCycle := false

	for i, s := range reference {
		switch {
		case s.Value == 0.0 && !inNewCycle:
			cycleID++
			inNewCycle = true
		case s.Value > 0.0:
			inNewCycle = false
		case s.Value < 0.0:
			result.NegativeSamples++
			inNewCycle = false
		}
		result.CycleIDs[i] = cycleID
	}

	return result
}

// ApplyCycleIDs copies segmenter output onto aligned rows. Both
// slices come from the same reference series, so lengths must match.
func ApplyCycleIDs(rows []Row, cycleIDs []int) {
	for i := range rows {
		rows[i].CycleID = cycleIDs[i]
	}
}

// TrimLeading clips every channel so they all start at the same
// physical instant: the first zero-crossing of the unclipped flow-rate
// signal. Flow samples before that crossing are dropped, and the other
// channels drop samples older than the timestamp of the sample just
// before the crossing plus a 60-second slack. A flow series that
// already starts at zero is returned untouched.
func TrimLeading(channels map[string][]Sample) map[string][]Sample {
	flow := channels[ChannelFlowRate]

	var threshold int64
	clipped := false
	for i, s := range flow {
		if s.Value != 0.0 {
			continue
		}
		if i == 0 {
			break // already clean
		}
		threshold = flow[i-1].Timestamp + 60
		trimmed := make(map[string][]Sample, len(channels))
		for name, samples := range channels {
			trimmed[name] = samples
		}
		trimmed[ChannelFlowRate] = flow[i:]
		channels = trimmed
		clipped = true
		break
	}

	if !clipped {
		return channels
	}

	for name, samples := range channels {
		if name == ChannelFlowRate {
			continue
		}
		for i, s := range samples {
			if s.Timestamp >= threshold {
				channels[name] = samples[i:]
				break
			}
		}
	}

	return channels
}
