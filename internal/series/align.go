package series

// Aligner joins independently sampled channels onto the reference
// channel's timeline. For every reference sample at time t, each other
// channel contributes the first sample (lowest source index) whose
// timestamp falls in [t-window, t+window). The first match wins even
// when a later sample is closer to t; downstream output depends on
// that tie-break staying exact.
type Aligner struct {
	window int64 // half-width in seconds
}

// NewAligner creates an aligner with the given join window half-width.
func NewAligner(windowSeconds int64) *Aligner {
	return &Aligner{window: windowSeconds}
}

// Align produces one Row per reference sample. The others map must
// contain every required non-reference channel; a missing one returns
// a MissingChannelError. Cycle ids are left at zero; the segmenter
// assigns them.
func (a *Aligner) Align(reference []Sample, others map[string][]Sample) ([]Row, error) {
	for _, name := range RequiredChannels {
		if name == ChannelFlowRate {
			continue
		}
		if len(others[name]) == 0 {
			return nil, &MissingChannelError{Channel: name}
		}
	}

	// Channels are time-ordered, so each scan can resume where the
	// previous window started instead of rescanning from index 0.
	cursors := make(map[string]int, len(others))

	rows := make([]Row, len(reference))
	for i, ref := range reference {
		row := Row{
			Timestamp: ref.Timestamp,
			FlowRate:  ref.Value,
			Values:    make(map[string]float64, len(others)),
		}

		lo := ref.Timestamp - a.window
		hi := ref.Timestamp + a.window // exclusive

		for name, samples := range others {
			// Advance past samples that can no longer match this or
			// any later reference timestamp.
			j := cursors[name]
			for j < len(samples) && samples[j].Timestamp < lo {
				j++
			}
			cursors[name] = j

			if j < len(samples) && samples[j].Timestamp < hi {
				row.Values[name] = samples[j].Value
			}
		}

		rows[i] = row
	}

	return rows, nil
}
