package audio

import (
	"sort"
	"time"
)

// Segment is a slice of the recorded call and the matching slice of the looped
// reference.
type Segment struct {
	Start     time.Duration
	Length    time.Duration
	RefOffset time.Duration
}

// Segments partitions a call of the given duration at every profile boundary and
// at every multiple of the reference length, so that no segment spans a network
// change or a wrap of the looped reference. Segments are ordered by start time.
func Segments(callDuration, referenceLength time.Duration, boundaries []time.Duration) []Segment {
	if callDuration <= 0 || referenceLength <= 0 {
		return nil
	}

	cuts := map[time.Duration]bool{0: true}
	for _, b := range boundaries {
		if b > 0 && b < callDuration {
			cuts[b] = true
		}
	}
	for t := referenceLength; t < callDuration; t += referenceLength {
		cuts[t] = true
	}

	starts := make([]time.Duration, 0, len(cuts))
	for t := range cuts {
		starts = append(starts, t)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	out := make([]Segment, len(starts))
	for i, s := range starts {
		end := callDuration
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		out[i] = Segment{Start: s, Length: end - s, RefOffset: s % referenceLength}
	}
	return out
}
