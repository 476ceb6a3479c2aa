package network

import (
	"fmt"
	"strings"
	"time"

	"github.com/ProDevCodePoland/ringrtc/internal/apperr"
)

// Schedule resolves a profile into the ordered impairment timeline for a call of
// the given duration. The result always starts at offset 0 and its offsets are
// strictly increasing and below callDuration.
//
// Custom profiles are validated, never reordered: unsorted or duplicate offsets
// and offsets past the end of the call are configuration errors. Generated
// preset timelines are clamped to the call.
func Schedule(p Profile, callDuration time.Duration) ([]NetworkConfigWithOffset, error) {
	if p == nil {
		return nil, apperr.NewConfiguration("network profile is nil")
	}
	if callDuration <= 0 {
		return nil, apperr.NewConfiguration(fmt.Sprintf("profile %q: call duration must be positive, got %s", p.Label(), callDuration))
	}

	switch v := p.(type) {
	case LimitedBandwidth:
		if v.Kbps <= 0 {
			return nil, apperr.NewConfiguration(fmt.Sprintf("profile %q: bandwidth must be positive, got %dkbps", p.Label(), v.Kbps))
		}
	case SimpleLoss:
		if v.Percent < 0 || v.Percent > 100 {
			return nil, apperr.NewConfiguration(fmt.Sprintf("profile %q: loss must be within 0-100%%, got %d%%", p.Label(), v.Percent))
		}
	}

	entries := p.entries(callDuration)
	for _, e := range entries {
		if err := e.NetworkConfig.Validate(); err != nil {
			return nil, apperr.NewConfiguration(fmt.Sprintf("profile %q: entry at %s: %s", p.Label(), e.Offset, err))
		}
	}

	if custom, ok := p.(Custom); ok {
		if err := validateCustom(custom, callDuration); err != nil {
			return nil, err
		}
		if len(entries) == 0 || entries[0].Offset > 0 {
			entries = append([]NetworkConfigWithOffset{{Offset: 0}}, entries...)
		}
		return entries, nil
	}

	clamped := entries[:0]
	for _, e := range entries {
		if e.Offset < callDuration {
			clamped = append(clamped, e)
		}
	}
	return clamped, nil
}

// ValidName reports whether name can be used as a single path segment and
// result key component.
func ValidName(name string) bool {
	return name != "" && name != "." && !strings.Contains(name, "..") && !strings.ContainsAny(name, `/\`)
}

func validateCustom(p Custom, callDuration time.Duration) error {
	if p.Name == "" {
		return apperr.NewConfiguration("custom profile has no label")
	}
	if !ValidName(p.Name) {
		return apperr.NewConfiguration(fmt.Sprintf("custom profile label %q must not contain path separators or \"..\"", p.Name))
	}
	for i, e := range p.Timeline {
		if e.Offset < 0 {
			return apperr.NewConfiguration(fmt.Sprintf("custom profile %q: entry %d has negative offset %s", p.Name, i, e.Offset))
		}
		if i > 0 && e.Offset <= p.Timeline[i-1].Offset {
			return apperr.NewConfiguration(fmt.Sprintf(
				"custom profile %q: offsets must be strictly increasing, entry %d (%s) follows %s",
				p.Name, i, e.Offset, p.Timeline[i-1].Offset))
		}
		if e.Offset >= callDuration {
			return apperr.NewConfiguration(fmt.Sprintf(
				"custom profile %q: offset %s is outside the %s call", p.Name, e.Offset, callDuration))
		}
	}
	return nil
}

// Boundaries returns the timeline offsets, the points where network conditions change.
func Boundaries(timeline []NetworkConfigWithOffset) []time.Duration {
	out := make([]time.Duration, len(timeline))
	for i, e := range timeline {
		out[i] = e.Offset
	}
	return out
}
