package overlap

import (
	"fmt"
	"strings"
)

// Policy selects how candidate windows become suggestions.
type Policy int

const (
	// PolicyRawSegments ranks every constant-membership segment.
	PolicyRawSegments Policy = iota
	// PolicyBestPerDay buckets availability by date and keeps the single
	// best segment of each date.
	PolicyBestPerDay
	// PolicyMergedWindows joins back-to-back segments while enough of the
	// same members stay free.
	PolicyMergedWindows
)

var policyNames = map[Policy]string{
	PolicyRawSegments:   "raw",
	PolicyBestPerDay:    "best-per-day",
	PolicyMergedWindows: "merged",
}

func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

func (p Policy) valid() bool {
	_, ok := policyNames[p]
	return ok
}

// ParsePolicy accepts the short names ("raw", "best-per-day", "merged") and
// the upper-case forms (RAW_SEGMENTS, BEST_PER_DAY, MERGED_WINDOWS).
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "raw", "raw_segments", "raw-segments", "segments":
		return PolicyRawSegments, nil
	case "best-per-day", "best_per_day", "day", "days", "by-day":
		return PolicyBestPerDay, nil
	case "merged", "merged_windows", "merged-windows", "merge":
		return PolicyMergedWindows, nil
	}
	return 0, fmt.Errorf("%w: unknown policy %q", ErrInvalidArgument, s)
}
