package overlap

import (
	"fmt"
	"math"
	"strconv"
)

const (
	// DefaultMinParticipants is the fixed minimum used when a caller does not
	// size the threshold from the group roster.
	DefaultMinParticipants = 2
	// DefaultQuorum is the share of the group that must be free when the
	// threshold is sized from the roster.
	DefaultQuorum = 0.75
)

type thresholdMode int

const (
	thresholdUnset thresholdMode = iota
	thresholdFixed
	thresholdFraction
)

// Threshold is the minimum number of simultaneously free members, either a
// fixed count or a share of the group. The zero value is unset and rejected.
type Threshold struct {
	mode     thresholdMode
	count    int
	fraction float64
}

// AtLeast requires n members.
func AtLeast(n int) Threshold {
	return Threshold{mode: thresholdFixed, count: n}
}

// Fraction requires ceil(f * group size) members.
func Fraction(f float64) Threshold {
	return Threshold{mode: thresholdFraction, fraction: f}
}

// Resolve returns the member count the threshold demands for a group of
// groupSize. groupSize is only consulted by fractional thresholds.
func (t Threshold) Resolve(groupSize int) (int, error) {
	switch t.mode {
	case thresholdFixed:
		if t.count <= 0 {
			return 0, fmt.Errorf("%w: min participants must be positive, got %d", ErrInvalidArgument, t.count)
		}
		return t.count, nil
	case thresholdFraction:
		if math.IsNaN(t.fraction) || t.fraction <= 0 || t.fraction > 1 {
			return 0, fmt.Errorf("%w: quorum must be in (0, 1], got %v", ErrInvalidArgument, t.fraction)
		}
		if groupSize <= 0 {
			return 0, fmt.Errorf("%w: quorum needs a positive group size, got %d", ErrInvalidArgument, groupSize)
		}
		// Shave float noise so 0.7*10 stays 7 instead of rounding up to 8.
		n := int(math.Ceil(t.fraction*float64(groupSize) - 1e-9))
		if n < 1 {
			n = 1
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: min participants not set", ErrInvalidArgument)
	}
}

func (t Threshold) String() string {
	switch t.mode {
	case thresholdFixed:
		return strconv.Itoa(t.count)
	case thresholdFraction:
		return strconv.FormatFloat(t.fraction*100, 'f', -1, 64) + "%"
	default:
		return "unset"
	}
}
