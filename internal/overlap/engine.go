// Package overlap finds time windows in which enough members of a group are
// free at once.
//
// Availability intervals are turned into start/end events, swept in time
// order to produce constant-membership segments, and those segments are
// shaped by a Policy, filtered and ranked. Compute is a pure function: it does
// no I/O and keeps no state between calls, so concurrent calls are safe.
package overlap

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidArgument marks a caller contract violation.
var ErrInvalidArgument = errors.New("invalid argument")

// DefaultMaxSuggestions caps the result list unless the caller says otherwise.
const DefaultMaxSuggestions = 10

// Options controls a single Compute call.
type Options struct {
	Policy          Policy
	MinParticipants Threshold
	// GroupSize is the roster size fractional thresholds are sized from.
	GroupSize   int
	MinDuration time.Duration
	// From and To restrict input to intervals touching [From, To]. Zero
	// values leave that side open.
	From           time.Time
	To             time.Time
	MaxSuggestions int
	// Location defines calendar dates for PolicyBestPerDay. Nil means UTC.
	Location *time.Location
}

// DefaultOptions returns a fixed threshold of two members, no minimum
// duration and ten suggestions, one per day.
func DefaultOptions() Options {
	return Options{
		Policy:          PolicyBestPerDay,
		MinParticipants: AtLeast(DefaultMinParticipants),
		MaxSuggestions:  DefaultMaxSuggestions,
		Location:        time.UTC,
	}
}

func (o Options) validate() (int, error) {
	if !o.Policy.valid() {
		return 0, fmt.Errorf("%w: unknown policy %d", ErrInvalidArgument, int(o.Policy))
	}
	minCount, err := o.MinParticipants.Resolve(o.GroupSize)
	if err != nil {
		return 0, err
	}
	if o.MaxSuggestions <= 0 {
		return 0, fmt.Errorf("%w: max suggestions must be positive, got %d", ErrInvalidArgument, o.MaxSuggestions)
	}
	if o.MinDuration < 0 {
		return 0, fmt.Errorf("%w: negative min duration %s", ErrInvalidArgument, o.MinDuration)
	}
	if !o.From.IsZero() && !o.To.IsZero() && o.From.After(o.To) {
		return 0, fmt.Errorf("%w: range start %s is after end %s", ErrInvalidArgument,
			o.From.Format(time.RFC3339), o.To.Format(time.RFC3339))
	}
	return minCount, nil
}

// Result is the outcome of one Compute call.
type Result struct {
	Suggestions []Suggestion
	// MinParticipants is the resolved member threshold.
	MinParticipants int
	// Dropped counts intervals skipped for ending at or before their start.
	Dropped int
	// Candidates counts the windows produced before filtering and ranking.
	Candidates int
}

// Compute returns the ranked suggestions for intervals under opts. Member
// display data is looked up in roster and never interpreted.
func Compute(intervals []Interval, roster Roster, opts Options) (*Result, error) {
	minCount, err := opts.validate()
	if err != nil {
		return nil, err
	}

	res := &Result{Suggestions: []Suggestion{}, MinParticipants: minCount}
	if len(intervals) == 0 {
		return res, nil
	}

	var cands []candidate
	switch opts.Policy {
	case PolicyBestPerDay:
		days, dropped := NormalizeByDay(intervals, opts.From, opts.To, opts.Location)
		res.Dropped = dropped
		for _, day := range days {
			windows := Sweep(day.Events)
			res.Candidates += len(windows)
			if best, ok := bestWindow(windows, minCount, opts.MinDuration); ok {
				cands = append(cands, candidate{Window: best, date: day.Date})
			}
		}
	default:
		events, dropped := Normalize(intervals, opts.From, opts.To)
		res.Dropped = dropped
		if len(events) == 0 {
			return res, nil
		}
		windows := Sweep(events)
		res.Candidates = len(windows)
		if opts.Policy == PolicyMergedWindows {
			windows = mergeAdjacent(filterByCount(windows, minCount), minCount)
		}
		cands = make([]candidate, 0, len(windows))
		for _, w := range windows {
			cands = append(cands, candidate{Window: w})
		}
	}

	for _, c := range rank(cands, minCount, opts.MinDuration, opts.MaxSuggestions) {
		res.Suggestions = append(res.Suggestions, newSuggestion(c.Window, roster, c.date))
	}
	return res, nil
}

func filterByCount(windows []Window, minCount int) []Window {
	kept := make([]Window, 0, len(windows))
	for _, w := range windows {
		if w.Count() >= minCount {
			kept = append(kept, w)
		}
	}
	return kept
}
