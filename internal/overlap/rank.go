package overlap

import (
	"sort"
	"time"
)

// candidate is a window plus the date it was chosen for, if any.
type candidate struct {
	Window
	date string
}

func filterCandidates(cands []candidate, minCount int, minDuration time.Duration) []candidate {
	kept := make([]candidate, 0, len(cands))
	for _, c := range cands {
		if c.Count() >= minCount && c.Duration() >= minDuration {
			kept = append(kept, c)
		}
	}
	return kept
}

// rankCandidates orders by member count, then duration (both descending),
// then start time ascending.
func rankCandidates(cands []candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Count() != b.Count() {
			return a.Count() > b.Count()
		}
		if a.Duration() != b.Duration() {
			return a.Duration() > b.Duration()
		}
		return a.Start.Before(b.Start)
	})
}

func rank(cands []candidate, minCount int, minDuration time.Duration, limit int) []candidate {
	kept := filterCandidates(cands, minCount, minDuration)
	rankCandidates(kept)
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}
