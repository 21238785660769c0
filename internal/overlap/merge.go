package overlap

import "time"

// mergeAdjacent joins back-to-back windows while the members common to all of
// them still number at least minCount. Each merged window keeps only that common
// set. Windows are expected in time order, already filtered by minCount.
func mergeAdjacent(windows []Window, minCount int) []Window {
	merged := make([]Window, 0, len(windows))
	i := 0
	for i < len(windows) {
		cur := windows[i]
		common := cur.MemberIDs
		end := cur.End

		j := i + 1
		for ; j < len(windows); j++ {
			next := windows[j]
			if !end.Equal(next.Start) {
				break
			}
			shared := intersect(common, next.MemberIDs)
			if len(shared) < minCount {
				break
			}
			common = shared
			end = next.End
		}

		merged = append(merged, Window{Start: cur.Start, End: end, MemberIDs: common})
		i = j
	}
	return merged
}

// bestWindow picks the window with the most members, then the longest, among
// those meeting both thresholds. The earliest wins a full tie.
func bestWindow(windows []Window, minCount int, minDuration time.Duration) (Window, bool) {
	var best Window
	found := false
	for _, w := range windows {
		if w.Count() < minCount || w.Duration() < minDuration {
			continue
		}
		if !found ||
			w.Count() > best.Count() ||
			(w.Count() == best.Count() && w.Duration() > best.Duration()) {
			best = w
			found = true
		}
	}
	return best, found
}

// intersect returns the IDs present in both sorted slices.
func intersect(a, b []string) []string {
	out := make([]string, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}
