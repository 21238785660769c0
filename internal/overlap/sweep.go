package overlap

import (
	"sort"
	"time"
)

// sortEvents orders events by time, with ends before starts at the same
// instant so that back-to-back intervals never count as overlapping.
func sortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Time.Equal(events[j].Time) {
			return events[i].Time.Before(events[j].Time)
		}
		return events[i].Kind < events[j].Kind
	})
}

// Sweep walks the events in time order and returns the maximal spans during
// which the set of free members stays constant. The input slice is not
// modified.
func Sweep(events []Event) []Window {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sortEvents(sorted)

	// A member may hold several overlapping intervals, so coverage is counted.
	active := make(map[string]int)
	var windows []Window
	var prev time.Time
	started := false

	for _, ev := range sorted {
		if started && len(active) > 0 && prev.Before(ev.Time) {
			windows = append(windows, Window{
				Start:     prev,
				End:       ev.Time,
				MemberIDs: activeIDs(active),
			})
		}

		switch ev.Kind {
		case KindStart:
			active[ev.MemberID]++
		case KindEnd:
			if active[ev.MemberID] <= 1 {
				delete(active, ev.MemberID)
			} else {
				active[ev.MemberID]--
			}
		}

		prev = ev.Time
		started = true
	}
	return windows
}

func activeIDs(active map[string]int) []string {
	ids := make([]string, 0, len(active))
	for id := range active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
