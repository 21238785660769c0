package overlap

import (
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

// DayEvents holds the boundary events of one calendar date.
type DayEvents struct {
	Date   string
	Events []Event
}

// inRange reports whether iv touches [from, to]. Zero bounds are open.
func inRange(iv Interval, from, to time.Time) bool {
	if !from.IsZero() && iv.End.Before(from) {
		return false
	}
	if !to.IsZero() && iv.Start.After(to) {
		return false
	}
	return true
}

// Normalize turns intervals into boundary events. Intervals with End <= Start
// are skipped and counted in dropped; intervals outside [from, to] are skipped
// silently and are not clipped when they only partially overlap it.
func Normalize(intervals []Interval, from, to time.Time) (events []Event, dropped int) {
	events = make([]Event, 0, 2*len(intervals))
	for _, iv := range intervals {
		if !iv.Valid() {
			dropped++
			continue
		}
		if !inRange(iv, from, to) {
			continue
		}
		events = append(events,
			Event{Time: iv.Start, Kind: KindStart, MemberID: iv.MemberID},
			Event{Time: iv.End, Kind: KindEnd, MemberID: iv.MemberID},
		)
	}
	return events, dropped
}

// NormalizeByDay buckets intervals by the calendar dates they touch in loc.
// Within a date each member is reduced to one span, from their earliest start
// to their latest end on that date, clipped to the date's bounds.
func NormalizeByDay(intervals []Interval, from, to time.Time, loc *time.Location) (days []DayEvents, dropped int) {
	if loc == nil {
		loc = time.UTC
	}

	spans := make(map[string]map[string]*Interval)
	for _, iv := range intervals {
		if !iv.Valid() {
			dropped++
			continue
		}
		if !inRange(iv, from, to) {
			continue
		}

		start, end := iv.Start.In(loc), iv.End.In(loc)
		y, m, d := start.Date()
		for {
			lo := dayStart(y, m, d, loc)
			if !lo.Before(end) {
				break
			}
			ny, nm, nd := nextDate(y, m, d)
			hi := dayStart(ny, nm, nd, loc)

			if s, e := latest(start, lo), earliest(end, hi); e.After(s) {
				addSpan(spans, civilDate(y, m, d), iv.MemberID, s, e)
			}
			y, m, d = ny, nm, nd
		}
	}

	keys := make([]string, 0, len(spans))
	for k := range spans {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	days = make([]DayEvents, 0, len(keys))
	for _, key := range keys {
		members := spans[key]
		ids := make([]string, 0, len(members))
		for id := range members {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		events := make([]Event, 0, 2*len(ids))
		for _, id := range ids {
			span := members[id]
			events = append(events,
				Event{Time: span.Start, Kind: KindStart, MemberID: id},
				Event{Time: span.End, Kind: KindEnd, MemberID: id},
			)
		}
		days = append(days, DayEvents{Date: key, Events: events})
	}
	return days, dropped
}

// addSpan widens the member's span on date to cover s..e.
func addSpan(spans map[string]map[string]*Interval, date, memberID string, s, e time.Time) {
	members, ok := spans[date]
	if !ok {
		members = make(map[string]*Interval)
		spans[date] = members
	}
	if existing, ok := members[memberID]; ok {
		if s.Before(existing.Start) {
			existing.Start = s
		}
		if e.After(existing.End) {
			existing.End = e
		}
		return
	}
	members[memberID] = &Interval{MemberID: memberID, Start: s, End: e}
}

// dayStart is the first instant of the date in loc. Where a clock change
// skips midnight the date begins at the transition.
func dayStart(y int, m time.Month, d int, loc *time.Location) time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if ty, tm, td := t.Date(); ty != y || tm != m || td != d {
		if _, next := t.ZoneBounds(); !next.IsZero() {
			return next
		}
	}
	return t
}

func nextDate(y int, m time.Month, d int) (int, time.Month, int) {
	return time.Date(y, m, d+1, 12, 0, 0, 0, time.UTC).Date()
}

func civilDate(y int, m time.Month, d int) string {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Format(dateLayout)
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
