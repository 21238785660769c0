package overlap

import (
	"reflect"
	"testing"
	"time"
)

func TestNormalize_TwoEventsPerValidInterval(t *testing.T) {
	intervals := []Interval{
		iv("a", 9, 0, 10, 0),
		iv("b", 10, 0, 10, 0), // zero length
		iv("c", 11, 0, 10, 0), // reversed
		iv("d", 8, 0, 17, 0),
	}

	events, dropped := Normalize(intervals, time.Time{}, time.Time{})
	if dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}
	if len(events) != 4 {
		t.Fatalf("len(events) = %d, want 4 (two per surviving interval)", len(events))
	}
	for _, ev := range events {
		if ev.MemberID == "b" || ev.MemberID == "c" {
			t.Fatalf("malformed interval of %q produced event %+v", ev.MemberID, ev)
		}
	}
}

func TestNormalize_RangeFilter(t *testing.T) {
	intervals := []Interval{
		iv("early", 6, 0, 7, 0),
		iv("edge", 7, 0, 8, 0), // ends exactly at from
		iv("inside", 9, 0, 10, 0),
		iv("late", 13, 0, 14, 0),
	}

	events, dropped := Normalize(intervals, at(8, 0), at(12, 0))
	if dropped != 0 {
		t.Fatalf("dropped = %d, want 0 (out of range is not malformed)", dropped)
	}
	got := map[string]bool{}
	for _, ev := range events {
		got[ev.MemberID] = true
	}
	want := map[string]bool{"edge": true, "inside": true}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("members kept = %v, want %v", got, want)
	}
}

func TestNormalize_Empty(t *testing.T) {
	events, dropped := Normalize(nil, time.Time{}, time.Time{})
	if len(events) != 0 || dropped != 0 {
		t.Fatalf("Normalize(nil) = %d events, %d dropped; want 0, 0", len(events), dropped)
	}
}

func TestNormalizeByDay_CollapsesMemberSpansPerDate(t *testing.T) {
	intervals := []Interval{
		iv("a", 9, 0, 10, 0),
		iv("a", 15, 0, 16, 0),
		iv("b", 12, 0, 13, 0),
	}

	days, dropped := NormalizeByDay(intervals, time.Time{}, time.Time{}, time.UTC)
	if dropped != 0 {
		t.Fatalf("dropped = %d, want 0", dropped)
	}
	if len(days) != 1 || days[0].Date != "2025-03-10" {
		t.Fatalf("days = %+v, want a single 2025-03-10 bucket", days)
	}

	want := []Event{
		{Time: at(9, 0), Kind: KindStart, MemberID: "a"},
		{Time: at(16, 0), Kind: KindEnd, MemberID: "a"},
		{Time: at(12, 0), Kind: KindStart, MemberID: "b"},
		{Time: at(13, 0), Kind: KindEnd, MemberID: "b"},
	}
	if !reflect.DeepEqual(days[0].Events, want) {
		t.Fatalf("events mismatch.\n got: %+v\nwant: %+v", days[0].Events, want)
	}
}

func TestNormalizeByDay_SplitsAcrossMidnight(t *testing.T) {
	intervals := []Interval{
		{MemberID: "a", Start: at(20, 0), End: at(20, 0).Add(30 * time.Hour)}, // until 02:00 two days later
		{MemberID: "b", Start: at(22, 0), End: at(24, 0)},                     // ends exactly at midnight
	}

	days, _ := NormalizeByDay(intervals, time.Time{}, time.Time{}, time.UTC)
	var dates []string
	for _, d := range days {
		dates = append(dates, d.Date)
	}
	wantDates := []string{"2025-03-10", "2025-03-11", "2025-03-12"}
	if !reflect.DeepEqual(dates, wantDates) {
		t.Fatalf("dates = %v, want %v", dates, wantDates)
	}

	// b must not leak into the 11th.
	for _, ev := range days[1].Events {
		if ev.MemberID == "b" {
			t.Fatalf("interval ending at midnight spilled into %s", days[1].Date)
		}
	}
	// a covers the whole middle day.
	mid := days[1].Events
	if !mid[0].Time.Equal(at(24, 0)) || !mid[1].Time.Equal(at(48, 0)) {
		t.Fatalf("middle day span = %s..%s, want full day", mid[0].Time, mid[1].Time)
	}
}

func TestNormalizeByDay_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	// 03:00-05:00 UTC is 22:00-00:00 on the previous day at UTC-5.
	intervals := []Interval{iv("a", 3, 0, 5, 0)}

	days, _ := NormalizeByDay(intervals, time.Time{}, time.Time{}, loc)
	if len(days) != 1 || days[0].Date != "2025-03-09" {
		t.Fatalf("days = %+v, want one 2025-03-09 bucket", days)
	}
}

func TestNormalizeByDay_SkippedMidnight(t *testing.T) {
	// Clocks in Sao Paulo jumped from 00:00 to 01:00 on 2018-11-04.
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Skipf("time zone data unavailable: %v", err)
	}
	utc := func(d, h, m int) time.Time { return time.Date(2018, 11, d, h, m, 0, 0, time.UTC) }

	type span struct {
		date       string
		start, end time.Time
	}
	spansOf := func(days []DayEvents) []span {
		var got []span
		for _, day := range days {
			if len(day.Events) != 2 {
				t.Fatalf("date %s has %d events, want 2", day.Date, len(day.Events))
			}
			got = append(got, span{day.Date, day.Events[0].Time.UTC(), day.Events[1].Time.UTC()})
		}
		return got
	}

	tests := []struct {
		name string
		in   Interval
		want []span
	}{
		{
			name: "afternoon stays on its own date",
			// 2018-11-04 12:00-02:00 to 2018-11-05 00:30-02:00.
			in: Interval{MemberID: "a", Start: utc(4, 14, 0), End: utc(5, 2, 30)},
			want: []span{
				{"2018-11-04", utc(4, 14, 0), utc(5, 2, 0)},
				{"2018-11-05", utc(5, 2, 0), utc(5, 2, 30)},
			},
		},
		{
			name: "day before ends at the transition",
			// 2018-11-03 22:00-03:00 to 2018-11-04 02:00-02:00.
			in: Interval{MemberID: "a", Start: utc(4, 1, 0), End: utc(4, 4, 0)},
			want: []span{
				{"2018-11-03", utc(4, 1, 0), utc(4, 3, 0)},
				{"2018-11-04", utc(4, 3, 0), utc(4, 4, 0)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days, _ := NormalizeByDay([]Interval{tt.in}, time.Time{}, time.Time{}, loc)
			got := spansOf(days)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d dates %+v, want %+v", len(got), got, tt.want)
			}
			for i := range got {
				if got[i].date != tt.want[i].date || !got[i].start.Equal(tt.want[i].start) || !got[i].end.Equal(tt.want[i].end) {
					t.Fatalf("date %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
