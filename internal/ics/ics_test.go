package ics

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"quorum/internal/overlap"

	"github.com/emersion/go-ical"
)

const availabilityFixture = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:free-monday
DTSTAMP:20250301T000000Z
SUMMARY:Free
DTSTART:20250310T090000Z
DTEND:20250310T120000Z
END:VEVENT
BEGIN:VEVENT
UID:cancelled
DTSTAMP:20250301T000000Z
STATUS:CANCELLED
DTSTART:20250310T130000Z
DTEND:20250310T140000Z
END:VEVENT
BEGIN:VEVENT
UID:by-duration
DTSTAMP:20250301T000000Z
DTSTART:20250311T180000Z
DURATION:PT2H
END:VEVENT
BEGIN:VEVENT
UID:floating
DTSTAMP:20250301T000000Z
DTSTART:20250312T100000
DTEND:20250312T110000
END:VEVENT
END:VCALENDAR
`

const weeklyFixture = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:weekly
DTSTAMP:20250301T000000Z
DTSTART:20250304T190000Z
DTEND:20250304T220000Z
RRULE:FREQ=WEEKLY;COUNT=6
END:VEVENT
END:VCALENDAR
`

func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func TestReadAvailability(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	blocks, err := ReadAvailability(strings.NewReader(crlf(availabilityFixture)), ReadOptions{
		MemberID: "alice",
		Source:   "test",
		Location: loc,
	})
	if err != nil {
		t.Fatalf("ReadAvailability() unexpected error: %v", err)
	}
	if len(blocks) != 3 {
		t.Fatalf("got %d blocks, want 3 (cancelled skipped): %+v", len(blocks), blocks)
	}

	byUID := map[string][2]time.Time{}
	for _, b := range blocks {
		if b.MemberID != "alice" || b.Source != "test" {
			t.Fatalf("block %+v lost member or source", b)
		}
		byUID[b.UID] = [2]time.Time{b.Start, b.End}
	}

	want := map[string][2]time.Time{
		"free-monday": {
			time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
			time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		},
		"by-duration": {
			time.Date(2025, 3, 11, 18, 0, 0, 0, time.UTC),
			time.Date(2025, 3, 11, 20, 0, 0, 0, time.UTC),
		},
		"floating": {
			time.Date(2025, 3, 12, 10, 0, 0, 0, loc),
			time.Date(2025, 3, 12, 11, 0, 0, 0, loc),
		},
	}
	for uid, span := range want {
		got, ok := byUID[uid]
		if !ok {
			t.Fatalf("missing block %q", uid)
		}
		if !got[0].Equal(span[0]) || !got[1].Equal(span[1]) {
			t.Fatalf("block %q = %s..%s, want %s..%s", uid, got[0], got[1], span[0], span[1])
		}
	}
}

func TestReadAvailability_ExpandsRecurrenceWithinBounds(t *testing.T) {
	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 24, 0, 0, 0, 0, time.UTC)

	blocks, err := ReadAvailability(strings.NewReader(crlf(weeklyFixture)), ReadOptions{
		MemberID: "bob",
		From:     from,
		To:       to,
	})
	if err != nil {
		t.Fatalf("ReadAvailability() unexpected error: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("got %d occurrences, want 2 (Mar 11 and Mar 18): %+v", len(blocks), blocks)
	}
	for i, day := range []int{11, 18} {
		wantStart := time.Date(2025, 3, day, 19, 0, 0, 0, time.UTC)
		if !blocks[i].Start.Equal(wantStart) || blocks[i].End.Sub(blocks[i].Start) != 3*time.Hour {
			t.Fatalf("occurrence %d = %s..%s, want 3h from %s", i, blocks[i].Start, blocks[i].End, wantStart)
		}
	}
	if blocks[0].ID == blocks[1].ID {
		t.Fatalf("occurrences share ID %q", blocks[0].ID)
	}
}

func TestReadAvailabilityFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alice.ics")
	if err := os.WriteFile(path, []byte(crlf(availabilityFixture)), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	blocks, err := ReadAvailabilityFile(path, ReadOptions{MemberID: "alice"})
	if err != nil {
		t.Fatalf("ReadAvailabilityFile() unexpected error: %v", err)
	}
	if len(blocks) == 0 || blocks[0].Source != "ics:"+path {
		t.Fatalf("blocks = %+v, want source ics:%s", blocks, path)
	}

	if _, err := ReadAvailabilityFile(filepath.Join(t.TempDir(), "missing.ics"), ReadOptions{}); err == nil {
		t.Fatalf("expected error for a missing file")
	}
}

func testSuggestion() overlap.Suggestion {
	return overlap.Suggestion{
		Start:       time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		End:         time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		PlayerCount: 2,
		MemberIDs:   []string{"alice", "bob"},
		Members: []overlap.Member{
			{ID: "alice", Name: "Alice", Email: "alice@example.com"},
			{ID: "bob"},
		},
	}
}

func TestSuggestionUID_Stable(t *testing.T) {
	a, b := testSuggestion(), testSuggestion()
	if SuggestionUID(a) != SuggestionUID(b) {
		t.Fatalf("equal suggestions got different UIDs")
	}
	b.MemberIDs = []string{"alice"}
	if SuggestionUID(a) == SuggestionUID(b) {
		t.Fatalf("different member sets share UID %s", SuggestionUID(a))
	}
}

func TestEncodeSuggestions_RoundTrip(t *testing.T) {
	s := testSuggestion()
	stamp := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	if err := EncodeSuggestions(&buf, []overlap.Suggestion{s}, stamp); err != nil {
		t.Fatalf("EncodeSuggestions() unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"PRODID:" + ProductID,
		"SUMMARY:2 players available",
		"UID:" + SuggestionUID(s),
		"mailto:alice@example.com",
		"Available: Alice\\, bob",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("encoded calendar lacks %q:\n%s", want, out)
		}
	}

	blocks, err := ReadAvailability(&buf, ReadOptions{MemberID: "group"})
	if err != nil {
		t.Fatalf("re-reading encoded calendar: %v", err)
	}
	if len(blocks) != 1 || !blocks[0].Start.Equal(s.Start) || !blocks[0].End.Equal(s.End) {
		t.Fatalf("round trip = %+v, want one block %s..%s", blocks, s.Start, s.End)
	}
}

func TestEncodeSuggestions_EmptyIsValidCalendar(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeSuggestions(&buf, nil, time.Now()); err != nil {
		t.Fatalf("EncodeSuggestions(nil) unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:" + ProductID, "BEGIN:VTIMEZONE", "TZID:UTC"} {
		if !strings.Contains(out, want) {
			t.Fatalf("empty calendar lacks %q:\n%s", want, out)
		}
	}

	cal, err := ical.NewDecoder(&buf).Decode()
	if err != nil {
		t.Fatalf("empty calendar does not decode: %v", err)
	}
	if events := cal.Events(); len(events) != 0 {
		t.Fatalf("empty calendar has %d events", len(events))
	}
}
