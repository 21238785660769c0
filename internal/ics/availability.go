package ics

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"quorum/internal/models"

	"github.com/emersion/go-ical"
)

// ReadOptions describes whose availability a calendar holds and which part of
// it to read.
type ReadOptions struct {
	MemberID string
	Source   string
	// Location applies to floating times without a TZID.
	Location *time.Location
	// From and To bound recurrence expansion. Recurring events are read as a
	// single occurrence when either is zero.
	From time.Time
	To   time.Time
}

// ReadAvailability decodes every calendar in r and returns one Block per free
// occurrence. Each VEVENT is a stretch of free time; cancelled events and
// events without a usable start and end are skipped.
func ReadAvailability(r io.Reader, opts ReadOptions) ([]*models.Block, error) {
	dec := ical.NewDecoder(r)
	var blocks []*models.Block
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode calendar: %w", err)
		}
		blocks = append(blocks, BlocksFromCalendar(cal, opts)...)
	}
	return blocks, nil
}

// ReadAvailabilityFile reads a member's availability from an .ics file.
func ReadAvailabilityFile(path string, opts ReadOptions) ([]*models.Block, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open calendar file: %w", err)
	}
	defer f.Close()

	if opts.Source == "" {
		opts.Source = "ics:" + path
	}
	return ReadAvailability(f, opts)
}

// BlocksFromCalendar converts the events of an already decoded calendar.
func BlocksFromCalendar(cal *ical.Calendar, opts ReadOptions) []*models.Block {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	var blocks []*models.Block
	for _, event := range cal.Events() {
		if status := event.Props.Get(ical.PropStatus); status != nil && strings.EqualFold(status.Value, "CANCELLED") {
			continue
		}

		start, err := event.DateTimeStart(loc)
		if err != nil || start.IsZero() {
			continue
		}
		end, err := event.DateTimeEnd(loc)
		if err != nil || end.IsZero() {
			continue
		}
		if !end.After(start) {
			if p := event.Props.Get(ical.PropDuration); p != nil {
				if d, err := p.Duration(); err == nil {
					end = start.Add(d)
				}
			}
		}

		uid, _ := event.Props.Text(ical.PropUID)
		summary, _ := event.Props.Text(ical.PropSummary)
		base := models.Block{
			ID:       uid,
			MemberID: opts.MemberID,
			Title:    summary,
			Start:    start,
			End:      end,
			Source:   opts.Source,
			UID:      uid,
		}

		// Occurrences that began before From but are still running count too.
		from := opts.From
		if !from.IsZero() {
			from = from.Add(-end.Sub(start))
		}
		for _, occurrence := range occurrences(event, loc, start, from, opts.To) {
			b := base
			b.Start = occurrence
			b.End = occurrence.Add(end.Sub(start))
			if !occurrence.Equal(start) {
				b.ID = fmt.Sprintf("%s@%s", uid, occurrence.UTC().Format("20060102T150405Z"))
			}
			blocks = append(blocks, &b)
		}
	}
	return blocks
}

// occurrences returns the start times of event inside [from, to]. A
// non-recurring event, or any event read without bounds, yields its own start.
func occurrences(event ical.Event, loc *time.Location, start, from, to time.Time) []time.Time {
	if from.IsZero() || to.IsZero() {
		return []time.Time{start}
	}
	set, err := event.RecurrenceSet(loc)
	if err != nil || set == nil {
		return []time.Time{start}
	}
	return set.Between(from, to, true)
}
