package ics

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"quorum/internal/overlap"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
)

// ProductID identifies calendars written by quorum.
const ProductID = "-//quorum//EN"

// suggestionNamespace scopes name-based suggestion UIDs.
var suggestionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://quorum.local/suggestions"))

// SuggestionKey identifies a suggestion by its span and members, so the same
// window found on a later run maps to the same key.
func SuggestionKey(s overlap.Suggestion) string {
	return fmt.Sprintf("%s/%s/%s",
		s.Start.UTC().Format(time.RFC3339),
		s.End.UTC().Format(time.RFC3339),
		strings.Join(s.MemberIDs, ","))
}

// SuggestionUID derives a stable iCalendar UID from SuggestionKey.
func SuggestionUID(s overlap.Suggestion) string {
	return uuid.NewSHA1(suggestionNamespace, []byte(SuggestionKey(s))).String()
}

// SuggestionEvent renders a suggestion as a VEVENT.
func SuggestionEvent(s overlap.Suggestion, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, SuggestionUID(s))
	ve.Props.SetText(ical.PropSummary, fmt.Sprintf("%d players available", s.PlayerCount))
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, s.Start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, s.End.UTC())
	ve.Props.SetText(ical.PropTransparency, "TRANSPARENT")

	names := make([]string, 0, len(s.Members))
	for _, m := range s.Members {
		names = append(names, displayName(m))
		if m.Email == "" {
			continue
		}
		p := ical.NewProp(ical.PropAttendee)
		p.Value = fmt.Sprintf("mailto:%s", m.Email)
		if m.Name != "" {
			p.Params.Set(ical.ParamCommonName, m.Name)
		}
		ve.Props.Add(p)
	}
	ve.Props.SetText(ical.PropDescription, "Available: "+strings.Join(names, ", "))
	return ve
}

// NewCalendar wraps components in a VCALENDAR with the required properties.
func NewCalendar(children ...*ical.Component) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)
	cal.Children = append(cal.Children, children...)
	return cal
}

// EncodeSuggestions writes all suggestions as one calendar. An empty list
// still yields a valid calendar, holding only a UTC VTIMEZONE, since a
// VCALENDAR needs at least one component.
func EncodeSuggestions(w io.Writer, suggestions []overlap.Suggestion, stamp time.Time) error {
	children := make([]*ical.Component, 0, len(suggestions))
	for _, s := range suggestions {
		children = append(children, SuggestionEvent(s, stamp))
	}
	if len(children) == 0 {
		children = append(children, utcTimezone())
	}
	if err := ical.NewEncoder(w).Encode(NewCalendar(children...)); err != nil {
		return fmt.Errorf("failed to encode suggestions to iCal format: %w", err)
	}
	return nil
}

func utcTimezone() *ical.Component {
	standard := ical.NewComponent(ical.CompTimezoneStandard)
	dtstart := ical.NewProp(ical.PropDateTimeStart)
	dtstart.Value = "19700101T000000"
	standard.Props.Set(dtstart)
	standard.Props.SetText(ical.PropTimezoneOffsetFrom, "+0000")
	standard.Props.SetText(ical.PropTimezoneOffsetTo, "+0000")

	tz := ical.NewComponent(ical.CompTimezone)
	tz.Props.SetText(ical.PropTimezoneID, "UTC")
	tz.Children = append(tz.Children, standard)
	return tz
}

// WriteSuggestionsFile writes suggestions to an .ics file at path.
func WriteSuggestionsFile(path string, suggestions []overlap.Suggestion, stamp time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create calendar file: %w", err)
	}
	if err := EncodeSuggestions(f, suggestions, stamp); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func displayName(m overlap.Member) string {
	switch {
	case m.Name != "":
		return m.Name
	case m.Email != "":
		return m.Email
	default:
		return m.ID
	}
}
