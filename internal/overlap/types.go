package overlap

import (
	"math"
	"time"
)

// Interval is one contiguous block during which a member is free.
type Interval struct {
	MemberID string
	Start    time.Time
	End      time.Time
}

// Valid reports whether the interval has a positive length.
func (iv Interval) Valid() bool {
	return iv.End.After(iv.Start)
}

// Kind is the boundary type of an Event. Ends order before starts.
type Kind int

const (
	KindEnd Kind = iota
	KindStart
)

func (k Kind) String() string {
	if k == KindStart {
		return "START"
	}
	return "END"
}

// Event is a start or end boundary derived from an Interval.
type Event struct {
	Time     time.Time
	Kind     Kind
	MemberID string
}

// Window is a span during which exactly MemberIDs are free. MemberIDs is sorted.
type Window struct {
	Start     time.Time
	End       time.Time
	MemberIDs []string
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

func (w Window) Count() int {
	return len(w.MemberIDs)
}

// Member carries display attributes the engine passes through untouched.
type Member struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Image string `json:"image,omitempty"`
}

// Roster resolves member IDs to display data.
type Roster map[string]Member

// Lookup returns the roster entry for id, or an ID-only member.
func (r Roster) Lookup(id string) Member {
	if m, ok := r[id]; ok {
		if m.ID == "" {
			m.ID = id
		}
		return m
	}
	return Member{ID: id}
}

// Suggestion is a ranked window annotated for rendering.
type Suggestion struct {
	Date            string    `json:"date,omitempty"`
	Start           time.Time `json:"startDateTime"`
	End             time.Time `json:"endDateTime"`
	PlayerCount     int       `json:"playerCount"`
	DurationMinutes float64   `json:"durationMinutes"`
	MemberIDs       []string  `json:"-"`
	Members         []Member  `json:"availablePlayers"`
}

func (s Suggestion) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

func newSuggestion(w Window, roster Roster, date string) Suggestion {
	members := make([]Member, 0, len(w.MemberIDs))
	for _, id := range w.MemberIDs {
		members = append(members, roster.Lookup(id))
	}
	ids := make([]string, len(w.MemberIDs))
	copy(ids, w.MemberIDs)
	return Suggestion{
		Date:            date,
		Start:           w.Start,
		End:             w.End,
		PlayerCount:     len(ids),
		DurationMinutes: math.Round(w.Duration().Minutes()*100) / 100,
		MemberIDs:       ids,
		Members:         members,
	}
}
