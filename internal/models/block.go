package models

import "time"

// Block is one stretch of free time for a group member.
// This is an internal representation, independent of any specific calendar provider.
type Block struct {
	ID       string    // Identifier at the source (e.g., Google event ID or database row ID)
	MemberID string    // Roster ID of the member who is free
	Title    string    // Summary of the source entry, if any
	Start    time.Time // Start of the free time
	End      time.Time // End of the free time
	Source   string    // Where the block came from (e.g., "ics:alice.ics", "google-primary")
	UID      string    // The iCalendar UID, when the source has one
}

// Member is a group member as shown next to suggestions.
type Member struct {
	ID    string
	Name  string
	Email string
	Image string
}
