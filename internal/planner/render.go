package planner

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"quorum/internal/overlap"
)

// RenderText writes suggestions as an aligned table with times in loc.
func RenderText(w io.Writer, suggestions []overlap.Suggestion, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	if len(suggestions) == 0 {
		_, err := fmt.Fprintln(w, "No window with enough free members.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSTART\tEND\tDURATION\tPLAYERS\tMEMBERS")
	for i, s := range suggestions {
		names := make([]string, 0, len(s.Members))
		for _, m := range s.Members {
			names = append(names, memberLabel(m))
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n",
			i+1,
			s.Start.In(loc).Format("Mon 2006-01-02 15:04"),
			endLabel(s.Start.In(loc), s.End.In(loc)),
			s.Duration().Round(time.Minute),
			s.PlayerCount,
			strings.Join(names, ", "))
	}
	return tw.Flush()
}

// RenderJSON writes v, usually a suggestion or member list, as indented JSON.
func RenderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

// endLabel omits the date when the window ends on the day it starts.
func endLabel(start, end time.Time) string {
	if start.Year() == end.Year() && start.YearDay() == end.YearDay() {
		return end.Format("15:04")
	}
	return end.Format("Mon 2006-01-02 15:04")
}

func memberLabel(m overlap.Member) string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}
