package planner

import (
	"context"
	"time"

	"quorum/internal/google"
	"quorum/internal/icloud"
	"quorum/internal/ics"
	"quorum/internal/models"
	"quorum/internal/postgres"
)

// Source yields free-time blocks touching [from, to].
type Source interface {
	Name() string
	Fetch(ctx context.Context, from, to time.Time) ([]*models.Block, error)
}

// Directory yields the members of a group.
type Directory interface {
	Members(ctx context.Context) ([]models.Member, error)
}

// ICSFileSource reads one member's availability from an .ics file.
type ICSFileSource struct {
	Path     string
	MemberID string
	Location *time.Location
}

func (s *ICSFileSource) Name() string { return "ics:" + s.Path }

func (s *ICSFileSource) Fetch(_ context.Context, from, to time.Time) ([]*models.Block, error) {
	return ics.ReadAvailabilityFile(s.Path, ics.ReadOptions{
		MemberID: s.MemberID,
		Location: s.Location,
		From:     from,
		To:       to,
	})
}

// CalDAVSource reads one member's availability calendar over CalDAV.
type CalDAVSource struct {
	Client   *icloud.CalDAVClient
	Calendar string
	MemberID string
}

func (s *CalDAVSource) Name() string { return "caldav:" + s.Calendar }

func (s *CalDAVSource) Fetch(ctx context.Context, from, to time.Time) ([]*models.Block, error) {
	return s.Client.FetchAvailability(ctx, s.Calendar, s.MemberID, from, to)
}

// GoogleSource reads one member's availability calendar from Google.
type GoogleSource struct {
	Client     *google.CalendarClient
	CalendarID string
	MemberID   string
}

func (s *GoogleSource) Name() string {
	return "google:" + s.Client.Account() + "/" + s.CalendarID
}

func (s *GoogleSource) Fetch(ctx context.Context, from, to time.Time) ([]*models.Block, error) {
	return s.Client.GetAvailability(ctx, s.CalendarID, s.MemberID, from, to)
}

// StoreSource reads a whole group's availability and roster from the database.
type StoreSource struct {
	Repo    *postgres.AvailabilityRepo
	GroupID string
}

func (s *StoreSource) Name() string { return "postgres:" + s.GroupID }

func (s *StoreSource) Fetch(ctx context.Context, from, to time.Time) ([]*models.Block, error) {
	return s.Repo.ListGroupAvailability(ctx, s.GroupID, from, to)
}

func (s *StoreSource) Members(ctx context.Context) ([]models.Member, error) {
	return s.Repo.ListGroupMembers(ctx, s.GroupID)
}
