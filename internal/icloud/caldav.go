package icloud

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"sync"
	"time"

	"quorum/internal/ics"
	"quorum/internal/models"
	"quorum/internal/overlap"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
)

const (
	// DefaultEndpoint is iCloud's CalDAV root.
	DefaultEndpoint = "https://caldav.icloud.com/"
)

// customTransport handles adding Basic Auth and custom headers to requests.
type customTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "quorum/1.0")
	return t.Transport.RoundTrip(req)
}

// CalDAVClient reads availability calendars from a CalDAV server and writes
// suggestions back to one.
type CalDAVClient struct {
	caldavClient *caldav.Client
	webdavClient *webdav.Client
	logger       *slog.Logger
	endpoint     string
	location     *time.Location

	mu        sync.Mutex
	calendars map[string]string // name -> collection path
}

// NewClient creates a CalDAV client. An empty endpoint means iCloud.
func NewClient(logger *slog.Logger, endpoint, username, password string, loc *time.Location) (*CalDAVClient, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if loc == nil {
		loc = time.UTC
	}
	transport := &customTransport{
		Username:  username,
		Password:  password,
		Transport: http.DefaultTransport,
	}
	httpClient := &http.Client{Transport: transport, Timeout: 30 * time.Second}

	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	webdavClient, err := webdav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}

	return &CalDAVClient{
		caldavClient: caldavClient,
		webdavClient: webdavClient,
		logger:       logger,
		endpoint:     endpoint,
		location:     loc,
		calendars:    make(map[string]string),
	}, nil
}

// FetchAvailability returns the free blocks stored in the named calendar that
// touch [from, to].
func (c *CalDAVClient) FetchAvailability(ctx context.Context, calendarName, memberID string, from, to time.Time) ([]*models.Block, error) {
	calendarPath, err := c.calendarPath(ctx, calendarName)
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name: ical.CompCalendar,
			Comps: []caldav.CalendarCompRequest{{
				Name: ical.CompEvent,
				Props: []string{
					ical.PropUID,
					ical.PropSummary,
					ical.PropStatus,
					ical.PropDateTimeStart,
					ical.PropDateTimeEnd,
					ical.PropDuration,
					ical.PropRecurrenceRule,
					ical.PropRecurrenceDates,
					ical.PropExceptionDates,
				},
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: from,
				End:   to,
			}},
		},
	}

	c.logger.Debug("Querying CalDAV calendar", "calendar", calendarName, "from", from, "to", to)
	objects, err := c.caldavClient.QueryCalendar(ctx, calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar '%s': %w", calendarName, err)
	}

	opts := ics.ReadOptions{
		MemberID: memberID,
		Source:   "caldav:" + calendarName,
		Location: c.location,
		From:     from,
		To:       to,
	}
	var blocks []*models.Block
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		blocks = append(blocks, ics.BlocksFromCalendar(obj.Data, opts)...)
	}

	c.logger.Info("Successfully fetched availability from CalDAV", "calendar", calendarName, "count", len(blocks))
	return blocks, nil
}

// PublishSuggestion creates or replaces the suggestion's event in the named
// calendar and returns its UID.
func (c *CalDAVClient) PublishSuggestion(ctx context.Context, calendarName string, s overlap.Suggestion) (string, error) {
	calendarPath, err := c.calendarPath(ctx, calendarName)
	if err != nil {
		return "", err
	}

	uid := ics.SuggestionUID(s)
	c.logger.Debug("Publishing suggestion", "start", s.Start, "end", s.End, "uid", uid)

	cal := ics.NewCalendar(ics.SuggestionEvent(s, time.Now()))
	objectPath := eventPath(calendarPath, uid)

	writer, err := c.webdavClient.Create(ctx, objectPath)
	if err != nil {
		return "", fmt.Errorf("failed to create event on CalDAV server: %w", err)
	}
	if err := ical.NewEncoder(writer).Encode(cal); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to encode event to iCal format: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to upload event: %w", err)
	}

	c.logger.Info("Successfully published suggestion", "start", s.Start, "players", s.PlayerCount)
	return uid, nil
}

// RetractSuggestion deletes a previously published suggestion by UID.
func (c *CalDAVClient) RetractSuggestion(ctx context.Context, calendarName, uid string) error {
	calendarPath, err := c.calendarPath(ctx, calendarName)
	if err != nil {
		return err
	}
	if err := c.webdavClient.RemoveAll(ctx, eventPath(calendarPath, uid)); err != nil {
		return fmt.Errorf("failed to remove event %s: %w", uid, err)
	}
	c.logger.Info("Retracted stale suggestion", "uid", uid)
	return nil
}

func eventPath(calendarPath, uid string) string {
	return path.Join(calendarPath, fmt.Sprintf("%s.ics", uid))
}

// calendarPath resolves and caches the collection path of a calendar by
// display name.
func (c *CalDAVClient) calendarPath(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if u, ok := c.calendars[name]; ok {
		return u, nil
	}

	c.logger.Info("Finding CalDAV calendar", "calendarName", name)
	u, err := c.findCalendar(ctx, name)
	if err != nil {
		return "", fmt.Errorf("could not find calendar '%s': %w", name, err)
	}
	c.calendars[name] = u
	c.logger.Info("Successfully found CalDAV calendar", "path", u, "endpoint", c.endpoint)
	return u, nil
}

// findCalendar discovers the user's calendars and returns the path of the one with the matching name.
func (c *CalDAVClient) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := c.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := c.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := c.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}

	return "", fmt.Errorf("no calendar found with name '%s'", name)
}
