package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quorum/internal/models"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	credentialsFile = "credentials.json"
	tokenPrefix     = "token-"
	tokenSuffix     = ".json"
)

// CalendarClient provides a client for interacting with the Google Calendar API.
type CalendarClient struct {
	service *calendar.Service
	logger  *slog.Logger
	account string
}

// NewClient creates a new Google Calendar client for one authenticated account.
// The token is read from token-<accountName>.json inside tokenDir.
func NewClient(ctx context.Context, logger *slog.Logger, clientID, clientSecret, tokenDir, accountName string) (*CalendarClient, error) {
	config, err := getOAuthConfig(clientID, clientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}

	token, err := tokenFromFile(TokenPath(tokenDir, accountName))
	if err != nil {
		return nil, fmt.Errorf("could not load token for account %s: %w. Please run the 'auth' command first", accountName, err)
	}

	client := config.Client(ctx, token)
	service, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &CalendarClient{service: service, logger: logger, account: accountName}, nil
}

// Account is the token account this client was built for.
func (c *CalendarClient) Account() string {
	return c.account
}

// GetAvailability fetches the events of an availability calendar that touch
// [from, to] and returns them as free blocks for memberID.
func (c *CalendarClient) GetAvailability(ctx context.Context, calendarID, memberID string, from, to time.Time) ([]*models.Block, error) {
	c.logger.Debug("Fetching availability", "calendarID", calendarID, "from", from, "to", to)

	var items []*calendar.Event
	var tz string
	err := c.service.Events.List(calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		OrderBy("startTime").
		Pages(ctx, func(page *calendar.Events) error {
			tz = page.TimeZone
			items = append(items, page.Items...)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}

	loc := time.UTC
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		} else {
			c.logger.Warn("Unknown calendar time zone, using UTC", "calendarID", calendarID, "timeZone", tz)
		}
	}

	c.logger.Info("Successfully fetched events from Google Calendar", "count", len(items), "calendarID", calendarID)
	return toInternalBlocks(items, memberID, fmt.Sprintf("google-%s", calendarID), loc), nil
}

// toInternalBlocks converts Google Calendar events to free blocks. All-day
// events cover whole days in loc.
func toInternalBlocks(googleEvents []*calendar.Event, memberID, source string, loc *time.Location) []*models.Block {
	var blocks []*models.Block
	for _, item := range googleEvents {
		if item.Status == "cancelled" || item.Start == nil || item.End == nil {
			continue
		}

		start, end, ok := eventSpan(item, loc)
		if !ok {
			continue
		}

		blocks = append(blocks, &models.Block{
			ID:       item.Id,
			MemberID: memberID,
			Title:    item.Summary,
			Start:    start,
			End:      end,
			Source:   source,
			UID:      item.ICalUID, // Use the iCalendar UID when exporting
		})
	}
	return blocks
}

func eventSpan(item *calendar.Event, loc *time.Location) (time.Time, time.Time, bool) {
	if item.Start.DateTime != "" && item.End.DateTime != "" {
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		end, err := time.Parse(time.RFC3339, item.End.DateTime)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		return start, end, true
	}

	// All-day events carry dates only; the end date is exclusive.
	if item.Start.Date != "" && item.End.Date != "" {
		start, err := time.ParseInLocation("2006-01-02", item.Start.Date, loc)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		end, err := time.ParseInLocation("2006-01-02", item.End.Date, loc)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		return start, end, true
	}
	return time.Time{}, time.Time{}, false
}

// DiscoverGoogleCalendars lists the IDs and names of all calendars of the
// authenticated account.
func (c *CalendarClient) DiscoverGoogleCalendars(ctx context.Context) (map[string]string, error) {
	list, err := c.service.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	calendars := make(map[string]string, len(list.Items))
	for _, item := range list.Items {
		calendars[item.Id] = item.Summary
	}
	return calendars, nil
}

// GetOAuthConfigForAuthFlow is used by the auth command to get the config for the web flow.
func GetOAuthConfigForAuthFlow(clientID, clientSecret string) (*oauth2.Config, error) {
	return getOAuthConfig(clientID, clientSecret)
}

// getOAuthConfig reads credentials and returns an OAuth2 config.
// It prioritizes environment variables over a local credentials.json file.
func getOAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
			Scopes:       []string{calendar.CalendarReadonlyScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the root directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = "urn:ietf:wg:oauth:2.0:oob" // For desktop app flow
	return config, nil
}

// TokenFromWeb is called by the auth flow to retrieve a token.
func TokenFromWeb(ctx context.Context, config *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return config.Exchange(ctx, authCode)
}

// TokenPath is where the token of accountName lives inside dir.
func TokenPath(dir, accountName string) string {
	return filepath.Join(dir, tokenPrefix+accountName+tokenSuffix)
}

// SaveToken saves a token to a file path.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// GetTokenAccounts lists the accounts with a saved token in dir.
func GetTokenAccounts(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var accounts []string
	for _, file := range files {
		if strings.HasPrefix(file.Name(), tokenPrefix) && strings.HasSuffix(file.Name(), tokenSuffix) {
			accountName := strings.TrimSuffix(strings.TrimPrefix(file.Name(), tokenPrefix), tokenSuffix)
			accounts = append(accounts, accountName)
		}
	}
	return accounts, nil
}
