package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"quorum/internal/overlap"

	"github.com/ilyakaznacheev/cleanenv"
)

// ErrNoMembers is returned when neither a roster nor a group store is configured.
var ErrNoMembers = errors.New("no members configured")

// Config is read from a YAML file, with environment variables taking precedence.
type Config struct {
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Timezone  string `yaml:"timezone" env:"PRIMARY_TIMEZONE" env-default:"UTC"`
	StateFile string `yaml:"state_file" env:"STATE_FILE" env-default:"quorum-state.json"`

	Policy   Policy   `yaml:"policy"`
	Members  []Member `yaml:"members"`
	CalDAV   CalDAV   `yaml:"caldav"`
	Google   Google   `yaml:"google"`
	Database Database `yaml:"database"`
	Redis    Redis    `yaml:"redis"`
	Feed     Feed     `yaml:"feed"`
}

type Policy struct {
	Mode string `yaml:"mode" env:"POLICY" env-default:"best-per-day"`
	// MinPlayers and Quorum are mutually exclusive. Neither set means
	// overlap.DefaultMinParticipants.
	MinPlayers     int           `yaml:"min_players" env:"MIN_PLAYERS"`
	Quorum         float64       `yaml:"quorum" env:"QUORUM"`
	GroupSize      int           `yaml:"group_size" env:"GROUP_SIZE"`
	MinDuration    time.Duration `yaml:"min_duration" env:"MIN_DURATION" env-default:"3h"`
	MaxSuggestions int           `yaml:"max_suggestions" env:"MAX_SUGGESTIONS" env-default:"10"`
	LookaheadDays  int           `yaml:"lookahead_days" env:"LOOKAHEAD_DAYS" env-default:"14"`
}

// Member is one roster entry and the calendars holding their free time.
type Member struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	Image string `yaml:"image"`

	ICSFile        string `yaml:"ics"`
	CalDAVCalendar string `yaml:"caldav_calendar"`
	GoogleCalendar string `yaml:"google_calendar"`
	GoogleAccount  string `yaml:"google_account"`
}

type CalDAV struct {
	Endpoint        string `yaml:"endpoint" env:"CALDAV_ENDPOINT"`
	Username        string `yaml:"username" env:"ICLOUD_USERNAME"`
	Password        string `yaml:"password" env:"ICLOUD_APP_SPECIFIC_PASSWORD"`
	PublishCalendar string `yaml:"publish_calendar" env:"CALDAV_PUBLISH_CALENDAR"`
}

// Enabled reports whether CalDAV credentials are present.
func (c CalDAV) Enabled() bool {
	return c.Username != "" && c.Password != ""
}

type Google struct {
	ClientID     string `yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"GOOGLE_CLIENT_SECRET"`
	TokenDir     string `yaml:"token_dir" env:"GOOGLE_TOKEN_DIR" env-default:"."`
}

type Database struct {
	DSN      string `yaml:"dsn" env:"DATABASE_URL"`
	GroupID  string `yaml:"group_id" env:"GROUP_ID"`
	MinConns int32  `yaml:"min_conns" env:"DB_MIN_CONNS" env-default:"1"`
	MaxConns int32  `yaml:"max_conns" env:"DB_MAX_CONNS" env-default:"4"`
}

// Enabled reports whether a group store is configured.
func (d Database) Enabled() bool {
	return d.DSN != "" && d.GroupID != ""
}

// Redis optionally holds the publish state instead of the state file.
type Redis struct {
	URL      string `yaml:"url" env:"REDIS_URL"`
	StateKey string `yaml:"state_key" env:"REDIS_STATE_KEY" env-default:"quorum:published"`
}

// Feed is the S3 object the suggestions calendar is uploaded to.
type Feed struct {
	Bucket    string `yaml:"bucket" env:"FEED_BUCKET"`
	Key       string `yaml:"key" env:"FEED_KEY" env-default:"suggestions.ics"`
	Region    string `yaml:"region" env:"FEED_REGION" env-default:"us-east-1"`
	Endpoint  string `yaml:"endpoint" env:"FEED_ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"FEED_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"FEED_SECRET_KEY"`
}

func (f Feed) Enabled() bool {
	return f.Bucket != ""
}

// Load reads the config file at path, or only the environment when path is
// empty or missing, and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" && fileExists(path) {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("cannot read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("cannot read config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values cleanenv cannot.
func (c *Config) Validate() error {
	if _, err := overlap.ParsePolicy(c.Policy.Mode); err != nil {
		return fmt.Errorf("policy.mode: %w", err)
	}
	if c.Policy.MinPlayers != 0 && c.Policy.Quorum != 0 {
		return fmt.Errorf("policy: min_players and quorum are mutually exclusive")
	}
	if c.Policy.MinPlayers < 0 {
		return fmt.Errorf("policy.min_players must be positive, got %d", c.Policy.MinPlayers)
	}
	if c.Policy.Quorum < 0 || c.Policy.Quorum > 1 {
		return fmt.Errorf("policy.quorum must be in (0, 1], got %v", c.Policy.Quorum)
	}
	if c.Policy.MaxSuggestions <= 0 {
		return fmt.Errorf("policy.max_suggestions must be positive, got %d", c.Policy.MaxSuggestions)
	}
	if c.Policy.LookaheadDays <= 0 {
		return fmt.Errorf("policy.lookahead_days must be positive, got %d", c.Policy.LookaheadDays)
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	if len(c.Members) == 0 && !c.Database.Enabled() {
		return ErrNoMembers
	}
	seen := make(map[string]bool, len(c.Members))
	for i, m := range c.Members {
		if m.ID == "" {
			return fmt.Errorf("members[%d]: id is required", i)
		}
		if seen[m.ID] {
			return fmt.Errorf("members[%d]: duplicate id %q", i, m.ID)
		}
		seen[m.ID] = true
		if m.CalDAVCalendar != "" && !c.CalDAV.Enabled() {
			return fmt.Errorf("member %q reads a CalDAV calendar but caldav credentials are not set", m.ID)
		}
	}
	return nil
}

// Location loads the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
	}
	return loc, nil
}

// Threshold returns the configured member threshold.
func (p Policy) Threshold() overlap.Threshold {
	switch {
	case p.Quorum > 0:
		return overlap.Fraction(p.Quorum)
	case p.MinPlayers > 0:
		return overlap.AtLeast(p.MinPlayers)
	default:
		return overlap.AtLeast(overlap.DefaultMinParticipants)
	}
}

// EngineOptions builds engine options for a lookahead starting at now.
func (c *Config) EngineOptions(now time.Time) (overlap.Options, error) {
	policy, err := overlap.ParsePolicy(c.Policy.Mode)
	if err != nil {
		return overlap.Options{}, err
	}
	loc, err := c.Location()
	if err != nil {
		return overlap.Options{}, err
	}

	from := now.In(loc)
	return overlap.Options{
		Policy:          policy,
		MinParticipants: c.Policy.Threshold(),
		GroupSize:       c.Policy.GroupSize,
		MinDuration:     c.Policy.MinDuration,
		From:            from,
		To:              from.AddDate(0, 0, c.Policy.LookaheadDays),
		MaxSuggestions:  c.Policy.MaxSuggestions,
		Location:        loc,
	}, nil
}

// Roster returns the configured members as engine display data.
func (c *Config) Roster() overlap.Roster {
	roster := make(overlap.Roster, len(c.Members))
	for _, m := range c.Members {
		roster[m.ID] = overlap.Member{ID: m.ID, Name: m.Name, Email: m.Email, Image: m.Image}
	}
	return roster
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
