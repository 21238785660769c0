package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"quorum/internal/config"
	"quorum/internal/feed"
	"quorum/internal/google"
	"quorum/internal/icloud"
	"quorum/internal/ics"
	"quorum/internal/overlap"
	"quorum/internal/planner"
	"quorum/internal/postgres"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "quorum",
		Usage: "Find the times when enough of a group is free at once.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "config.yaml", EnvVars: []string{"QUORUM_CONFIG"}, Usage: "Path to the YAML config file."},
		},
		Commands: []*cli.Command{
			authCommand(),
			suggestCommand(),
			membersCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to read its availability calendars.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "token-dir", Value: ".", EnvVars: []string{"GOOGLE_TOKEN_DIR"}, Usage: "Directory to store the token in."},
		},
		Action: func(c *cli.Context) error {
			logger := setupLogger("info")
			logger.Info("Starting Google authentication flow.")

			oauthConfig, err := google.GetOAuthConfigForAuthFlow(os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"))
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(c.Context, oauthConfig, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			fmt.Print("Enter a name for this account (e.g., 'personal', 'work'): ")
			accountName, _ := reader.ReadString('\n')
			accountName = strings.TrimSpace(accountName)
			tokenFile := google.TokenPath(c.String("token-dir"), accountName)

			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func suggestCommand() *cli.Command {
	return &cli.Command{
		Name:  "suggest",
		Usage: "Suggest windows in which enough members are free.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "policy", Usage: "How windows are shaped: raw, best-per-day or merged."},
			&cli.IntFlag{Name: "min-players", Usage: "Fixed number of members that must be free."},
			&cli.Float64Flag{Name: "quorum", Usage: "Share of the group that must be free, e.g. 0.75."},
			&cli.DurationFlag{Name: "min-duration", Usage: "Shortest window worth suggesting (default from config, 3h)."},
			&cli.StringFlag{Name: "from", Usage: "Start of the search range (RFC3339 or YYYY-MM-DD). Defaults to now."},
			&cli.StringFlag{Name: "to", Usage: "End of the search range (RFC3339 or YYYY-MM-DD). Defaults to the lookahead."},
			&cli.IntFlag{Name: "max", Usage: "Maximum number of suggestions."},
			&cli.StringFlag{Name: "format", Value: "text", Usage: "Output format: text or json."},
			&cli.StringFlag{Name: "ics-out", Usage: "Also write the suggestions to this .ics file."},
			&cli.BoolFlag{Name: "publish", Usage: "Publish suggestions to the configured CalDAV calendar."},
			&cli.BoolFlag{Name: "upload", Usage: "Upload the suggestions calendar to the configured feed bucket."},
			&cli.BoolFlag{Name: "dry-run", Usage: "With --publish, log what would change without touching the calendar."},
			&cli.IntFlag{Name: "watch", Value: 300, Usage: "Re-plan every N seconds."},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger := setupLogger(cfg.LogLevel)

			format := c.String("format")
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format '%s'", format)
			}

			if c.Bool("dry-run") {
				logger.Info("Performing a dry run. No changes will be made.")
			}

			p, closeFn, err := buildPlanner(c.Context, logger, cfg, c.Bool("dry-run"))
			if err != nil {
				return err
			}
			defer closeFn()

			var uploader *feed.Uploader
			if c.Bool("upload") {
				if !cfg.Feed.Enabled() {
					return fmt.Errorf("--upload needs feed.bucket in the config")
				}
				uploader, err = feed.NewUploader(logger, feed.Options{
					Bucket:    cfg.Feed.Bucket,
					Key:       cfg.Feed.Key,
					Region:    cfg.Feed.Region,
					Endpoint:  cfg.Feed.Endpoint,
					AccessKey: cfg.Feed.AccessKey,
					SecretKey: cfg.Feed.SecretKey,
				})
				if err != nil {
					return fmt.Errorf("failed to create feed uploader: %w", err)
				}
			}

			loc, _ := cfg.Location()
			cycle := func() error {
				opts, err := engineOptions(c, cfg, time.Now())
				if err != nil {
					return err
				}
				res, err := p.Plan(c.Context, opts)
				if err != nil {
					return err
				}
				if err := emit(c, logger, p, res.Suggestions, format, loc); err != nil {
					return err
				}
				if uploader != nil {
					return uploader.Upload(c.Context, res.Suggestions)
				}
				return nil
			}

			// --watch flag takes precedence
			if c.IsSet("watch") {
				interval, err := watchInterval(c.Int("watch"))
				if err != nil {
					return err
				}
				logger.Info("Starting watcher.", "interval", interval)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					if err := cycle(); err != nil {
						logger.Error("Planning cycle failed", "error", err)
					}
					select {
					case <-c.Context.Done():
						return nil
					case <-ticker.C:
					}
				}
			}

			logger.Info("Running a single planning cycle.")
			if err := cycle(); err != nil {
				return fmt.Errorf("planning cycle failed: %w", err)
			}
			return nil
		},
	}
}

func membersCommand() *cli.Command {
	return &cli.Command{
		Name:  "members",
		Usage: "List the group roster from the config and the group store.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Value: "text", Usage: "Output format: text or json."},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger := setupLogger(cfg.LogLevel)

			p, closeFn, err := buildPlanner(c.Context, logger, cfg, true)
			if err != nil {
				return err
			}
			defer closeFn()

			members := planner.SortedMembers(p.Roster(c.Context))
			if c.String("format") == "json" {
				return planner.RenderJSON(os.Stdout, members)
			}
			for _, m := range members {
				fmt.Printf("%s\t%s\t%s\n", m.ID, m.Name, m.Email)
			}
			return nil
		},
	}
}

// buildPlanner wires every configured source, the group store and the
// publish calendar. The returned func releases the database pool and the
// redis client.
func buildPlanner(ctx context.Context, logger *slog.Logger, cfg *config.Config, dryRun bool) (*planner.Planner, func(), error) {
	closeFn := func() {}
	loc, err := cfg.Location()
	if err != nil {
		return nil, closeFn, err
	}

	var caldavClient *icloud.CalDAVClient
	if cfg.CalDAV.Enabled() {
		caldavClient, err = icloud.NewClient(logger, cfg.CalDAV.Endpoint, cfg.CalDAV.Username, cfg.CalDAV.Password, loc)
		if err != nil {
			return nil, closeFn, fmt.Errorf("failed to create caldav client: %w", err)
		}
	}

	googleClients := make(map[string]*google.CalendarClient)
	googleClient := func(account string) (*google.CalendarClient, error) {
		if account == "" {
			accounts, err := google.GetTokenAccounts(cfg.Google.TokenDir)
			if err != nil {
				return nil, fmt.Errorf("could not find any google accounts, did you run auth command? %w", err)
			}
			if len(accounts) != 1 {
				return nil, fmt.Errorf("found %d google accounts, set google_account on the member", len(accounts))
			}
			account = accounts[0]
		}
		if gc, ok := googleClients[account]; ok {
			return gc, nil
		}
		gc, err := google.NewClient(ctx, logger, cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.TokenDir, account)
		if err != nil {
			return nil, fmt.Errorf("failed to create google client for account %s: %w", account, err)
		}
		googleClients[account] = gc
		return gc, nil
	}

	var sources []planner.Source
	for _, m := range cfg.Members {
		if m.ICSFile != "" {
			sources = append(sources, &planner.ICSFileSource{Path: m.ICSFile, MemberID: m.ID, Location: loc})
		}
		if m.CalDAVCalendar != "" {
			sources = append(sources, &planner.CalDAVSource{Client: caldavClient, Calendar: m.CalDAVCalendar, MemberID: m.ID})
		}
		if m.GoogleCalendar != "" {
			gc, err := googleClient(m.GoogleAccount)
			if err != nil {
				return nil, closeFn, err
			}
			sources = append(sources, &planner.GoogleSource{Client: gc, CalendarID: m.GoogleCalendar, MemberID: m.ID})
		}
	}
	if len(googleClients) > 0 {
		logger.Info("Initialized Google clients for all accounts.", "count", len(googleClients))
	}

	var directory planner.Directory
	if cfg.Database.Enabled() {
		pool, err := postgres.InitPool(ctx, logger, cfg.Database.DSN, cfg.Database.MinConns, cfg.Database.MaxConns)
		if err != nil {
			return nil, closeFn, err
		}
		closeFn = pool.Close
		store := &planner.StoreSource{Repo: postgres.NewAvailabilityRepo(pool), GroupID: cfg.Database.GroupID}
		sources = append(sources, store)
		directory = store
	}

	var state planner.StateStore
	if cfg.Redis.URL != "" {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			closeFn()
			return nil, func() {}, fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			closeFn()
			return nil, func() {}, fmt.Errorf("redis ping failed: %w", err)
		}
		closeDB := closeFn
		closeFn = func() {
			client.Close()
			closeDB()
		}
		state = &planner.RedisState{Client: client, Key: cfg.Redis.StateKey}
		logger.Info("Keeping publish state in redis.", "key", cfg.Redis.StateKey)
	}

	var publisher planner.Publisher
	if cfg.CalDAV.PublishCalendar != "" && caldavClient != nil {
		publisher = &planner.CalDAVPublisher{Client: caldavClient, Calendar: cfg.CalDAV.PublishCalendar}
	}

	p, err := planner.New(logger, planner.Config{
		Sources:   sources,
		Directory: directory,
		Roster:    cfg.Roster(),
		Publisher: publisher,
		State:     state,
		StatePath: cfg.StateFile,
		DryRun:    dryRun,
	})
	if err != nil {
		closeFn()
		return nil, func() {}, fmt.Errorf("failed to create planner: %w", err)
	}
	return p, closeFn, nil
}

// engineOptions applies the command line overrides to the configured options.
func engineOptions(c *cli.Context, cfg *config.Config, now time.Time) (overlap.Options, error) {
	opts, err := cfg.EngineOptions(now)
	if err != nil {
		return opts, err
	}

	if c.IsSet("policy") {
		if opts.Policy, err = overlap.ParsePolicy(c.String("policy")); err != nil {
			return opts, err
		}
	}
	switch {
	case c.IsSet("min-players") && c.IsSet("quorum"):
		return opts, fmt.Errorf("%w: --min-players and --quorum are mutually exclusive", overlap.ErrInvalidArgument)
	case c.IsSet("min-players"):
		opts.MinParticipants = overlap.AtLeast(c.Int("min-players"))
	case c.IsSet("quorum"):
		opts.MinParticipants = overlap.Fraction(c.Float64("quorum"))
	}
	if c.IsSet("min-duration") {
		opts.MinDuration = c.Duration("min-duration")
	}
	if c.IsSet("max") {
		opts.MaxSuggestions = c.Int("max")
	}
	if c.IsSet("from") {
		if opts.From, err = parseBound(c.String("from"), opts.Location); err != nil {
			return opts, err
		}
		if !c.IsSet("to") {
			opts.To = opts.From.AddDate(0, 0, cfg.Policy.LookaheadDays)
		}
	}
	if c.IsSet("to") {
		if opts.To, err = parseBound(c.String("to"), opts.Location); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// watchInterval converts the --watch value in seconds to a ticker period.
func watchInterval(seconds int) (time.Duration, error) {
	if seconds <= 0 {
		return 0, fmt.Errorf("--watch must be a positive number of seconds, got %d", seconds)
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseBound(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid time '%s', want RFC3339 or YYYY-MM-DD", overlap.ErrInvalidArgument, s)
	}
	return t, nil
}

func emit(c *cli.Context, logger *slog.Logger, p *planner.Planner, suggestions []overlap.Suggestion, format string, loc *time.Location) error {
	var err error
	if format == "json" {
		err = planner.RenderJSON(os.Stdout, suggestions)
	} else {
		err = planner.RenderText(os.Stdout, suggestions, loc)
	}
	if err != nil {
		return err
	}

	if path := c.String("ics-out"); path != "" {
		if err := ics.WriteSuggestionsFile(path, suggestions, time.Now()); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		logger.Info("Wrote suggestions calendar.", "file", path, "count", len(suggestions))
	}

	if c.Bool("publish") {
		if err := p.Publish(c.Context, suggestions); err != nil {
			return fmt.Errorf("failed to publish suggestions: %w", err)
		}
	}
	return nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
