// Package commands implements the tekst command line: task tracking, exports,
// searches and the login session.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/urfave/cli/v3"

	"tekst-client/api"
	"tekst-client/config"
	"tekst-client/i18n"
	"tekst-client/logger"
	"tekst-client/notify"
	"tekst-client/search"
	"tekst-client/state"
	"tekst-client/tracker"
	"tekst-client/worker"
)

// AppContext holds what every command needs.
type AppContext struct {
	Config   *config.Config
	Logger   *slog.Logger
	Client   *api.Client
	Store    state.Store
	Session  state.Session
	Catalog  *i18n.Catalog
	Notifier notify.Notifier
	Out      io.Writer
}

// NewAppContext loads the configuration, opens the state store and builds
// an API client carrying the stored session cookies.
func NewAppContext(ctx context.Context, cmd *cli.Command) (*AppContext, error) {
	cfg, err := config.Load(cmd.String("env"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cmd.Root().ErrWriter,
	})

	store, err := state.Open(ctx, cfg.State)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	session := state.Session{Store: store}

	client, err := api.New(cfg.APIURL, api.WithLogger(appLogger))
	if err != nil {
		store.Close()
		return nil, err
	}
	cookies, err := session.AuthCookies(ctx)
	if err != nil {
		appLogger.Warn("stored session cookies unreadable", "error", err)
	}
	client.SetSessionCookies(cookies)
	checkSession(ctx, session, appLogger)

	prefs := []string{}
	if locale := session.Locale(ctx); locale != "" {
		prefs = append(prefs, locale)
	}
	prefs = append(prefs, cfg.Locale)

	out := cmd.Root().Writer
	return &AppContext{
		Config:   cfg,
		Logger:   appLogger,
		Client:   client,
		Store:    store,
		Session:  session,
		Catalog:  i18n.New(prefs...),
		Notifier: notify.Multi{consoleNotifier(out), notify.LogNotifier{Logger: appLogger.With("component", "notify")}},
		Out:      out,
	}, nil
}

func (ac *AppContext) Close() {
	if err := ac.Store.Close(); err != nil {
		ac.Logger.Warn("closing state store failed", "error", err)
	}
}

// NewTracker returns a tracker polling on its own TimeoutPoller bound to
// ctx. The poller is returned so callers can join it before exiting.
func (ac *AppContext) NewTracker(ctx context.Context) (*tracker.Tracker, *worker.TimeoutPoller) {
	poller := worker.NewTimeoutPoller(ctx, ac.Logger)
	return tracker.New(ac.Client, ac.trackerOptions(poller)...), poller
}

// OfflineTracker returns a tracker whose poll loop never fires, for commands
// that only edit the tracked list.
func (ac *AppContext) OfflineTracker() *tracker.Tracker {
	return tracker.New(ac.Client, ac.trackerOptions(worker.NewManualScheduler())...)
}

func (ac *AppContext) trackerOptions(sched worker.Scheduler) []tracker.Option {
	return []tracker.Option{
		tracker.WithScheduler(sched),
		tracker.WithInterval(ac.Config.PollInterval),
		tracker.WithNotifier(ac.Notifier),
		tracker.WithCatalog(ac.Catalog),
		tracker.WithSaver(tracker.DirSaver{Dir: ac.Config.DownloadDir}),
		tracker.WithStore(ac.Store),
		tracker.WithLogger(ac.Logger),
	}
}

// Codec returns the search link codec reporting through the app notifier.
func (ac *AppContext) Codec() search.Codec {
	return search.Codec{Notifier: ac.Notifier, Catalog: ac.Catalog}
}

// ResultsURL is the web client page search links point to.
func (ac *AppContext) ResultsURL() *url.URL {
	u, err := url.Parse(ac.Config.WebURL)
	if err != nil {
		return &url.URL{}
	}
	return u.JoinPath("search", "results")
}

// checkSession forgets a stored login whose cookie has expired.
func checkSession(ctx context.Context, session state.Session, logger *slog.Logger) {
	var user api.User
	ok, err := session.User(ctx, &user)
	if err != nil || !ok {
		return
	}
	if session.SessionValid(ctx, time.Now()) {
		return
	}
	logger.Warn("session expired, please log in again", "user", user.Username)
	if err := session.ClearUser(ctx); err != nil {
		logger.Warn("clearing expired session failed", "error", err)
	}
}

func consoleNotifier(w io.Writer) notify.Notifier {
	return notify.Func(func(n notify.Notification) {
		mark := "i"
		switch n.Level {
		case notify.Success:
			mark = "+"
		case notify.Error:
			mark = "!"
		}
		fmt.Fprintf(w, "[%s] %s\n", mark, n.Message)
		if n.Detail != "" {
			fmt.Fprintf(w, "    %s\n", n.Detail)
		}
	})
}
