// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/law-makers/ordercrawl/internal/auth"
	"github.com/law-makers/ordercrawl/internal/browser"
	"github.com/law-makers/ordercrawl/internal/config"
	"github.com/law-makers/ordercrawl/internal/crawler"
	"github.com/law-makers/ordercrawl/internal/parser"
	"github.com/law-makers/ordercrawl/internal/progress"
	"github.com/law-makers/ordercrawl/internal/ratelimit"
	"github.com/law-makers/ordercrawl/internal/retry"
	"github.com/law-makers/ordercrawl/internal/site"
	"github.com/law-makers/ordercrawl/internal/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once per command. The browser is started lazily since only
// the crawl command needs it. Use Close() to release resources.
type Application struct {
	Config   *config.Config
	Logger   *zerolog.Logger
	Store    store.Store
	Secrets  *auth.SecretStore
	Throttle ratelimit.Throttle
	Parser   *parser.Parser

	browser   *browser.Session
	browserMu sync.Mutex
	startTime time.Time
}

// SetupLogging configures the global logger from cfg
func SetupLogging(cfg *config.Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var logWriter io.Writer
	if cfg.JSONLog {
		// JSON logs to stderr
		logWriter = out
	} else {
		// Human-friendly console output otherwise
		logWriter = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	log.Logger = log.Output(logWriter).With().Timestamp().Logger()
	log.Debug().
		Str("level", level.String()).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")
	return log.Logger
}

// New creates an Application with logging, the store and the secret store.
// If any step fails, an error is returned and nothing stays open.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := SetupLogging(cfg, os.Stderr)

	st, err := store.OpenSQLite(ctx, cfg.Data.Store)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("path", cfg.Data.Store).Msg("Store opened")

	secrets := auth.NewSecretStore(cfg.Data.SecretsDir)
	logger.Debug().Str("backend", secrets.Kind()).Msg("Secret store initialized")

	throttle := ratelimit.NewHostLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	logger.Debug().
		Float64("rps", cfg.RateLimitRPS).
		Int("burst", cfg.RateLimitBurst).
		Msg("Rate limiter initialized")

	return &Application{
		Config:    cfg,
		Logger:    &logger,
		Store:     st,
		Secrets:   secrets,
		Throttle:  throttle,
		Parser:    parser.New(nil),
		startTime: time.Now(),
	}, nil
}

// Credentials resolves login credentials from config and the secret store
func (a *Application) Credentials() auth.CredentialSource {
	configured := auth.Credentials{User: a.Config.Login.User, Password: a.Config.Login.Password}
	return auth.Resolve(configured, a.Secrets)
}

// EnsureBrowser lazily starts the browser, restoring saved session cookies
func (a *Application) EnsureBrowser(ctx context.Context) (*browser.Session, error) {
	a.browserMu.Lock()
	defer a.browserMu.Unlock()

	if a.browser != nil {
		return a.browser, nil
	}

	var cookies []auth.Cookie
	if saved, err := a.Secrets.LoadSession(); err == nil {
		cookies = saved.Cookies
	} else {
		a.Logger.Debug().Err(err).Msg("No saved session")
	}

	policy := retry.DefaultPolicy()
	policy.Attempts = a.Config.FetchRetries

	b, err := browser.NewSession(browser.Options{
		ChromePath:  a.Config.Browser.ChromePath,
		Headless:    a.Config.Browser.Headless,
		UserAgent:   a.Config.Browser.UserAgent,
		Proxy:       a.Config.Browser.Proxy,
		PageTimeout: a.Config.Browser.PageTimeout,
		SettleDelay: a.Config.Browser.SettleDelay,
		DumpDir:     a.Config.Data.DumpDir,
		Throttle:    a.Throttle,
		Retry:       policy,
		Cookies:     cookies,
	})
	if err != nil {
		return nil, err
	}

	a.browser = b
	return b, nil
}

// NewCrawler wires a Crawler over the browser session
func (a *Application) NewCrawler(ctx context.Context, reporter progress.Reporter) (*crawler.Crawler, error) {
	b, err := a.EnsureBrowser(ctx)
	if err != nil {
		return nil, err
	}

	keeper := auth.NewKeeper(b, a.Parser, a.Credentials(),
		auth.WithDumper(b),
		auth.WithSessionStore(a.Secrets),
	)

	deps := crawler.Deps{
		Fetcher:  b,
		Parser:   a.Parser,
		Store:    a.Store,
		Reporter: reporter,
		Keeper:   keeper,
		Dumper:   b,
	}
	if a.Config.Crawl.Thumbnails {
		deps.Thumbnails = browser.NewThumbnailer(b, a.Config.Data.ThumbDir)
	}

	return crawler.New(deps, crawler.Options{
		PageSize:           a.Config.Crawl.PageSize,
		Categories:         a.Config.Crawl.Categories,
		RecheckCurrentYear: a.Config.Crawl.RecheckCurrentYear,
	}), nil
}

// Login opens the history page and makes sure the session is logged in
func (a *Application) Login(ctx context.Context) (auth.LoginResult, error) {
	b, err := a.EnsureBrowser(ctx)
	if err != nil {
		return auth.LoginResult{}, err
	}
	if _, err := b.LoadPage(ctx, site.HistoryURL, site.BodySelector); err != nil {
		return auth.LoginResult{}, err
	}

	keeper := auth.NewKeeper(b, a.Parser, a.Credentials(),
		auth.WithDumper(b),
		auth.WithSessionStore(a.Secrets),
	)
	return keeper.EnsureLoggedIn(ctx), nil
}

// Close shuts down the browser and the store.
// Errors are logged; the first one is returned.
func (a *Application) Close(ctx context.Context) error {
	var first error

	a.browserMu.Lock()
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing browser")
			first = err
		}
		a.browser = nil
	}
	a.browserMu.Unlock()

	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing store")
			if first == nil {
				first = err
			}
		}
	}

	a.Logger.Debug().Dur("uptime", a.Uptime()).Msg("Application shutdown complete")
	return first
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
