// internal/auth/login.go
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/law-makers/ordercrawl/pkg/models"
	"github.com/rs/zerolog/log"
)

// MaxLoginAttempts bounds credential submissions per login wall
const MaxLoginAttempts = 2

var (
	// ErrAuthenticationFailed is returned when the login wall persists after every attempt
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrNoCredentials is returned when a login wall is hit without credentials to submit
	ErrNoCredentials = errors.New("no credentials configured")
)

// Session is the browser surface the keeper drives
type Session interface {
	Current(ctx context.Context) (models.Page, error)
	SubmitLogin(ctx context.Context, creds Credentials) error
}

// CookieJar is implemented by sessions whose cookies can be captured
type CookieJar interface {
	Cookies(ctx context.Context) ([]Cookie, error)
}

// WallDetector recognises the login form
type WallDetector interface {
	HasLoginWall(page models.Page) bool
}

// Dumper captures the current page for diagnosis
type Dumper interface {
	Dump(ctx context.Context) (string, error)
}

// CredentialSource resolves the login on demand
type CredentialSource func() (Credentials, error)

// LoginResult is the outcome of EnsureLoggedIn
type LoginResult struct {
	OK       bool
	Attempts int
	Err      error
}

// Keeper re-authenticates whenever a navigation lands on the login wall
type Keeper struct {
	session     Session
	detector    WallDetector
	credentials CredentialSource
	dumper      Dumper
	secrets     *SecretStore
	maxAttempts int
}

// KeeperOption configures a Keeper
type KeeperOption func(*Keeper)

// WithDumper captures a dump after every failed attempt
func WithDumper(d Dumper) KeeperOption {
	return func(k *Keeper) { k.dumper = d }
}

// WithSessionStore saves captured cookies after a successful login
func WithSessionStore(s *SecretStore) KeeperOption {
	return func(k *Keeper) { k.secrets = s }
}

// WithMaxAttempts overrides MaxLoginAttempts
func WithMaxAttempts(n int) KeeperOption {
	return func(k *Keeper) {
		if n > 0 {
			k.maxAttempts = n
		}
	}
}

// NewKeeper creates a Keeper
func NewKeeper(session Session, detector WallDetector, creds CredentialSource, opts ...KeeperOption) *Keeper {
	k := &Keeper{
		session:     session,
		detector:    detector,
		credentials: creds,
		maxAttempts: MaxLoginAttempts,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// EnsureLoggedIn is a no-op unless the current page shows the login form,
// in which case credentials are submitted up to the attempt bound.
func (k *Keeper) EnsureLoggedIn(ctx context.Context) LoginResult {
	page, err := k.session.Current(ctx)
	if err != nil {
		return LoginResult{Err: fmt.Errorf("failed to read current page: %w", err)}
	}
	if !k.detector.HasLoginWall(page) {
		return LoginResult{OK: true}
	}

	log.Info().Str("url", page.URL).Msg("Login wall detected")

	creds, err := k.credentials()
	if err == nil && !creds.Valid() {
		err = ErrNoCredentials
	}
	if err != nil {
		return LoginResult{Err: fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)}
	}

	for attempt := 1; attempt <= k.maxAttempts; attempt++ {
		log.Debug().Int("attempt", attempt).Str("user", creds.User).Msg("Submitting credentials")

		if err := k.session.SubmitLogin(ctx, creds); err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("Login submission failed")
			k.dump(ctx)
			continue
		}

		page, err := k.session.Current(ctx)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("Failed to read page after login")
			k.dump(ctx)
			continue
		}
		if !k.detector.HasLoginWall(page) {
			log.Info().Int("attempts", attempt).Msg("Logged in")
			k.saveSession(ctx)
			return LoginResult{OK: true, Attempts: attempt}
		}

		log.Warn().Int("attempt", attempt).Msg("Login wall still present")
		k.dump(ctx)
	}

	return LoginResult{
		Attempts: k.maxAttempts,
		Err:      fmt.Errorf("%w after %d attempts", ErrAuthenticationFailed, k.maxAttempts),
	}
}

func (k *Keeper) dump(ctx context.Context) {
	if k.dumper == nil {
		return
	}
	if id, err := k.dumper.Dump(ctx); err != nil {
		log.Debug().Err(err).Msg("Diagnostic dump failed")
	} else {
		log.Info().Str("dump", id).Msg("Saved diagnostic dump")
	}
}

func (k *Keeper) saveSession(ctx context.Context) {
	jar, ok := k.session.(CookieJar)
	if !ok || k.secrets == nil {
		return
	}
	cookies, err := jar.Cookies(ctx)
	if err != nil || len(cookies) == 0 {
		log.Debug().Err(err).Msg("No cookies captured after login")
		return
	}
	if err := k.secrets.SaveSession(NewSessionData(cookies)); err != nil {
		log.Warn().Err(err).Msg("Failed to save session cookies")
		return
	}
	log.Debug().Int("cookie_count", len(cookies)).Msg("Session cookies saved")
}
