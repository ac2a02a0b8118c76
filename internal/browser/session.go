// Package browser drives the single authenticated Chrome session used for crawling.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/law-makers/ordercrawl/internal/auth"
	"github.com/law-makers/ordercrawl/internal/ratelimit"
	"github.com/law-makers/ordercrawl/internal/retry"
	"github.com/law-makers/ordercrawl/internal/site"
	"github.com/law-makers/ordercrawl/pkg/models"
	"github.com/rs/zerolog/log"
)

// ErrPageTimeout is returned when the ready condition of a page is not met in time
var ErrPageTimeout = errors.New("page load timed out")

// DefaultUserAgent is sent when no user agent is configured
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Options configures a Session
type Options struct {
	ChromePath  string
	Headless    bool
	UserAgent   string
	Proxy       string
	PageTimeout time.Duration
	SettleDelay time.Duration
	DumpDir     string
	Throttle    ratelimit.Throttle
	Retry       retry.Policy
	Cookies     []auth.Cookie
}

// Session is one browser with one main tab. Navigation is serialized; the
// storefront session cannot be shared by concurrent loads.
type Session struct {
	mu          sync.Mutex
	opts        Options
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewSession launches the browser and restores opts.Cookies
func NewSession(opts Options) (*Session, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 30 * time.Second
	}
	if opts.Retry.Attempts <= 0 {
		opts.Retry = retry.DefaultPolicy()
	}
	if opts.Throttle == nil {
		opts.Throttle = ratelimit.NewHostLimiter(0, 0)
	}

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("log-level", "3"),
		chromedp.Flag("mute-audio", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(opts.UserAgent),
	}
	if path := FindChrome(opts.ChromePath); path != "" {
		allocOpts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(path)}, allocOpts...)
	}
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	s := &Session{
		opts:        opts,
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
	}

	// The first Run starts the browser and must not carry a deadline
	if err := chromedp.Run(ctx, network.Enable(), chromedp.Navigate("about:blank")); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	if len(opts.Cookies) > 0 {
		if err := s.SetCookies(context.Background(), opts.Cookies); err != nil {
			log.Warn().Err(err).Msg("Failed to restore session cookies")
		} else {
			log.Debug().Int("cookie_count", len(opts.Cookies)).Msg("Session cookies restored")
		}
	}

	log.Info().Bool("headless", opts.Headless).Msg("Browser ready")
	return s, nil
}

// Close shuts the browser down
func (s *Session) Close() error {
	s.cancel()
	s.allocCancel()
	log.Debug().Msg("Browser closed")
	return nil
}

// run executes actions on the main tab, bounded by timeout and by ctx
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	return runOn(ctx, s.ctx, timeout, actions...)
}

func runOn(ctx, tab context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	rctx, cancel := context.WithTimeout(tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(rctx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// LoadPage navigates the main tab to url and waits for readySelector to be
// visible. Timeouts are retried; the returned page is the rendered DOM.
func (s *Session) LoadPage(ctx context.Context, url, readySelector string) (models.Page, error) {
	if readySelector == "" {
		readySelector = site.BodySelector
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var page models.Page
	err := retry.Do(ctx, s.opts.Retry, "load "+url, func(int) error {
		if err := s.opts.Throttle.Wait(ctx, url); err != nil {
			return err
		}

		start := time.Now()
		err := s.run(ctx, s.opts.PageTimeout,
			chromedp.Navigate(url),
			chromedp.WaitVisible(readySelector, chromedp.ByQuery),
		)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("%w: %s after %s: %w", ErrPageTimeout, url, s.opts.PageTimeout, err)
			}
			return fmt.Errorf("failed to load %s: %w", url, err)
		}

		if err := s.settle(ctx); err != nil {
			return err
		}

		page, err = s.snapshot(ctx)
		if err != nil {
			return err
		}

		log.Debug().
			Str("url", url).
			Str("landed", page.URL).
			Dur("duration", time.Since(start)).
			Msg("Page loaded")
		return nil
	})
	return page, err
}

func (s *Session) settle(ctx context.Context) error {
	if s.opts.SettleDelay <= 0 {
		return nil
	}
	select {
	case <-time.After(s.opts.SettleDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) snapshot(ctx context.Context) (models.Page, error) {
	var page models.Page
	err := s.run(ctx, s.opts.PageTimeout,
		chromedp.Location(&page.URL),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
	)
	if err != nil {
		return models.Page{}, fmt.Errorf("failed to read page: %w", err)
	}
	return page, nil
}

// Current returns the DOM of the main tab without navigating
func (s *Session) Current(ctx context.Context) (models.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(ctx)
}

// CurrentURL returns the URL of the main tab
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var url string
	if err := s.run(ctx, s.opts.PageTimeout, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// SubmitLogin fills the login form of the current page and submits it
func (s *Session) SubmitLogin(ctx context.Context, creds auth.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.run(ctx, s.opts.PageTimeout,
		chromedp.WaitVisible(site.LoginUserSelector, chromedp.ByQuery),
		chromedp.Clear(site.LoginUserSelector, chromedp.ByQuery),
		chromedp.SendKeys(site.LoginUserSelector, creds.User, chromedp.ByQuery),
		chromedp.SendKeys(site.LoginPassSelector, creds.Password, chromedp.ByQuery),
		chromedp.Click(site.LoginSubmitSelector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to submit login form: %w", err)
	}

	err = s.run(ctx, s.opts.PageTimeout, chromedp.WaitVisible(site.BodySelector, chromedp.ByQuery))
	if err != nil {
		return fmt.Errorf("page after login did not load: %w", err)
	}
	return s.settle(ctx)
}

// Cookies captures the cookies of the browser
func (s *Session) Cookies(ctx context.Context) ([]auth.Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cookies []*network.Cookie
	err := s.run(ctx, s.opts.PageTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to extract cookies: %w", err)
	}

	out := make([]auth.Cookie, len(cookies))
	for i, c := range cookies {
		out[i] = auth.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		}
	}
	return out, nil
}

// SetCookies loads cookies into the browser
func (s *Session) SetCookies(ctx context.Context, cookies []auth.Cookie) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.run(ctx, s.opts.PageTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			p := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithHTTPOnly(c.HTTPOnly).
				WithSecure(c.Secure)
			if c.SameSite != "" {
				p = p.WithSameSite(network.CookieSameSite(c.SameSite))
			}
			if c.Expires > 0 {
				exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				p = p.WithExpires(&exp)
			}
			if err := p.Do(ctx); err != nil {
				return fmt.Errorf("cookie %s: %w", c.Name, err)
			}
		}
		return nil
	}))
}

// Dump writes the current page to the dump directory and returns its id
func (s *Session) Dump(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, err := s.snapshot(ctx)
	if err != nil {
		return "", err
	}

	var png []byte
	if err := s.run(ctx, s.opts.PageTimeout, chromedp.FullScreenshot(&png, 90)); err != nil {
		log.Debug().Err(err).Msg("Screenshot for dump failed")
		png = nil
	}

	return WriteDump(s.opts.DumpDir, page, png)
}
