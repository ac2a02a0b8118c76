package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/law-makers/ordercrawl/internal/site"
	"github.com/law-makers/ordercrawl/pkg/models"
	"github.com/rs/zerolog/log"
)

// View is a short-lived tab next to the main one. It shares the cookie jar
// of the session and must be closed.
type View struct {
	session *Session
	ctx     context.Context
	cancel  context.CancelFunc
	page    models.Page
}

// OpenEphemeralView opens url in a new tab and waits for the body
func (s *Session) OpenEphemeralView(ctx context.Context, url string) (*View, error) {
	if err := s.opts.Throttle.Wait(ctx, url); err != nil {
		return nil, err
	}

	tab, cancel := chromedp.NewContext(s.ctx)
	v := &View{session: s, ctx: tab, cancel: cancel}

	// Creating the target happens on first Run, so no deadline here either
	if err := chromedp.Run(tab); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}

	err := runOn(ctx, tab, s.opts.PageTimeout,
		chromedp.Navigate(url),
		chromedp.WaitVisible(site.BodySelector, chromedp.ByQuery),
		chromedp.Location(&v.page.URL),
		chromedp.OuterHTML("html", &v.page.HTML, chromedp.ByQuery),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to load %s in tab: %w", url, err)
	}

	log.Debug().Str("url", url).Msg("Ephemeral view opened")
	return v, nil
}

// Page returns the document loaded in the view
func (v *View) Page() models.Page {
	return v.page
}

// Screenshot captures the first element matching selector as PNG
func (v *View) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	var buf []byte
	err := runOn(ctx, v.ctx, v.session.opts.PageTimeout,
		chromedp.Screenshot(selector, &buf, chromedp.NodeVisible, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to capture %s: %w", selector, err)
	}
	return buf, nil
}

// Close closes the tab
func (v *View) Close() {
	v.cancel()
}

// FetchEphemeral loads url in a throwaway tab and returns its document
func (s *Session) FetchEphemeral(ctx context.Context, url string) (models.Page, error) {
	v, err := s.OpenEphemeralView(ctx, url)
	if err != nil {
		return models.Page{}, err
	}
	defer v.Close()
	return v.Page(), nil
}

// Capture loads url in a throwaway tab and screenshots selector
func (s *Session) Capture(ctx context.Context, url, selector string) ([]byte, error) {
	v, err := s.OpenEphemeralView(ctx, url)
	if err != nil {
		return nil, err
	}
	defer v.Close()
	return v.Screenshot(ctx, selector)
}
