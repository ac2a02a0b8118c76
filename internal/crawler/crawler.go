// Package crawler walks the order history year by year and page by page,
// fetching only what the store does not already hold.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/law-makers/ordercrawl/internal/auth"
	"github.com/law-makers/ordercrawl/internal/parser"
	"github.com/law-makers/ordercrawl/internal/planner"
	"github.com/law-makers/ordercrawl/internal/progress"
	"github.com/law-makers/ordercrawl/internal/runctx"
	"github.com/law-makers/ordercrawl/internal/site"
	"github.com/law-makers/ordercrawl/internal/store"
	"github.com/law-makers/ordercrawl/pkg/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Progress counter labels
const (
	LabelYearCount = "[collect] Count of year"
	LabelAllOrders = "[collect] All orders"
)

// YearLabel returns the progress label of a year's order counter
func YearLabel(year int) string {
	return fmt.Sprintf("[collect] Year %d orders", year)
}

// Fetcher loads storefront pages
type Fetcher interface {
	// LoadPage navigates the main tab and waits for readySelector
	LoadPage(ctx context.Context, url, readySelector string) (models.Page, error)

	// FetchEphemeral loads url in a throwaway tab, leaving the main tab alone
	FetchEphemeral(ctx context.Context, url string) (models.Page, error)
}

// Parser extracts data from loaded pages
type Parser interface {
	ParseYearOptions(page models.Page) ([]int, error)
	ParseOrderCount(page models.Page) (int, error)
	ParseOrderSummaries(page models.Page) ([]models.OrderSummary, error)
	ParseOrderDetail(page models.Page, summary models.OrderSummary) (models.Order, []parser.ItemRef, error)
	ParseCategory(page models.Page, seller string) ([]string, error)
	HasErrorBanner(page models.Page) (bool, string)
}

// SessionKeeper restores the login after a navigation hit the login wall
type SessionKeeper interface {
	EnsureLoggedIn(ctx context.Context) auth.LoginResult
}

// ThumbnailSaver stores the picture of an item and returns its reference
type ThumbnailSaver interface {
	Save(ctx context.Context, item models.Item, imgURL string) (string, error)
}

// Dumper saves the current page for diagnostics and returns the dump id
type Dumper interface {
	Dump(ctx context.Context) (string, error)
}

// Deps are the collaborators of a Crawler. Thumbnails and Dumper are optional.
type Deps struct {
	Fetcher    Fetcher
	Parser     Parser
	Store      store.Store
	Reporter   progress.Reporter
	Keeper     SessionKeeper
	Thumbnails ThumbnailSaver
	Dumper     Dumper
	Clock      func() time.Time
}

// Options tune a crawl
type Options struct {
	// PageSize is the number of orders per history page
	PageSize int

	// Categories enables the visit of every item page for its breadcrumb
	Categories bool

	// RecheckCurrentYear walks the current year's pages live even when checked,
	// so orders placed since the last run are found. The early exit stops
	// the walk once the newest known order shows up first.
	RecheckCurrentYear bool
}

// Result summarizes a crawl
type Result struct {
	Years         int `json:"years"`
	YearsSkipped  int `json:"years_skipped"`
	PagesFetched  int `json:"pages_fetched"`
	PagesSkipped  int `json:"pages_skipped"`
	OrdersFetched int `json:"orders_fetched"`
	OrdersSkipped int `json:"orders_skipped"`
	OrdersFailed  int `json:"orders_failed"`
	TotalOrders   int `json:"total_orders"`
}

// Crawler is the incremental crawl state machine
type Crawler struct {
	deps    Deps
	opts    Options
	planner *planner.Planner
	logger  zerolog.Logger
	result  Result
}

// New creates a Crawler
func New(deps Deps, opts Options) *Crawler {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Reporter == nil {
		deps.Reporter = progress.NewRecorder()
	}
	return &Crawler{
		deps:    deps,
		opts:    opts,
		planner: planner.New(deps.Store, opts.PageSize),
		logger:  log.Logger,
	}
}

// LastResult returns the counters of the latest Run
func (c *Crawler) LastResult() Result {
	return c.result
}

// yearWalk is the state of the page loop of one year
type yearWalk struct {
	year       int
	count      int
	totalPages int
	processed  int
	last       *store.LastOrder
	wasChecked bool
	current    bool
	liveSeen   bool
	earlyExit  bool

	// firstIncomplete is the first page left unchecked by a failed order, 0 if none
	firstIncomplete int
}

// Run discovers years and counts, then walks every year that needs a visit.
// A nil return means every reachable order was either recorded or left
// unseen after a transient failure.
func (c *Crawler) Run(ctx context.Context) (err error) {
	c.result = Result{}
	c.logger = runctx.Logger(ctx, log.Logger)
	defer c.deps.Reporter.Close()
	defer func() {
		if err != nil {
			err = c.fail(ctx, err)
		}
	}()

	// Read once so the visit rule is not moved by this run's own flushes
	lastModified, err := c.deps.Store.LastModified(ctx)
	if err != nil {
		return at{}.fatal("last-modified", err)
	}
	now := c.deps.Clock()

	years, err := c.discoverYears(ctx)
	if err != nil {
		return err
	}
	c.result.Years = len(years)

	total, err := c.discoverCounts(ctx, years, lastModified)
	if err != nil {
		return err
	}
	c.result.TotalOrders = total
	c.deps.Reporter.DeclareCounter(LabelAllOrders, total)

	for _, year := range years {
		if err := c.walkYear(ctx, year, lastModified, now); err != nil {
			return err
		}
	}

	if err := c.deps.Store.Flush(ctx, c.deps.Clock()); err != nil {
		return at{}.fatal("flush", err)
	}

	c.logger.Info().
		Int("fetched", c.result.OrdersFetched).
		Int("cached", c.result.OrdersSkipped).
		Int("failed", c.result.OrdersFailed).
		Msg("Crawl finished")
	return nil
}

func (c *Crawler) discoverYears(ctx context.Context) ([]int, error) {
	page, err := c.load(ctx, at{}, site.HistoryURL)
	if err != nil {
		return nil, err
	}

	years, err := c.deps.Parser.ParseYearOptions(page)
	if err != nil {
		return nil, at{}.fatal("years", err)
	}
	if err := c.deps.Store.SetYearList(ctx, years); err != nil {
		return nil, at{}.fatal("years", err)
	}

	c.logger.Info().Ints("years", years).Msg("Discovered years")
	return years, nil
}

func (c *Crawler) discoverCounts(ctx context.Context, years []int, lastModified time.Time) (int, error) {
	c.deps.Reporter.DeclareCounter(LabelYearCount, len(years))

	total := 0
	for _, year := range years {
		pos := at{year: year}

		count, cached, err := c.deps.Store.OrderCount(ctx, year)
		if err != nil {
			return 0, pos.fatal("count", err)
		}

		if !cached || planner.IsYearStale(year, lastModified) {
			pos.page = 1
			page, err := c.load(ctx, pos, site.HistoryPageURL(year, 1))
			if err != nil {
				return 0, err
			}
			if count, err = c.deps.Parser.ParseOrderCount(page); err != nil {
				return 0, pos.fatal("count", err)
			}
			if err := c.deps.Store.SetOrderCount(ctx, year, count); err != nil {
				return 0, pos.fatal("count", err)
			}
			c.logger.Info().Int("year", year).Int("count", count).Msg("Counted orders")
		} else {
			c.logger.Debug().Int("year", year).Int("count", count).Msg("Using cached order count")
		}

		total += count
		c.deps.Reporter.Increment(LabelYearCount, 1)
	}

	return total, nil
}

func (c *Crawler) walkYear(ctx context.Context, year int, lastModified, now time.Time) error {
	pos := at{year: year}
	s := c.deps.Store

	checked, err := s.YearChecked(ctx, year)
	if err != nil {
		return pos.fatal("year", err)
	}
	count, _, err := s.OrderCount(ctx, year)
	if err != nil {
		return pos.fatal("year", err)
	}

	if !planner.ShouldVisitYear(year, checked, lastModified, now) {
		c.logger.Info().Int("year", year).Int("count", count).Msg("Year already checked")
		c.deps.Reporter.Increment(LabelAllOrders, count)
		c.result.YearsSkipped++
		return nil
	}

	w := &yearWalk{
		year:       year,
		count:      count,
		totalPages: c.planner.TotalPages(count),
		wasChecked: checked,
		current:    year == now.Year(),
	}
	if w.current && checked {
		// Must be read before this run records anything for the year
		last, err := s.LastItem(ctx, year)
		switch {
		case err == nil:
			w.last = last
		case !errors.Is(err, store.ErrNotFound):
			return pos.fatal("year", err)
		}
	}

	c.deps.Reporter.DeclareCounter(YearLabel(year), count)
	c.logger.Info().Int("year", year).Int("count", count).Int("pages", w.totalPages).Msg("Walking year")

	if count > 0 {
		start, err := s.ResumePage(ctx, year)
		if err != nil {
			return pos.fatal("resume", err)
		}
		if start > 1 && start <= w.totalPages {
			c.logger.Info().Int("year", year).Int("page", start).Msg("Resuming year")
		}

		// Pages before the cursor are checked and take the skip path; a page
		// left unchecked there is walked live again
		for p := 1; ; p++ {
			last, err := c.walkPage(ctx, w, p)
			if err != nil {
				return err
			}
			// The cursor never moves past a page that is still unchecked
			next := p + 1
			switch {
			case w.firstIncomplete > 0:
				next = w.firstIncomplete
			case last:
				next = 0
			}
			if err := s.SetResumePage(ctx, year, next); err != nil {
				return at{year: year, page: p}.fatal("resume", err)
			}
			if err := s.Flush(ctx, c.deps.Clock()); err != nil {
				return at{year: year, page: p}.fatal("flush", err)
			}
			if last {
				break
			}
		}
	}

	if w.firstIncomplete > 0 {
		return nil
	}
	if err := s.SetYearChecked(ctx, year); err != nil {
		return pos.fatal("year", err)
	}
	if err := s.Flush(ctx, c.deps.Clock()); err != nil {
		return pos.fatal("flush", err)
	}
	return nil
}

// walkPage takes the skip path or fetches the page live and reports whether
// it was the last page of the year
func (c *Crawler) walkPage(ctx context.Context, w *yearWalk, p int) (bool, error) {
	pos := at{year: w.year, page: p}

	live, err := c.planner.ShouldFetchLive(ctx, w.year, p)
	if err != nil {
		return false, pos.fatal("page", err)
	}
	if !live && c.opts.RecheckCurrentYear && w.current && !w.earlyExit {
		live = true
	}

	if !live {
		wasLast := c.skipPage(w)
		c.logger.Debug().Int("year", w.year).Int("page", p).Msg("Page already checked")
		return wasLast || c.planner.IsLastPage(p, w.totalPages), nil
	}

	page, err := c.load(ctx, pos, site.HistoryPageURL(w.year, p))
	if err != nil {
		return false, err
	}
	summaries, err := c.deps.Parser.ParseOrderSummaries(page)
	if err != nil {
		return false, pos.fatal("page", err)
	}

	if !w.liveSeen {
		w.liveSeen = true
		if c.isEarlyExit(w, summaries) {
			for i := 1; i <= w.totalPages; i++ {
				if err := c.deps.Store.SetPageChecked(ctx, w.year, i); err != nil {
					return false, pos.fatal("page", err)
				}
			}
			w.earlyExit = true
			c.logger.Info().Int("year", w.year).Str("order", w.last.OrderNumber).Msg("No new orders since last run")
		}
	}

	failedBefore := c.result.OrdersFailed
	for _, summary := range summaries {
		if err := c.visitOrder(ctx, w, pos, summary); err != nil {
			return false, err
		}
	}
	c.result.PagesFetched++

	// A page with failed orders is walked again by the next run
	if c.result.OrdersFailed > failedBefore {
		if w.firstIncomplete == 0 {
			w.firstIncomplete = p
		}
		c.logger.Warn().Int("year", w.year).Int("page", p).Int("failed", c.result.OrdersFailed-failedBefore).Msg("Page left unchecked")
	} else {
		if err := c.deps.Store.SetPageChecked(ctx, w.year, p); err != nil {
			return false, pos.fatal("page", err)
		}
		c.logger.Info().Int("year", w.year).Int("page", p).Int("orders", len(summaries)).Msg("Done page")
	}

	return c.planner.IsLastPage(p, w.totalPages), nil
}

// skipPage accounts for a checked page without visiting it
func (c *Crawler) skipPage(w *yearWalk) bool {
	incr := c.planner.SkipIncrement(w.count, w.processed)
	w.processed += incr
	c.deps.Reporter.Increment(LabelAllOrders, incr)
	c.deps.Reporter.Increment(YearLabel(w.year), incr)
	c.result.PagesSkipped++
	return c.planner.SkipWasLast(incr)
}

func (c *Crawler) isEarlyExit(w *yearWalk, summaries []models.OrderSummary) bool {
	return w.current && w.wasChecked && w.last != nil &&
		len(summaries) > 0 && summaries[0].OrderNumber == w.last.OrderNumber
}

// visitOrder skips a seen order or fetches it. Transient failures are
// logged and counted; the order stays unseen.
func (c *Crawler) visitOrder(ctx context.Context, w *yearWalk, pagePos at, summary models.OrderSummary) error {
	pos := pagePos
	pos.order = summary.OrderNumber

	defer func() {
		w.processed++
		c.deps.Reporter.Increment(LabelAllOrders, 1)
		c.deps.Reporter.Increment(YearLabel(w.year), 1)
	}()

	seen, err := c.deps.Store.OrderSeen(ctx, summary.OrderNumber)
	if err != nil {
		return pos.fatal("order", err)
	}
	if seen {
		c.result.OrdersSkipped++
		c.logger.Debug().Str("order", summary.OrderNumber).Msg("Done order [cached]")
		return nil
	}

	err = c.fetchOrder(ctx, pos, summary)
	if err == nil {
		c.result.OrdersFetched++
		return nil
	}
	if IsTransient(err) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// Interrupted, not failed; the order stays unseen for the next run
			return pos.fatal("order", fmt.Errorf("%w: %w", ctxErr, err))
		}
		c.result.OrdersFailed++
		c.logger.Warn().Err(err).Str("order", summary.OrderNumber).Msg("Skipping order")
		return nil
	}
	return err
}

func (c *Crawler) fetchOrder(ctx context.Context, pos at, summary models.OrderSummary) error {
	url := summary.DetailURL
	if url == "" {
		var err error
		if url, err = site.OrderDetailURL(summary.OrderNumber); err != nil {
			return pos.transient("order", err)
		}
	}

	page, err := c.load(ctx, pos, url)
	if err != nil {
		if IsFatal(err) && !isPageLoad(err) {
			return err
		}
		return pos.transient("order", err)
	}

	if banner, msg := c.deps.Parser.HasErrorBanner(page); banner {
		return pos.transient("order", fmt.Errorf("%w: %s", ErrSiteError, msg))
	}

	order, refs, err := c.deps.Parser.ParseOrderDetail(page, summary)
	if err != nil {
		return pos.transient("parse", err)
	}

	for _, ref := range refs {
		item, err := c.buildItem(ctx, pos, order.SellerName, ref)
		if err != nil {
			return err
		}
		order.Items = append(order.Items, item)
		c.logger.Info().
			Str("order", order.OrderNumber).
			Str("name", item.Name()).
			Int("price", item.Price()).
			Int("count", item.Count()).
			Msg("Item")
	}

	if err := c.deps.Store.MarkOrderSeen(ctx, order); err != nil {
		return pos.fatal("store", err)
	}
	if err := c.deps.Store.Flush(ctx, c.deps.Clock()); err != nil {
		return pos.fatal("flush", err)
	}

	c.logger.Info().Str("order", order.OrderNumber).Int("items", len(order.Items)).Msg("Done order")
	return nil
}

func (c *Crawler) buildItem(ctx context.Context, pos at, seller string, ref parser.ItemRef) (models.Item, error) {
	fields := ref.Fields
	if c.opts.Categories && ref.ItemURL != "" {
		page, err := c.deps.Fetcher.FetchEphemeral(ctx, ref.ItemURL)
		if err != nil {
			return models.Item{}, pos.transient("category", err)
		}
		if fields.Category, err = c.deps.Parser.ParseCategory(page, seller); err != nil {
			return models.Item{}, pos.transient("category", err)
		}
	}

	item, err := models.NewItem(fields)
	if err != nil {
		return models.Item{}, pos.transient("item", err)
	}

	if c.deps.Thumbnails != nil && ref.ThumbURL != "" {
		thumb, err := c.deps.Thumbnails.Save(ctx, item, ref.ThumbURL)
		if err != nil {
			c.logger.Warn().Err(err).Str("item", item.ProductID()).Msg("Failed to save thumbnail")
		} else {
			item = item.WithThumbnail(thumb)
		}
	}
	return item, nil
}

// load navigates to url and makes sure the result is not the login wall.
// After a fresh login the page is loaded again.
func (c *Crawler) load(ctx context.Context, pos at, url string) (models.Page, error) {
	page, err := c.deps.Fetcher.LoadPage(ctx, url, site.BodySelector)
	if err != nil {
		return models.Page{}, pos.fatal("load", &pageLoadError{err})
	}

	res := c.deps.Keeper.EnsureLoggedIn(ctx)
	if !res.OK {
		return models.Page{}, pos.fatal("login", res.Err)
	}
	if res.Attempts == 0 {
		return page, nil
	}

	page, err = c.deps.Fetcher.LoadPage(ctx, url, site.BodySelector)
	if err != nil {
		return models.Page{}, pos.fatal("load", &pageLoadError{err})
	}
	return page, nil
}

// pageLoadError marks navigation failures, which only abort the run when
// they happen on a history page
type pageLoadError struct {
	err error
}

func (e *pageLoadError) Error() string { return e.err.Error() }
func (e *pageLoadError) Unwrap() error { return e.err }

func isPageLoad(err error) bool {
	var pe *pageLoadError
	return errors.As(err, &pe)
}

// fail takes a best-effort dump for a fatal error and returns it
func (c *Crawler) fail(ctx context.Context, err error) error {
	ce := at{}.fatal("crawl", err)
	if errors.Is(err, context.Canceled) {
		return ce
	}

	if c.deps.Dumper != nil {
		// The run context may be the reason we are here
		dumpCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if id, dumpErr := c.deps.Dumper.Dump(dumpCtx); dumpErr != nil {
			c.logger.Debug().Err(dumpErr).Msg("Diagnostic dump failed")
		} else {
			ce.DumpID = id
		}
	}

	c.logger.Error().Err(ce).Str("op", ce.Op).Msg("Crawl aborted")
	return ce
}
