// Package parser extracts order history data from rendered storefront pages.
package parser

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/ordercrawl/internal/site"
	urlutil "github.com/law-makers/ordercrawl/internal/utils/url"
	"github.com/law-makers/ordercrawl/pkg/models"
	"github.com/rs/zerolog/log"
)

// ErrElementNotFound is returned when a required element is absent from a page
var ErrElementNotFound = errors.New("element not found")

const (
	dateLayout     = "2006年01月02日"
	datetimeLayout = "2006年01月02日 15:04"

	yearOptionSelector = `select#selectPeriodYear option[value*="20"]`
	noItemSelector     = "div.noItem"
	totalItemSelector  = "div.oDrPager span.totalItem"
	orderEntrySelector = "div.oDrListItem"
)

// ItemRef is an item parsed from an order detail page together with the
// links that still need a visit before the item is complete.
type ItemRef struct {
	Fields   models.ItemFields
	ItemURL  string
	ThumbURL string
}

// Parser reads storefront pages. Order detail and category pages are
// dispatched to the layout registered for the seller.
type Parser struct {
	layouts *Registry
}

// New creates a Parser; a nil registry uses the built-in layouts
func New(layouts *Registry) *Parser {
	if layouts == nil {
		layouts = DefaultRegistry()
	}
	return &Parser{layouts: layouts}
}

// ParseYearOptions returns the selectable years, ascending and de-duplicated
func (p *Parser) ParseYearOptions(page models.Page) ([]int, error) {
	doc, err := document(page)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool)
	var years []int
	doc.Find(yearOptionSelector).Each(func(i int, sel *goquery.Selection) {
		v, _ := sel.Attr("value")
		year, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			log.Debug().Str("value", v).Msg("Ignoring non-numeric year option")
			return
		}
		if !seen[year] {
			seen[year] = true
			years = append(years, year)
		}
	})
	if len(years) == 0 {
		return nil, fmt.Errorf("%w: year selector", ErrElementNotFound)
	}

	sort.Ints(years)
	return years, nil
}

// ParseOrderCount returns the number of orders of the listed year
func (p *Parser) ParseOrderCount(page models.Page) (int, error) {
	doc, err := document(page)
	if err != nil {
		return 0, err
	}

	if doc.Find(noItemSelector).Length() > 0 {
		return 0, nil
	}

	total := doc.Find(totalItemSelector).First()
	if total.Length() == 0 {
		return 0, fmt.Errorf("%w: order pager", ErrElementNotFound)
	}
	n, err := models.ParseCount(strings.ReplaceAll(total.Text(), ",", ""))
	if err != nil {
		return 0, fmt.Errorf("invalid order count: %w", err)
	}
	return n, nil
}

// ParseOrderSummaries returns the orders listed on a history page in page order.
// Entries without an order number are skipped.
func (p *Parser) ParseOrderSummaries(page models.Page) ([]models.OrderSummary, error) {
	doc, err := document(page)
	if err != nil {
		return nil, err
	}

	var (
		summaries []models.OrderSummary
		parseErr  error
	)
	doc.Find(orderEntrySelector).EachWithBreak(func(i int, entry *goquery.Selection) bool {
		if entry.Find("table").Length() == 0 {
			return true
		}

		no := text(entry.Find("li.orderID span.idNum"))
		if no == "" {
			log.Warn().Int("entry", i).Msg("Failed to detect order number")
			return true
		}

		date, err := parseDate(text(entry.Find("li.purchaseDate")), dateLayout)
		if err != nil {
			parseErr = fmt.Errorf("order %s: %w", no, err)
			return false
		}

		href, _ := entry.Find("li.oDrDetailList a[href]").First().Attr("href")

		summaries = append(summaries, models.OrderSummary{
			Date:        date,
			OrderNumber: no,
			SellerName:  text(entry.Find("li.shopName a")),
			DetailURL:   urlutil.ResolveURL(page.URL, href),
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	return summaries, nil
}

// ParseOrderDetail parses an order detail page with the seller's layout
func (p *Parser) ParseOrderDetail(page models.Page, summary models.OrderSummary) (models.Order, []ItemRef, error) {
	doc, err := document(page)
	if err != nil {
		return models.Order{}, nil, err
	}
	return p.layouts.For(summary.SellerName).ParseOrderDetail(doc, page, summary)
}

// ParseCategory reads the category path from an item page with the seller's layout
func (p *Parser) ParseCategory(page models.Page, seller string) ([]string, error) {
	doc, err := document(page)
	if err != nil {
		return nil, err
	}
	return p.layouts.For(seller).ParseCategory(doc), nil
}

// HasErrorBanner reports whether the site shows an error message, and its text
func (p *Parser) HasErrorBanner(page models.Page) (bool, string) {
	doc, err := document(page)
	if err != nil {
		return false, ""
	}
	banner := doc.Find(site.ErrorBannerSelector).First()
	if banner.Length() == 0 {
		return false, ""
	}
	return true, text(banner)
}

// HasLoginWall reports whether the page is the login form
func (p *Parser) HasLoginWall(page models.Page) bool {
	doc, err := document(page)
	if err != nil {
		return false
	}
	return doc.Find(site.LoginWallSelector).Length() > 0
}

func document(page models.Page) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML of %s: %w", page.URL, err)
	}
	return doc, nil
}

// text returns the collapsed text of the first matched element
func text(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.First().Text()), " ")
}

func parseDate(s, layout string) (time.Time, error) {
	t, err := time.ParseInLocation(layout, s, site.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}
