package parser

import (
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/ordercrawl/internal/site"
	urlutil "github.com/law-makers/ordercrawl/internal/utils/url"
	"github.com/law-makers/ordercrawl/pkg/models"
)

// DetailLayout parses the seller-specific parts of the storefront: the order
// detail page and the category breadcrumb of an item page.
type DetailLayout interface {
	// Name identifies the layout in logs
	Name() string

	// ParseOrderDetail returns the order header and the items it lists.
	// Returned orders carry no items; the caller builds them from the refs.
	ParseOrderDetail(doc *goquery.Document, page models.Page, summary models.OrderSummary) (models.Order, []ItemRef, error)

	// ParseCategory returns the breadcrumb path, without the root crumb
	ParseCategory(doc *goquery.Document) []string
}

// Registry maps seller names to layouts
type Registry struct {
	mu       sync.RWMutex
	fallback DetailLayout
	bySeller map[string]DetailLayout
}

// NewRegistry creates a registry that falls back to the given layout
func NewRegistry(fallback DetailLayout) *Registry {
	return &Registry{
		fallback: fallback,
		bySeller: make(map[string]DetailLayout),
	}
}

// DefaultRegistry knows the books layout and uses the shop layout otherwise
func DefaultRegistry() *Registry {
	r := NewRegistry(ShopLayout{})
	r.Register(site.BooksSeller, BooksLayout{})
	return r
}

// Register binds a layout to a seller name
func (r *Registry) Register(seller string, layout DetailLayout) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySeller[seller] = layout
}

// For returns the layout of seller or the fallback
func (r *Registry) For(seller string) DetailLayout {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if l, ok := r.bySeller[seller]; ok {
		return l
	}
	return r.fallback
}

// ShopLayout is the order page used by regular marketplace shops
type ShopLayout struct{}

func (ShopLayout) Name() string { return "shop" }

func (ShopLayout) ParseOrderDetail(doc *goquery.Document, page models.Page, summary models.OrderSummary) (models.Order, []ItemRef, error) {
	info := doc.Find("div.oDrSpecOrderInfo")
	if info.Length() == 0 {
		return models.Order{}, nil, fmt.Errorf("%w: order info", ErrElementNotFound)
	}

	date, err := parseDate(text(info.Find("td.orderDate")), dateLayout)
	if err != nil {
		return models.Order{}, nil, err
	}
	order := models.Order{
		Date:        date,
		OrderNumber: text(info.Find("td.orderID")),
		SellerName:  summary.SellerName,
	}
	if order.OrderNumber == "" {
		return models.Order{}, nil, fmt.Errorf("%w: order number", ErrElementNotFound)
	}

	var refs []ItemRef
	var rowErr error
	doc.Find(`div.oDrSpecPurchaseInfo tr[valign="top"]`).EachWithBreak(func(i int, row *goquery.Selection) bool {
		if row.Find("td.prodInfo").Length() == 0 {
			return true
		}

		ref, err := itemBase(page, order, row.Find("td.prodName a"))
		if err != nil {
			rowErr = err
			return false
		}
		if ref.Fields.Price, err = models.ParsePrice(text(row.Find("td.widthPrice"))); err != nil {
			rowErr = fmt.Errorf("item %q: %w", ref.Fields.Name, err)
			return false
		}
		if ref.Fields.Count, err = models.ParseCount(text(row.Find("td.widthQuantity"))); err != nil {
			rowErr = fmt.Errorf("item %q: %w", ref.Fields.Name, err)
			return false
		}
		tax := text(row.Find("td.widthTax")) == "込"
		ref.Fields.IncludeTax = &tax

		src, _ := row.Find("td.prodImg img").First().Attr("src")
		ref.ThumbURL = urlutil.ResolveURL(page.URL, src)

		refs = append(refs, ref)
		return true
	})
	if rowErr != nil {
		return models.Order{}, nil, rowErr
	}
	if len(refs) == 0 {
		return models.Order{}, nil, fmt.Errorf("%w: items of %s", ErrElementNotFound, order.OrderNumber)
	}

	return order, refs, nil
}

func (ShopLayout) ParseCategory(doc *goquery.Document) []string {
	return breadcrumb(doc.Find("td.sdtext a"))
}

// BooksLayout is the order page of the books store
type BooksLayout struct{}

func (BooksLayout) Name() string { return "books" }

func (BooksLayout) ParseOrderDetail(doc *goquery.Document, page models.Page, summary models.OrderSummary) (models.Order, []ItemRef, error) {
	dateText := text(doc.Find("div.order-info__date"))
	if dateText == "" {
		return models.Order{}, nil, fmt.Errorf("%w: order date", ErrElementNotFound)
	}
	// "2006年01月02日 15:04 <status>"; the trailing token is dropped
	if i := strings.LastIndex(dateText, " "); i > 0 {
		dateText = dateText[:i]
	}
	date, err := parseDate(dateText, datetimeLayout)
	if err != nil {
		return models.Order{}, nil, err
	}

	order := models.Order{
		Date:        date,
		OrderNumber: text(doc.Find("div.order-info__detail span.order-info__number")),
		SellerName:  summary.SellerName,
	}
	if order.OrderNumber == "" {
		return models.Order{}, nil, fmt.Errorf("%w: order number", ErrElementNotFound)
	}

	var refs []ItemRef
	var rowErr error
	doc.Find("div.shipping-list li.item").EachWithBreak(func(i int, li *goquery.Selection) bool {
		ref, err := itemBase(page, order, li.Find("h2.item-detail__title a"))
		if err != nil {
			rowErr = err
			return false
		}
		if ref.Fields.Price, err = models.ParsePrice(text(li.Find("div.item-detail__price span.item-detail__price-num"))); err != nil {
			rowErr = fmt.Errorf("item %q: %w", ref.Fields.Name, err)
			return false
		}
		if ref.Fields.Count, err = models.ParseCount(text(li.Find("div.item-detail__order span.item-detail__order-num"))); err != nil {
			rowErr = fmt.Errorf("item %q: %w", ref.Fields.Name, err)
			return false
		}

		src, _ := li.Find("div.item-image img").First().Attr("src")
		ref.ThumbURL = urlutil.ResolveURL(page.URL, src)

		refs = append(refs, ref)
		return true
	})
	if rowErr != nil {
		return models.Order{}, nil, rowErr
	}
	if len(refs) == 0 {
		return models.Order{}, nil, fmt.Errorf("%w: items of %s", ErrElementNotFound, order.OrderNumber)
	}

	return order, refs, nil
}

func (BooksLayout) ParseCategory(doc *goquery.Document) []string {
	return breadcrumb(doc.Find(`dd[itemprop="breadcrumb"] a`))
}

// itemBase fills the fields shared by every layout from the product link
func itemBase(page models.Page, order models.Order, link *goquery.Selection) (ItemRef, error) {
	link = link.First()
	if link.Length() == 0 {
		return ItemRef{}, fmt.Errorf("%w: product link", ErrElementNotFound)
	}
	href, _ := link.Attr("href")
	itemURL := urlutil.ResolveURL(page.URL, href)

	id, err := models.ProductIDFromURL(itemURL)
	if err != nil {
		return ItemRef{}, err
	}

	return ItemRef{
		Fields: models.ItemFields{
			Name:        text(link),
			URL:         itemURL,
			ProductID:   id,
			SellerName:  order.SellerName,
			OrderDate:   order.Date,
			OrderNumber: order.OrderNumber,
		},
		ItemURL: itemURL,
	}, nil
}

func breadcrumb(links *goquery.Selection) []string {
	var crumbs []string
	links.Each(func(i int, a *goquery.Selection) {
		crumbs = append(crumbs, text(a))
	})
	if len(crumbs) >= 1 {
		crumbs = crumbs[1:]
	}
	return crumbs
}
