package models

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/width"
)

var (
	// ErrMissingField is returned when a mandatory item field is empty
	ErrMissingField = errors.New("missing mandatory field")
	// ErrUnrecognizedURL is returned when an item URL does not match the storefront layout
	ErrUnrecognizedURL = errors.New("unrecognized item URL")
	// ErrInvalidOrderNumber is returned when an order number has no leading store id
	ErrInvalidOrderNumber = errors.New("invalid order number")
)

var (
	itemURLPattern     = regexp.MustCompile(`^https?://item\.rakuten\.co\.jp/([^/]+)/([^/?#]+)`)
	orderNumberPattern = regexp.MustCompile(`^(\d+)-`)
	pricePattern       = regexp.MustCompile(`\d{1,3}(?:,\d{3})+|\d+`)
)

// OrderSummary is one entry of an order history page
type OrderSummary struct {
	Date        time.Time `json:"date"`
	OrderNumber string    `json:"order_number"`
	SellerName  string    `json:"seller_name"`
	DetailURL   string    `json:"detail_url"`
}

// Order is a fetched order with its line items
type Order struct {
	Date        time.Time `json:"date"`
	OrderNumber string    `json:"order_number"`
	SellerName  string    `json:"seller_name"`
	Items       []Item    `json:"items"`
}

// Year returns the calendar year the order belongs to
func (o Order) Year() int {
	return o.Date.Year()
}

// ItemFields carries the values used to build an Item.
// Name, ProductID, SellerName, OrderNumber and OrderDate are mandatory.
type ItemFields struct {
	Name         string
	Price        int
	Count        int
	ProductID    string
	URL          string
	Category     []string
	SellerName   string
	OrderDate    time.Time
	OrderNumber  string
	ThumbnailRef string
	IncludeTax   *bool
}

// Item is one purchased product line within an order.
// It is immutable once constructed; use NewItem and the With* helpers.
type Item struct {
	name         string
	price        int
	count        int
	productID    string
	url          string
	category     []string
	sellerName   string
	orderDate    time.Time
	orderNumber  string
	thumbnailRef string
	includeTax   *bool
}

// NewItem validates f and returns the corresponding Item
func NewItem(f ItemFields) (Item, error) {
	switch {
	case strings.TrimSpace(f.Name) == "":
		return Item{}, fmt.Errorf("%w: name", ErrMissingField)
	case f.ProductID == "":
		return Item{}, fmt.Errorf("%w: product id", ErrMissingField)
	case f.SellerName == "":
		return Item{}, fmt.Errorf("%w: seller name", ErrMissingField)
	case f.OrderNumber == "":
		return Item{}, fmt.Errorf("%w: order number", ErrMissingField)
	case f.OrderDate.IsZero():
		return Item{}, fmt.Errorf("%w: order date", ErrMissingField)
	}
	if f.Price < 0 {
		return Item{}, fmt.Errorf("price must be >= 0, got %d", f.Price)
	}
	if f.Count < 1 {
		return Item{}, fmt.Errorf("count must be >= 1, got %d", f.Count)
	}

	var category []string
	if len(f.Category) > 0 {
		category = append([]string(nil), f.Category...)
	}
	var tax *bool
	if f.IncludeTax != nil {
		v := *f.IncludeTax
		tax = &v
	}

	return Item{
		name:         strings.TrimSpace(f.Name),
		price:        f.Price,
		count:        f.Count,
		productID:    f.ProductID,
		url:          f.URL,
		category:     category,
		sellerName:   f.SellerName,
		orderDate:    f.OrderDate,
		orderNumber:  f.OrderNumber,
		thumbnailRef: f.ThumbnailRef,
		includeTax:   tax,
	}, nil
}

func (i Item) Name() string         { return i.name }
func (i Item) Price() int           { return i.price }
func (i Item) Count() int           { return i.count }
func (i Item) ProductID() string    { return i.productID }
func (i Item) URL() string          { return i.url }
func (i Item) SellerName() string   { return i.sellerName }
func (i Item) OrderDate() time.Time { return i.orderDate }
func (i Item) OrderNumber() string  { return i.orderNumber }
func (i Item) ThumbnailRef() string { return i.thumbnailRef }

// Category returns a copy of the item's category path
func (i Item) Category() []string {
	return append([]string(nil), i.category...)
}

// IncludeTax reports whether the price includes tax, and whether that is known
func (i Item) IncludeTax() (bool, bool) {
	if i.includeTax == nil {
		return false, false
	}
	return *i.includeTax, true
}

// Fields returns the item's values as ItemFields
func (i Item) Fields() ItemFields {
	return ItemFields{
		Name:         i.name,
		Price:        i.price,
		Count:        i.count,
		ProductID:    i.productID,
		URL:          i.url,
		Category:     i.Category(),
		SellerName:   i.sellerName,
		OrderDate:    i.orderDate,
		OrderNumber:  i.orderNumber,
		ThumbnailRef: i.thumbnailRef,
		IncludeTax:   i.includeTax,
	}
}

// WithCategory returns a copy of the item with the given category path
func (i Item) WithCategory(category []string) Item {
	i.category = append([]string(nil), category...)
	return i
}

// WithThumbnail returns a copy of the item referencing the given thumbnail
func (i Item) WithThumbnail(ref string) Item {
	i.thumbnailRef = ref
	return i
}

// ProductIDFromURL derives "<storeId>/<itemId>" from an item page URL
func ProductIDFromURL(url string) (string, error) {
	m := itemURLPattern.FindStringSubmatch(url)
	if m == nil {
		return "", fmt.Errorf("%w: %s", ErrUnrecognizedURL, url)
	}
	return m[1] + "/" + m[2], nil
}

// StoreIDFromOrderNumber returns the leading digit run before the first hyphen
func StoreIDFromOrderNumber(no string) (string, error) {
	m := orderNumberPattern.FindStringSubmatch(no)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidOrderNumber, no)
	}
	return m[1], nil
}

// ParsePrice extracts an integer amount from text such as "1,280円" or "１，２８０円"
func ParsePrice(text string) (int, error) {
	folded := width.Fold.String(text)
	m := pricePattern.FindString(folded)
	if m == "" {
		return 0, fmt.Errorf("no amount in %q", text)
	}
	return strconv.Atoi(strings.ReplaceAll(m, ",", ""))
}

// ParseCount parses a quantity cell, tolerating full-width digits and whitespace
func ParseCount(text string) (int, error) {
	folded := strings.TrimSpace(width.Fold.String(text))
	n, err := strconv.Atoi(folded)
	if err != nil {
		return 0, fmt.Errorf("invalid count %q: %w", text, err)
	}
	return n, nil
}
