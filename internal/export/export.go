// Package export writes recorded items as JSON, CSV or Markdown.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/law-makers/ordercrawl/pkg/models"
	"github.com/nao1215/markdown"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var yenPrinter = message.NewPrinter(language.Japanese)

// Format is an export format name
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
)

// ParseFormat accepts json, csv, md and markdown
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want json, csv or md)", s)
	}
}

// Record is the flat, serializable form of an item
type Record struct {
	OrderDate   string   `json:"order_date"`
	OrderNumber string   `json:"order_number"`
	Seller      string   `json:"seller"`
	Name        string   `json:"name"`
	Price       int      `json:"price"`
	Count       int      `json:"count"`
	IncludeTax  *bool    `json:"include_tax,omitempty"`
	ProductID   string   `json:"product_id"`
	URL         string   `json:"url,omitempty"`
	Category    []string `json:"category,omitempty"`
	Thumbnail   string   `json:"thumbnail,omitempty"`
}

// NewRecord flattens item
func NewRecord(item models.Item) Record {
	r := Record{
		OrderDate:   item.OrderDate().Format(time.DateOnly),
		OrderNumber: item.OrderNumber(),
		Seller:      item.SellerName(),
		Name:        item.Name(),
		Price:       item.Price(),
		Count:       item.Count(),
		ProductID:   item.ProductID(),
		URL:         item.URL(),
		Category:    item.Category(),
		Thumbnail:   item.ThumbnailRef(),
	}
	if tax, ok := item.IncludeTax(); ok {
		r.IncludeTax = &tax
	}
	return r
}

// Records flattens items, keeping their order
func Records(items []models.Item) []Record {
	records := make([]Record, 0, len(items))
	for _, it := range items {
		records = append(records, NewRecord(it))
	}
	return records
}

// Write renders items in the given format to w
func Write(w io.Writer, format Format, items []models.Item) error {
	records := Records(items)
	switch format {
	case FormatJSON:
		return WriteJSON(w, records)
	case FormatCSV:
		return WriteCSV(w, records)
	case FormatMarkdown:
		return WriteMarkdown(w, records)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// WriteJSON writes records as an indented JSON array
func WriteJSON(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(records)
}

var csvHeader = []string{
	"order_date", "order_number", "seller", "name", "price", "count",
	"include_tax", "product_id", "url", "category", "thumbnail",
}

// WriteCSV writes records with a header row. Categories are joined with " > ".
func WriteCSV(w io.Writer, records []Record) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		tax := ""
		if r.IncludeTax != nil {
			tax = strconv.FormatBool(*r.IncludeTax)
		}
		row := []string{
			r.OrderDate,
			r.OrderNumber,
			r.Seller,
			r.Name,
			strconv.Itoa(r.Price),
			strconv.Itoa(r.Count),
			tax,
			r.ProductID,
			r.URL,
			strings.Join(r.Category, " > "),
			r.Thumbnail,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteMarkdown writes a per-seller summary followed by one table per year
func WriteMarkdown(w io.Writer, records []Record) error {
	md := markdown.NewMarkdown(w)
	md.H1("Order history")
	md.PlainText("")

	if len(records) == 0 {
		md.PlainText("No items recorded.")
		return md.Build()
	}

	type total struct {
		items int
		spent int
	}
	bySeller := make(map[string]*total)
	var sellers []string
	byYear := make(map[string][]Record)
	var years []string

	for _, r := range records {
		t, ok := bySeller[r.Seller]
		if !ok {
			t = &total{}
			bySeller[r.Seller] = t
			sellers = append(sellers, r.Seller)
		}
		t.items += r.Count
		t.spent += r.Price * r.Count

		year := r.OrderDate[:4]
		if _, ok := byYear[year]; !ok {
			years = append(years, year)
		}
		byYear[year] = append(byYear[year], r)
	}
	sort.Strings(sellers)
	sort.Strings(years)

	md.H2("Sellers")
	md.PlainText("")
	rows := make([][]string, 0, len(sellers))
	for _, s := range sellers {
		rows = append(rows, []string{s, strconv.Itoa(bySeller[s].items), yen(bySeller[s].spent)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Seller", "Items", "Spent"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, year := range years {
		md.H2(year)
		md.PlainText("")
		rows := make([][]string, 0, len(byYear[year]))
		for _, r := range byYear[year] {
			name := escapeCell(r.Name)
			if r.URL != "" {
				name = fmt.Sprintf("[%s](%s)", name, r.URL)
			}
			rows = append(rows, []string{
				r.OrderDate,
				r.OrderNumber,
				escapeCell(r.Seller),
				name,
				yen(r.Price),
				strconv.Itoa(r.Count),
				escapeCell(strings.Join(r.Category, " > ")),
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Date", "Order", "Seller", "Item", "Price", "Count", "Category"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	return md.Build()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// yen formats an amount with thousands separators
func yen(n int) string {
	return yenPrinter.Sprintf("%d円", n)
}
