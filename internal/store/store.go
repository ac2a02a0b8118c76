// Package store persists crawl progress and collected orders between runs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/law-makers/ordercrawl/pkg/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store defines the durable state owned by the crawler.
//
// Every mutation is durable once the call returns; a crashed run can be
// resumed from whatever the store holds. Implementations:
//   - SQLiteStore: file-backed store used by the CLI
//   - MemoryStore: map-backed store for tests and dry runs
type Store interface {
	// YearList returns the selectable years discovered on the landing page, ascending.
	YearList(ctx context.Context) ([]int, error)

	// SetYearList replaces the known year list.
	SetYearList(ctx context.Context, years []int) error

	// OrderCount returns the cached order count for a year.
	// The boolean is false when no count has been recorded yet.
	OrderCount(ctx context.Context, year int) (int, bool, error)

	// SetOrderCount records the order count for a year.
	SetOrderCount(ctx context.Context, year, count int) error

	// TotalOrderCount sums the cached counts of all listed years.
	TotalOrderCount(ctx context.Context) (int, error)

	// PageChecked reports whether a history page has been fully walked.
	PageChecked(ctx context.Context, year, page int) (bool, error)

	// SetPageChecked marks a history page as fully walked. Checked is permanent.
	SetPageChecked(ctx context.Context, year, page int) error

	// YearChecked reports whether all pages of a year were walked at least once.
	YearChecked(ctx context.Context, year int) (bool, error)

	// SetYearChecked marks a year as fully walked.
	SetYearChecked(ctx context.Context, year int) error

	// OrderSeen reports whether an order was successfully recorded before.
	OrderSeen(ctx context.Context, orderNumber string) (bool, error)

	// MarkOrderSeen records the order and its items and sets its seen flag
	// in one step. Marking an already seen order is a no-op.
	MarkOrderSeen(ctx context.Context, order models.Order) error

	// LastItem returns the newest recorded order of a year, or ErrNotFound.
	LastItem(ctx context.Context, year int) (*LastOrder, error)

	// ResumePage returns the in-progress page of a year, or 0 if none.
	ResumePage(ctx context.Context, year int) (int, error)

	// SetResumePage records the in-progress page of a year; 0 clears it.
	SetResumePage(ctx context.Context, year, page int) error

	// LastModified returns when the store was last flushed (zero if never).
	LastModified(ctx context.Context) (time.Time, error)

	// Flush stamps the store's last-modified time.
	Flush(ctx context.Context, now time.Time) error

	// Items lists recorded items matching the filter.
	Items(ctx context.Context, filter ItemFilter) ([]models.Item, error)

	// Stats returns aggregate counts.
	Stats(ctx context.Context) (Stats, error)

	// Reset drops all state.
	Reset(ctx context.Context) error

	// Close releases the store.
	Close() error
}

// LastOrder identifies the newest recorded order of a year
type LastOrder struct {
	OrderNumber string
	Date        time.Time
}

// ItemFilter selects items; zero values match everything
type ItemFilter struct {
	Year   int
	Seller string
}

func (f ItemFilter) match(item models.Item) bool {
	if f.Year != 0 && item.OrderDate().Year() != f.Year {
		return false
	}
	if f.Seller != "" && item.SellerName() != f.Seller {
		return false
	}
	return true
}

// Stats summarizes the store content
type Stats struct {
	Years        int       `json:"years"`
	YearsChecked int       `json:"years_checked"`
	PagesChecked int       `json:"pages_checked"`
	OrdersSeen   int       `json:"orders_seen"`
	Items        int       `json:"items"`
	TotalOrders  int       `json:"total_orders"`
	LastModified time.Time `json:"last_modified"`
}
