// Package planner decides which years and pages need a live visit and how
// skipped pages are accounted for.
package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/law-makers/ordercrawl/internal/site"
)

// CheckedLookup is the part of the store the planner reads
type CheckedLookup interface {
	PageChecked(ctx context.Context, year, page int) (bool, error)
}

// Planner answers resume questions against the persisted checked flags
type Planner struct {
	store    CheckedLookup
	pageSize int
}

// New creates a Planner; a non-positive pageSize falls back to site.PageSize
func New(store CheckedLookup, pageSize int) *Planner {
	if pageSize <= 0 {
		pageSize = site.PageSize
	}
	return &Planner{store: store, pageSize: pageSize}
}

// PageSize returns the number of orders on a full history page
func (p *Planner) PageSize() int {
	return p.pageSize
}

// ShouldFetchLive returns false only when the page is already checked
func (p *Planner) ShouldFetchLive(ctx context.Context, year, page int) (bool, error) {
	checked, err := p.store.PageChecked(ctx, year, page)
	if err != nil {
		return false, fmt.Errorf("failed to read checked flag of %d/%d: %w", year, page, err)
	}
	return !checked, nil
}

// IsYearStale reports whether the order count of year must be refetched.
// A store that was never flushed makes every year stale.
func IsYearStale(year int, lastModified time.Time) bool {
	if lastModified.IsZero() {
		return true
	}
	return year >= lastModified.Year()
}

// ShouldVisitYear reports whether the page loop runs for year. The current
// calendar year and the last-modified year are always revisited.
func ShouldVisitYear(year int, checked bool, lastModified, now time.Time) bool {
	if !checked {
		return true
	}
	if year == now.Year() {
		return true
	}
	return !lastModified.IsZero() && year == lastModified.Year()
}

// TotalPages returns the number of history pages for orderCount orders
func (p *Planner) TotalPages(orderCount int) int {
	if orderCount <= 0 {
		return 0
	}
	return (orderCount + p.pageSize - 1) / p.pageSize
}

// IsLastPage reports whether page is the final page of a year
func (p *Planner) IsLastPage(page, totalPages int) bool {
	return page >= totalPages
}

// SkipIncrement is how many orders a skipped page accounts for
func (p *Planner) SkipIncrement(orderCount, processed int) int {
	remaining := orderCount - processed
	if remaining < 0 {
		return 0
	}
	return min(remaining, p.pageSize)
}

// SkipWasLast guesses whether a skipped page was the last one from its
// increment. It misjudges when the remote count moved since caching.
func (p *Planner) SkipWasLast(incr int) bool {
	return incr != p.pageSize
}
