package crawler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSiteError is the cause of a CrawlError raised for an error banner
var ErrSiteError = errors.New("site reported an error")

// Kind tells how far a failure propagates
type Kind int

const (
	// Transient failures are contained at order level; the order stays
	// unseen and is retried by the next run.
	Transient Kind = iota + 1

	// Fatal failures abort the run.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// CrawlError wraps a failure with the position of the crawl it happened at
type CrawlError struct {
	Kind        Kind
	Op          string
	Year        int
	Page        int
	OrderNumber string
	DumpID      string
	Cause       error
}

func (e *CrawlError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", e.Kind, e.Op)
	if e.Year != 0 {
		fmt.Fprintf(&b, " year=%d", e.Year)
	}
	if e.Page != 0 {
		fmt.Fprintf(&b, " page=%d", e.Page)
	}
	if e.OrderNumber != "" {
		fmt.Fprintf(&b, " order=%s", e.OrderNumber)
	}
	if e.DumpID != "" {
		fmt.Fprintf(&b, " dump=%s", e.DumpID)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *CrawlError) Unwrap() error {
	return e.Cause
}

// Is matches another *CrawlError of the same kind
func (e *CrawlError) Is(target error) bool {
	if t, ok := target.(*CrawlError); ok {
		return e.Kind == t.Kind
	}
	return false
}

// IsTransient reports whether err is a transient CrawlError
func IsTransient(err error) bool {
	var ce *CrawlError
	return errors.As(err, &ce) && ce.Kind == Transient
}

// IsFatal reports whether err is a fatal CrawlError
func IsFatal(err error) bool {
	var ce *CrawlError
	return errors.As(err, &ce) && ce.Kind == Fatal
}

// at is the crawl position errors are tagged with
type at struct {
	year  int
	page  int
	order string
}

func (p at) transient(op string, cause error) *CrawlError {
	return &CrawlError{Kind: Transient, Op: op, Year: p.year, Page: p.page, OrderNumber: p.order, Cause: cause}
}

func (p at) fatal(op string, cause error) *CrawlError {
	var ce *CrawlError
	if errors.As(cause, &ce) && ce.Kind == Fatal {
		return ce
	}
	return &CrawlError{Kind: Fatal, Op: op, Year: p.year, Page: p.page, OrderNumber: p.order, Cause: cause}
}
