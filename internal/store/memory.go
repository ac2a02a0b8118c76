package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/law-makers/ordercrawl/pkg/models"
	"github.com/rs/zerolog/log"
)

type pageKey struct {
	year int
	page int
}

type seenOrder struct {
	order models.Order
	seq   int
}

// MemoryStore implements Store with in-process maps. State is lost on exit.
type MemoryStore struct {
	mu           sync.RWMutex
	years        []int
	counts       map[int]int
	yearsChecked map[int]bool
	pages        map[pageKey]bool
	resume       map[int]int
	orders       map[string]seenOrder
	seq          int
	lastModified time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counts:       make(map[int]int),
		yearsChecked: make(map[int]bool),
		pages:        make(map[pageKey]bool),
		resume:       make(map[int]int),
		orders:       make(map[string]seenOrder),
	}
}

func (m *MemoryStore) YearList(ctx context.Context) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.years...), nil
}

func (m *MemoryStore) SetYearList(ctx context.Context, years []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.years = append([]int(nil), years...)
	sort.Ints(m.years)
	return nil
}

func (m *MemoryStore) OrderCount(ctx context.Context, year int) (int, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.counts[year]
	return n, ok, nil
}

func (m *MemoryStore) SetOrderCount(ctx context.Context, year, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[year] = count
	return nil
}

func (m *MemoryStore) TotalOrderCount(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, y := range m.years {
		total += m.counts[y]
	}
	return total, nil
}

func (m *MemoryStore) PageChecked(ctx context.Context, year, page int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pages[pageKey{year, page}], nil
}

func (m *MemoryStore) SetPageChecked(ctx context.Context, year, page int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[pageKey{year, page}] = true
	return nil
}

func (m *MemoryStore) YearChecked(ctx context.Context, year int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.yearsChecked[year], nil
}

func (m *MemoryStore) SetYearChecked(ctx context.Context, year int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.yearsChecked[year] = true
	return nil
}

func (m *MemoryStore) OrderSeen(ctx context.Context, orderNumber string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.orders[orderNumber]
	return ok, nil
}

func (m *MemoryStore) MarkOrderSeen(ctx context.Context, order models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.OrderNumber]; ok {
		log.Debug().Str("order", order.OrderNumber).Msg("Order already seen")
		return nil
	}
	m.seq++
	order.Items = append([]models.Item(nil), order.Items...)
	m.orders[order.OrderNumber] = seenOrder{order: order, seq: m.seq}
	return nil
}

func (m *MemoryStore) LastItem(ctx context.Context, year int) (*LastOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *seenOrder
	for _, so := range m.orders {
		if so.order.Year() != year {
			continue
		}
		if best == nil || so.order.Date.After(best.order.Date) ||
			(so.order.Date.Equal(best.order.Date) && so.seq < best.seq) {
			so := so
			best = &so
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return &LastOrder{OrderNumber: best.order.OrderNumber, Date: best.order.Date}, nil
}

func (m *MemoryStore) ResumePage(ctx context.Context, year int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resume[year], nil
}

func (m *MemoryStore) SetResumePage(ctx context.Context, year, page int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if page <= 0 {
		delete(m.resume, year)
		return nil
	}
	m.resume[year] = page
	return nil
}

func (m *MemoryStore) LastModified(ctx context.Context) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastModified, nil
}

func (m *MemoryStore) Flush(ctx context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastModified = now
	return nil
}

func (m *MemoryStore) Items(ctx context.Context, filter ItemFilter) ([]models.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	orders := make([]seenOrder, 0, len(m.orders))
	for _, so := range m.orders {
		orders = append(orders, so)
	}
	sort.Slice(orders, func(i, j int) bool {
		a, b := orders[i].order, orders[j].order
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.OrderNumber < b.OrderNumber
	})

	var items []models.Item
	for _, so := range orders {
		for _, it := range so.order.Items {
			if filter.match(it) {
				items = append(items, it)
			}
		}
	}
	return items, nil
}

func (m *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Stats{
		Years:        len(m.years),
		PagesChecked: len(m.pages),
		OrdersSeen:   len(m.orders),
		LastModified: m.lastModified,
	}
	for _, y := range m.years {
		st.TotalOrders += m.counts[y]
		if m.yearsChecked[y] {
			st.YearsChecked++
		}
	}
	for _, so := range m.orders {
		st.Items += len(so.order.Items)
	}
	return st, nil
}

func (m *MemoryStore) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.years = nil
	m.counts = make(map[int]int)
	m.yearsChecked = make(map[int]bool)
	m.pages = make(map[pageKey]bool)
	m.resume = make(map[int]int)
	m.orders = make(map[string]seenOrder)
	m.seq = 0
	m.lastModified = time.Time{}
	log.Debug().Msg("Memory store cleared")
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
