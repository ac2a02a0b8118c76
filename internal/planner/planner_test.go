package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/law-makers/ordercrawl/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenLookup struct{}

func (brokenLookup) PageChecked(ctx context.Context, year, page int) (bool, error) {
	return false, errors.New("disk gone")
}

func TestShouldFetchLive(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.SetPageChecked(ctx, 2023, 1))

	p := New(s, 0)

	live, err := p.ShouldFetchLive(ctx, 2023, 1)
	require.NoError(t, err)
	assert.False(t, live)

	live, err = p.ShouldFetchLive(ctx, 2023, 2)
	require.NoError(t, err)
	assert.True(t, live)

	_, err = New(brokenLookup{}, 25).ShouldFetchLive(ctx, 2023, 1)
	assert.Error(t, err)
}

func TestIsYearStale(t *testing.T) {
	lm := time.Date(2022, 7, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		year int
		lm   time.Time
		want bool
	}{
		{2021, lm, false},
		{2022, lm, true},
		{2023, lm, true},
		{2010, time.Time{}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsYearStale(tt.year, tt.lm), "year %d", tt.year)
	}
}

func TestShouldVisitYear(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	lm := time.Date(2022, 12, 30, 0, 0, 0, 0, time.UTC)

	assert.True(t, ShouldVisitYear(2019, false, lm, now), "unchecked year")
	assert.False(t, ShouldVisitYear(2019, true, lm, now), "checked old year")
	assert.True(t, ShouldVisitYear(2022, true, lm, now), "last modified year")
	assert.True(t, ShouldVisitYear(2024, true, lm, now), "current year")
	assert.False(t, ShouldVisitYear(2023, true, lm, now))
	assert.False(t, ShouldVisitYear(1, true, time.Time{}, now))
}

func TestTotalPagesAndLastPage(t *testing.T) {
	p := New(nil, 25)

	assert.Equal(t, 0, p.TotalPages(0))
	assert.Equal(t, 1, p.TotalPages(3))
	assert.Equal(t, 1, p.TotalPages(25))
	assert.Equal(t, 2, p.TotalPages(26))
	assert.Equal(t, 3, p.TotalPages(57))

	assert.False(t, p.IsLastPage(2, 3))
	assert.True(t, p.IsLastPage(3, 3))
	assert.True(t, p.IsLastPage(1, 0))
}

func TestSkipAccounting(t *testing.T) {
	p := New(nil, 25)

	// 57 cached orders with pages 1 and 2 checked
	processed := 0
	for page := 1; page <= 2; page++ {
		incr := p.SkipIncrement(57, processed)
		assert.False(t, p.SkipWasLast(incr), "page %d", page)
		processed += incr
	}
	assert.Equal(t, 50, processed)

	incr := p.SkipIncrement(57, processed)
	assert.Equal(t, 7, incr)
	assert.True(t, p.SkipWasLast(incr))

	assert.Equal(t, 0, p.SkipIncrement(10, 30))
}
