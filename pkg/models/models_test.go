package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFields() ItemFields {
	return ItemFields{
		Name:        "Coffee beans 500g",
		Price:       1280,
		Count:       2,
		ProductID:   "coffeeshop/beans-500",
		SellerName:  "Coffee Shop",
		OrderDate:   time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC),
		OrderNumber: "1001-20230401-0001",
	}
}

func TestNewItem_RequiresMandatoryFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ItemFields)
	}{
		{"name", func(f *ItemFields) { f.Name = "  " }},
		{"product id", func(f *ItemFields) { f.ProductID = "" }},
		{"seller", func(f *ItemFields) { f.SellerName = "" }},
		{"order number", func(f *ItemFields) { f.OrderNumber = "" }},
		{"order date", func(f *ItemFields) { f.OrderDate = time.Time{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validFields()
			tt.mutate(&f)
			_, err := NewItem(f)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMissingField))
		})
	}
}

func TestNewItem_RejectsBadNumbers(t *testing.T) {
	f := validFields()
	f.Count = 0
	_, err := NewItem(f)
	assert.Error(t, err)

	f = validFields()
	f.Price = -1
	_, err = NewItem(f)
	assert.Error(t, err)
}

func TestItem_IsImmutable(t *testing.T) {
	f := validFields()
	f.Category = []string{"Food", "Coffee"}
	item, err := NewItem(f)
	require.NoError(t, err)

	f.Category[0] = "Changed"
	assert.Equal(t, []string{"Food", "Coffee"}, item.Category())

	got := item.Category()
	got[0] = "Changed"
	assert.Equal(t, []string{"Food", "Coffee"}, item.Category())

	withThumb := item.WithThumbnail("coffeeshop_beans-500.png")
	assert.Equal(t, "", item.ThumbnailRef())
	assert.Equal(t, "coffeeshop_beans-500.png", withThumb.ThumbnailRef())

	_, known := item.IncludeTax()
	assert.False(t, known)
}

func TestProductIDFromURL(t *testing.T) {
	id, err := ProductIDFromURL("https://item.rakuten.co.jp/coffeeshop/beans-500/?s-id=top")
	require.NoError(t, err)
	assert.Equal(t, "coffeeshop/beans-500", id)

	_, err = ProductIDFromURL("https://books.rakuten.co.jp/rb/12345/")
	assert.ErrorIs(t, err, ErrUnrecognizedURL)
}

func TestStoreIDFromOrderNumber(t *testing.T) {
	id, err := StoreIDFromOrderNumber("213310-20230105-0123456789")
	require.NoError(t, err)
	assert.Equal(t, "213310", id)

	_, err = StoreIDFromOrderNumber("ABC")
	assert.ErrorIs(t, err, ErrInvalidOrderNumber)
}

func TestParsePrice(t *testing.T) {
	cases := map[string]int{
		"1,280円":          1280,
		"価格 12,345,678円":  12345678,
		"980円":            980,
		"１，２８０円":         1280,
		"小計：3000円 (税込)": 3000,
	}
	for in, want := range cases {
		got, err := ParsePrice(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParsePrice("無料")
	assert.Error(t, err)
}

func TestParseCount(t *testing.T) {
	n, err := ParseCount(" ３ ")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = ParseCount("x")
	assert.Error(t, err)
}
