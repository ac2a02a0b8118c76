package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/law-makers/ordercrawl/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleItems(t *testing.T) []models.Item {
	t.Helper()
	jst := time.FixedZone("JST", 9*60*60)
	tax := true

	a, err := models.NewItem(models.ItemFields{
		Name:        "Tea set",
		Price:       3980,
		Count:       2,
		ProductID:   "teashop/10000123",
		URL:         "https://item.rakuten.co.jp/teashop/10000123/",
		Category:    []string{"Kitchen", "Tea"},
		SellerName:  "teashop",
		OrderDate:   time.Date(2022, 5, 1, 0, 0, 0, 0, jst),
		OrderNumber: "200001-20220501-0000001",
		IncludeTax:  &tax,
	})
	require.NoError(t, err)

	b, err := models.NewItem(models.ItemFields{
		Name:        "Novel Vol.1",
		Price:       770,
		Count:       1,
		ProductID:   "book/17000001",
		SellerName:  "楽天ブックス",
		OrderDate:   time.Date(2023, 1, 9, 10, 30, 0, 0, jst),
		OrderNumber: "213310-20230109-0000002",
	})
	require.NoError(t, err)

	return []models.Item{a, b.WithThumbnail("/thumbs/book_17000001.png")}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": FormatJSON, "CSV": FormatCSV, "md": FormatMarkdown, "markdown": FormatMarkdown, "": FormatJSON} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestRecords(t *testing.T) {
	tax := true
	want := []Record{
		{
			OrderDate:   "2022-05-01",
			OrderNumber: "200001-20220501-0000001",
			Seller:      "teashop",
			Name:        "Tea set",
			Price:       3980,
			Count:       2,
			IncludeTax:  &tax,
			ProductID:   "teashop/10000123",
			URL:         "https://item.rakuten.co.jp/teashop/10000123/",
			Category:    []string{"Kitchen", "Tea"},
		},
		{
			OrderDate:   "2023-01-09",
			OrderNumber: "213310-20230109-0000002",
			Seller:      "楽天ブックス",
			Name:        "Novel Vol.1",
			Price:       770,
			Count:       1,
			ProductID:   "book/17000001",
			Thumbnail:   "/thumbs/book_17000001.png",
		},
	}

	got := Records(sampleItems(t))
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Records() mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, sampleItems(t)))

	var records []Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &records))
	require.Len(t, records, 2)

	assert.Equal(t, "2022-05-01", records[0].OrderDate)
	assert.Equal(t, 3980, records[0].Price)
	require.NotNil(t, records[0].IncludeTax)
	assert.True(t, *records[0].IncludeTax)
	assert.Nil(t, records[1].IncludeTax)
	assert.Equal(t, "/thumbs/book_17000001.png", records[1].Thumbnail)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sampleItems(t)))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "Kitchen > Tea", rows[1][9])
	assert.Equal(t, "true", rows[1][6])
	assert.Equal(t, "", rows[2][6])
	assert.Equal(t, "Novel Vol.1", rows[2][3])
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatMarkdown, sampleItems(t)))
	out := buf.String()

	assert.Contains(t, out, "# Order history")
	assert.Contains(t, out, "## Sellers")
	assert.Contains(t, out, "## 2022")
	assert.Contains(t, out, "## 2023")
	assert.Contains(t, out, "7,960円")
	assert.Contains(t, out, "[Tea set](https://item.rakuten.co.jp/teashop/10000123/)")
	assert.Contains(t, out, "楽天ブックス")
}

func TestWriteMarkdown_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, nil))
	assert.Contains(t, buf.String(), "No items recorded.")
}
