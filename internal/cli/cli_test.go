package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/law-makers/ordercrawl/internal/crawler"
	"github.com/law-makers/ordercrawl/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNetscape(t *testing.T) {
	in := strings.Join([]string{
		"# Netscape HTTP Cookie File",
		"",
		".rakuten.co.jp\tTRUE\t/\tTRUE\t1767225600\tRz\tabc",
		"#HttpOnly_.rakuten.co.jp\tTRUE\t/\tFALSE\t0\tRp\txyz",
		"broken line",
	}, "\n")

	cookies, err := parseNetscape(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, cookies, 2)

	assert.Equal(t, "Rz", cookies[0].Name)
	assert.Equal(t, "abc", cookies[0].Value)
	assert.Equal(t, ".rakuten.co.jp", cookies[0].Domain)
	assert.True(t, cookies[0].Secure)
	assert.False(t, cookies[0].HTTPOnly)
	assert.Equal(t, float64(1767225600), cookies[0].Expires)

	assert.Equal(t, "Rp", cookies[1].Name)
	assert.True(t, cookies[1].HTTPOnly)
	assert.False(t, cookies[1].Secure)
	assert.Zero(t, cookies[1].Expires)
}

func TestParseCookieJSON(t *testing.T) {
	in := `[{"name":"Rz","value":"abc","domain":".rakuten.co.jp","path":"/","expires":1767225600,"httpOnly":true,"secure":true}]`
	cookies, err := parseCookieJSON(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, "Rz", cookies[0].Name)
	assert.True(t, cookies[0].HTTPOnly)

	_, err = parseCookieJSON(strings.NewReader("{"))
	assert.ErrorContains(t, err, "invalid JSON")
}

func TestReadPassword(t *testing.T) {
	pw, err := readPassword(strings.NewReader("s3cret\r\nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)

	pw, err = readPassword(strings.NewReader("noeol"))
	require.NoError(t, err)
	assert.Equal(t, "noeol", pw)

	_, err = readPassword(strings.NewReader(""))
	assert.Error(t, err)
}

func TestCollectStatus(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.SetYearList(ctx, []int{2022, 2023}))
	require.NoError(t, s.SetOrderCount(ctx, 2022, 30))
	require.NoError(t, s.SetOrderCount(ctx, 2023, 60))
	require.NoError(t, s.SetYearChecked(ctx, 2022))
	require.NoError(t, s.SetResumePage(ctx, 2023, 2))
	require.NoError(t, s.Flush(ctx, time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)))

	st, err := collectStatus(ctx, s)
	require.NoError(t, err)
	require.Len(t, st.PerYear, 2)
	assert.Equal(t, YearStatus{Year: 2022, Orders: 30, Counted: true, Checked: true}, st.PerYear[0])
	assert.Equal(t, YearStatus{Year: 2023, Orders: 60, Counted: true, Resume: 2}, st.PerYear[1])

	var buf bytes.Buffer
	printStatus(&buf, "/tmp/ordercrawl.db", st)
	out := buf.String()
	assert.Contains(t, out, "2022")
	assert.Contains(t, out, "page 2 next")
}

func TestPrintStatus_Fresh(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, "/tmp/ordercrawl.db", Status{})
	assert.Contains(t, buf.String(), "Never crawled")
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, crawler.Result{Years: 3, PagesFetched: 2, OrdersFetched: 7, OrdersFailed: 1, TotalOrders: 40}, 90*time.Second)
	out := buf.String()
	assert.Contains(t, out, "7 new")
	assert.Contains(t, out, "retried next run")
	assert.Contains(t, out, "1m30s")
}

func TestPrintResult_NoFailures(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, crawler.Result{OrdersSkipped: 4}, time.Second)
	assert.NotContains(t, buf.String(), "Failed:")
}
