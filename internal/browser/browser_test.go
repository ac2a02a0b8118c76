package browser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/law-makers/ordercrawl/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDump(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "debug")
	page := models.Page{
		URL:  "https://order.my.rakuten.co.jp/",
		HTML: `<html><head><script>var x=1</script></head><body><h1>注文履歴</h1><a href="/detail">詳細</a></body></html>`,
	}

	id, err := WriteDump(dir, page, []byte("png"))
	require.NoError(t, err)
	assert.Len(t, id, 36)

	raw, err := os.ReadFile(filepath.Join(dir, id+".html"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "https://order.my.rakuten.co.jp/")
	assert.Contains(t, string(raw), "<h1>注文履歴</h1>")

	text, err := os.ReadFile(filepath.Join(dir, id+".md"))
	require.NoError(t, err)
	assert.Contains(t, string(text), "# 注文履歴")
	assert.Contains(t, string(text), "[詳細](https://order.my.rakuten.co.jp/detail)")
	assert.NotContains(t, string(text), "var x")

	_, err = os.Stat(filepath.Join(dir, id+".png"))
	assert.NoError(t, err)

	other, err := WriteDump(dir, page, nil)
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
	_, err = os.Stat(filepath.Join(dir, other+".png"))
	assert.True(t, os.IsNotExist(err), "no screenshot means no png")
}

func TestCleanHTML_KeepsLoginForm(t *testing.T) {
	out, err := CleanHTML(`<table class="loginBox" style="x"><tr><td><input id="loginInner_u" name="u" value="secret" onclick="x()"></td></tr></table><style>p{}</style>`)
	require.NoError(t, err)
	assert.Contains(t, out, `class="loginBox"`)
	assert.Contains(t, out, `id="loginInner_u"`)
	assert.NotContains(t, out, "secret")
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "<style>")
}

type fakeCapturer struct {
	calls int
	err   error
}

func (f *fakeCapturer) Capture(ctx context.Context, url, selector string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("png:" + url), nil
}

func testItem(t *testing.T) models.Item {
	t.Helper()
	item, err := models.NewItem(models.ItemFields{
		Name:        "beans",
		Price:       1280,
		Count:       1,
		ProductID:   "coffeeshop/beans-500",
		SellerName:  "Coffee Shop",
		OrderDate:   time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
		OrderNumber: "213310-20230501-0001",
	})
	require.NoError(t, err)
	return item
}

func TestThumbnailer(t *testing.T) {
	dir := t.TempDir()
	c := &fakeCapturer{}
	th := NewThumbnailer(c, dir)
	item := testItem(t)

	path, err := th.Save(context.Background(), item, "https://thumbnail.image.rakuten.co.jp/beans.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "coffeeshop_beans-500.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "png:"))

	// Stored thumbnails are not captured again
	_, err = th.Save(context.Background(), item, "https://thumbnail.image.rakuten.co.jp/beans.jpg")
	require.NoError(t, err)
	assert.Equal(t, 1, c.calls)

	_, err = th.Save(context.Background(), item, "")
	assert.Error(t, err)
}

func TestThumbnailer_CaptureError(t *testing.T) {
	th := NewThumbnailer(&fakeCapturer{err: errors.New("tab crashed")}, t.TempDir())
	_, err := th.Save(context.Background(), testItem(t), "https://thumbnail.image.rakuten.co.jp/x.jpg")
	assert.Error(t, err)
}

func TestFindChrome_Explicit(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "chrome")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0755))

	assert.Equal(t, bin, FindChrome(bin))
}
