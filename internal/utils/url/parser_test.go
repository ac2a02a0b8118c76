package urlutil

import "testing"

func TestResolveURL(t *testing.T) {
	base := "https://order.my.rakuten.co.jp/?page=myorder"

	tests := []struct {
		href string
		want string
	}{
		{"/img/a.jpg", "https://order.my.rakuten.co.jp/img/a.jpg"},
		{"https://item.rakuten.co.jp/shop/x/", "https://item.rakuten.co.jp/shop/x/"},
		{"?page=myorder&act=list", "https://order.my.rakuten.co.jp/?page=myorder&act=list"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ResolveURL(base, tt.href); got != tt.want {
			t.Errorf("ResolveURL(%q) = %q, want %q", tt.href, got, tt.want)
		}
	}

	if got := ResolveURL("", "/x"); got != "/x" {
		t.Errorf("empty base should leave href unchanged, got %q", got)
	}
}

func TestHost(t *testing.T) {
	if got := Host("https://item.rakuten.co.jp/shop/x/"); got != "item.rakuten.co.jp" {
		t.Errorf("got %q", got)
	}
	if got := Host("://bad"); got != "" {
		t.Errorf("expected empty host, got %q", got)
	}
}
