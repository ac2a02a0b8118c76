package urlutil

import (
	"net/url"
)

// ResolveURL resolves a possibly-relative href against a base URL.
// Empty input stays empty and unparsable input is returned unchanged.
func ResolveURL(base, href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil || base == "" {
		return href
	}
	return baseURL.ResolveReference(u).String()
}

// Host returns the host of urlStr, or "" when it has none
func Host(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Host
}
