package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

func validate(c *Config) error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.Browser.PageTimeout <= 0 {
		return fmt.Errorf("page timeout must be > 0")
	}
	if c.Browser.SettleDelay < 0 {
		return fmt.Errorf("settle delay must be >= 0")
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("rate limit must be >= 0")
	}
	if c.FetchRetries < 1 || c.FetchRetries > DefaultMaxFetchRetries {
		return fmt.Errorf("fetch retries must be between 1 and %d", DefaultMaxFetchRetries)
	}
	if c.Crawl.PageSize <= 0 {
		return fmt.Errorf("page size must be > 0")
	}
	if c.Data.Store == "" {
		return fmt.Errorf("store path must not be empty")
	}
	if c.Login.Password != "" && c.Login.User == "" {
		return fmt.Errorf("login password given without user")
	}
	return nil
}
