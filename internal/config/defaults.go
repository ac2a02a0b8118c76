package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// AppName names the XDG directories and the keyring service
const AppName = "ordercrawl"

// Default constants for application configuration
const (
	DefaultLogLevel           = "info"
	DefaultJSONLog            = false
	DefaultUserAgent          = ""
	DefaultBrowserHeadless    = true
	DefaultPageTimeout        = 30 * time.Second
	DefaultSettleDelay        = 500 * time.Millisecond
	DefaultRateLimitRPS       = 1.0
	DefaultRateLimitBurst     = 2
	DefaultFetchRetries       = 3
	DefaultMaxFetchRetries    = 10
	DefaultPageSize           = 25
	DefaultCategories         = true
	DefaultThumbnails         = true
	DefaultRecheckCurrentYear = false
	DefaultConfigFile         = "config.yaml"
)

// DataDir is where the store and thumbnails live by default
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// ConfigDir is where config.yaml is looked up by default
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// StateDir holds dumps and the file-based secret store
func StateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}
