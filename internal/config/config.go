package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
)

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string `yaml:"log_level" env:"ORDERCRAWL_LOG_LEVEL"`
	JSONLog  bool   `yaml:"json_log"`

	// Login to the storefront. Empty values fall back to the secret store.
	Login LoginConfig `yaml:"login"`

	// Browser
	Browser BrowserConfig `yaml:"browser"`

	// Rate Limiting
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
	FetchRetries   int     `yaml:"fetch_retries"`

	// Paths
	Data DataConfig `yaml:"data"`

	// Crawl behaviour
	Crawl CrawlConfig `yaml:"crawl"`

	// Path is the file the config was read from, if any
	Path string `yaml:"-"`
}

// LoginConfig holds storefront credentials
type LoginConfig struct {
	User     string `yaml:"user" env:"ORDERCRAWL_USER"`
	Password string `yaml:"password" env:"ORDERCRAWL_PASSWORD"`
}

// BrowserConfig tunes the chromedp session
type BrowserConfig struct {
	ChromePath  string        `yaml:"chrome_path" env:"ORDERCRAWL_CHROME_PATH"`
	Headless    bool          `yaml:"headless" env:"ORDERCRAWL_HEADLESS"`
	UserAgent   string        `yaml:"user_agent" env:"ORDERCRAWL_USER_AGENT"`
	Proxy       string        `yaml:"proxy" env:"ORDERCRAWL_PROXY"`
	PageTimeout time.Duration `yaml:"page_timeout" env:"ORDERCRAWL_PAGE_TIMEOUT"`
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// DataConfig locates files written by the crawler
type DataConfig struct {
	Store      string `yaml:"store" env:"ORDERCRAWL_STORE"`
	ThumbDir   string `yaml:"thumb_dir"`
	DumpDir    string `yaml:"dump_dir"`
	SecretsDir string `yaml:"secrets_dir"`
}

// CrawlConfig switches optional crawl steps
type CrawlConfig struct {
	PageSize           int  `yaml:"page_size"`
	Categories         bool `yaml:"categories"`
	Thumbnails         bool `yaml:"thumbnails"`
	RecheckCurrentYear bool `yaml:"recheck_current_year"`
}

// Default returns a Config holding only default values
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		JSONLog:  DefaultJSONLog,
		Browser: BrowserConfig{
			Headless:    DefaultBrowserHeadless,
			UserAgent:   DefaultUserAgent,
			PageTimeout: DefaultPageTimeout,
			SettleDelay: DefaultSettleDelay,
		},
		RateLimitRPS:   DefaultRateLimitRPS,
		RateLimitBurst: DefaultRateLimitBurst,
		FetchRetries:   DefaultFetchRetries,
		Data: DataConfig{
			Store:      filepath.Join(DataDir(), "ordercrawl.db"),
			ThumbDir:   filepath.Join(DataDir(), "thumbs"),
			DumpDir:    filepath.Join(StateDir(), "dumps"),
			SecretsDir: filepath.Join(StateDir(), "secrets"),
		},
		Crawl: CrawlConfig{
			PageSize:           DefaultPageSize,
			Categories:         DefaultCategories,
			Thumbnails:         DefaultThumbnails,
			RecheckCurrentYear: DefaultRecheckCurrentYear,
		},
	}
}

// Load builds a Config by combining defaults, an optional config file, environment variables, and CLI flags.
// An explicit path must exist; without one the default location is tried.
// Caller should pass the command being run so flags can be read.
func Load(cmd *cobra.Command, path string) (*Config, error) {
	cfg := Default()

	if path == "" && cmd != nil {
		if f := cmd.Flags().Lookup("config"); f != nil {
			path = f.Value.String()
		}
	}
	explicit := path != ""
	if !explicit {
		path = FindConfigFile()
	}
	if path != "" {
		if err := LoadFile(cfg, path); err != nil {
			if explicit || !os.IsNotExist(err) {
				return nil, err
			}
		} else {
			cfg.Path = path
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if cmd != nil {
		applyFlags(cfg, cmd)
	}

	cfg.Data.Store = expandHome(cfg.Data.Store)
	cfg.Data.ThumbDir = expandHome(cfg.Data.ThumbDir)
	cfg.Data.DumpDir = expandHome(cfg.Data.DumpDir)
	cfg.Data.SecretsDir = expandHome(cfg.Data.SecretsDir)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Override from ORDERCRAWL_* environment variables; unset variables keep the current value
func applyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Read CLI flags; only flags set on the command line override
func applyFlags(cfg *Config, cmd *cobra.Command) {
	flags := cmd.Flags()
	changed := func(name string) (string, bool) {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			return "", false
		}
		return f.Value.String(), true
	}

	if s, ok := changed("user-agent"); ok {
		cfg.Browser.UserAgent = s
	}
	if s, ok := changed("proxy"); ok {
		cfg.Browser.Proxy = s
	}
	if s, ok := changed("chrome-path"); ok {
		cfg.Browser.ChromePath = s
	}
	if s, ok := changed("timeout"); ok {
		if d, err := time.ParseDuration(s); err == nil {
			cfg.Browser.PageTimeout = d
		}
	}
	if s, ok := changed("headless"); ok {
		cfg.Browser.Headless = s == "true"
	}
	if s, ok := changed("store"); ok {
		cfg.Data.Store = s
	}
	if s, ok := changed("user"); ok {
		cfg.Login.User = s
	}
	if s, ok := changed("categories"); ok {
		cfg.Crawl.Categories = s == "true"
	}
	if s, ok := changed("thumbnails"); ok {
		cfg.Crawl.Thumbnails = s == "true"
	}
	if s, ok := changed("json"); ok && s == "true" {
		cfg.JSONLog = true
	}
	if s, ok := changed("verbose"); ok && s == "true" {
		cfg.LogLevel = "debug"
	}
	if s, ok := changed("quiet"); ok && s == "true" {
		cfg.LogLevel = "error"
	}
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
