package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().Bool("json", false, "Log in JSON format")
	cmd.PersistentFlags().String("config", "", "Path to configuration file (optional)")
	cmd.PersistentFlags().String("store", "", "Path to the crawl database")
}

// RegisterCrawlFlags registers the flags of the crawl command
func RegisterCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().String("proxy", "", "Set HTTP/SOCKS5 proxy (e.g., http://localhost:8080)")
	cmd.Flags().String("timeout", DefaultPageTimeout.String(), "Page load timeout")
	cmd.Flags().String("user-agent", "", "Custom user agent string")
	cmd.Flags().String("chrome-path", "", "Path to the Chrome binary")
	cmd.Flags().String("user", "", "Storefront login user")
	cmd.Flags().Bool("headless", DefaultBrowserHeadless, "Run the browser without a window")
	cmd.Flags().Bool("categories", DefaultCategories, "Visit item pages for their category")
	cmd.Flags().Bool("thumbnails", DefaultThumbnails, "Save item thumbnails")
}
