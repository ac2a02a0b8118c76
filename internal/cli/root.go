// internal/cli/root.go
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/law-makers/ordercrawl/internal/app"
	"github.com/law-makers/ordercrawl/internal/config"
	"github.com/law-makers/ordercrawl/internal/ui"
)

// rootCmd runs a crawl when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ordercrawl [config.yaml]",
	Short: "Incrementally collect your storefront order history",
	Long: `ordercrawl logs in to the storefront, walks your order history year by year
and records every order with its items in a local database.

Runs are incremental: pages and orders recorded by previous runs are skipped,
and an interrupted run resumes where it stopped.`,
	Example: `  # Crawl with the default configuration
  ordercrawl

  # Crawl with a specific configuration file
  ordercrawl ~/ordercrawl.yaml

  # Export what was collected
  ordercrawl export --format csv -o orders.csv`,
	Version:       "0.1.0",
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCrawl,
}

// opened is closed by Execute once the command returns
var opened *app.Application

// Execute runs the CLI and exits with status 1 on error
func Execute(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)

	if opened != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_ = opened.Close(closeCtx)
		cancel()
		opened = nil
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, ui.Info("Interrupted; the next run resumes where this one stopped."))
		} else {
			fmt.Fprintln(os.Stderr, ui.Error("Error: "+err.Error()))
		}
		os.Exit(1)
	}
}

func init() {
	// Initialize the application lazily so -h/help never opens the store
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if GetApp(cmd) != nil {
			return nil
		}

		var path string
		if (cmd == rootCmd || cmd == crawlCmd) && len(args) == 1 {
			path = args[0]
		}
		cfg, err := config.Load(cmd, path)
		if err != nil {
			return err
		}

		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		opened = a
		SetApp(cmd, a)
		return nil
	}

	config.RegisterFlags(rootCmd)
	config.RegisterCrawlFlags(rootCmd)

	rootCmd.Flags().BoolP("help", "h", false, "Help for ordercrawl")
	rootCmd.Flags().Bool("version", false, "Version for ordercrawl")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		printHelp(os.Stdout, cmd)
	})
	rootCmd.SetUsageFunc(func(cmd *cobra.Command) error {
		printUsage(os.Stderr, cmd)
		return nil
	})
}
