package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/law-makers/ordercrawl/internal/config"
	"github.com/law-makers/ordercrawl/internal/crawler"
	"github.com/law-makers/ordercrawl/internal/progress"
	"github.com/law-makers/ordercrawl/internal/runctx"
	"github.com/law-makers/ordercrawl/internal/ui"
	"github.com/spf13/cobra"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl [config.yaml]",
	Short: "Collect new orders (default command)",
	Long: `Logs in if needed and walks the order history. Years and pages recorded by
previous runs are skipped; orders that failed are retried by the next run.`,
	Example: `  # Collect with categories but without thumbnails
  ordercrawl crawl --thumbnails=false

  # Watch the browser while it works
  ordercrawl crawl --headless=false -v`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)
	config.RegisterCrawlFlags(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)
	ctx := runctx.WithRun(cmd.Context())
	run := runctx.FromContext(ctx)

	visible := !a.Config.JSONLog && a.Config.LogLevel != "error"
	reporter := progress.NewBarReporter(os.Stderr, visible)

	c, err := a.NewCrawler(ctx, reporter)
	if err != nil {
		return runctx.Wrap(ctx, err)
	}

	a.Logger.Info().Str("run_id", run.ID).Str("store", a.Config.Data.Store).Msg("Crawl started")
	err = c.Run(ctx)

	printResult(os.Stdout, c.LastResult(), time.Since(run.StartTime))

	var ce *crawler.CrawlError
	if errors.As(err, &ce) && ce.DumpID != "" {
		fmt.Fprintf(os.Stderr, "%s %s\n", ui.Info("Diagnostic dump:"), filepath.Join(a.Config.Data.DumpDir, ce.DumpID+".html"))
	}
	return runctx.Wrap(ctx, err)
}

func printResult(w io.Writer, res crawler.Result, elapsed time.Duration) {
	fmt.Fprintf(w, "\n%s\n", ui.Bold("Crawl summary"))
	fmt.Fprintln(w, ui.Rule())
	fmt.Fprintf(w, "  %-16s %d (%d cached)\n", "Years:", res.Years, res.YearsSkipped)
	fmt.Fprintf(w, "  %-16s %d fetched, %d cached\n", "Pages:", res.PagesFetched, res.PagesSkipped)
	fmt.Fprintf(w, "  %-16s %s, %d cached\n", "Orders:", ui.Success(fmt.Sprintf("%d new", res.OrdersFetched)), res.OrdersSkipped)
	if res.OrdersFailed > 0 {
		fmt.Fprintf(w, "  %-16s %s\n", "Failed:", ui.Error(fmt.Sprintf("%d (retried next run)", res.OrdersFailed)))
	}
	fmt.Fprintf(w, "  %-16s %d\n", "Total listed:", res.TotalOrders)
	fmt.Fprintf(w, "  %-16s %s\n\n", "Elapsed:", elapsed.Round(time.Second))
}
