package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/law-makers/ordercrawl/internal/export"
	"github.com/law-makers/ordercrawl/internal/store"
	"github.com/law-makers/ordercrawl/internal/ui"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportOutput string
	exportYear   int
	exportSeller string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write recorded items as JSON, CSV or Markdown",
	Example: `  # All items as JSON on stdout
  ordercrawl export

  # One year as CSV
  ordercrawl export --format csv --year 2023 -o 2023.csv

  # A Markdown report of the books store
  ordercrawl export --format md --seller 楽天ブックス -o books.md`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Output format: json, csv, md")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default stdout)")
	exportCmd.Flags().IntVar(&exportYear, "year", 0, "Only items ordered in this year")
	exportCmd.Flags().StringVar(&exportSeller, "seller", "", "Only items of this seller")
}

func runExport(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)

	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}

	items, err := a.Store.Items(cmd.Context(), store.ItemFilter{Year: exportYear, Seller: exportSeller})
	if err != nil {
		return fmt.Errorf("failed to read items: %w", err)
	}

	var w io.Writer = os.Stdout
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	if err := export.Write(w, format, items); err != nil {
		return fmt.Errorf("failed to export: %w", err)
	}

	if exportOutput != "" {
		fmt.Fprintln(os.Stderr, ui.Success(fmt.Sprintf("✓ %d items written to %s", len(items), exportOutput)))
	}
	return nil
}
