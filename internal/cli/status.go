package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/law-makers/ordercrawl/internal/store"
	"github.com/law-makers/ordercrawl/internal/ui"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the store holds",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// YearStatus is the crawl state of a year
type YearStatus struct {
	Year    int  `json:"year"`
	Orders  int  `json:"orders"`
	Counted bool `json:"counted"`
	Checked bool `json:"checked"`
	Resume  int  `json:"resume_page,omitempty"`
}

// Status is the report printed by the status command
type Status struct {
	store.Stats
	PerYear []YearStatus `json:"per_year"`
}

func collectStatus(ctx context.Context, s store.Store) (Status, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return Status{}, err
	}
	years, err := s.YearList(ctx)
	if err != nil {
		return Status{}, err
	}

	st := Status{Stats: stats}
	for _, y := range years {
		ys := YearStatus{Year: y}
		if ys.Orders, ys.Counted, err = s.OrderCount(ctx, y); err != nil {
			return Status{}, err
		}
		if ys.Checked, err = s.YearChecked(ctx, y); err != nil {
			return Status{}, err
		}
		if ys.Resume, err = s.ResumePage(ctx, y); err != nil {
			return Status{}, err
		}
		st.PerYear = append(st.PerYear, ys)
	}
	return st, nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)
	st, err := collectStatus(cmd.Context(), a.Store)
	if err != nil {
		return fmt.Errorf("failed to read store: %w", err)
	}

	if a.Config.JSONLog {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	printStatus(os.Stdout, a.Config.Data.Store, st)
	return nil
}

func printStatus(w io.Writer, path string, st Status) {
	fmt.Fprintf(w, "\n%s\n", ui.Bold("Store: "+path))
	fmt.Fprintln(w, ui.Rule())

	if st.LastModified.IsZero() {
		fmt.Fprintf(w, "  Never crawled. Run %s to start.\n\n", ui.Command("ordercrawl crawl"))
		return
	}

	fmt.Fprintf(w, "  %-16s %s\n", "Last run:", st.LastModified.Local().Format(time.DateTime))
	fmt.Fprintf(w, "  %-16s %d of %d listed\n", "Orders:", st.OrdersSeen, st.TotalOrders)
	fmt.Fprintf(w, "  %-16s %d\n", "Items:", st.Items)
	fmt.Fprintf(w, "  %-16s %d of %d checked\n\n", "Years:", st.YearsChecked, st.Years)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Year", "Orders", "State"})
	for _, y := range st.PerYear {
		t.AppendRow(table.Row{y.Year, y.Orders, yearState(y)})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.SetStyle(table.StyleRounded)
	t.Render()
	fmt.Fprintln(w)
}

func yearState(y YearStatus) string {
	switch {
	case y.Checked:
		return ui.Success("checked")
	case y.Resume > 0:
		return ui.Info(fmt.Sprintf("in progress, page %d next", y.Resume))
	case y.Counted:
		return ui.Info("pending")
	default:
		return ui.Info("not counted")
	}
}
