package cli

import (
	"errors"
	"fmt"

	"github.com/law-makers/ordercrawl/internal/auth"
	"github.com/law-makers/ordercrawl/internal/ui"
	"github.com/spf13/cobra"
)

var (
	resetYes     bool
	resetSession bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop all crawl state so the next run starts over",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "Confirm dropping the store")
	resetCmd.Flags().BoolVar(&resetSession, "session", false, "Also forget the saved browser session")
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetYes {
		return fmt.Errorf("reset drops every recorded order; pass --yes to confirm")
	}
	a := GetApp(cmd)

	if err := a.Store.Reset(cmd.Context()); err != nil {
		return fmt.Errorf("failed to reset store: %w", err)
	}
	a.Logger.Info().Str("store", a.Config.Data.Store).Msg("Store reset")

	if resetSession {
		if err := a.Secrets.DeleteSession(); err != nil && !errors.Is(err, auth.ErrNoSecret) {
			return err
		}
	}
	fmt.Println(ui.Success("✓ Store reset"))
	return nil
}
