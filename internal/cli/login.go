package cli

import (
	"fmt"

	"github.com/law-makers/ordercrawl/internal/config"
	"github.com/law-makers/ordercrawl/internal/ui"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the storefront and save the session",
	Long: `Opens the order history and signs in with the configured login when the
storefront asks for it. The resulting cookies are saved so later crawls start
logged in. Use --headless=false to watch the browser.`,
	Example: `  # Check the stored login works
  ordercrawl login

  # Solve a captcha by hand
  ordercrawl login --headless=false`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	config.RegisterCrawlFlags(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)

	fmt.Printf("\n%s\n", ui.Bold("🔐 Login"))
	fmt.Println(ui.Rule())

	res, err := a.Login(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to open the order history: %w", err)
	}
	if !res.OK {
		return fmt.Errorf("login failed after %d attempts: %w", res.Attempts, res.Err)
	}

	if res.Attempts == 0 {
		fmt.Println(ui.Success("✓ Already logged in"))
	} else {
		fmt.Println(ui.Success(fmt.Sprintf("✓ Logged in (%d attempt(s)), session saved", res.Attempts)))
	}
	fmt.Println()
	return nil
}
