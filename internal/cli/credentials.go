package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/law-makers/ordercrawl/internal/auth"
	"github.com/law-makers/ordercrawl/internal/ui"
	"github.com/spf13/cobra"
)

var credentialsUser string

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage the stored storefront login",
	Long: `The login is kept in the OS keyring, or in a private file under the state
directory where no keyring is available (CI, Codespaces). Credentials given
in the config file or environment take precedence.`,
	Example: `  # Store a login, reading the password from stdin
  echo "$PASSWORD" | ordercrawl credentials set --user me@example.com

  # Show which login is stored
  ordercrawl credentials show`,
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store a login; the password is read from stdin",
	Args:  cobra.NoArgs,
	RunE:  runCredentialsSet,
}

var credentialsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored user",
	Args:  cobra.NoArgs,
	RunE:  runCredentialsShow,
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the stored login",
	Args:  cobra.NoArgs,
	RunE:  runCredentialsDelete,
}

func init() {
	rootCmd.AddCommand(credentialsCmd)
	credentialsCmd.AddCommand(credentialsSetCmd, credentialsShowCmd, credentialsDeleteCmd)

	credentialsSetCmd.Flags().StringVar(&credentialsUser, "user", "", "Login user (required)")
	_ = credentialsSetCmd.MarkFlagRequired("user")
}

// readPassword returns the first line of r
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", fmt.Errorf("no password on stdin")
	}
	return pw, nil
}

func runCredentialsSet(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)

	if isTerminal(os.Stdin) {
		fmt.Fprint(os.Stderr, "Password: ")
	}
	pw, err := readPassword(os.Stdin)
	if err != nil {
		return err
	}

	creds := auth.Credentials{User: credentialsUser, Password: pw}
	if err := a.Secrets.SaveCredentials(creds); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}
	fmt.Println(ui.Success(fmt.Sprintf("✓ Login for %s stored (%s)", creds.User, a.Secrets.Kind())))
	return nil
}

func runCredentialsShow(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)

	creds, err := a.Secrets.LoadCredentials()
	if errors.Is(err, auth.ErrNoSecret) {
		fmt.Println("No login stored.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("  %-10s %s\n", "User:", creds.User)
	fmt.Printf("  %-10s %s\n", "Password:", strings.Repeat("*", 8))
	fmt.Printf("  %-10s %s\n", "Backend:", a.Secrets.Kind())
	return nil
}

func runCredentialsDelete(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)
	if err := a.Secrets.DeleteCredentials(); err != nil && !errors.Is(err, auth.ErrNoSecret) {
		return err
	}
	fmt.Println(ui.Success("✓ Login deleted"))
	return nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
