package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/law-makers/ordercrawl/internal/auth"
	"github.com/law-makers/ordercrawl/internal/ui"
	"github.com/spf13/cobra"
)

var importFormat string

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage the saved browser session",
	Long: `A successful login saves the browser cookies so the next run can skip the
login form. Cookies can also be imported from a regular browser, which helps
where the storefront asks for a captcha in headless mode.`,
	Example: `  # Show the saved session
  ordercrawl session show

  # Import cookies exported by a browser extension
  ordercrawl session import --format netscape < cookies.txt`,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the saved session",
	Args:  cobra.NoArgs,
	RunE:  runSessionShow,
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Forget the saved session",
	Args:  cobra.NoArgs,
	RunE:  runSessionDelete,
}

var sessionImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import cookies from stdin",
	Args:  cobra.NoArgs,
	RunE:  runSessionImport,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionShowCmd, sessionDeleteCmd, sessionImportCmd)

	sessionImportCmd.Flags().StringVar(&importFormat, "format", "json", "Import format: json, netscape")
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)
	session, err := a.Secrets.LoadSession()
	if errors.Is(err, auth.ErrNoSecret) {
		fmt.Println("No saved session. It is created by the next successful login.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	printSession(os.Stdout, session, time.Now())
	return nil
}

func printSession(w io.Writer, s *auth.SessionData, now time.Time) {
	fmt.Fprintf(w, "\n%s\n", ui.Bold("Saved session"))
	fmt.Fprintln(w, ui.Rule())
	fmt.Fprintf(w, "  %-10s %s\n", "Created:", s.CreatedAt.Format(time.RFC1123))
	if !s.ExpiresAt.IsZero() {
		status := ui.Success(fmt.Sprintf("valid for %s", s.ExpiresAt.Sub(now).Round(time.Hour)))
		if now.After(s.ExpiresAt) {
			status = ui.Error("expired")
		}
		fmt.Fprintf(w, "  %-10s %s (%s)\n", "Expires:", s.ExpiresAt.Format(time.RFC1123), status)
	}
	fmt.Fprintf(w, "  %-10s %d\n", "Cookies:", len(s.Cookies))
	for i, c := range s.Cookies {
		if i == 5 {
			fmt.Fprintf(w, "    ... and %d more\n", len(s.Cookies)-5)
			break
		}
		fmt.Fprintf(w, "    • %s %s\n", c.Name, ui.Dim(c.Domain))
	}
	fmt.Fprintln(w)
}

func runSessionDelete(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)
	if err := a.Secrets.DeleteSession(); err != nil && !errors.Is(err, auth.ErrNoSecret) {
		return err
	}
	fmt.Println(ui.Success("✓ Session deleted"))
	return nil
}

func runSessionImport(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)

	var cookies []auth.Cookie
	var err error
	switch importFormat {
	case "json":
		cookies, err = parseCookieJSON(os.Stdin)
	case "netscape":
		cookies, err = parseNetscape(os.Stdin)
	default:
		return fmt.Errorf("unsupported format: %s (use: json, netscape)", importFormat)
	}
	if err != nil {
		return fmt.Errorf("failed to import cookies: %w", err)
	}
	if len(cookies) == 0 {
		return fmt.Errorf("no cookies imported")
	}

	session := auth.NewSessionData(cookies)
	if err := a.Secrets.SaveSession(session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	fmt.Println(ui.Success(fmt.Sprintf("✓ Imported %d cookies", len(cookies))))
	return nil
}

// parseCookieJSON reads the array written by DevTools and most cookie extensions
func parseCookieJSON(r io.Reader) ([]auth.Cookie, error) {
	var cookies []auth.Cookie
	if err := json.NewDecoder(r).Decode(&cookies); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return cookies, nil
}

const httpOnlyPrefix = "#HttpOnly_"

// parseNetscape reads a cookies.txt file as written by curl and wget
func parseNetscape(r io.Reader) ([]auth.Cookie, error) {
	var cookies []auth.Cookie
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		httpOnly := strings.HasPrefix(line, httpOnlyPrefix)
		if httpOnly {
			line = strings.TrimPrefix(line, httpOnlyPrefix)
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			fields = strings.Fields(line)
		}
		if len(fields) < 7 {
			continue
		}

		c := auth.Cookie{
			Domain:   fields[0],
			Path:     fields[2],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			Name:     fields[5],
			Value:    fields[6],
			HTTPOnly: httpOnly,
		}
		if exp, err := strconv.ParseInt(fields[4], 10, 64); err == nil && exp > 0 {
			c.Expires = float64(exp)
		}
		cookies = append(cookies, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cookies, nil
}
