package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tagsync/pkg/auth"
	"tagsync/pkg/instagram"
	"tagsync/pkg/ui"
)

var verifyLogin bool

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored Instagram sessions",
	Long: `Manage the Instagram sessions tagsync crawls with.

Sessions are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - TAGSYNC_SESSION_ID / TAGSYNC_CSRF_TOKEN environment variables (read only)

Never share your session cookies or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store session cookies securely",
	Long: `Store the sessionid and csrftoken cookies of a logged-in browser.

You will be prompted for:
  - Instagram username (if not provided)
  - sessionid cookie
  - csrftoken cookie
  - User Agent (optional, press Enter for the configured one)`,
	Example: `  # Interactive login
  tagsync auth login

  # Login and check the session against Instagram
  tagsync auth login ops.account --verify`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [username]",
	Short: "Remove a stored session",
	Long: `Remove a stored session. Without a username the most recently saved
session is removed after confirmation.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"show"},
	Short:   "List stored sessions",
	Long:    `List stored sessions with their cookies masked. The first one is used by default.`,
	Args:    cobra.NoArgs,
	RunE:    runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)

	loginCmd.Flags().BoolVar(&verifyLogin, "verify", false, "check the session by loading the account's profile")
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(nil)
	if err != nil {
		return err
	}
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize session manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)
	auth.WriteCookieGuide(os.Stdout)
	fmt.Println()

	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		fmt.Print("Instagram username: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
		username = strings.TrimSpace(input)
	}
	username = instagram.SanitizeUsername(username)
	if !instagram.IsValidUsername(username) {
		return fmt.Errorf("invalid username %q", username)
	}

	if existing, _ := manager.Load(username); existing != nil && existing.Username == username {
		fmt.Printf("\nSession for '%s' already exists. Replace it? (y/N): ", username)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Println("\nEnter your cookie values (they will be hidden as you type):")
	fmt.Print("sessionid cookie value: ")
	sessionValue, err := readPassword(reader)
	if err != nil {
		return fmt.Errorf("failed to read sessionid: %w", err)
	}
	fmt.Print("csrftoken cookie value: ")
	csrfValue, err := readPassword(reader)
	if err != nil {
		return fmt.Errorf("failed to read csrftoken: %w", err)
	}

	fmt.Print("User Agent (press Enter to use the configured one): ")
	userAgent, _ := reader.ReadString('\n')

	state := &auth.SessionState{
		Username:  username,
		SessionID: sessionValue,
		CSRFToken: csrfValue,
		UserAgent: strings.TrimSpace(userAgent),
	}
	if err := state.Validate(); err != nil {
		return err
	}

	if verifyLogin {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		session, err := instagram.NewWebSessionFromConfig(cfg, state, log)
		if err != nil {
			return err
		}
		if err := session.Open(ctx, username); err != nil {
			return fmt.Errorf("session check failed: %w", err)
		}
		ui.PrintSuccess("Session accepted by Instagram")
	}

	if err := manager.Save(state); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	masked := auth.Sanitize(state)
	fmt.Println()
	ui.PrintSuccess("Session saved: " + username)
	ui.PrintInfo("sessionid", masked.SessionID)
	ui.PrintInfo("csrftoken", masked.CSRFToken)
	fmt.Println()
	auth.WriteQuickGuide(os.Stdout)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize session manager: %w", err)
	}

	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		state, err := manager.Load("")
		if err != nil {
			ui.PrintWarning("No stored sessions found")
			return nil
		}
		fmt.Printf("Remove session '%s'? (y/N): ", state.Username)
		input, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
		username = state.Username
	}

	if err := manager.Delete(username); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	ui.PrintSuccess("Session removed: " + username)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize session manager: %w", err)
	}

	states, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(states) == 0 {
		ui.PrintInfo("No stored sessions", "Use 'tagsync auth login' to add one")
		return nil
	}

	ui.PrintHighlight("Stored Sessions")
	for i, state := range states {
		s := auth.Sanitize(state)
		fmt.Printf("\n%d. %s\n", i+1, s.Username)
		fmt.Printf("   sessionid: %s\n", s.SessionID)
		fmt.Printf("   csrftoken: %s\n", s.CSRFToken)
		if s.UserAgent != "" {
			fmt.Printf("   User Agent: %s\n", s.UserAgent)
		}
		fmt.Printf("   Saved: %s\n", s.SavedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// readPassword reads a secret from stdin without echoing when it is a terminal
func readPassword(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
