package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tagsync/pkg/auth"
	"tagsync/pkg/config"
	"tagsync/pkg/ui"
)

var forceInit bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage tagsync configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (TAGSYNC_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every default",
	Long: `Write a configuration file holding every option at its default value.

The file is written to ~/.config/tagsync/config.yaml unless a different path
is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging every source. Cookies and the store
connection string are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the merged configuration and check that its directories can be
created.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)

	initCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.DefaultPath()
	}
	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Set crawl.brand_id and crawl.brand_name")
	fmt.Println("2. Store a session with 'tagsync auth login'")
	fmt.Println("3. Run 'tagsync config validate', then 'tagsync crawl'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(nil)
	if err != nil {
		return err
	}

	display := *cfg
	if display.Instagram.SessionID != "" || display.Instagram.CSRFToken != "" {
		masked := auth.Sanitize(&auth.SessionState{
			SessionID: display.Instagram.SessionID,
			CSRFToken: display.Instagram.CSRFToken,
		})
		display.Instagram.SessionID = masked.SessionID
		display.Instagram.CSRFToken = masked.CSRFToken
	}
	if display.Store.Driver != "sqlite" && display.Store.DSN != "" {
		display.Store.DSN = "********"
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(nil)
	if err != nil {
		return err
	}

	var warnings, problems []string
	if err := cfg.RequireBrand(); err != nil {
		warnings = append(warnings, err.Error())
	}
	if cfg.Instagram.SessionID == "" {
		warnings = append(warnings, "no session cookies configured; a stored session will be used")
	}

	dirs := []string{filepath.Dir(cfg.RunLog.Path)}
	if cfg.Export.Enabled {
		dirs = append(dirs, cfg.Export.Directory)
	}
	if cfg.Logging.File != "" {
		dirs = append(dirs, filepath.Dir(cfg.Logging.File))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create %s: %v", dir, err))
		}
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return fmt.Errorf("configuration is invalid")
	}
	for _, w := range warnings {
		ui.PrintWarning(w)
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Brand: %s (%s)\n", cfg.Crawl.BrandID, cfg.Crawl.BrandName)
	fmt.Printf("  Timezone offset: UTC%+d\n", cfg.Crawl.TimezoneOffset)
	fmt.Printf("  Store: %s\n", cfg.Store.Driver)
	fmt.Printf("  Schedule: %s\n", cfg.Schedule.Cron)
	fmt.Printf("  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Printf("  Max attempts: %d\n", cfg.Retry.MaxAttempts)
	return nil
}
