package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"tagsync/pkg/auth"
	"tagsync/pkg/config"
	"tagsync/pkg/logger"
	"tagsync/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
	account    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tagsync",
	Short: "Collect the posts tagging a brand account, one day at a time",
	Long: `tagsync walks the feed of posts that tag a brand's Instagram account and
keeps a record of those published on a given day.

Each run scans the tagged feed from the newest post down, collects the posts
whose publish date falls on the target day (yesterday by default, in KST),
writes them to a CSV batch file and merges them into the record store.

Configuration can come from a YAML file, TAGSYNC_* environment variables,
.env files and command line flags.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Version = version
		ui.SetQuiet(quiet)

		switch cmd.Name() {
		case "crawl", "schedule":
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.Output = os.Stderr
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ~/.config/tagsync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().StringVarP(&account, "account", "a", "", "use a specific stored session")

	rootCmd.SetVersionTemplate(`tagsync {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig loads the configuration with flags applied and initializes
// the global logger from it
func loadConfig(flags map[string]interface{}) (*config.Config, logger.Logger, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger.GetLogger(), nil
}

// resolveSession picks the session to crawl with: cookies given through the
// config, environment or flags win over stored sessions
func resolveSession(cfg *config.Config, log logger.Logger) (*auth.SessionState, error) {
	if cfg.Instagram.SessionID != "" && cfg.Instagram.CSRFToken != "" {
		log.Debug("Using session from configuration")
		return &auth.SessionState{
			Username:  cfg.Instagram.Username,
			SessionID: cfg.Instagram.SessionID,
			CSRFToken: cfg.Instagram.CSRFToken,
			UserAgent: cfg.Instagram.UserAgent,
		}, nil
	}

	manager, err := auth.NewManager("")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session manager: %w", err)
	}
	name := account
	if name == "" {
		name = cfg.Instagram.Username
	}
	state, err := manager.Load(name)
	if err != nil {
		return nil, fmt.Errorf("no stored session (run 'tagsync auth login' first): %w", err)
	}
	if state.UserAgent == "" {
		state.UserAgent = cfg.Instagram.UserAgent
	}
	log.WithField("account", state.Username).Debug("Using stored session")
	return state, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
