package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tagsync/pkg/runner"
	"tagsync/pkg/ui"
)

var (
	// Crawl command flags
	brandID     string
	brandName   string
	targetDay   string
	maxRounds   int
	targetCount int
	settleWait  time.Duration
	storeDriver string
	storeDSN    string
	exportDir   string
	noExport    bool
	noRetry     bool
	sessionID   string
	csrfToken   string
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Collect one day of posts tagging a brand",
	Long: `Scan the brand's tagged feed once and collect the posts published on the
target day.

The scan stops after five consecutive posts older than the target day, after
the feed stops growing, or after the round limit. Matched posts are written to
a CSV batch file and merged into the record store; rows already stored are
refreshed rather than duplicated.

A session is required, either stored with 'tagsync auth login' or passed as
cookies through --session-id/--csrf-token or TAGSYNC_SESSION_ID/TAGSYNC_CSRF_TOKEN.`,
	Example: `  # Collect yesterday's posts (KST)
  tagsync crawl --brand-id acme.official --brand-name acme

  # Backfill a specific day without writing a batch file
  tagsync crawl --brand-id acme.official --brand-name acme --day 2025-06-01 --no-export

  # Store into PostgreSQL
  tagsync crawl --brand-id acme.official --store-driver postgres \
    --store-dsn "postgres://tagsync@localhost/tagsync?sslmode=disable"`,
	Args: cobra.NoArgs,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringVar(&brandID, "brand-id", "", "brand account whose tagged feed is scanned")
	crawlCmd.Flags().StringVar(&brandName, "brand-name", "", "brand display name stored with each record")
	crawlCmd.Flags().StringVar(&targetDay, "day", "", "target day as YYYY-MM-DD (default: yesterday in the operating timezone)")
	crawlCmd.Flags().IntVar(&maxRounds, "max-rounds", 0, "maximum scroll rounds")
	crawlCmd.Flags().IntVar(&targetCount, "target-count", 0, "stop after this many matches (0 disables)")
	crawlCmd.Flags().DurationVar(&settleWait, "settle-wait", 0, "wait after each scroll")
	crawlCmd.Flags().StringVar(&storeDriver, "store-driver", "", "record store driver (sqlite, postgres)")
	crawlCmd.Flags().StringVar(&storeDSN, "store-dsn", "", "record store connection string")
	crawlCmd.Flags().StringVar(&exportDir, "export-dir", "", "directory for CSV batch files")
	crawlCmd.Flags().BoolVar(&noExport, "no-export", false, "skip the CSV batch file")
	crawlCmd.Flags().BoolVar(&noRetry, "no-retry", false, "make a single attempt")
	crawlCmd.Flags().StringVar(&sessionID, "session-id", "", "sessionid cookie (overrides stored sessions)")
	crawlCmd.Flags().StringVar(&csrfToken, "csrf-token", "", "csrftoken cookie (overrides stored sessions)")
}

func crawlFlags(cmd *cobra.Command) map[string]interface{} {
	flags := map[string]interface{}{
		"brand-id":     brandID,
		"brand-name":   brandName,
		"day":          targetDay,
		"store-driver": storeDriver,
		"store-dsn":    storeDSN,
		"export-dir":   exportDir,
		"session-id":   sessionID,
		"csrf-token":   csrfToken,
		"no-export":    noExport,
	}
	if cmd.Flags().Changed("max-rounds") {
		flags["max-rounds"] = maxRounds
	}
	if cmd.Flags().Changed("target-count") {
		flags["target-count"] = targetCount
	}
	if cmd.Flags().Changed("settle-wait") {
		flags["settle-wait"] = settleWait
	}
	return flags
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(crawlFlags(cmd))
	if err != nil {
		return err
	}
	if cfg.Crawl.BrandID == "" {
		return fmt.Errorf("brand id is required (--brand-id or TAGSYNC_BRAND_ID)")
	}

	state, err := resolveSession(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	r, closeStore, err := runner.Build(ctx, cfg, runner.InstagramSessions(cfg, state, log), log)
	if err != nil {
		return err
	}
	defer closeStore()

	params, err := r.Params(cfg.Crawl.BrandID, cfg.Crawl.BrandName, cfg.Crawl.TargetDay)
	if err != nil {
		return err
	}
	ui.PrintInfo("Brand", params.BrandID)
	ui.PrintInfo("Target day", params.TargetDay)

	run := r.RunWithRetry
	if noRetry {
		run = r.Run
	}
	report, runErr := run(ctx, params)
	fmt.Fprintln(ui.Output, ui.RenderReport(report, runErr))
	return runErr
}
