package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tagsync/pkg/clock"
	"tagsync/pkg/runlog"
	"tagsync/pkg/store"
	"tagsync/pkg/ui"
)

var statusJSON bool

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last run of every brand",
	Long: `Show the last recorded run of every brand together with the number of
rows the record store holds for it.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the run ledger as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(nil)
	if err != nil {
		return err
	}

	ledger, err := runlog.NewManager(cfg.RunLog.Path, log)
	if err != nil {
		return err
	}
	entries, err := ledger.List()
	if err != nil {
		return fmt.Errorf("failed to read run ledger: %w", err)
	}

	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	stored := make(map[string]int)
	ctx := context.Background()
	db, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN, store.Options{
		Table:  cfg.Store.Table,
		Clock:  clock.NewSystem(clock.Location(cfg.Crawl.TimezoneOffset)),
		Logger: log,
	})
	if err != nil {
		ui.PrintWarning("Record store unavailable", err)
	} else {
		defer db.Close()
		for _, e := range entries {
			n, err := db.CountByBrand(ctx, e.BrandID)
			if err != nil {
				log.WithError(err).WithField("brand_id", e.BrandID).Warn("Failed to count stored rows")
				continue
			}
			stored[e.BrandID] = n
		}
	}

	fmt.Fprintln(ui.Output, ui.RenderStatus(entries, stored))
	return nil
}
