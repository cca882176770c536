package runner

import (
	"context"
	"fmt"

	"tagsync/pkg/auth"
	"tagsync/pkg/clock"
	"tagsync/pkg/config"
	"tagsync/pkg/dateclass"
	errs "tagsync/pkg/errors"
	"tagsync/pkg/export"
	"tagsync/pkg/extract"
	"tagsync/pkg/feed"
	"tagsync/pkg/instagram"
	"tagsync/pkg/logger"
	"tagsync/pkg/paginator"
	"tagsync/pkg/retry"
	"tagsync/pkg/runlog"
	"tagsync/pkg/store"
)

// PaginatorConfig maps the crawl section onto scan bounds
func PaginatorConfig(c config.CrawlConfig) paginator.Config {
	cfg := paginator.Config{
		MaxRounds:          c.MaxRounds,
		ScrollStep:         c.ScrollStep,
		SettleWait:         c.SettleWait,
		TargetCount:        c.TargetCount,
		OlderStreakLimit:   c.OlderStreakLimit,
		StagnantRoundLimit: c.StagnantRoundLimit,
		ReservedSegments:   c.ReservedSegments,
	}
	for _, d := range c.Dismiss {
		cfg.Dismiss = append(cfg.Dismiss, feed.Capability(d))
	}
	return cfg
}

// RetryConfig maps the retry section onto run-level retry settings
func RetryConfig(c config.RetryConfig, log logger.Logger) *retry.Config {
	return &retry.Config{
		MaxAttempts: c.MaxAttempts,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay:    c.InitialDelay,
			MaxDelay:     c.MaxDelay,
			Multiplier:   c.Multiplier,
			JitterFactor: 0.1,
		},
		RetryIf: retry.DefaultRetryIf,
		Logger:  log,
	}
}

// InstagramSessions returns a factory opening a WebSession authenticated with state
func InstagramSessions(cfg *config.Config, state *auth.SessionState, log logger.Logger) SessionFactory {
	return func(ctx context.Context, brandID string) (feed.Session, error) {
		s, err := instagram.NewWebSessionFromConfig(cfg, state, log)
		if err != nil {
			return nil, err
		}
		if err := s.Open(ctx, brandID); err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Build opens the record store, migrates it and assembles a Runner from
// cfg. The returned close function releases the store.
func Build(ctx context.Context, cfg *config.Config, sessions SessionFactory, log logger.Logger) (*Runner, func() error, error) {
	loc := clock.Location(cfg.Crawl.TimezoneOffset)

	fields, err := extract.ParseFields(cfg.Crawl.Fields)
	if err != nil {
		return nil, nil, errs.New(errs.ErrorTypeConfig, "invalid crawl fields", err)
	}
	pipeline := extract.NewPipeline(
		extract.WithFields(fields...),
		extract.WithPostMarker(cfg.Crawl.PostMarker),
		extract.WithBaseURL(cfg.Instagram.BaseURL),
	)

	columns := make([]string, 0, len(fields))
	for _, f := range fields {
		columns = append(columns, string(f))
	}
	db, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN, store.Options{
		Table:  cfg.Store.Table,
		Clock:  clock.NewSystem(loc),
		Logger: log,
		Fields: columns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open record store: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate record store: %w", err)
	}

	var exporter *export.Writer
	if cfg.Export.Enabled {
		exporter, err = export.NewWriter(cfg.Export.Directory, log)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
	}

	var ledger *runlog.Manager
	if cfg.RunLog.Path != "" {
		ledger, err = runlog.NewManager(cfg.RunLog.Path, log)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
	}

	r, err := New(Options{
		Sessions:   sessions,
		Store:      db,
		Exporter:   exporter,
		RunLog:     ledger,
		Paginator:  PaginatorConfig(cfg.Crawl),
		Classifier: dateclass.New(loc),
		Pipeline:   pipeline,
		Retry:      RetryConfig(cfg.Retry, log),
		Location:   loc,
		Logger:     log,
	})
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return r, db.Close, nil
}
