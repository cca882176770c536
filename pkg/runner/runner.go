package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tagsync/pkg/clock"
	"tagsync/pkg/dateclass"
	errs "tagsync/pkg/errors"
	"tagsync/pkg/export"
	"tagsync/pkg/extract"
	"tagsync/pkg/feed"
	"tagsync/pkg/logger"
	"tagsync/pkg/models"
	"tagsync/pkg/paginator"
	"tagsync/pkg/retry"
	"tagsync/pkg/runlog"
	"tagsync/pkg/store"
)

// SessionFactory opens a fresh feed session positioned on brandID's
// tagged feed. Each attempt of a run gets its own session.
type SessionFactory func(ctx context.Context, brandID string) (feed.Session, error)

// Options wires a Runner. Sessions and Store are required.
type Options struct {
	Sessions   SessionFactory
	Store      store.Upserter
	Exporter   *export.Writer
	RunLog     *runlog.Manager
	Paginator  paginator.Config
	Classifier *dateclass.Classifier
	Pipeline   *extract.Pipeline
	Retry      *retry.Config
	Clock      clock.Clock
	Location   *time.Location
	Logger     logger.Logger
}

// Report describes one run
type Report struct {
	RunID      string              `json:"run_id"`
	Params     models.RunParams    `json:"params"`
	Attempts   int                 `json:"attempts"`
	Scan       *paginator.Result   `json:"scan,omitempty"`
	Commit     *store.CommitResult `json:"commit,omitempty"`
	ExportPath string              `json:"export_path,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
}

// Runner executes collection runs: scan the feed, write the batch file,
// merge the batch into the record store and log the outcome.
type Runner struct {
	sessions   SessionFactory
	store      store.Upserter
	exporter   *export.Writer
	runlog     *runlog.Manager
	pagCfg     paginator.Config
	classifier *dateclass.Classifier
	pipeline   *extract.Pipeline
	retry      *retry.Config
	clock      clock.Clock
	loc        *time.Location
	logger     logger.Logger
}

// New creates a Runner
func New(opts Options) (*Runner, error) {
	if opts.Sessions == nil {
		return nil, errs.New(errs.ErrorTypeConfig, "runner needs a session factory", nil)
	}
	if opts.Store == nil {
		return nil, errs.New(errs.ErrorTypeConfig, "runner needs a record store", nil)
	}
	if err := opts.Paginator.Validate(); err != nil {
		return nil, errs.New(errs.ErrorTypeConfig, "invalid paginator config", err)
	}

	loc := opts.Location
	if loc == nil {
		loc = clock.Location(clock.DefaultOffsetHours)
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.NewSystem(loc)
	}
	classifier := opts.Classifier
	if classifier == nil {
		classifier = dateclass.New(loc)
	}
	pipeline := opts.Pipeline
	if pipeline == nil {
		pipeline = extract.NewPipeline()
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	retryCfg := opts.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	if retryCfg.Logger == nil {
		retryCfg.Logger = log
	}

	return &Runner{
		sessions:   opts.Sessions,
		store:      opts.Store,
		exporter:   opts.Exporter,
		runlog:     opts.RunLog,
		pagCfg:     opts.Paginator,
		classifier: classifier,
		pipeline:   pipeline,
		retry:      retryCfg,
		clock:      clk,
		loc:        loc,
		logger:     log,
	}, nil
}

// Params builds run parameters. An empty day means yesterday in the
// operating timezone; an empty brand name falls back to the brand id.
func (r *Runner) Params(brandID, brandName, day string) (models.RunParams, error) {
	if brandID == "" {
		return models.RunParams{}, errs.New(errs.ErrorTypeConfig, "brand id is required", nil)
	}
	if brandName == "" {
		brandName = brandID
	}
	if day == "" {
		day = clock.Yesterday(r.clock, r.loc)
	}
	if _, err := clock.ParseDay(day, r.loc); err != nil {
		return models.RunParams{}, errs.New(errs.ErrorTypeConfig, fmt.Sprintf("invalid target day %q", day), err)
	}
	return models.RunParams{BrandID: brandID, BrandName: brandName, TargetDay: day}, nil
}

// Run performs a single attempt and records its outcome
func (r *Runner) Run(ctx context.Context, params models.RunParams) (*Report, error) {
	report := r.newReport(params)
	err := r.attempt(ctx, report, 1)
	r.finish(report, err)
	return report, err
}

// RunWithRetry repeats the run from scratch while it fails with a
// retryable error, each attempt with a new session and dedup state.
func (r *Runner) RunWithRetry(ctx context.Context, params models.RunParams) (*Report, error) {
	report := r.newReport(params)
	err := retry.Do(ctx, func(ctx context.Context, attempt int) error {
		return r.attempt(ctx, report, attempt)
	}, r.retry)
	r.finish(report, err)
	return report, err
}

func (r *Runner) newReport(params models.RunParams) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Params:    params,
		StartedAt: r.clock.Now(),
	}
}

func (r *Runner) attempt(ctx context.Context, report *Report, attempt int) error {
	params := report.Params
	report.Attempts = attempt
	report.Scan = nil
	report.Commit = nil

	log := r.logger.WithFields(map[string]interface{}{
		"run_id":     report.RunID,
		"brand_id":   params.BrandID,
		"target_day": params.TargetDay,
		"attempt":    attempt,
	})
	log.Info("Run started")

	session, err := r.sessions(ctx, params.BrandID)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	scan, err := paginator.New(session, r.classifier, r.pipeline, r.pagCfg, log).Run(ctx, params)
	if err != nil {
		return fmt.Errorf("scan feed: %w", err)
	}
	report.Scan = scan

	if r.exporter != nil {
		path, err := r.exporter.Write(params.BrandName, params.TargetDay, scan.Records)
		if err != nil {
			return fmt.Errorf("export batch: %w", err)
		}
		report.ExportPath = path
	}

	commit, err := r.store.Commit(ctx, scan.Records)
	if err != nil {
		if errors.Is(err, errs.ErrEmptyBatch) {
			log.WarnWithFields("No posts matched the target day", map[string]interface{}{
				"stop_reason": scan.StopReason,
				"rounds":      scan.Rounds,
			})
		}
		return fmt.Errorf("commit batch: %w", err)
	}
	report.Commit = commit
	return nil
}

func (r *Runner) finish(report *Report, runErr error) {
	report.FinishedAt = r.clock.Now()

	fields := map[string]interface{}{
		"run_id":     report.RunID,
		"brand_id":   report.Params.BrandID,
		"target_day": report.Params.TargetDay,
		"attempts":   report.Attempts,
		"duration":   report.FinishedAt.Sub(report.StartedAt),
	}
	if runErr != nil {
		fields["error_type"] = errs.TypeOf(runErr)
		r.logger.WithError(runErr).ErrorWithFields("Run failed", fields)
	} else {
		fields["records"] = len(report.Scan.Records)
		fields["inserted"] = report.Commit.Inserted
		fields["updated"] = report.Commit.Updated
		r.logger.InfoWithFields("Run completed", fields)
	}

	if r.runlog == nil {
		return
	}
	if err := r.runlog.Record(entryFor(report, runErr)); err != nil {
		r.logger.WithError(err).Warn("Failed to record run")
	}
}

func entryFor(report *Report, runErr error) runlog.Entry {
	e := runlog.Entry{
		RunID:      report.RunID,
		BrandID:    report.Params.BrandID,
		BrandName:  report.Params.BrandName,
		TargetDay:  report.Params.TargetDay,
		Status:     runlog.StatusSucceeded,
		Attempts:   report.Attempts,
		ExportPath: report.ExportPath,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	}
	if report.Scan != nil {
		e.StopReason = string(report.Scan.StopReason)
		e.Rounds = report.Scan.Rounds
		e.Records = len(report.Scan.Records)
	}
	if report.Commit != nil {
		e.Inserted = report.Commit.Inserted
		e.Updated = report.Commit.Updated
	}
	if runErr != nil {
		e.Status = runlog.StatusFailed
		e.ErrorType = string(errs.TypeOf(runErr))
		e.Error = runErr.Error()
	}
	return e
}
