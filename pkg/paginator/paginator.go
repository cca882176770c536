// Package paginator drives a bounded scan of a reverse-chronological feed and
// collects the posts published on a single target day.
package paginator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tagsync/pkg/dateclass"
	"tagsync/pkg/dedup"
	errs "tagsync/pkg/errors"
	"tagsync/pkg/extract"
	"tagsync/pkg/feed"
	"tagsync/pkg/logger"
	"tagsync/pkg/models"
)

// StopReason explains why a scan ended
type StopReason string

const (
	StopOlderStreak StopReason = "older_streak"
	StopStagnant    StopReason = "stagnant"
	StopMaxRounds   StopReason = "max_rounds"
	StopTargetCount StopReason = "target_count"
)

const (
	DefaultOlderStreakLimit   = 5
	DefaultStagnantRoundLimit = 3
	DefaultMaxRounds          = 50
	DefaultScrollStep         = 2000
	DefaultSettleWait         = 3 * time.Second
)

// Config bounds a scan
type Config struct {
	MaxRounds  int
	ScrollStep int
	SettleWait time.Duration
	// TargetCount stops the scan once that many records are collected. Zero disables it.
	TargetCount        int
	OlderStreakLimit   int
	StagnantRoundLimit int
	ReservedSegments   []string
	Dismiss            []feed.Capability
}

// DefaultConfig returns the stock scan bounds
func DefaultConfig() Config {
	return Config{
		MaxRounds:          DefaultMaxRounds,
		ScrollStep:         DefaultScrollStep,
		SettleWait:         DefaultSettleWait,
		OlderStreakLimit:   DefaultOlderStreakLimit,
		StagnantRoundLimit: DefaultStagnantRoundLimit,
		Dismiss:            []feed.Capability{feed.CapabilitySaveLoginInfo, feed.CapabilityNotifications},
	}
}

// Validate checks the bounds
func (c Config) Validate() error {
	var problems []error
	if c.MaxRounds < 0 {
		problems = append(problems, fmt.Errorf("max rounds must be non-negative"))
	}
	if c.ScrollStep <= 0 {
		problems = append(problems, fmt.Errorf("scroll step must be positive"))
	}
	if c.SettleWait < 0 {
		problems = append(problems, fmt.Errorf("settle wait must be non-negative"))
	}
	if c.TargetCount < 0 {
		problems = append(problems, fmt.Errorf("target count must be non-negative"))
	}
	if c.OlderStreakLimit <= 0 {
		problems = append(problems, fmt.Errorf("older streak limit must be positive"))
	}
	if c.StagnantRoundLimit <= 0 {
		problems = append(problems, fmt.Errorf("stagnant round limit must be positive"))
	}
	return errors.Join(problems...)
}

// Stats counts what happened to candidates during a scan
type Stats struct {
	Admitted int `json:"admitted"`
	// Rejected counts distinct promoted or malformed identifiers.
	Rejected       int `json:"rejected"`
	Opened         int `json:"opened"`
	DetailFailures int `json:"detail_failures"`
	ParseFailures  int `json:"parse_failures"`
	Older          int `json:"older"`
	Newer          int `json:"newer"`
	Matched        int `json:"matched"`
	Dismissed      int `json:"dismissed"`
}

// Result is the outcome of a finished scan
type Result struct {
	Records    []models.PostRecord
	StopReason StopReason
	// Rounds is the number of snapshots taken.
	Rounds int
	// SeenHistory is the size of the seen set after each round.
	SeenHistory []int
	Stats       Stats
}

// CrawlState is the mutable state of one scan
type CrawlState struct {
	Seen           *dedup.Tracker
	OlderStreak    int
	StagnantRounds int
	Round          int
}

// Paginator scans one session
type Paginator struct {
	session    feed.Session
	classifier *dateclass.Classifier
	pipeline   *extract.Pipeline
	cfg        Config
	logger     logger.Logger
}

// New creates a paginator over session
func New(session feed.Session, classifier *dateclass.Classifier, pipeline *extract.Pipeline, cfg Config, log logger.Logger) *Paginator {
	if classifier == nil {
		classifier = dateclass.New(nil)
	}
	if pipeline == nil {
		pipeline = extract.NewPipeline()
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Paginator{
		session:    session,
		classifier: classifier,
		pipeline:   pipeline,
		cfg:        cfg,
		logger:     log,
	}
}

// Run scans until one of the stop conditions fires. Session expiry and
// context cancellation abort the scan with no result.
func (p *Paginator) Run(ctx context.Context, params models.RunParams) (*Result, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, errs.New(errs.ErrorTypeConfig, "invalid paginator config", err)
	}

	state := &CrawlState{Seen: dedup.NewTracker(p.cfg.ReservedSegments...)}
	result := &Result{}

	log := p.logger.WithFields(map[string]interface{}{
		"brand_id":   params.BrandID,
		"target_day": params.TargetDay,
	})

	if err := p.dismissDialogs(ctx, log, &result.Stats); err != nil {
		return nil, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := p.requireAuth(ctx); err != nil {
			return nil, err
		}

		refs, err := p.session.SnapshotCandidates(ctx)
		if err != nil {
			return nil, fmt.Errorf("snapshot round %d: %w", state.Round, err)
		}
		result.Rounds++

		state.Seen.StartRound()
		stop, err := p.scanRound(ctx, log, refs, params, state, result)
		if err != nil {
			return nil, err
		}
		newCandidates := state.Seen.EndRound()
		result.SeenHistory = append(result.SeenHistory, state.Seen.Len())

		if stop != "" {
			return p.finish(log, result, stop), nil
		}

		if newCandidates == 0 {
			state.StagnantRounds++
		} else {
			state.StagnantRounds = 0
		}
		logger.LogRound(log, state.Round, newCandidates, state.Seen.Len(), state.StagnantRounds, state.OlderStreak)

		if state.StagnantRounds >= p.cfg.StagnantRoundLimit {
			return p.finish(log, result, StopStagnant), nil
		}
		if state.Round >= p.cfg.MaxRounds {
			return p.finish(log, result, StopMaxRounds), nil
		}

		if err := p.session.Scroll(ctx, p.cfg.ScrollStep); err != nil {
			return nil, fmt.Errorf("scroll round %d: %w", state.Round, err)
		}
		if err := p.session.WaitSettle(ctx, p.cfg.SettleWait); err != nil {
			return nil, fmt.Errorf("settle round %d: %w", state.Round, err)
		}
		state.Round++
	}
}

// scanRound inspects every newly admitted candidate of one snapshot in
// presentation order. A non-empty StopReason ends the scan immediately.
func (p *Paginator) scanRound(ctx context.Context, log logger.Logger, refs []models.CandidateRef, params models.RunParams, state *CrawlState, result *Result) (StopReason, error) {
	for _, ref := range refs {
		id, ok := state.Seen.Normalize(ref.Identifier)
		if !ok {
			if state.Seen.Reject(ref.Identifier) {
				result.Stats.Rejected++
			}
			continue
		}
		if !state.Seen.Admit(id) {
			continue
		}
		result.Stats.Admitted++

		if err := ctx.Err(); err != nil {
			return "", err
		}

		rec, class, err := p.inspect(ctx, models.CandidateRef{Identifier: id, SourceURL: ref.SourceURL}, params)
		if err != nil {
			if errors.Is(err, errs.ErrSessionExpired) {
				return "", err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			if errs.TypeOf(err) == errs.ErrorTypeDetailLoad {
				result.Stats.DetailFailures++
			}
			logger.LogCandidate(log, id, "skipped", err)
			continue
		}
		logger.LogCandidate(log, id, class.String(), nil)

		switch class {
		case dateclass.Equal:
			result.Stats.Matched++
			result.Records = append(result.Records, *rec)
			state.OlderStreak = 0
			if p.cfg.TargetCount > 0 && len(result.Records) >= p.cfg.TargetCount {
				return StopTargetCount, nil
			}
		case dateclass.Older:
			result.Stats.Older++
			state.OlderStreak++
			if state.OlderStreak >= p.cfg.OlderStreakLimit {
				return StopOlderStreak, nil
			}
		case dateclass.Newer:
			result.Stats.Newer++
		default:
			result.Stats.ParseFailures++
		}
	}
	return "", nil
}

// inspect opens one candidate, reads it to completion and returns to the feed.
func (p *Paginator) inspect(ctx context.Context, ref models.CandidateRef, params models.RunParams) (*models.PostRecord, dateclass.Classification, error) {
	view, err := p.session.OpenDetail(ctx, ref)
	if err != nil {
		if errors.Is(err, errs.ErrSessionExpired) {
			return nil, dateclass.ParseFailure, err
		}
		if errs.TypeOf(err) == errs.ErrorTypeUnknown {
			err = errs.New(errs.ErrorTypeDetailLoad, "open "+ref.Identifier, err)
		}
		return nil, dateclass.ParseFailure, err
	}

	var rec *models.PostRecord
	class := p.classifier.Classify(view.Timestamp, params.TargetDay)
	var extractErr error
	if class == dateclass.Equal {
		day, _ := p.classifier.Day(view.Timestamp)
		r, err := p.pipeline.Extract(ref, view, params, day)
		if err != nil {
			extractErr = err
		} else {
			rec = &r
		}
	}

	if err := p.session.CloseDetail(ctx); err != nil {
		if errors.Is(err, errs.ErrSessionExpired) {
			return nil, class, err
		}
		p.logger.WithError(err).Warn("Failed to return to feed after detail")
	}
	if extractErr != nil {
		return nil, class, extractErr
	}
	return rec, class, nil
}

func (p *Paginator) requireAuth(ctx context.Context) error {
	ok, err := p.session.Authenticated(ctx)
	if err != nil {
		if errors.Is(err, errs.ErrSessionExpired) {
			return err
		}
		return errs.New(errs.ErrorTypeSessionExpired, "cannot verify session", err)
	}
	if !ok {
		return errs.ErrSessionExpired
	}
	return nil
}

func (p *Paginator) dismissDialogs(ctx context.Context, log logger.Logger, stats *Stats) error {
	d, ok := p.session.(feed.Dismisser)
	if !ok {
		return nil
	}
	for _, capability := range p.cfg.Dismiss {
		present, err := d.DismissIfPresent(ctx, capability)
		if err != nil {
			if errors.Is(err, errs.ErrSessionExpired) {
				return err
			}
			log.WithError(err).WithField("dialog", string(capability)).Warn("Failed to dismiss dialog")
			continue
		}
		if present {
			stats.Dismissed++
			log.DebugWithFields("Dismissed dialog", map[string]interface{}{"dialog": string(capability)})
		}
	}
	return nil
}

func (p *Paginator) finish(log logger.Logger, result *Result, reason StopReason) *Result {
	result.StopReason = reason
	logger.LogStop(log, string(reason), result.Rounds, len(result.Records))
	return result
}
