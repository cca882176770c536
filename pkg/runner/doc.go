// Package runner executes collection runs end to end.
//
// A run opens a feed session for the brand, lets the paginator collect the
// posts published on the target day, writes the batch file, merges the batch
// into the record store and appends the outcome to the run ledger. Failures
// typed as transient restart the whole run with a fresh session; an expired
// session or an empty batch ends it.
//
//	r, closeStore, err := runner.Build(ctx, cfg, runner.InstagramSessions(cfg, state, log), log)
//	if err != nil {
//	    return err
//	}
//	defer closeStore()
//
//	params, _ := r.Params(cfg.Crawl.BrandID, cfg.Crawl.BrandName, "")
//	report, err := r.RunWithRetry(ctx, params)
//
// Scheduler wraps a Runner with a daily cron trigger in the operating
// timezone.
package runner
