// Package logger provides structured logging for tagsync.
//
// It wraps zerolog behind the Logger interface with:
//   - levels (Debug, Info, Warn, Error, Fatal)
//   - structured fields (WithField, WithFields, InfoWithFields, ...)
//   - coloured console output on stderr, or JSON lines with Format "json"
//   - optional JSON file output alongside the console
//   - a global instance (Initialize, GetLogger)
//
// Basic usage:
//
//	err := logger.Initialize(&config.LoggingConfig{Level: "info"})
//
//	log := logger.GetLogger().WithFields(map[string]interface{}{
//	    "run_id":     runID,
//	    "brand_id":   "acme.official",
//	    "target_day": "2025-06-01",
//	})
//	log.Info("Run started")
//
// Crawl helpers (LogRound, LogCandidate, LogStop, LogCommit) keep field names
// consistent across packages. Tests use NewTestLogger to capture messages or
// NewNopLogger to discard them.
package logger
