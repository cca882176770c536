package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRound logs the state of the scan after one feed snapshot
func LogRound(l Logger, round, newCandidates, seen, stagnant, olderStreak int) {
	l.DebugWithFields("Round scanned", map[string]interface{}{
		"round":           round,
		"new_candidates":  newCandidates,
		"seen":            seen,
		"stagnant_rounds": stagnant,
		"older_streak":    olderStreak,
	})
}

// LogCandidate logs the verdict for one inspected candidate
func LogCandidate(l Logger, identifier, verdict string, err error) {
	fields := map[string]interface{}{
		"candidate": identifier,
		"verdict":   verdict,
	}
	if err != nil {
		l.WithError(err).WarnWithFields("Candidate skipped", fields)
		return
	}
	l.DebugWithFields("Candidate classified", fields)
}

// LogStop logs why a scan ended
func LogStop(l Logger, reason string, rounds, records int) {
	l.InfoWithFields("Scan finished", map[string]interface{}{
		"stop_reason": reason,
		"rounds":      rounds,
		"records":     records,
	})
}

// LogCommit logs the outcome of a store commit
func LogCommit(l Logger, staged, inserted, updated int, took time.Duration) {
	l.InfoWithFields("Batch committed", map[string]interface{}{
		"staged":   staged,
		"inserted": inserted,
		"updated":  updated,
		"duration": took,
	})
}

// LogRequest logs an outbound HTTP request at debug level, or warn for errors
func LogRequest(l Logger, method, url string, statusCode int, took time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration":    took,
	}
	if statusCode >= 400 {
		l.WarnWithFields("HTTP request failed", fields)
		return
	}
	l.DebugWithFields("HTTP request completed", fields)
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
