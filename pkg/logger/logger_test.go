package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagsync/pkg/config"
)

func bufferLogger(buf *bytes.Buffer) *zerologLogger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zlog := zerolog.New(buf).Level(zerolog.DebugLevel)
	return &zerologLogger{logger: &zlog, fields: map[string]interface{}{}}
}

func TestNew(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info console", &config.LoggingConfig{Level: "info"}, false},
		{"debug json", &config.LoggingConfig{Level: "debug", Format: "json"}, false},
		{"invalid level", &config.LoggingConfig{Level: "loud"}, true},
		{"with file", &config.LoggingConfig{Level: "info", File: filepath.Join(dir, "logs", "tagsync.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
			if tt.cfg.File != "" {
				_, statErr := os.Stat(tt.cfg.File)
				assert.NoError(t, statErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level   string
		want    zerolog.Level
		wantErr bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			got, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFieldsAreChainedAndIsolated(t *testing.T) {
	var buf bytes.Buffer
	base := bufferLogger(&buf)

	runLog := base.WithField("run_id", "r-1")
	runLog.WithFields(map[string]interface{}{"round": 3, "seen": 12}).Info("Round scanned")

	out := buf.String()
	assert.Contains(t, out, `"run_id":"r-1"`)
	assert.Contains(t, out, `"round":3`)
	assert.Contains(t, out, `"seen":12`)

	buf.Reset()
	base.Info("plain")
	assert.NotContains(t, buf.String(), "run_id", "parent logger is not modified")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	assert.Same(t, l, l.WithError(nil))

	l.WithError(errors.New("merge failed")).Error("Commit failed")
	assert.Contains(t, buf.String(), "merge failed")
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	l.InfoWithFields("typed", map[string]interface{}{
		"duration": 2 * time.Second,
		"when":     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		"mentions": []string{"@a", "@b"},
		"cause":    errors.New("x"),
		"custom":   struct{ N int }{N: 1},
	})

	out := buf.String()
	assert.Contains(t, out, `"mentions":["@a","@b"]`)
	assert.Contains(t, out, `"cause":"x"`)
}

func TestCrawlHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogRound(tl, 2, 4, 10, 0, 1)
	LogCandidate(tl, "/a/p/1/", "equal", nil)
	LogCandidate(tl, "/a/p/2/", "skipped", errors.New("timeout"))
	LogStop(tl, "older_streak", 3, 2)
	LogCommit(tl, 2, 1, 1, time.Second)

	msg, ok := tl.Find("Scan finished")
	require.True(t, ok)
	assert.Equal(t, "older_streak", msg.Fields["stop_reason"])
	assert.Equal(t, 2, msg.Fields["records"])

	warns := tl.GetMessagesByLevel("WARN")
	require.Len(t, warns, 1)
	assert.EqualError(t, warns[0].Error, "timeout")

	assert.True(t, tl.HasMessage("Batch committed"))
	assert.False(t, tl.HasError())
}

func TestTestLoggerSharesCapture(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("brand_id", "acme").WithField("run_id", "r-1")
	child.Info("Run started")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "acme", msgs[0].Fields["brand_id"])
	assert.True(t, strings.Contains(tl.String(), "Run started"))

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestGlobalLogger(t *testing.T) {
	require.NoError(t, Initialize(&config.LoggingConfig{Level: "debug"}))
	assert.NotNil(t, GetLogger())

	tl := NewTestLogger()
	SetLogger(tl)
	t.Cleanup(func() { SetLogger(nil) })

	GetLogger().Info("via global")
	assert.True(t, tl.HasMessage("via global"))
}
