package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagsync/pkg/config"
	"tagsync/pkg/logger"
)

func TestResolveSessionPrefersConfiguredCookies(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Instagram.Username = "ops"
	cfg.Instagram.SessionID = "1234%3Aabcdefgh"
	cfg.Instagram.CSRFToken = "tok"

	state, err := resolveSession(cfg, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, "ops", state.Username)
	assert.Equal(t, "1234%3Aabcdefgh", state.SessionID)
	assert.Equal(t, cfg.Instagram.UserAgent, state.UserAgent)
}

func TestCrawlFlagsOnlyCarryChangedNumbers(t *testing.T) {
	require.NoError(t, crawlCmd.Flags().Set("max-rounds", "7"))
	t.Cleanup(func() {
		maxRounds = 0
		crawlCmd.Flags().Lookup("max-rounds").Changed = false
	})

	flags := crawlFlags(crawlCmd)
	assert.Equal(t, 7, flags["max-rounds"])
	_, ok := flags["target-count"]
	assert.False(t, ok)

	cfg := config.DefaultConfig()
	cfg.MergeCommandLineFlags(flags)
	assert.Equal(t, 7, cfg.Crawl.MaxRounds)
	assert.Equal(t, config.DefaultConfig().Crawl.TargetCount, cfg.Crawl.TargetCount)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"crawl", "schedule", "status", "auth", "config"} {
		assert.True(t, names[want], want)
	}
}
