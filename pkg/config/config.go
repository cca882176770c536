package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv
const EnvPrefix = "TAGSYNC_"

// Config holds all configuration options for tagsync
type Config struct {
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`
	Crawl     CrawlConfig     `yaml:"crawl" json:"crawl"`
	Store     StoreConfig     `yaml:"store" json:"store"`
	Export    ExportConfig    `yaml:"export" json:"export"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry" json:"retry"`
	Schedule  ScheduleConfig  `yaml:"schedule" json:"schedule"`
	RunLog    RunLogConfig    `yaml:"run_log" json:"run_log"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// InstagramConfig configures the feed session
type InstagramConfig struct {
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	Username  string        `yaml:"username" json:"username"`
	SessionID string        `yaml:"session_id" json:"-"`
	CSRFToken string        `yaml:"csrf_token" json:"-"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	// TaggedQueryHash identifies the GraphQL query for tagged posts.
	TaggedQueryHash string `yaml:"tagged_query_hash" json:"tagged_query_hash"`
	// PageSize is the number of feed items requested per page.
	PageSize int `yaml:"page_size" json:"page_size"`
	// PixelsPerPage converts a scroll step into pages.
	PixelsPerPage int `yaml:"pixels_per_page" json:"pixels_per_page"`
}

// CrawlConfig bounds a single run
type CrawlConfig struct {
	BrandID   string `yaml:"brand_id" json:"brand_id"`
	BrandName string `yaml:"brand_name" json:"brand_name"`
	// TargetDay overrides the default of yesterday (YYYY-MM-DD).
	TargetDay          string        `yaml:"target_day" json:"target_day"`
	TimezoneOffset     int           `yaml:"timezone_offset" json:"timezone_offset"`
	MaxRounds          int           `yaml:"max_rounds" json:"max_rounds"`
	ScrollStep         int           `yaml:"scroll_step" json:"scroll_step"`
	SettleWait         time.Duration `yaml:"settle_wait" json:"settle_wait"`
	TargetCount        int           `yaml:"target_count" json:"target_count"`
	OlderStreakLimit   int           `yaml:"older_streak_limit" json:"older_streak_limit"`
	StagnantRoundLimit int           `yaml:"stagnant_round_limit" json:"stagnant_round_limit"`
	ReservedSegments   []string      `yaml:"reserved_segments" json:"reserved_segments"`
	PostMarker         string        `yaml:"post_marker" json:"post_marker"`
	Fields             []string      `yaml:"fields" json:"fields"`
	Dismiss            []string      `yaml:"dismiss" json:"dismiss"`
}

// StoreConfig selects the record store
type StoreConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"-"`
	Table  string `yaml:"table" json:"table"`
}

// ExportConfig controls the per-run batch file
type ExportConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Directory string `yaml:"directory" json:"directory"`
}

// RateLimitConfig paces requests to the feed
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// RetryConfig controls run-level retries
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
}

// ScheduleConfig controls the daily trigger
type ScheduleConfig struct {
	Cron       string `yaml:"cron" json:"cron"`
	RunOnStart bool   `yaml:"run_on_start" json:"run_on_start"`
}

// RunLogConfig locates the run ledger
type RunLogConfig struct {
	Path string `yaml:"path" json:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	File   string `yaml:"file" json:"file"`
	Format string `yaml:"format" json:"format"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Instagram: InstagramConfig{
			BaseURL:         "https://www.instagram.com",
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			Timeout:         30 * time.Second,
			TaggedQueryHash: "be13233562af2d229b008d2976b998b5",
			PageSize:        12,
			PixelsPerPage:   2000,
		},
		Crawl: CrawlConfig{
			TimezoneOffset:     9,
			MaxRounds:          50,
			ScrollStep:         2000,
			SettleWait:         3 * time.Second,
			OlderStreakLimit:   5,
			StagnantRoundLimit: 3,
			ReservedSegments:   []string{"c"},
			PostMarker:         "p",
			Fields:             []string{"media_url", "mentions", "post_url"},
			Dismiss:            []string{"save_login_info", "notifications"},
		},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(DataDir(), "tagsync.db"),
			Table:  "tagged_posts",
		},
		Export: ExportConfig{
			Enabled:   true,
			Directory: filepath.Join(DataDir(), "exports"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			BurstSize:         5,
		},
		Retry: RetryConfig{
			MaxAttempts:  2,
			InitialDelay: 30 * time.Second,
			MaxDelay:     5 * time.Minute,
			Multiplier:   2.0,
		},
		Schedule: ScheduleConfig{
			Cron: "10 0 * * *",
		},
		RunLog: RunLogConfig{
			Path: filepath.Join(DataDir(), "runs.json"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DataDir returns the directory for tagsync state, honouring XDG_DATA_HOME
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "tagsync")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tagsync"
	}
	return filepath.Join(home, ".local", "share", "tagsync")
}

// LoadFromEnv loads configuration from TAGSYNC_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = n
	}
	setDuration := func(name string, dst *time.Duration) {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = d
	}
	setBool := func(name string, dst *bool) {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = b
	}

	setString("BASE_URL", &c.Instagram.BaseURL)
	setString("USERNAME", &c.Instagram.Username)
	setString("SESSION_ID", &c.Instagram.SessionID)
	setString("CSRF_TOKEN", &c.Instagram.CSRFToken)
	setString("USER_AGENT", &c.Instagram.UserAgent)

	setString("BRAND_ID", &c.Crawl.BrandID)
	setString("BRAND_NAME", &c.Crawl.BrandName)
	setString("TARGET_DAY", &c.Crawl.TargetDay)
	setInt("TIMEZONE_OFFSET", &c.Crawl.TimezoneOffset)
	setInt("MAX_ROUNDS", &c.Crawl.MaxRounds)
	setInt("TARGET_COUNT", &c.Crawl.TargetCount)
	setDuration("SETTLE_WAIT", &c.Crawl.SettleWait)

	setString("STORE_DRIVER", &c.Store.Driver)
	setString("STORE_DSN", &c.Store.DSN)
	setString("STORE_TABLE", &c.Store.Table)

	setBool("EXPORT_ENABLED", &c.Export.Enabled)
	setString("EXPORT_DIR", &c.Export.Directory)

	setInt("REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)
	setInt("RETRY_MAX_ATTEMPTS", &c.Retry.MaxAttempts)
	setString("SCHEDULE_CRON", &c.Schedule.Cron)
	setString("RUN_LOG", &c.RunLog.Path)

	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)
	setString("LOG_FORMAT", &c.Logging.Format)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file. An empty path searches
// the default locations; finding nothing is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// DefaultPath is where `config init` writes
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tagsync", "config.yaml")
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".tagsync.yaml",
		".tagsync.yml",
		filepath.Join(home, ".config", "tagsync", "config.yaml"),
		filepath.Join(home, ".config", "tagsync", "config.yml"),
		filepath.Join(home, ".tagsync.yaml"),
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

var (
	tablePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	dayPattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Instagram.BaseURL == "" {
		errs = append(errs, errors.New("instagram base URL is required"))
	}
	if c.Instagram.Timeout <= 0 {
		errs = append(errs, errors.New("instagram timeout must be positive"))
	}
	if c.Instagram.PageSize <= 0 {
		errs = append(errs, errors.New("page size must be positive"))
	}
	if c.Instagram.PixelsPerPage <= 0 {
		errs = append(errs, errors.New("pixels per page must be positive"))
	}

	if c.Crawl.TimezoneOffset < -12 || c.Crawl.TimezoneOffset > 14 {
		errs = append(errs, errors.New("timezone offset must be between -12 and 14"))
	}
	if c.Crawl.TargetDay != "" {
		if _, err := time.Parse("2006-01-02", c.Crawl.TargetDay); err != nil || !dayPattern.MatchString(c.Crawl.TargetDay) {
			errs = append(errs, fmt.Errorf("target day %q must be YYYY-MM-DD", c.Crawl.TargetDay))
		}
	}
	if c.Crawl.MaxRounds < 0 {
		errs = append(errs, errors.New("max rounds cannot be negative"))
	}
	if c.Crawl.ScrollStep <= 0 {
		errs = append(errs, errors.New("scroll step must be positive"))
	}
	if c.Crawl.SettleWait < 0 {
		errs = append(errs, errors.New("settle wait cannot be negative"))
	}
	if c.Crawl.TargetCount < 0 {
		errs = append(errs, errors.New("target count cannot be negative"))
	}
	if c.Crawl.OlderStreakLimit <= 0 {
		errs = append(errs, errors.New("older streak limit must be positive"))
	}
	if c.Crawl.StagnantRoundLimit <= 0 {
		errs = append(errs, errors.New("stagnant round limit must be positive"))
	}
	if c.Crawl.PostMarker == "" {
		errs = append(errs, errors.New("post marker is required"))
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported store driver %q", c.Store.Driver))
	}
	if c.Store.DSN == "" {
		errs = append(errs, errors.New("store DSN is required"))
	}
	if !tablePattern.MatchString(c.Store.Table) {
		errs = append(errs, fmt.Errorf("invalid store table name %q", c.Store.Table))
	}

	if c.Export.Enabled && c.Export.Directory == "" {
		errs = append(errs, errors.New("export directory is required when export is enabled"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}

	if c.Schedule.Cron == "" {
		errs = append(errs, errors.New("schedule cron expression is required"))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// RequireBrand checks the fields a crawl needs beyond Validate
func (c *Config) RequireBrand() error {
	var errs []error
	if c.Crawl.BrandID == "" {
		errs = append(errs, errors.New("brand ID is required"))
	}
	if c.Crawl.BrandName == "" {
		errs = append(errs, errors.New("brand name is required"))
	}
	return errors.Join(errs...)
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeCommandLineFlags applies explicitly set command line flags
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	str := func(key string, dst *string) {
		if v, ok := flags[key].(string); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := flags[key].(int); ok {
			*dst = v
		}
	}

	str("session-id", &c.Instagram.SessionID)
	str("csrf-token", &c.Instagram.CSRFToken)
	str("brand-id", &c.Crawl.BrandID)
	str("brand-name", &c.Crawl.BrandName)
	str("day", &c.Crawl.TargetDay)
	num("max-rounds", &c.Crawl.MaxRounds)
	num("target-count", &c.Crawl.TargetCount)
	if v, ok := flags["settle-wait"].(time.Duration); ok {
		c.Crawl.SettleWait = v
	}
	str("store-driver", &c.Store.Driver)
	str("store-dsn", &c.Store.DSN)
	str("export-dir", &c.Export.Directory)
	if v, ok := flags["no-export"].(bool); ok && v {
		c.Export.Enabled = false
	}
	str("cron", &c.Schedule.Cron)
	str("log-level", &c.Logging.Level)
}

// Load loads configuration from all sources with proper precedence:
// flags > environment > .env files > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	home, _ := os.UserHomeDir()
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(home, ".tagsync.env"))

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
