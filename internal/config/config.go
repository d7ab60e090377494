package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Database connection.
	DSN string

	// Target.
	Table         string
	DestTable     string // non-empty selects copy mode
	Index         string
	Reverse       bool
	FirstOnly     bool
	NonTraversing bool
	CopyColumns   []string
	DestColumns   map[string]string
	Filter        string

	// Pacing.
	ChunkSize      int
	StopAfter      int64
	Sleep          time.Duration
	DryRun         bool
	ReportInterval time.Duration

	// Health thresholds. Zero disables a metric.
	MaxHistory    int64
	MaxReplLag    int64
	CheckPeriod   time.Duration
	PauseDuration time.Duration

	// Reconnect policy.
	MaxReconnects    int
	ReconnectBackoff time.Duration

	// Logging.
	LogLevel  slog.Level
	LogFormat string // "json" (default) or "text"

	// Observability.
	OTelEnabled bool
	AuditLog    string // path to NDJSON audit log file
}

// Overrides holds CLI flag values that override the job file and environment.
// Pointer fields distinguish "not set" from zero values.
type Overrides struct {
	DSN           *string
	Table         *string
	DestTable     *string
	Index         *string
	Filter        *string
	ChunkSize     *int
	StopAfter     *int64
	Sleep         *time.Duration
	MaxHistory    *int64
	MaxReplLag    *int64
	MaxReconnects *int
	LogLevel      *string
	LogFormat     *string
	AuditLog      *string

	Reverse       bool
	FirstOnly     bool
	NonTraversing bool
	DryRun        bool
	OTelEnabled   bool
}

// file mirrors the job file. Durations are strings like "1m30s".
type file struct {
	DSN              string            `yaml:"dsn" toml:"dsn"`
	Table            string            `yaml:"table" toml:"table"`
	DestTable        string            `yaml:"dest_table" toml:"dest_table"`
	Index            string            `yaml:"index" toml:"index"`
	Reverse          bool              `yaml:"reverse" toml:"reverse"`
	FirstOnly        bool              `yaml:"first_only" toml:"first_only"`
	NonTraversing    bool              `yaml:"non_traversing" toml:"non_traversing"`
	ChunkSize        *int              `yaml:"chunk_size" toml:"chunk_size"`
	StopAfter        int64             `yaml:"stop_after" toml:"stop_after"`
	Sleep            string            `yaml:"sleep" toml:"sleep"`
	CopyColumns      []string          `yaml:"copy_columns" toml:"copy_columns"`
	DestColumns      map[string]string `yaml:"dest_columns" toml:"dest_columns"`
	DryRun           bool              `yaml:"dry_run" toml:"dry_run"`
	ReportInterval   string            `yaml:"report_interval" toml:"report_interval"`
	CheckPeriod      string            `yaml:"check_period" toml:"check_period"`
	MaxHistory       int64             `yaml:"max_history" toml:"max_history"`
	MaxReplLag       int64             `yaml:"max_repl_lag" toml:"max_repl_lag"`
	MaxReconnects    *int              `yaml:"max_reconnects" toml:"max_reconnects"`
	ReconnectBackoff string            `yaml:"reconnect_backoff" toml:"reconnect_backoff"`
	PauseDuration    string            `yaml:"pause_duration" toml:"pause_duration"`
	Filter           string            `yaml:"filter" toml:"filter"`
	LogLevel         string            `yaml:"log_level" toml:"log_level"`
	LogFormat        string            `yaml:"log_format" toml:"log_format"`
	AuditLog         string            `yaml:"audit_log" toml:"audit_log"`
	OTelEnabled      bool              `yaml:"otel_enabled" toml:"otel_enabled"`
}

// Load builds a Config from defaults, then the optional job file at path,
// then environment variables (including a .env file in the working
// directory), then CLI overrides, and validates the result.
func Load(path string, overrides Overrides) (*Config, error) {
	cfg := defaults()

	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadServer builds the config for long-running commands that are not bound
// to one table. Only the connection and logging settings are validated.
func LoadServer(overrides Overrides) (*Config, error) {
	cfg := defaults()

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	if err := validateServer(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaults returns a Config populated with default values.
func defaults() *Config {
	return &Config{
		ChunkSize:        500,
		ReportInterval:   10 * time.Second,
		CheckPeriod:      2 * time.Minute,
		PauseDuration:    5 * time.Minute,
		MaxReconnects:    10,
		ReconnectBackoff: 5 * time.Second,
		LogLevel:         slog.LevelInfo,
		LogFormat:        "json",
	}
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading job file: %w", err)
	}

	var f file
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parsing job file %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), &f)
		if err != nil {
			return fmt.Errorf("parsing job file %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			sort.Strings(keys)
			return fmt.Errorf("job file %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	default:
		return fmt.Errorf("job file %s: unsupported extension %q (want .yaml, .yml or .toml)", path, ext)
	}

	return applyFile(cfg, &f)
}

func applyFile(cfg *Config, f *file) error {
	cfg.DSN = f.DSN
	cfg.Table = f.Table
	cfg.DestTable = f.DestTable
	cfg.Index = f.Index
	cfg.Reverse = f.Reverse
	cfg.FirstOnly = f.FirstOnly
	cfg.NonTraversing = f.NonTraversing
	if f.ChunkSize != nil {
		cfg.ChunkSize = *f.ChunkSize
	}
	cfg.StopAfter = f.StopAfter
	cfg.CopyColumns = f.CopyColumns
	cfg.DestColumns = f.DestColumns
	cfg.DryRun = f.DryRun
	cfg.MaxHistory = f.MaxHistory
	cfg.MaxReplLag = f.MaxReplLag
	if f.MaxReconnects != nil {
		cfg.MaxReconnects = *f.MaxReconnects
	}
	cfg.Filter = f.Filter
	cfg.AuditLog = f.AuditLog
	cfg.OTelEnabled = f.OTelEnabled
	if f.LogFormat != "" {
		cfg.LogFormat = f.LogFormat
	}
	if f.LogLevel != "" {
		level, err := parseLogLevel(f.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}

	durations := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"sleep", f.Sleep, &cfg.Sleep},
		{"report_interval", f.ReportInterval, &cfg.ReportInterval},
		{"check_period", f.CheckPeriod, &cfg.CheckPeriod},
		{"reconnect_backoff", f.ReconnectBackoff, &cfg.ReconnectBackoff},
		{"pause_duration", f.PauseDuration, &cfg.PauseDuration},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", d.key, d.value, err)
		}
		*d.dst = parsed
	}
	return nil
}

// loadDotEnv loads path into the environment when it exists. Variables
// already set in the environment win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// loadEnvVars reads all supported environment variables into cfg.
func loadEnvVars(cfg *Config) error {
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		cfg.DSN = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	if v := os.Getenv("AUDIT_LOG"); v != "" {
		cfg.AuditLog = v
	}

	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid OTEL_ENABLED value %q: %w", v, err)
		}
		cfg.OTelEnabled = b
	}

	return nil
}

// applyOverrides applies CLI flag values on top of the file and env config.
func applyOverrides(cfg *Config, o Overrides) error {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&cfg.DSN, o.DSN)
	setString(&cfg.Table, o.Table)
	setString(&cfg.DestTable, o.DestTable)
	setString(&cfg.Index, o.Index)
	setString(&cfg.Filter, o.Filter)
	setString(&cfg.LogFormat, o.LogFormat)
	setString(&cfg.AuditLog, o.AuditLog)

	if o.ChunkSize != nil {
		cfg.ChunkSize = *o.ChunkSize
	}
	if o.StopAfter != nil {
		cfg.StopAfter = *o.StopAfter
	}
	if o.Sleep != nil {
		cfg.Sleep = *o.Sleep
	}
	if o.MaxHistory != nil {
		cfg.MaxHistory = *o.MaxHistory
	}
	if o.MaxReplLag != nil {
		cfg.MaxReplLag = *o.MaxReplLag
	}
	if o.MaxReconnects != nil {
		cfg.MaxReconnects = *o.MaxReconnects
	}
	if o.LogLevel != nil {
		level, err := parseLogLevel(*o.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}

	cfg.Reverse = cfg.Reverse || o.Reverse
	cfg.FirstOnly = cfg.FirstOnly || o.FirstOnly
	cfg.NonTraversing = cfg.NonTraversing || o.NonTraversing
	cfg.DryRun = cfg.DryRun || o.DryRun
	cfg.OTelEnabled = cfg.OTelEnabled || o.OTelEnabled

	return nil
}

// validate checks cross-field constraints on the final config.
func validate(cfg *Config) error {
	if err := validateServer(cfg); err != nil {
		return err
	}
	if cfg.Table == "" {
		return fmt.Errorf("table is required (set via job file or --table flag)")
	}
	if cfg.ChunkSize <= 0 {
		return fmt.Errorf("invalid chunk_size %d: must be a positive integer", cfg.ChunkSize)
	}
	if cfg.StopAfter < 0 {
		return fmt.Errorf("invalid stop_after %d: must not be negative", cfg.StopAfter)
	}
	if cfg.MaxHistory < 0 || cfg.MaxReplLag < 0 {
		return fmt.Errorf("health thresholds must not be negative")
	}
	if cfg.MaxReconnects < 0 {
		return fmt.Errorf("invalid max_reconnects %d: must not be negative", cfg.MaxReconnects)
	}

	for name, d := range map[string]time.Duration{
		"sleep":             cfg.Sleep,
		"report_interval":   cfg.ReportInterval,
		"check_period":      cfg.CheckPeriod,
		"reconnect_backoff": cfg.ReconnectBackoff,
		"pause_duration":    cfg.PauseDuration,
	} {
		if d < 0 {
			return fmt.Errorf("invalid %s %s: must not be negative", name, d)
		}
	}

	if cfg.DestTable != "" {
		if cfg.FirstOnly {
			return fmt.Errorf("first_only cannot be combined with dest_table: copying would insert duplicate rows")
		}
		if cfg.NonTraversing {
			return fmt.Errorf("non_traversing cannot be combined with dest_table: copy mode needs a traversal key")
		}
	} else if len(cfg.DestColumns) > 0 {
		return fmt.Errorf("dest_columns requires dest_table")
	}

	return nil
}

func validateServer(cfg *Config) error {
	if cfg.DSN == "" {
		return fmt.Errorf("MYSQL_DSN is required (set via job file, env var or --dsn flag)")
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT value %q: must be \"json\" or \"text\"", cfg.LogFormat)
	}
	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: must be debug, info, warn, or error", s)
	}
}
