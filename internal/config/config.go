// Package config loads gauge settings from defaults, an optional YAML file
// and GAUGE_* environment variables, in that order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/gauge/internal/calibration"
	"github.com/abhisek/gauge/internal/level"
	"github.com/abhisek/gauge/internal/placement"
)

// Config holds all gauge configuration.
type Config struct {
	// DBPath is the SQLite file. Empty resolves to the default data dir.
	DBPath string `yaml:"db_path"`

	Log         LogConfig         `yaml:"log"`
	Cache       CacheConfig       `yaml:"cache"`
	Placement   PlacementConfig   `yaml:"placement"`
	Calibration CalibrationConfig `yaml:"calibration"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Mode string `yaml:"mode"` // "dev" or "prod"
	File string `yaml:"file"` // Optional. Used by the terminal runner.
}

// CacheConfig holds Redis settings for the metrics cache. An empty URL
// keeps metrics in SQLite only.
type CacheConfig struct {
	URL string        `yaml:"url"`
	TTL time.Duration `yaml:"ttl"`
}

// PlacementConfig holds session engine settings.
type PlacementConfig struct {
	Questions         int    `yaml:"questions"`
	MaxElapsedSeconds int    `yaml:"max_elapsed_seconds"`
	StartLevel        string `yaml:"start_level"`
	Fallback          string `yaml:"fallback"` // "same_level" or "none"
}

// CalibrationConfig holds analysis and report rules.
type CalibrationConfig struct {
	MinAttempts       int           `yaml:"min_attempts"`
	TooEasyAbove      float64       `yaml:"too_easy_above"`
	TooHardBelow      float64       `yaml:"too_hard_below"`
	WellCalibratedBar float64       `yaml:"well_calibrated_bar"`
	HighPriorityShare float64       `yaml:"high_priority_share"`
	Workers           int           `yaml:"workers"`
	CoverageMinimum   int           `yaml:"coverage_minimum"`
	Interval          time.Duration `yaml:"interval"`
}

// DefaultConfig returns a Config with the standard rules.
func DefaultConfig() Config {
	p := placement.DefaultConfig()
	c := calibration.DefaultConfig()
	return Config{
		Log: LogConfig{Mode: "prod"},
		Cache: CacheConfig{
			TTL: 24 * time.Hour,
		},
		Placement: PlacementConfig{
			Questions:         p.Questions,
			MaxElapsedSeconds: p.MaxElapsedSeconds,
			StartLevel:        string(p.StartLevel),
			Fallback:          string(p.Fallback),
		},
		Calibration: CalibrationConfig{
			MinAttempts:       c.Thresholds.MinAttempts,
			TooEasyAbove:      c.Thresholds.TooEasyAbove,
			TooHardBelow:      c.Thresholds.TooHardBelow,
			WellCalibratedBar: c.Report.WellCalibratedBar,
			HighPriorityShare: c.Report.HighPriorityShare,
			Workers:           c.Workers,
			CoverageMinimum:   5,
			Interval:          24 * time.Hour,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (if path is
// non-empty, or GAUGE_CONFIG is set) and environment overrides.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = os.Getenv("GAUGE_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields from GAUGE_* variables. Malformed numbers are
// errors rather than silently ignored.
func (c *Config) applyEnv() error {
	envStr("GAUGE_DB", &c.DBPath)
	envStr("GAUGE_LOG_MODE", &c.Log.Mode)
	envStr("GAUGE_LOG_FILE", &c.Log.File)
	envStr("GAUGE_CACHE_URL", &c.Cache.URL)
	envStr("GAUGE_START_LEVEL", &c.Placement.StartLevel)
	envStr("GAUGE_FALLBACK", &c.Placement.Fallback)

	var errs []error
	errs = append(errs,
		envDuration("GAUGE_CACHE_TTL", &c.Cache.TTL),
		envInt("GAUGE_QUESTIONS", &c.Placement.Questions),
		envInt("GAUGE_MAX_ELAPSED", &c.Placement.MaxElapsedSeconds),
		envInt("GAUGE_MIN_ATTEMPTS", &c.Calibration.MinAttempts),
		envFloat("GAUGE_EASY_BAR", &c.Calibration.TooEasyAbove),
		envFloat("GAUGE_HARD_BAR", &c.Calibration.TooHardBelow),
		envFloat("GAUGE_REVIEW_BAR", &c.Calibration.WellCalibratedBar),
		envFloat("GAUGE_HIGH_PRIORITY_SHARE", &c.Calibration.HighPriorityShare),
		envInt("GAUGE_WORKERS", &c.Calibration.Workers),
		envInt("GAUGE_COVERAGE_MIN", &c.Calibration.CoverageMinimum),
		envDuration("GAUGE_CALIBRATION_INTERVAL", &c.Calibration.Interval),
	)
	return errors.Join(errs...)
}

// Validate rejects out-of-range values.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	switch c.Log.Mode {
	case "dev", "prod":
	default:
		bad("log.mode must be 'dev' or 'prod', got %q", c.Log.Mode)
	}
	if c.Cache.URL != "" && c.Cache.TTL <= 0 {
		bad("cache.ttl must be positive, got %s", c.Cache.TTL)
	}

	// Session length, start level and the elapsed ceiling are fixed.
	p, std := c.Placement, placement.DefaultConfig()
	if p.Questions != std.Questions {
		bad("placement.questions must be %d, got %d", std.Questions, p.Questions)
	}
	if p.MaxElapsedSeconds != std.MaxElapsedSeconds {
		bad("placement.max_elapsed_seconds must be %d, got %d", std.MaxElapsedSeconds, p.MaxElapsedSeconds)
	}
	if l, err := level.Parse(p.StartLevel); err != nil {
		bad("placement.start_level: %v", err)
	} else if l != std.StartLevel {
		bad("placement.start_level must be %s, got %s", std.StartLevel, l)
	}
	switch placement.Fallback(p.Fallback) {
	case placement.FallbackSameLevel, placement.FallbackNone:
	default:
		bad("placement.fallback must be 'same_level' or 'none', got %q", p.Fallback)
	}

	k := c.Calibration
	if k.MinAttempts < 0 {
		bad("calibration.min_attempts must not be negative, got %d", k.MinAttempts)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"too_easy_above", k.TooEasyAbove},
		{"too_hard_below", k.TooHardBelow},
		{"well_calibrated_bar", k.WellCalibratedBar},
	} {
		if f.v < 0 || f.v > 100 {
			bad("calibration.%s must be within [0, 100], got %g", f.name, f.v)
		}
	}
	if k.TooHardBelow >= k.TooEasyAbove {
		bad("calibration.too_hard_below (%g) must be below too_easy_above (%g)", k.TooHardBelow, k.TooEasyAbove)
	}
	if k.HighPriorityShare < 0 || k.HighPriorityShare > 1 {
		bad("calibration.high_priority_share must be within [0, 1], got %g", k.HighPriorityShare)
	}
	if k.Workers < 1 {
		bad("calibration.workers must be at least 1, got %d", k.Workers)
	}
	if k.CoverageMinimum < 0 {
		bad("calibration.coverage_minimum must not be negative, got %d", k.CoverageMinimum)
	}
	if k.Interval < time.Minute {
		bad("calibration.interval must be at least 1m, got %s", k.Interval)
	}
	return errors.Join(errs...)
}

// PlacementEngine returns the engine configuration. Call Validate first.
func (c Config) PlacementEngine() placement.Config {
	return placement.Config{
		Questions:         c.Placement.Questions,
		MaxElapsedSeconds: c.Placement.MaxElapsedSeconds,
		StartLevel:        level.Level(c.Placement.StartLevel),
		Fallback:          placement.Fallback(c.Placement.Fallback),
	}
}

// CalibrationService returns the calibration rules.
func (c Config) CalibrationService() calibration.Config {
	k := c.Calibration
	return calibration.Config{
		Thresholds: calibration.Thresholds{
			MinAttempts:  k.MinAttempts,
			TooEasyAbove: k.TooEasyAbove,
			TooHardBelow: k.TooHardBelow,
		},
		Report: calibration.ReportConfig{
			WellCalibratedBar: k.WellCalibratedBar,
			HighPriorityShare: k.HighPriorityShare,
		},
		Workers: k.Workers,
	}
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = i
	return nil
}

func envFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
