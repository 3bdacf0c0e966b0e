package app

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/raysh454/comply/internal/analyzer"
	"github.com/raysh454/comply/internal/dispatch"
	"github.com/raysh454/comply/internal/scheduler"
	"github.com/raysh454/comply/internal/usage"
)

// Config holds all runtime configuration. Durations are whole seconds (or
// milliseconds where the name says so) so the JSON file stays plain.
type Config struct {
	ListenAddr string `json:"listen_addr"`
	DBPath     string `json:"db_path"`
	LogLevel   string `json:"log_level"`

	// Timezone is the IANA zone definitions' time of day is read in.
	Timezone string `json:"timezone"`

	Scheduler  SchedulerConfig  `json:"scheduler"`
	Reaper     ReaperConfig     `json:"reaper"`
	Dispatcher DispatcherConfig `json:"dispatcher"`
	Analyzer   AnalyzerConfig   `json:"analyzer"`
	Usage      UsageConfig      `json:"usage"`

	// EventBuffer is the per-subscriber buffer of scan event streams.
	EventBuffer int `json:"event_buffer"`
}

type SchedulerConfig struct {
	PollIntervalSec int `json:"poll_interval_sec"`
	BatchSize       int `json:"batch_size"`
}

type ReaperConfig struct {
	IntervalSec        int `json:"interval_sec"`
	MaxScanDurationSec int `json:"max_scan_duration_sec"`
	MaxPendingAgeSec   int `json:"max_pending_age_sec"`
}

type DispatcherConfig struct {
	Workers           int `json:"workers"`
	QueueSize         int `json:"queue_size"`
	AnalyzeTimeoutSec int `json:"analyze_timeout_sec"`
}

type AnalyzerConfig struct {
	BaseURL    string `json:"base_url"`
	TimeoutSec int    `json:"timeout_sec"`
	Retries    int    `json:"retries"`
	BackoffMs  int    `json:"backoff_ms"`
}

type UsageConfig struct {
	RolloverSchedule string `json:"rollover_schedule"`
}

// DefaultConfig returns a Config populated with sensible development defaults.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig reads and validates configuration from a JSON file
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var cfg Config
	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyDefaults sets default values for unspecified fields
func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "comply.db"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.Scheduler.PollIntervalSec == 0 {
		cfg.Scheduler.PollIntervalSec = 60
	}
	if cfg.Scheduler.BatchSize == 0 {
		cfg.Scheduler.BatchSize = 100
	}
	if cfg.Reaper.IntervalSec == 0 {
		cfg.Reaper.IntervalSec = 60
	}
	if cfg.Reaper.MaxScanDurationSec == 0 {
		cfg.Reaper.MaxScanDurationSec = 15 * 60
	}
	if cfg.Reaper.MaxPendingAgeSec == 0 {
		cfg.Reaper.MaxPendingAgeSec = 60 * 60
	}
	if cfg.Dispatcher.Workers == 0 {
		cfg.Dispatcher.Workers = 4
	}
	if cfg.Dispatcher.QueueSize == 0 {
		cfg.Dispatcher.QueueSize = 64
	}
	if cfg.Dispatcher.AnalyzeTimeoutSec == 0 {
		cfg.Dispatcher.AnalyzeTimeoutSec = 10 * 60
	}
	if cfg.Analyzer.BaseURL == "" {
		cfg.Analyzer.BaseURL = "http://localhost:9090"
	}
	if cfg.Analyzer.TimeoutSec == 0 {
		cfg.Analyzer.TimeoutSec = 120
	}
	if cfg.Analyzer.Retries == 0 {
		cfg.Analyzer.Retries = 2
	}
	if cfg.Analyzer.BackoffMs == 0 {
		cfg.Analyzer.BackoffMs = 500
	}
	if cfg.Usage.RolloverSchedule == "" {
		cfg.Usage.RolloverSchedule = usage.DefaultRolloverSchedule
	}
	if cfg.EventBuffer == 0 {
		cfg.EventBuffer = 16
	}
}

// Validate checks that values are sensible
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	if c.Scheduler.PollIntervalSec < 1 {
		return fmt.Errorf("scheduler.poll_interval_sec must be >= 1")
	}
	if c.Scheduler.BatchSize < 1 {
		return fmt.Errorf("scheduler.batch_size must be >= 1")
	}
	if c.Dispatcher.Workers < 1 {
		return fmt.Errorf("dispatcher.workers must be >= 1")
	}
	if c.Dispatcher.QueueSize < 1 {
		return fmt.Errorf("dispatcher.queue_size must be >= 1")
	}
	if c.Reaper.MaxScanDurationSec <= c.Dispatcher.AnalyzeTimeoutSec {
		return fmt.Errorf("reaper.max_scan_duration_sec must exceed dispatcher.analyze_timeout_sec")
	}
	if c.Analyzer.Retries < 0 {
		return fmt.Errorf("analyzer.retries must be >= 0")
	}
	return nil
}

// Location returns the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (c *Config) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		PollInterval: seconds(c.Scheduler.PollIntervalSec),
		BatchSize:    c.Scheduler.BatchSize,
	}
}

func (c *Config) ReaperConfig() scheduler.ReaperConfig {
	return scheduler.ReaperConfig{
		Interval:        seconds(c.Reaper.IntervalSec),
		MaxScanDuration: seconds(c.Reaper.MaxScanDurationSec),
		MaxPendingAge:   seconds(c.Reaper.MaxPendingAgeSec),
		BatchSize:       c.Scheduler.BatchSize,
	}
}

func (c *Config) DispatchConfig() dispatch.Config {
	return dispatch.Config{
		Workers:        c.Dispatcher.Workers,
		QueueSize:      c.Dispatcher.QueueSize,
		AnalyzeTimeout: seconds(c.Dispatcher.AnalyzeTimeoutSec),
	}
}

func (c *Config) AnalyzerConfig() analyzer.Config {
	return analyzer.Config{
		BaseURL: c.Analyzer.BaseURL,
		Timeout: seconds(c.Analyzer.TimeoutSec),
		Retries: c.Analyzer.Retries,
		Backoff: time.Duration(c.Analyzer.BackoffMs) * time.Millisecond,
	}
}
