// Package config loads warden settings from defaults, an optional YAML
// file, and command-line overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	DefaultMainNames   = "FastExecuteScript.exe,BrowserAutomationStudio.exe"
	DefaultWorkerNames = "worker.exe"
	DefaultLockName    = "affinity-warden"
)

// Config is the full set of warden options.
//
// Durations accept Go duration strings ("10s", "1m30s") or a plain number
// of seconds.
type Config struct {
	// MainCores is a hyphen-separated core list ("0-2-4"). Empty selects
	// a default based on the number of CPUs.
	MainCores   string   `yaml:"mainCores"`
	Interval    Duration `yaml:"interval"`
	MainNames   string   `yaml:"mainNames"`
	WorkerNames string   `yaml:"workerNames"`
	Verbose     bool     `yaml:"verbose"`

	LockDir  string `yaml:"lockDir"`
	LockName string `yaml:"lockName"`

	// MetricsAddr enables the Prometheus endpoint when non-empty.
	MetricsAddr string `yaml:"metricsAddr"`

	NoMatchThreshold     int `yaml:"noMatchThreshold"`
	ReservedPIDThreshold int `yaml:"reservedPidThreshold"`
}

func DefaultConfig() Config {
	return Config{
		Interval:             Duration(10 * time.Second),
		MainNames:            DefaultMainNames,
		WorkerNames:          DefaultWorkerNames,
		LockName:             DefaultLockName,
		NoMatchThreshold:     5,
		ReservedPIDThreshold: 4,
	}
}

// ApplyDefaults fills every zero field of cfg from DefaultConfig.
func ApplyDefaults(cfg *Config) {
	defaults := DefaultConfig()
	if cfg.Interval == 0 {
		cfg.Interval = defaults.Interval
	}
	if strings.TrimSpace(cfg.MainNames) == "" {
		cfg.MainNames = defaults.MainNames
	}
	if strings.TrimSpace(cfg.WorkerNames) == "" {
		cfg.WorkerNames = defaults.WorkerNames
	}
	if cfg.LockName == "" {
		cfg.LockName = defaults.LockName
	}
	if cfg.NoMatchThreshold == 0 {
		cfg.NoMatchThreshold = defaults.NoMatchThreshold
	}
	if cfg.ReservedPIDThreshold == 0 {
		cfg.ReservedPIDThreshold = defaults.ReservedPIDThreshold
	}
}

func (c *Config) Validate() error {
	if c.Interval.Duration() <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %s", ErrInvalidConfig, c.Interval.Duration())
	}
	if c.NoMatchThreshold < 1 {
		return fmt.Errorf("%w: noMatchThreshold must be at least 1", ErrInvalidConfig)
	}
	if c.ReservedPIDThreshold < 0 {
		return fmt.Errorf("%w: reservedPidThreshold must not be negative", ErrInvalidConfig)
	}
	if strings.ContainsAny(c.LockName, `/\`) {
		return fmt.Errorf("%w: lockName %q must not contain path separators", ErrInvalidConfig, c.LockName)
	}
	return nil
}

// Load reads a YAML file and applies defaults to anything it leaves unset.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
