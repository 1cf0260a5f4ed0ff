// Package config loads and validates the testbench's runtime configuration:
// namespace naming, run-phase durations, rebalance tuning, and reporting.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the testbench's top-level configuration.
type Config struct {
	Framework  FrameworkConfig  `yaml:"framework"`
	Namespace  NamespaceConfig  `yaml:"namespace"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	Reporting  ReportingConfig  `yaml:"reporting"`
	Execution  ExecutionConfig  `yaml:"execution"`
	Rebalance  RebalanceConfig  `yaml:"rebalance"`
	Bitrate    BitrateConfig    `yaml:"bitrate"`
	Safety     SafetyConfig     `yaml:"safety"`
}

// FrameworkConfig contains general framework settings.
type FrameworkConfig struct {
	Version   string `yaml:"version"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// NamespaceConfig controls how the orchestrator names and sweeps the network
// namespaces it creates for each run.
type NamespaceConfig struct {
	// Prefix namespaces every namespace the orchestrator creates, so
	// SweepStale can distinguish them from unrelated host namespaces.
	Prefix string `yaml:"prefix"`
}

// PrometheusConfig contains Prometheus connection settings for the stats
// aggregator's PrometheusSource.
type PrometheusConfig struct {
	URL             string        `yaml:"url"`
	Timeout         time.Duration `yaml:"timeout"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// ReportingConfig contains reporting and output settings.
type ReportingConfig struct {
	OutputDir string   `yaml:"output_dir"`
	KeepLastN int      `yaml:"keep_last_n"`
	Formats   []string `yaml:"formats"`
}

// ExecutionConfig controls the orchestrator's warmup/run/cooldown phase
// durations.
type ExecutionConfig struct {
	WarmupDuration     time.Duration `yaml:"warmup_duration"`
	CooldownDuration   time.Duration `yaml:"cooldown_duration"`
	DefaultRunDuration time.Duration `yaml:"default_run_duration"`
}

// RebalanceConfig tunes the dispatcher's hysteresis-gated rebalance loop and
// keyframe duplication budget.
type RebalanceConfig struct {
	Interval        time.Duration `yaml:"interval"`
	SwitchThreshold float64       `yaml:"switch_threshold"`
	MinHold         time.Duration `yaml:"min_hold"`
	DupBudgetPPS    int           `yaml:"dup_budget_pps"`
	// HealthWarmup is how long a newly added output keeps its initial
	// weight regardless of stats and stays in state Warming before being
	// promoted to Active. A Warming output is still DWRR-eligible.
	HealthWarmup time.Duration `yaml:"health_warmup"`
}

// BitrateConfig bounds the dynamic bitrate controller's target output.
type BitrateConfig struct {
	MinBitrateBps uint32 `yaml:"min_bitrate_bps"`
	MaxBitrateBps uint32 `yaml:"max_bitrate_bps"`
}

// SafetyConfig contains safety limits.
type SafetyConfig struct {
	MaxDuration         time.Duration `yaml:"max_duration"`
	RequireConfirmation bool          `yaml:"require_confirmation"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Framework: FrameworkConfig{
			Version:   "v1",
			LogLevel:  "info",
			LogFormat: "text",
		},
		Namespace: NamespaceConfig{
			Prefix: "ristbond",
		},
		Prometheus: PrometheusConfig{
			URL:             "http://localhost:9090",
			Timeout:         30 * time.Second,
			RefreshInterval: 15 * time.Second,
		},
		Reporting: ReportingConfig{
			OutputDir: "./reports",
			KeepLastN: 50,
			Formats:   []string{"json"},
		},
		Execution: ExecutionConfig{
			WarmupDuration:     10 * time.Second,
			CooldownDuration:   10 * time.Second,
			DefaultRunDuration: 60 * time.Second,
		},
		Rebalance: RebalanceConfig{
			Interval:        500 * time.Millisecond,
			SwitchThreshold: 0.1,
			MinHold:         2 * time.Second,
			DupBudgetPPS:    20,
			HealthWarmup:    2 * time.Second,
		},
		Bitrate: BitrateConfig{
			MinBitrateBps: 500_000,
			MaxBitrateBps: 20_000_000,
		},
		Safety: SafetyConfig{
			MaxDuration:         1 * time.Hour,
			RequireConfirmation: true,
		},
	}
}

// Load loads configuration from a YAML file, expanding ${VAR}/$VAR
// environment references before parsing. A missing path yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	prometheusURLEnv, prometheusURLEnvSet := os.LookupEnv("PROMETHEUS_URL")

	expandedData := []byte(os.ExpandEnv(string(data)))

	if err := yaml.Unmarshal(expandedData, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if prometheusURLEnvSet {
		cfg.Prometheus.URL = prometheusURLEnv
	}

	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Namespace.Prefix == "" {
		return fmt.Errorf("namespace.prefix is required")
	}
	if c.Reporting.OutputDir == "" {
		return fmt.Errorf("reporting.output_dir is required")
	}
	if c.Rebalance.SwitchThreshold < 0 || c.Rebalance.SwitchThreshold > 1 {
		return fmt.Errorf("rebalance.switch_threshold must be between 0 and 1")
	}
	if c.Bitrate.MinBitrateBps > 0 && c.Bitrate.MaxBitrateBps > 0 && c.Bitrate.MinBitrateBps > c.Bitrate.MaxBitrateBps {
		return fmt.Errorf("bitrate.min_bitrate_bps must not exceed bitrate.max_bitrate_bps")
	}
	return nil
}

// NamespacePrefix returns the prefix the orchestrator uses when naming and
// sweeping its network namespaces.
func (c *Config) NamespacePrefix() string {
	return c.Namespace.Prefix
}

// WarmupDuration returns how long the orchestrator holds each link at its
// schedule's initial direction.Spec before starting the timed run phase.
func (c *Config) WarmupDuration() time.Duration {
	return c.Execution.WarmupDuration
}

// CooldownDuration returns how long the orchestrator waits after the run
// phase before tearing down namespaces and collecting final stats.
func (c *Config) CooldownDuration() time.Duration {
	return c.Execution.CooldownDuration
}

// DefaultRunDuration returns the run-phase duration used when a scenario
// does not specify its own DurationSeconds.
func (c *Config) DefaultRunDuration() time.Duration {
	return c.Execution.DefaultRunDuration
}

// RebalanceInterval returns how often the dispatcher recomputes weights.
func (c *Config) RebalanceInterval() time.Duration {
	return c.Rebalance.Interval
}

// SwitchThreshold returns the minimum absolute change in any session's
// weight that the rebalance hysteresis gate requires, in addition to
// MinHold having elapsed, before it applies a new weight vector.
func (c *Config) SwitchThreshold() float64 {
	return c.Rebalance.SwitchThreshold
}

// MinHold returns the minimum time between applied rebalances.
func (c *Config) MinHold() time.Duration {
	return c.Rebalance.MinHold
}

// DupBudgetPPS returns the keyframe duplication token budget per second.
func (c *Config) DupBudgetPPS() int {
	return c.Rebalance.DupBudgetPPS
}

// HealthWarmup returns how long a newly added output holds its initial
// weight and stays in state Warming before being promoted to Active.
func (c *Config) HealthWarmup() time.Duration {
	return c.Rebalance.HealthWarmup
}

// MaxBitrateBps returns the ceiling the dynamic bitrate controller clamps to.
func (c *Config) MaxBitrateBps() uint32 {
	return c.Bitrate.MaxBitrateBps
}

// MinBitrateBps returns the floor the dynamic bitrate controller clamps to.
func (c *Config) MinBitrateBps() uint32 {
	return c.Bitrate.MinBitrateBps
}
