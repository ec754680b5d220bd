// Package config holds the flat application option set: defaults, YAML file
// loading, CCB_* environment overrides, and validation. A Config is an
// immutable value; With* methods return modified copies and validation
// reports issues as data instead of failing the load.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"ccb/internal/logging"
)

// EnvPrefix namespaces every environment override: option names map to
// EnvPrefix + UPPER_SNAKE, e.g. max_turns -> CCB_MAX_TURNS.
const EnvPrefix = "CCB_"

// Config is the complete option set. The zero value is not meaningful;
// start from DefaultConfig or Load.
type Config struct {
	// Classifier confidence thresholds, each in [0,1].
	IntentConfThreshold  float64 `yaml:"intent_conf_threshold"`
	EmotionConfThreshold float64 `yaml:"emotion_conf_threshold"`
	SubtextConfThreshold float64 `yaml:"subtext_conf_threshold"`

	// Summarizer settings.
	SummaryMaxPoints int `yaml:"summary_max_points"`
	SummaryMaxRecent int `yaml:"summary_max_recent"`

	// Logging and diagnostics.
	LogLevel      string `yaml:"log_level"`
	EnableTracing bool   `yaml:"enable_tracing"`

	// Conversation state machine.
	InitialPhase string `yaml:"initial_phase"`
	AllowUnknown bool   `yaml:"allow_unknown"`

	// Turn history.
	MaxTurns      int    `yaml:"max_turns"`
	PruneStrategy string `yaml:"prune_strategy"`

	// Subtext detector.
	SubtextMaxTags int `yaml:"subtext_max_tags"`

	// Model-facing limits, recorded as archive session metadata.
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// optionNames lists every option in declaration order. Environment override
// keys derive from these, and validation reports issues in this order.
var optionNames = []string{
	"intent_conf_threshold", "emotion_conf_threshold", "subtext_conf_threshold",
	"summary_max_points", "summary_max_recent",
	"log_level", "enable_tracing",
	"initial_phase", "allow_unknown",
	"max_turns", "prune_strategy",
	"subtext_max_tags",
	"max_tokens", "temperature",
}

// DefaultConfig returns the stock option set. It validates clean.
func DefaultConfig() Config {
	return Config{
		IntentConfThreshold:  0.6,
		EmotionConfThreshold: 0.55,
		SubtextConfThreshold: 0.55,

		SummaryMaxPoints: 10,
		SummaryMaxRecent: 6,

		LogLevel:      "INFO",
		EnableTracing: false,

		InitialPhase: "idle",
		AllowUnknown: true,

		MaxTurns:      100,
		PruneStrategy: "oldest",

		SubtextMaxTags: 5,

		MaxTokens:   512,
		Temperature: 0.7,
	}
}

// DefaultPath returns the config file location inside a workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, ".ccb", "config.yaml")
}

// Load reads configuration from a YAML file, then applies environment
// overrides. A missing file is not an error: defaults plus overrides are
// returned. A corrupt file returns defaults alongside the parse error so
// callers can degrade rather than abort.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML, creating the directory if needed.
func (c Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// EnvKey maps an option name to its environment override key.
func EnvKey(option string) string {
	return EnvPrefix + strings.ToUpper(option)
}

// ActiveEnvOverrides lists the override keys currently set to a non-empty
// value, in option declaration order.
func ActiveEnvOverrides() []string {
	var active []string
	for _, name := range optionNames {
		if os.Getenv(EnvKey(name)) != "" {
			active = append(active, EnvKey(name))
		}
	}
	return active
}

// applyEnvOverrides folds CCB_* environment variables into the config.
// Empty values count as unset. Unparseable numbers are logged and skipped,
// never applied as zero.
func (c *Config) applyEnvOverrides() {
	setFloat(&c.IntentConfThreshold, "intent_conf_threshold")
	setFloat(&c.EmotionConfThreshold, "emotion_conf_threshold")
	setFloat(&c.SubtextConfThreshold, "subtext_conf_threshold")
	setInt(&c.SummaryMaxPoints, "summary_max_points")
	setInt(&c.SummaryMaxRecent, "summary_max_recent")
	setString(&c.LogLevel, "log_level")
	setBool(&c.EnableTracing, "enable_tracing")
	setString(&c.InitialPhase, "initial_phase")
	setBool(&c.AllowUnknown, "allow_unknown")
	setInt(&c.MaxTurns, "max_turns")
	setString(&c.PruneStrategy, "prune_strategy")
	setInt(&c.SubtextMaxTags, "subtext_max_tags")
	setInt(&c.MaxTokens, "max_tokens")
	setFloat(&c.Temperature, "temperature")
}

func setString(dst *string, option string) {
	if v := os.Getenv(EnvKey(option)); v != "" {
		*dst = v
	}
}

// setBool accepts 1/true/yes/on (any case) as true; every other non-empty
// value is false.
func setBool(dst *bool, option string) {
	v := os.Getenv(EnvKey(option))
	if v == "" {
		return
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		*dst = true
	default:
		*dst = false
	}
}

func setInt(dst *int, option string) {
	v := os.Getenv(EnvKey(option))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		logging.ConfigWarn("ignoring %s=%q: %v", EnvKey(option), v, err)
		return
	}
	*dst = n
}

func setFloat(dst *float64, option string) {
	v := os.Getenv(EnvKey(option))
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		logging.ConfigWarn("ignoring %s=%q: %v", EnvKey(option), v, err)
		return
	}
	*dst = f
}

// ValidationIssue names one option that failed validation.
type ValidationIssue struct {
	Option  string `json:"option"`
	Message string `json:"message"`
}

func (v ValidationIssue) String() string {
	return v.Option + ": " + v.Message
}

// Validate checks every option and returns the issues found in a fixed
// order. A clean config returns nil. Issues are reported, never thrown:
// callers decide whether to proceed.
func (c Config) Validate() []ValidationIssue {
	var issues []ValidationIssue

	thresholds := []struct {
		option string
		value  float64
	}{
		{"intent_conf_threshold", c.IntentConfThreshold},
		{"emotion_conf_threshold", c.EmotionConfThreshold},
		{"subtext_conf_threshold", c.SubtextConfThreshold},
	}
	for _, th := range thresholds {
		if th.value < 0 || th.value > 1 {
			issues = append(issues, ValidationIssue{th.option, fmt.Sprintf("Threshold %v out of range [0,1]", th.value)})
		}
	}

	if c.Temperature < 0 || c.Temperature > 1 {
		issues = append(issues, ValidationIssue{"temperature", fmt.Sprintf("Temperature %v out of range [0,1]", c.Temperature)})
	}
	if c.MaxTokens <= 0 {
		issues = append(issues, ValidationIssue{"max_tokens", fmt.Sprintf("Max tokens must be > 0, got %v", c.MaxTokens)})
	}
	if c.MaxTurns <= 0 {
		issues = append(issues, ValidationIssue{"max_turns", fmt.Sprintf("Max turns must be > 0, got %v", c.MaxTurns)})
	}
	if c.PruneStrategy != "oldest" && c.PruneStrategy != "newest" {
		issues = append(issues, ValidationIssue{"prune_strategy", fmt.Sprintf("Unknown prune strategy %q (want oldest or newest)", c.PruneStrategy)})
	}

	return issues
}

// With* methods return a modified copy; the receiver is never changed.

func (c Config) WithMaxTurns(n int) Config {
	c.MaxTurns = n
	return c
}

func (c Config) WithPruneStrategy(strategy string) Config {
	c.PruneStrategy = strategy
	return c
}

func (c Config) WithInitialPhase(phase string) Config {
	c.InitialPhase = phase
	return c
}

func (c Config) WithLogLevel(level string) Config {
	c.LogLevel = level
	return c
}

func (c Config) WithMaxTokens(n int) Config {
	c.MaxTokens = n
	return c
}

func (c Config) WithTemperature(t float64) Config {
	c.Temperature = t
	return c
}

func (c Config) WithTracing(enabled bool) Config {
	c.EnableTracing = enabled
	return c
}
