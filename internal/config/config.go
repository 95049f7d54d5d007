// Package config loads the screenpilot configuration from defaults, an
// optional YAML file and SCREENPILOT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"screenpilot/internal/detector"
	"screenpilot/internal/safety"
	"screenpilot/pkg/geometry"
)

// EnvPrefix prefixes every environment override, e.g.
// SCREENPILOT_SAFETY_MAX_ACTIONS_PER_SECOND.
const EnvPrefix = "SCREENPILOT"

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Vision     VisionConfig     `mapstructure:"vision" yaml:"vision"`
	Safety     SafetyConfig     `mapstructure:"safety" yaml:"safety"`
	Input      InputConfig      `mapstructure:"input" yaml:"input"`
	Perception PerceptionConfig `mapstructure:"perception" yaml:"perception"`
}

// LoggerConfig configures the zap logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// VisionConfig holds detector settings. These are the only settings that
// can be reloaded while a session runs.
type VisionConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	MaxElements         int     `mapstructure:"max_elements" yaml:"max_elements"`
	EdgeThreshold       int     `mapstructure:"edge_threshold" yaml:"edge_threshold"`
	MinElementSize      int     `mapstructure:"min_element_size" yaml:"min_element_size"`
	MaxElementSize      int     `mapstructure:"max_element_size" yaml:"max_element_size"`
	BlurRadius          int     `mapstructure:"blur_radius" yaml:"blur_radius"`
	OverlapThreshold    float64 `mapstructure:"overlap_threshold" yaml:"overlap_threshold"`
	GridCellSize        float64 `mapstructure:"grid_cell_size" yaml:"grid_cell_size"`
	CacheSize           int     `mapstructure:"cache_size" yaml:"cache_size"`
	OCREnabled          bool    `mapstructure:"ocr_enabled" yaml:"ocr_enabled"`
	OCRLanguage         string  `mapstructure:"ocr_language" yaml:"ocr_language"`
}

// SafetyConfig holds gatekeeper settings. They are fixed for a session.
type SafetyConfig struct {
	MaxActionsPerSecond int             `mapstructure:"max_actions_per_second" yaml:"max_actions_per_second"`
	MaxActionsPerMinute int             `mapstructure:"max_actions_per_minute" yaml:"max_actions_per_minute"`
	DenyPatterns        []string        `mapstructure:"deny_patterns" yaml:"deny_patterns"`
	DenyExpressions     []string        `mapstructure:"deny_expressions" yaml:"deny_expressions"`
	SensitiveKeywords   []string        `mapstructure:"sensitive_keywords" yaml:"sensitive_keywords"`
	DangerousKeyCombos  []string        `mapstructure:"dangerous_key_combos" yaml:"dangerous_key_combos"`
	AllowBelow          string          `mapstructure:"allow_below" yaml:"allow_below"`
	ProtectedRegions    []geometry.Rect `mapstructure:"protected_regions" yaml:"protected_regions"`
}

// InputConfig holds executor settings.
type InputConfig struct {
	ActionDelay time.Duration `mapstructure:"action_delay" yaml:"action_delay"`
	HistorySize int           `mapstructure:"history_size" yaml:"history_size"`
}

// PerceptionConfig holds capture loop settings.
type PerceptionConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	// Source is the screenshot file the file provider re-reads.
	Source string  `mapstructure:"source" yaml:"source"`
	Scale  float64 `mapstructure:"scale" yaml:"scale"`
}

// NewDefaultConfig returns the configuration with every default applied.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "screenpilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Vision --
	p := detector.DefaultParams()
	v.SetDefault("vision.confidence_threshold", p.ConfidenceThreshold)
	v.SetDefault("vision.max_elements", p.MaxElements)
	v.SetDefault("vision.edge_threshold", int(p.EdgeThreshold))
	v.SetDefault("vision.min_element_size", p.MinElementSize)
	v.SetDefault("vision.max_element_size", p.MaxElementSize)
	v.SetDefault("vision.blur_radius", p.BlurRadius)
	v.SetDefault("vision.overlap_threshold", p.OverlapThreshold)
	v.SetDefault("vision.grid_cell_size", p.GridCellSize)
	v.SetDefault("vision.cache_size", p.CacheSize)
	v.SetDefault("vision.ocr_enabled", false)
	v.SetDefault("vision.ocr_language", "eng")

	// -- Safety --
	rules := safety.DefaultRules()
	v.SetDefault("safety.max_actions_per_second", 10)
	v.SetDefault("safety.max_actions_per_minute", 100)
	v.SetDefault("safety.deny_patterns", rules.DenyList)
	v.SetDefault("safety.deny_expressions", rules.Patterns)
	v.SetDefault("safety.sensitive_keywords", rules.Sensitive)
	v.SetDefault("safety.dangerous_key_combos", rules.DangerousCombos)
	v.SetDefault("safety.allow_below", safety.RiskCritical.String())
	v.SetDefault("safety.protected_regions", []geometry.Rect{})

	// -- Input --
	v.SetDefault("input.action_delay", "50ms")
	v.SetDefault("input.history_size", 256)

	// -- Perception --
	v.SetDefault("perception.interval", "100ms")
	v.SetDefault("perception.source", "")
	v.SetDefault("perception.scale", 1.0)
}

// Load reads defaults, then the YAML file at path when it is not empty,
// then environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}
	return NewConfigFromViper(v)
}

// NewConfigFromViper decodes and validates v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks every section so misconfiguration fails at startup.
func (c *Config) Validate() error {
	if err := c.Vision.Validate(); err != nil {
		return fmt.Errorf("vision: %w", err)
	}
	if err := c.Safety.Validate(); err != nil {
		return fmt.Errorf("safety: %w", err)
	}
	if c.Input.ActionDelay < 0 {
		return errors.New("input.action_delay must not be negative")
	}
	if c.Input.HistorySize <= 0 {
		return errors.New("input.history_size must be a positive integer")
	}
	if c.Perception.Interval <= 0 {
		return errors.New("perception.interval must be positive")
	}
	if c.Perception.Scale < 0 || c.Perception.Scale > 1 {
		return errors.New("perception.scale must be between 0 and 1")
	}
	return nil
}

// Validate checks the vision settings by building detector parameters.
func (v VisionConfig) Validate() error {
	if v.EdgeThreshold < 0 || v.EdgeThreshold > 255 {
		return fmt.Errorf("edge_threshold %d outside [0,255]", v.EdgeThreshold)
	}
	return v.DetectorParams().Validate()
}

// DetectorParams converts the vision section into detector parameters.
func (v VisionConfig) DetectorParams() detector.Params {
	return detector.Params{
		ConfidenceThreshold: v.ConfidenceThreshold,
		MaxElements:         v.MaxElements,
		EdgeThreshold:       uint8(min(max(v.EdgeThreshold, 0), 255)),
		MinElementSize:      v.MinElementSize,
		MaxElementSize:      v.MaxElementSize,
		BlurRadius:          v.BlurRadius,
		OverlapThreshold:    v.OverlapThreshold,
		GridCellSize:        v.GridCellSize,
		CacheSize:           v.CacheSize,
	}
}

// Validate checks the safety settings, including that every expression
// compiles.
func (s SafetyConfig) Validate() error {
	gc, err := s.GatekeeperConfig()
	if err != nil {
		return err
	}
	if err := gc.Validate(); err != nil {
		return err
	}
	_, err = safety.NewRuleChecker(gc.Rules)
	return err
}

// GatekeeperConfig converts the safety section into gatekeeper settings.
func (s SafetyConfig) GatekeeperConfig() (safety.Config, error) {
	allow, err := safety.ParseRiskLevel(s.AllowBelow)
	if err != nil {
		return safety.Config{}, fmt.Errorf("%w: allow_below: %v", safety.ErrInvalidConfig, err)
	}
	rules := safety.DefaultRules()
	rules.DenyList = s.DenyPatterns
	rules.Patterns = s.DenyExpressions
	rules.Sensitive = s.SensitiveKeywords
	rules.DangerousCombos = s.DangerousKeyCombos
	rules.ProtectedRegions = s.ProtectedRegions
	return safety.Config{
		RateLimitPerMinute: s.MaxActionsPerMinute,
		RateLimitPerSecond: s.MaxActionsPerSecond,
		AllowBelow:         allow,
		Rules:              rules,
	}, nil
}
