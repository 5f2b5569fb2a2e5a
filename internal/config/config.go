// Package config loads turfpix settings from defaults, an optional YAML file,
// .env files, TURFPIX_* environment variables and command-line flags, in
// increasing order of priority.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"turfpix/internal/preview"
	"turfpix/internal/processor"
)

const EnvPrefix = "TURFPIX"

type Config struct {
	Env         string `mapstructure:"env" yaml:"env" default:"production"`
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency" validate:"gte=0"`

	Limits  LimitsConfig  `mapstructure:"limits" yaml:"limits"`
	Budget  BudgetConfig  `mapstructure:"budget" yaml:"budget"`
	Listing ListingConfig `mapstructure:"listing" yaml:"listing"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

type LimitsConfig struct {
	AllowedTypes  []string `mapstructure:"allowed-types" yaml:"allowed-types" default:"[\"image/jpeg\",\"image/png\",\"image/gif\",\"image/webp\"]" validate:"min=1,dive,required"`
	MaxInputBytes int64    `mapstructure:"max-input-bytes" yaml:"max-input-bytes" default:"26214400" validate:"gt=0"`
	MaxPixels     int64    `mapstructure:"max-pixels" yaml:"max-pixels" default:"100000000" validate:"gte=0"`
}

type BudgetConfig struct {
	MaxWidth       int     `mapstructure:"max-width" yaml:"max-width" default:"1920" validate:"gt=0"`
	MaxHeight      int     `mapstructure:"max-height" yaml:"max-height" default:"1080" validate:"gt=0"`
	InitialQuality float64 `mapstructure:"initial-quality" yaml:"initial-quality" default:"0.8" validate:"gte=0,lte=1"`
	QualityFloor   float64 `mapstructure:"quality-floor" yaml:"quality-floor" default:"0.6" validate:"gte=0,lte=1,ltefield=InitialQuality"`
	MaxOutputBytes int64   `mapstructure:"max-output-bytes" yaml:"max-output-bytes" default:"5242880" validate:"gt=0"`
	MaxPasses      int     `mapstructure:"max-passes" yaml:"max-passes" default:"2" validate:"gte=1,lte=8"`
	OverBudget     string  `mapstructure:"over-budget" yaml:"over-budget" default:"best-effort" validate:"oneof=best-effort reject"`
}

// ListingConfig holds the aggregate limits of a listing draft. Zero means
// unlimited.
type ListingConfig struct {
	MaxPhotos     int   `mapstructure:"max-photos" yaml:"max-photos" validate:"gte=0"`
	MaxTotalBytes int64 `mapstructure:"max-total-bytes" yaml:"max-total-bytes" validate:"gte=0"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" default:"console" validate:"oneof=console json"`
	// File enables a rotated log file next to the terminal output.
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max-size-mb" yaml:"max-size-mb" default:"10" validate:"gte=1"`
	MaxBackups int    `mapstructure:"max-backups" yaml:"max-backups" default:"3" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max-age-days" yaml:"max-age-days" default:"28" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// keys lists every setting that can come from the environment.
var keys = []string{
	"env",
	"concurrency",
	"limits.allowed-types",
	"limits.max-input-bytes",
	"limits.max-pixels",
	"budget.max-width",
	"budget.max-height",
	"budget.initial-quality",
	"budget.quality-floor",
	"budget.max-output-bytes",
	"budget.max-passes",
	"budget.over-budget",
	"listing.max-photos",
	"listing.max-total-bytes",
	"log.level",
	"log.format",
	"log.file",
	"log.max-size-mb",
	"log.max-backups",
	"log.max-age-days",
	"log.compress",
}

type Options struct {
	// ConfigFile is an explicit path. When empty, turfpix.yaml is searched in
	// SearchPaths and its absence is not an error.
	ConfigFile  string
	SearchPaths []string
	// EnvFiles are loaded with godotenv. Missing files are ignored.
	EnvFiles []string
	// Flags maps flag names to config keys. Only flags the user set are bound.
	Flags    *pflag.FlagSet
	FlagKeys map[string]string
}

var validate = validator.New()

// Load resolves the configuration and validates it.
func Load(opts Options) (*Config, error) {
	_ = godotenv.Load(opts.EnvFiles...)

	v := viper.New()
	v.SetConfigType("yaml")
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("turfpix")
		for _, p := range opts.SearchPaths {
			v.AddConfigPath(p)
		}
	}
	if opts.ConfigFile != "" || len(opts.SearchPaths) > 0 {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if opts.ConfigFile != "" || !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if opts.Flags != nil {
		for name, key := range opts.FlagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// zero values left by the sources fall back to the defaults
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("set config defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	return cfg
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Mode maps Env onto the preview misuse mode.
func (c *Config) Mode() preview.Mode {
	return preview.ParseMode(c.Env)
}

func (c *Config) ProcessorLimits() processor.Limits {
	return processor.Limits{
		AllowedTypes:  append([]string(nil), c.Limits.AllowedTypes...),
		MaxInputBytes: c.Limits.MaxInputBytes,
		MaxPixels:     c.Limits.MaxPixels,
	}
}

func (c *Config) ProcessorBudget() processor.Budget {
	policy := processor.OverBudgetBestEffort
	if c.Budget.OverBudget == "reject" {
		policy = processor.OverBudgetReject
	}
	return processor.Budget{
		MaxWidthPx:     c.Budget.MaxWidth,
		MaxHeightPx:    c.Budget.MaxHeight,
		InitialQuality: c.Budget.InitialQuality,
		QualityFloor:   c.Budget.QualityFloor,
		MaxOutputBytes: c.Budget.MaxOutputBytes,
		MaxPasses:      c.Budget.MaxPasses,
		OverBudget:     policy,
	}
}
