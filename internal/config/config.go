package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Paths     PathsConfig     `yaml:"paths" mapstructure:"paths"`
	Source    SourceConfig    `yaml:"source" mapstructure:"source"`
	Dedup     DedupConfig     `yaml:"dedup" mapstructure:"dedup"`
	Normalize NormalizeConfig `yaml:"normalize" mapstructure:"normalize"`
	Merge     MergeConfig     `yaml:"merge" mapstructure:"merge"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// PathsConfig locates the source feed and the canonical store, relative to
// the working directory.
type PathsConfig struct {
	Source    string `yaml:"source" mapstructure:"source"`
	Canonical string `yaml:"canonical" mapstructure:"canonical"`
}

// SourceConfig describes how the source feed is decoded.
type SourceConfig struct {
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
}

// DedupConfig configures duplicate detection.
type DedupConfig struct {
	Threshold   float64 `yaml:"threshold" mapstructure:"threshold"`
	WithinBatch bool    `yaml:"within_batch" mapstructure:"within_batch"`
}

// NormalizeConfig holds the placeholder values used for fields a source
// record does not supply.
type NormalizeConfig struct {
	IDPrefix      string   `yaml:"id_prefix" mapstructure:"id_prefix"`
	City          string   `yaml:"city" mapstructure:"city"`
	CategoryID    string   `yaml:"category_id" mapstructure:"category_id"`
	LocationID    string   `yaml:"location_id" mapstructure:"location_id"`
	PriceID       string   `yaml:"price_id" mapstructure:"price_id"`
	ScheduleID    string   `yaml:"schedule_id" mapstructure:"schedule_id"`
	Tags          []string `yaml:"tags" mapstructure:"tags"`
	Website       string   `yaml:"website" mapstructure:"website"`
	Untitled      string   `yaml:"untitled" mapstructure:"untitled"`
	NoDescription string   `yaml:"no_description" mapstructure:"no_description"`
}

// MergeConfig configures the merge summary.
type MergeConfig struct {
	SampleNew        int `yaml:"sample_new" mapstructure:"sample_new"`
	SampleDuplicates int `yaml:"sample_duplicates" mapstructure:"sample_duplicates"`
}

// StoreConfig configures the merge-run ledger. An empty driver disables it.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// .env values never override variables already set in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ACTIVITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("paths.source", "src/new_data/activities.txt")
	v.SetDefault("paths.canonical", "public/data/activities.csv")
	v.SetDefault("source.encoding", "utf-8")
	v.SetDefault("dedup.threshold", 0.8)
	v.SetDefault("dedup.within_batch", false)
	v.SetDefault("normalize.id_prefix", "ac")
	v.SetDefault("normalize.city", "toronto")
	v.SetDefault("normalize.category_id", "cat_general")
	v.SetDefault("normalize.location_id", "loc_unknown")
	v.SetDefault("normalize.price_id", "price_unknown")
	v.SetDefault("normalize.schedule_id", "sched_unknown")
	v.SetDefault("normalize.tags", []string{"general"})
	v.SetDefault("normalize.website", "N/A")
	v.SetDefault("normalize.untitled", "Untitled")
	v.SetDefault("normalize.no_description", "No description available")
	v.SetDefault("merge.sample_new", 5)
	v.SetDefault("merge.sample_duplicates", 3)
	v.SetDefault("store.driver", "")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "merge":
		if c.Paths.Source == "" {
			errs = append(errs, "paths.source is required")
		}
		if c.Paths.Canonical == "" {
			errs = append(errs, "paths.canonical is required")
		}
		if c.Dedup.Threshold < 0 || c.Dedup.Threshold > 1 {
			errs = append(errs, "dedup.threshold must be between 0 and 1")
		}
		if c.Normalize.IDPrefix == "" {
			errs = append(errs, "normalize.id_prefix is required")
		}
		if c.Merge.SampleNew < 0 || c.Merge.SampleDuplicates < 0 {
			errs = append(errs, "merge sample sizes must be >= 0")
		}
		errs = append(errs, c.validateStore(false)...)
	case "runs":
		errs = append(errs, c.validateStore(true)...)
	case "export":
		if c.Paths.Canonical == "" {
			errs = append(errs, "paths.canonical is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore(required bool) []string {
	switch c.Store.Driver {
	case "":
		if required {
			return []string{"store.driver is required (sqlite or postgres)"}
		}
	case "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required for postgres"}
		}
	default:
		return []string{"store.driver must be sqlite or postgres"}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
