// Package config loads application configuration from config.yaml and
// RECON_-prefixed environment variables, and owns the global zap logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Matching MatchingConfig `yaml:"matching" mapstructure:"matching"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Import   ImportConfig   `yaml:"import" mapstructure:"import"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// MatchingConfig holds the tunables of the resolution engine. The
// suspicious-pattern constants have no statistical derivation behind them,
// which is exactly why they live in configuration rather than code.
type MatchingConfig struct {
	SimilarityThreshold        float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	AddressSimilarityThreshold float64 `yaml:"address_similarity_threshold" mapstructure:"address_similarity_threshold"`
	FuzzyDuplicateWindowHours  int     `yaml:"fuzzy_duplicate_window_hours" mapstructure:"fuzzy_duplicate_window_hours"`
	SuspiciousWindowHours      int     `yaml:"suspicious_window_hours" mapstructure:"suspicious_window_hours"`
	CostTolerancePct           float64 `yaml:"cost_tolerance_pct" mapstructure:"cost_tolerance_pct"`
}

// BatchConfig configures partition-parallel batch processing.
type BatchConfig struct {
	MaxConcurrentPartitions int `yaml:"max_concurrent_partitions" mapstructure:"max_concurrent_partitions"`
	MaxRetries              int `yaml:"max_retries" mapstructure:"max_retries"`
}

// ImportConfig configures spreadsheet/CSV export ingestion.
type ImportConfig struct {
	DownloadRatePerSec float64 `yaml:"download_rate_per_sec" mapstructure:"download_rate_per_sec"`
	TimeoutSecs        int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RECON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("matching.similarity_threshold", 0.75)
	v.SetDefault("matching.address_similarity_threshold", 0.75)
	v.SetDefault("matching.fuzzy_duplicate_window_hours", 2)
	v.SetDefault("matching.suspicious_window_hours", 24)
	v.SetDefault("matching.cost_tolerance_pct", 5.0)
	v.SetDefault("batch.max_concurrent_partitions", 4)
	v.SetDefault("batch.max_retries", 3)
	v.SetDefault("import.download_rate_per_sec", 2.0)
	v.SetDefault("import.timeout_secs", 120)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate rejects out-of-range matching options. Called before any record
// is touched so a bad threshold can never partially apply.
func (m MatchingConfig) Validate() error {
	if m.SimilarityThreshold < 0 || m.SimilarityThreshold > 1 {
		return eris.Errorf("config: similarity_threshold %.3f outside [0,1]", m.SimilarityThreshold)
	}
	if m.AddressSimilarityThreshold < 0 || m.AddressSimilarityThreshold > 1 {
		return eris.Errorf("config: address_similarity_threshold %.3f outside [0,1]", m.AddressSimilarityThreshold)
	}
	if m.FuzzyDuplicateWindowHours <= 0 {
		return eris.Errorf("config: fuzzy_duplicate_window_hours must be positive, got %d", m.FuzzyDuplicateWindowHours)
	}
	if m.SuspiciousWindowHours <= 0 {
		return eris.Errorf("config: suspicious_window_hours must be positive, got %d", m.SuspiciousWindowHours)
	}
	if m.CostTolerancePct < 0 || m.CostTolerancePct > 100 {
		return eris.Errorf("config: cost_tolerance_pct %.1f outside [0,100]", m.CostTolerancePct)
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
