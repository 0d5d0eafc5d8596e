package config

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Blob     BlobConfig     `yaml:"blob" mapstructure:"blob"`
	Rules    RulesConfig    `yaml:"rules" mapstructure:"rules"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// BlobConfig configures where uploaded pay files are stored.
type BlobConfig struct {
	Driver            string  `yaml:"driver" mapstructure:"driver"`
	Dir               string  `yaml:"dir" mapstructure:"dir"`
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	Token             string  `yaml:"token" mapstructure:"token"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// RulesConfig holds the tunable validation thresholds. Values stored in the
// system_parameters table override these at pipeline start.
type RulesConfig struct {
	VATRate              float64 `yaml:"vat_rate" mapstructure:"vat_rate"`
	OvertimeMultiplier   float64 `yaml:"overtime_multiplier" mapstructure:"overtime_multiplier"`
	OvertimeTolerancePct float64 `yaml:"overtime_tolerance_percent" mapstructure:"overtime_tolerance_percent"`
	RateChangeAlertPct   float64 `yaml:"rate_change_alert_percent" mapstructure:"rate_change_alert_percent"`
	NameMatchThreshold   int     `yaml:"name_match_threshold" mapstructure:"name_match_threshold"`
}

// PipelineConfig configures pipeline execution.
type PipelineConfig struct {
	ValidationWorkers int `yaml:"validation_workers" mapstructure:"validation_workers"`
	MaxRetries        int `yaml:"max_retries" mapstructure:"max_retries"`
	StageTimeoutSecs  int `yaml:"stage_timeout_secs" mapstructure:"stage_timeout_secs"`
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
	v.SetEnvPrefix("PAYTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "paytrack.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("blob.driver", "local")
	v.SetDefault("blob.dir", "uploads")
	v.SetDefault("blob.requests_per_second", 10)
	v.SetDefault("rules.vat_rate", 0.20)
	v.SetDefault("rules.overtime_multiplier", 1.5)
	v.SetDefault("rules.overtime_tolerance_percent", 2.0)
	v.SetDefault("rules.rate_change_alert_percent", 5.0)
	v.SetDefault("rules.name_match_threshold", 85)
	v.SetDefault("pipeline.validation_workers", 4)
	v.SetDefault("pipeline.max_retries", 3)
	v.SetDefault("pipeline.stage_timeout_secs", 60)
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

// ApplyParameters overlays system_parameters rows onto the rule thresholds.
// Unknown names are ignored so the table can carry settings for other tools.
func (r *RulesConfig) ApplyParameters(params map[string]string) error {
	for name, value := range params {
		switch name {
		case "rules.vat_rate":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return eris.Wrapf(err, "config: parameter %s", name)
			}
			r.VATRate = f
		case "rules.overtime_multiplier":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return eris.Wrapf(err, "config: parameter %s", name)
			}
			r.OvertimeMultiplier = f
		case "rules.overtime_tolerance_percent":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return eris.Wrapf(err, "config: parameter %s", name)
			}
			r.OvertimeTolerancePct = f
		case "rules.rate_change_alert_percent":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return eris.Wrapf(err, "config: parameter %s", name)
			}
			r.RateChangeAlertPct = f
		case "rules.name_match_threshold":
			n, err := strconv.Atoi(value)
			if err != nil {
				return eris.Wrapf(err, "config: parameter %s", name)
			}
			r.NameMatchThreshold = n
		}
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
