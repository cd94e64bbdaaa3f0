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
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Routing RoutingConfig `yaml:"routing" mapstructure:"routing"`
	Grid    GridConfig    `yaml:"grid" mapstructure:"grid"`
	Analyze AnalyzeConfig `yaml:"analyze" mapstructure:"analyze"`
	Export  ExportConfig  `yaml:"export" mapstructure:"export"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the spatial store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// RoutingConfig configures the road-network routing service.
type RoutingConfig struct {
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	Profile       string  `yaml:"profile" mapstructure:"profile"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Burst         int     `yaml:"burst" mapstructure:"burst"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GridConfig fixes the study-area extent and cell resolution shared by every
// day's status grid. All values are WGS84 degrees.
type GridConfig struct {
	MinLon  float64 `yaml:"min_lon" mapstructure:"min_lon"`
	MinLat  float64 `yaml:"min_lat" mapstructure:"min_lat"`
	MaxLon  float64 `yaml:"max_lon" mapstructure:"max_lon"`
	MaxLat  float64 `yaml:"max_lat" mapstructure:"max_lat"`
	CellDeg float64 `yaml:"cell_deg" mapstructure:"cell_deg"`
}

// AnalyzeConfig configures the analysis run.
type AnalyzeConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"` // parallel dates; 1 = sequential
}

// ExportConfig configures result table output.
type ExportConfig struct {
	Dir    string `yaml:"dir" mapstructure:"dir"`
	Format string `yaml:"format" mapstructure:"format"` // csv or xlsx
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
	v.SetEnvPrefix("MOVERISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("routing.base_url", "https://router.project-osrm.org")
	v.SetDefault("routing.profile", "driving")
	v.SetDefault("routing.rate_per_second", 1.0)
	v.SetDefault("routing.burst", 1)
	v.SetDefault("routing.timeout_secs", 30)
	v.SetDefault("grid.cell_deg", 0.01)
	v.SetDefault("analyze.workers", 1)
	v.SetDefault("export.dir", "results")
	v.SetDefault("export.format", "csv")
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
