package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Verifier  VerifierConfig  `yaml:"verifier" mapstructure:"verifier"`
	Pattern   PatternConfig   `yaml:"pattern" mapstructure:"pattern"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run-log database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// VerifierConfig holds verification service credentials and tuning.
type VerifierConfig struct {
	Email             string  `yaml:"email" mapstructure:"email"`
	Password          string  `yaml:"password" mapstructure:"password"`
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// PatternConfig configures candidate generation.
type PatternConfig struct {
	TemplatesFile string `yaml:"templates_file" mapstructure:"templates_file"`
}

// PipelineConfig configures the verification pipeline.
type PipelineConfig struct {
	ChunkSize        int `yaml:"chunk_size" mapstructure:"chunk_size"`
	PoolSize         int `yaml:"pool_size" mapstructure:"pool_size"`
	PollIntervalSecs int `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	MaxPollAttempts  int `yaml:"max_poll_attempts" mapstructure:"max_poll_attempts"`
}

// PollInterval returns the poll interval as a duration.
func (c PipelineConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSecs) * time.Second
}

// BatchConfig configures batch processing of prospect files.
type BatchConfig struct {
	MaxConcurrentProspects int `yaml:"max_concurrent_prospects" mapstructure:"max_concurrent_prospects"`
}

// ServerConfig configures the discovery HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// RateLimitConfig configures the per-client sliding-window limiter guarding
// the server's discovery endpoint.
type RateLimitConfig struct {
	Requests   int `yaml:"requests" mapstructure:"requests"`
	WindowSecs int `yaml:"window_secs" mapstructure:"window_secs"`
}

// Window returns the limiter window as a duration.
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSecs) * time.Second
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
	v.SetEnvPrefix("PROSPECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "prospector.db")
	// Credential keys default empty so AutomaticEnv can populate them.
	v.SetDefault("verifier.email", "")
	v.SetDefault("verifier.password", "")
	v.SetDefault("verifier.base_url", "https://api.bulkverifier.io")
	v.SetDefault("verifier.requests_per_second", 5)
	v.SetDefault("pattern.templates_file", "")
	v.SetDefault("pipeline.chunk_size", 1000)
	v.SetDefault("pipeline.pool_size", 0)
	v.SetDefault("pipeline.poll_interval_secs", 10)
	v.SetDefault("pipeline.max_poll_attempts", 300)
	v.SetDefault("batch.max_concurrent_prospects", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("rate_limit.requests", 10)
	v.SetDefault("rate_limit.window_secs", 60)
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
