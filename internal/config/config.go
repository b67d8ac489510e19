package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"eda-dashboard/internal/models"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Security SecurityConfig `mapstructure:"security" yaml:"security"`
	Engine   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	Dataset  DatasetConfig  `mapstructure:"dataset" yaml:"dataset"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type SecurityConfig struct {
	EnableRateLimit bool     `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled"`
	RateLimitRPS    int      `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst  int      `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
	AllowedOrigins  []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	TrustedProxies  []string `mapstructure:"trusted_proxies" yaml:"trusted_proxies"`
	MaxUploadBytes  int64    `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
}

// EngineConfig carries the default view options handed to the engine when a
// request does not override them.
type EngineConfig struct {
	Granularity string `mapstructure:"granularity" yaml:"granularity"`
	TopN        int    `mapstructure:"top_n" yaml:"top_n"`
	Bins        int    `mapstructure:"bins" yaml:"bins"`
	LogPrice    bool   `mapstructure:"log_price" yaml:"log_price"`
}

type DatasetConfig struct {
	// File is an optional CSV/XLSX preloaded at boot.
	File string `mapstructure:"file" yaml:"file"`
	// StoreCapacity bounds how many uploaded datasets stay in memory.
	StoreCapacity int `mapstructure:"store_capacity" yaml:"store_capacity"`
	// CacheDir holds the gob snapshot of the preloaded file.
	CacheDir string `mapstructure:"cache_dir" yaml:"cache_dir"`
}

// Load reads configuration with precedence env > config file > defaults.
// Environment variables use the EDA_ prefix, e.g. EDA_SERVER_PORT.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EDA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8084)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	v.SetDefault("security.rate_limit_enabled", true)
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 10)
	v.SetDefault("security.allowed_origins", []string{"http://localhost:8084"})
	v.SetDefault("security.trusted_proxies", []string{"127.0.0.1"})
	v.SetDefault("security.max_upload_bytes", int64(64<<20))

	v.SetDefault("engine.granularity", string(models.GranularityMonth))
	v.SetDefault("engine.top_n", models.DefaultTopN)
	v.SetDefault("engine.bins", 0)
	v.SetDefault("engine.log_price", false)

	v.SetDefault("dataset.file", "")
	v.SetDefault("dataset.store_capacity", 16)
	v.SetDefault("dataset.cache_dir", ".cache")
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLevels, ", "))
	}
	validFormats := []string{"json", "text"}
	if !contains(validFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 || c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit rps and burst must be positive")
	}
	if c.Security.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}

	g := models.Granularity(c.Engine.Granularity)
	if g != models.GranularityDay && g != models.GranularityMonth {
		return fmt.Errorf("engine granularity must be %q or %q, got %q",
			models.GranularityDay, models.GranularityMonth, c.Engine.Granularity)
	}
	if c.Engine.TopN < models.MinTopN || c.Engine.TopN > models.MaxTopN {
		return fmt.Errorf("engine top_n must be between %d and %d, got %d",
			models.MinTopN, models.MaxTopN, c.Engine.TopN)
	}
	if c.Engine.Bins != 0 && (c.Engine.Bins < models.MinBins || c.Engine.Bins > models.MaxBins) {
		return fmt.Errorf("engine bins must be 0 or between %d and %d, got %d",
			models.MinBins, models.MaxBins, c.Engine.Bins)
	}

	if c.Dataset.StoreCapacity < 1 {
		return fmt.Errorf("dataset store capacity must be at least 1")
	}

	return nil
}

// EngineOptions converts the configured defaults into engine options.
func (c *Config) EngineOptions() models.Options {
	return models.Options{
		Granularity: models.Granularity(c.Engine.Granularity),
		TopN:        c.Engine.TopN,
		Bins:        c.Engine.Bins,
		LogPrice:    c.Engine.LogPrice,
	}.Normalize()
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Save writes the configuration as YAML, creating parent directories.
func Save(c *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Default returns the built-in configuration without env overrides.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}
	return &cfg
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
