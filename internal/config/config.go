package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. MANDALART_BASE_URL
const EnvPrefix = "MANDALART"

// Config represents the application configuration
type Config struct {
	BaseURL        string        `mapstructure:"base_url" json:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout" json:"timeout"`
	DBPath         string        `mapstructure:"db_path" json:"db_path"`
	Addr           string        `mapstructure:"addr" json:"addr"`
	UIAddr         string        `mapstructure:"ui_addr" json:"ui_addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins" json:"allowed_origins"`
	RateLimit      float64       `mapstructure:"rate_limit" json:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst" json:"rate_burst"`
	LogDir         string        `mapstructure:"log_dir" json:"log_dir"`
	Debug          bool          `mapstructure:"debug" json:"debug"`
}

// fileConfig is the on-disk form; durations are written as "10s"
type fileConfig struct {
	BaseURL        string   `yaml:"base_url"`
	Timeout        string   `yaml:"timeout"`
	DBPath         string   `yaml:"db_path"`
	Addr           string   `yaml:"addr"`
	UIAddr         string   `yaml:"ui_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RateLimit      float64  `yaml:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst"`
	LogDir         string   `yaml:"log_dir,omitempty"`
	Debug          bool     `yaml:"debug"`
}

// Dir returns ~/.mandalart, falling back to the working directory
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mandalart"
	}
	return filepath.Join(home, ".mandalart")
}

// DefaultPath is where `config init` writes the config file
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		BaseURL:        "http://localhost:8000",
		Timeout:        10 * time.Second,
		DBPath:         filepath.Join(Dir(), "mandalart.db"),
		Addr:           ":8000",
		UIAddr:         ":5173",
		AllowedOrigins: []string{"http://localhost:5173"},
		RateBurst:      20,
	}
}

// Load resolves defaults, then the YAML file at path (if any), then
// MANDALART_* variables. A .env in the working directory is read first.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	d := Defaults()
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("addr", d.Addr)
	v.SetDefault("ui_addr", d.UIAddr)
	v.SetDefault("allowed_origins", d.AllowedOrigins)
	v.SetDefault("rate_limit", d.RateLimit)
	v.SetDefault("rate_burst", d.RateBurst)
	v.SetDefault("log_dir", d.LogDir)
	v.SetDefault("debug", d.Debug)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Save writes cfg to path as YAML
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(fileConfig{
		BaseURL:        cfg.BaseURL,
		Timeout:        cfg.Timeout.String(),
		DBPath:         cfg.DBPath,
		Addr:           cfg.Addr,
		UIAddr:         cfg.UIAddr,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		LogDir:         cfg.LogDir,
		Debug:          cfg.Debug,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
