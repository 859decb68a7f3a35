// Package config resolves client configuration from defaults, an optional
// enhance.yaml file and ENHANCE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	// DevelopmentAPIBase is the local backend used during development.
	DevelopmentAPIBase = "http://localhost:5000/api"
	// ProductionAPIPath is appended to the API origin in production.
	ProductionAPIPath = "/api"
)

// Config holds all client configuration.
type Config struct {
	Env              string        `mapstructure:"env"`
	APIOrigin        string        `mapstructure:"api_origin"`
	APIBase          string        `mapstructure:"api_base"`
	ProbeTimeout     time.Duration `mapstructure:"probe_timeout"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	HTTPTimeout      time.Duration `mapstructure:"http_timeout"`
	Metrics          bool          `mapstructure:"metrics"`
	WebAddr          string        `mapstructure:"web_addr"`
}

// Load reads configuration. Each path is searched for enhance.yaml; with no
// paths the working directory and $HOME/.config/enhance are used. A missing
// file is not an error. Environment variables override the file.
func Load(paths ...string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("enhance")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = defaultPaths()
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("ENHANCE")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "enhance"))
	}
	return paths
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", EnvDevelopment)
	v.SetDefault("api_origin", "http://localhost")
	v.SetDefault("api_base", "")
	v.SetDefault("probe_timeout", 3*time.Second)
	v.SetDefault("progress_interval", 500*time.Millisecond)
	v.SetDefault("http_timeout", 10*time.Minute)
	v.SetDefault("metrics", false)
	v.SetDefault("web_addr", "127.0.0.1:8080")
}

// Validate checks the environment name, timeouts and URLs.
func (c *Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("env must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env)
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be positive, got %s", c.ProbeTimeout)
	}
	if c.ProgressInterval <= 0 {
		return fmt.Errorf("progress_interval must be positive, got %s", c.ProgressInterval)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("http_timeout must not be negative, got %s", c.HTTPTimeout)
	}
	if _, err := c.BaseURL(); err != nil {
		return err
	}
	return nil
}

// BaseURL resolves the API base: an explicit api_base wins, otherwise the
// development backend, or /api on the configured origin in production.
func (c *Config) BaseURL() (string, error) {
	if c.APIBase != "" {
		return checkAbsolute("api_base", c.APIBase)
	}
	if c.Env == EnvProduction {
		origin, err := checkAbsolute("api_origin", c.APIOrigin)
		if err != nil {
			return "", err
		}
		return origin + ProductionAPIPath, nil
	}
	return DevelopmentAPIBase, nil
}

func checkAbsolute(key, raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return "", fmt.Errorf("%s must be an absolute http(s) URL, got %q", key, raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}
