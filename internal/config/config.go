// Package config loads chi-landmarks settings from a YAML file, the
// environment and command-line flags through viper.
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

const (
	// DefaultURL is the Commission on Chicago Landmarks information page.
	DefaultURL = "https://www.cityofchicago.org/city/en/depts/dcd/supp_info/landmarks_commission.html"
	// DefaultUserAgent identifies the scraper to the city's web server.
	DefaultUserAgent = "chi-landmarks/1.0 (github.com/pfrederiksen/chi-landmarks)"

	configName = "chi-landmarks"
	envPrefix  = "CHI_LANDMARKS"
)

// Config holds every runtime setting.
type Config struct {
	URL        string        `mapstructure:"url" yaml:"url"`
	UserAgent  string        `mapstructure:"user_agent" yaml:"user_agent"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	DataDir    string        `mapstructure:"data_dir" yaml:"data_dir"`
	Timezone   string        `mapstructure:"timezone" yaml:"timezone"`
	Listen     string        `mapstructure:"listen" yaml:"listen"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	LogLevel   string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat  string        `mapstructure:"log_format" yaml:"log_format"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("url", DefaultURL)
	v.SetDefault("user_agent", DefaultUserAgent)
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("max_retries", 3)
	v.SetDefault("data_dir", "~/.local/share/chi-landmarks")
	v.SetDefault("timezone", "America/Chicago")
	v.SetDefault("listen", ":8080")
	v.SetDefault("cache_ttl", 15*time.Minute)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// Load reads configuration into a Config. When cfgFile is empty the file
// chi-landmarks.yaml is looked up in the working directory and in
// ~/.config/chi-landmarks; a missing file is not an error. Environment
// variables prefixed CHI_LANDMARKS_ override file values, and flags bound to
// v override both.
func Load(v *viper.Viper, cfgFile string) (Config, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", configName))
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the settings can be used.
func (c Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid url %q: must be absolute", c.URL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid timeout %s: must be positive", c.Timeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("invalid max_retries %d: must not be negative", c.MaxRetries)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the configured time zone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
