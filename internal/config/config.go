// Package config handles loading and validating Herald configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/darshan-rambhia/herald/internal/model"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} placeholders in config values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ErrConfigFileNotFound is returned by Load when the specified config file does not exist.
var ErrConfigFileNotFound = errors.New("config file not found")

const minSecretKeyLen = 16

// Config is the top-level Herald configuration.
type Config struct {
	Listen     string `yaml:"listen"`
	DBPath     string `yaml:"db_path"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`
	NotifyFile string `yaml:"notify_file"`
	SecretKey  string `yaml:"secret_key"`
	Brand      string `yaml:"brand"`
	// Link is attached to card-style messages (weWorkApp text cards).
	Link string     `yaml:"link"`
	HTTP HTTPConfig `yaml:"http"`
	// Notification is the inline system channel ({type, ...params}), used
	// when NotifyFile is empty.
	Notification map[string]any `yaml:"notification,omitempty"`
}

// HTTPConfig tunes the provider HTTP transport.
type HTTPConfig struct {
	Timeout Duration `yaml:"timeout"`
	Retries int      `yaml:"retries"`
}

// Duration wraps time.Duration with YAML string parsing support.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// SystemChannel returns the inline system channel configuration.
func (c *Config) SystemChannel() model.ChannelConfig {
	if len(c.Notification) == 0 {
		return model.ChannelConfig{}
	}
	return model.ChannelConfigFromMap(c.Notification)
}

// Load reads configuration from a YAML file. If no path is given, defaults
// and environment variables are used. If a path is given and the file does
// not exist, ErrConfigFileNotFound is returned.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(expandEnvVars(data), cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("log_format must be one of: text, json")
	}
	if c.SecretKey != "" && len(c.SecretKey) < minSecretKeyLen {
		return fmt.Errorf("secret_key must be at least %d characters", minSecretKeyLen)
	}
	if c.Link != "" {
		if _, err := url.Parse(c.Link); err != nil {
			return fmt.Errorf("invalid link URL: %w", err)
		}
	}
	if c.HTTP.Timeout.Duration <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.HTTP.Retries < 0 || c.HTTP.Retries > 5 {
		return fmt.Errorf("http.retries must be between 0 and 5")
	}

	if len(c.Notification) > 0 {
		ch := c.SystemChannel()
		if !ch.Configured() {
			return fmt.Errorf("notification: type is required")
		}
		if !slices.Contains(model.ChannelTypes(), ch.Type) {
			return fmt.Errorf("notification: unknown type %q", ch.Type)
		}
	}

	return nil
}

func defaults() *Config {
	return &Config{
		Listen:    ":5700",
		DBPath:    "/data/herald.db",
		LogLevel:  "info",
		LogFormat: "text",
		Brand:     "Herald",
		HTTP: HTTPConfig{
			Timeout: Duration{10 * time.Second},
			Retries: 1,
		},
	}
}

// expandEnvVars replaces ${VAR_NAME} placeholders in raw YAML with the
// corresponding environment variable values. Unset variables are replaced
// with an empty string, which will then fail validation with a clear error.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		key := string(match[2 : len(match)-1]) // strip ${ and }
		return []byte(os.Getenv(key))
	})
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("HERALD_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("HERALD_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("HERALD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("HERALD_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("HERALD_NOTIFY_FILE"); v != "" {
		cfg.NotifyFile = v
	}
	if v := os.Getenv("HERALD_SECRET_KEY"); v != "" {
		cfg.SecretKey = v
	}
	if v := os.Getenv("HERALD_BRAND"); v != "" {
		cfg.Brand = v
	}
	if v := os.Getenv("HERALD_LINK"); v != "" {
		cfg.Link = v
	}
	if v := os.Getenv("HERALD_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("HERALD_HTTP_TIMEOUT: invalid duration %q: %w", v, err)
		}
		cfg.HTTP.Timeout = Duration{d}
	}
	if v := os.Getenv("HERALD_HTTP_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Retries = n
		}
	}

	// Single system channel from env (only if none configured inline).
	if len(cfg.Notification) == 0 {
		if v := os.Getenv("HERALD_NOTIFICATION"); v != "" {
			var m map[string]any
			if err := yaml.Unmarshal([]byte(v), &m); err != nil {
				return fmt.Errorf("HERALD_NOTIFICATION: %w", err)
			}
			cfg.Notification = m
		}
	}
	return nil
}
