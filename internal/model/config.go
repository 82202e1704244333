package model

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DefaultUserAgent is the desktop browser identity sent on every request.
// Roundcube gates some features on the user agent, so it stays fixed
// unless the configuration overrides it.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3"

// Login success detection modes.
const (
	// DetectMarker inspects the landing page for the username header
	// and a quota block.
	DetectMarker = "marker"

	// DetectRedirect treats a 302 carrying a session cookie as success.
	DetectRedirect = "redirect"
)

// HTTPConfig holds transport settings.
type HTTPConfig struct {
	TimeoutSec int     `mapstructure:"timeout_sec" yaml:"timeout_sec"`
	RatePerSec float64 `mapstructure:"rate_per_sec" yaml:"rate_per_sec"`
	Burst      int     `mapstructure:"burst" yaml:"burst"`
}

// LoginConfig holds login flow settings.
type LoginConfig struct {
	// Detection is DetectMarker or DetectRedirect.
	Detection string `mapstructure:"detection" yaml:"detection"`
}

// StoreConfig holds local persistence settings.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// KeyringConfig holds secret storage settings.
type KeyringConfig struct {
	FileDir string `mapstructure:"file_dir" yaml:"file_dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server    string        `mapstructure:"server" yaml:"server"`
	BaseURL   string        `mapstructure:"base_url" yaml:"base_url"`
	Username  string        `mapstructure:"username" yaml:"username"`
	Timezone  string        `mapstructure:"timezone" yaml:"timezone"`
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
	HTTP      HTTPConfig    `mapstructure:"http" yaml:"http"`
	Login     LoginConfig   `mapstructure:"login" yaml:"login"`
	Store     StoreConfig   `mapstructure:"store" yaml:"store"`
	Keyring   KeyringConfig `mapstructure:"keyring" yaml:"keyring"`
	Log       LogConfig     `mapstructure:"log" yaml:"log"`
}

// ConfigDir returns ~/.config/roundmail, or "." when the home directory
// cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "roundmail")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/roundmail/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := ConfigDir()
	return &AppConfig{
		Timezone:  "UTC",
		UserAgent: DefaultUserAgent,
		HTTP: HTTPConfig{
			TimeoutSec: 30,
			RatePerSec: 5,
			Burst:      5,
		},
		Login: LoginConfig{Detection: DetectMarker},
		Store: StoreConfig{Path: filepath.Join(dir, "roundmail.db")},
		Keyring: KeyringConfig{
			FileDir: filepath.Join(dir, "credentials"),
		},
		Log: LogConfig{Level: "info"},
	}
}

// NewViper returns a viper instance carrying every default and the
// ROUNDMAIL_ environment override, so that command-line flags can be
// bound to it before LoadConfig reads the file.
func NewViper() *viper.Viper {
	d := defaultAppConfig()

	v := viper.New()
	v.SetDefault("server", "")
	v.SetDefault("base_url", "")
	v.SetDefault("username", "")
	v.SetDefault("timezone", d.Timezone)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("http.timeout_sec", d.HTTP.TimeoutSec)
	v.SetDefault("http.rate_per_sec", d.HTTP.RatePerSec)
	v.SetDefault("http.burst", d.HTTP.Burst)
	v.SetDefault("login.detection", d.Login.Detection)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("keyring.file_dir", d.Keyring.FileDir)
	v.SetDefault("log.level", d.Log.Level)

	v.SetEnvPrefix("roundmail")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads configuration from the given YAML file path using v.
// If the file does not exist, the defaults (plus any bound flags and
// environment overrides) are returned.
func LoadConfig(v *viper.Viper, path string) (*AppConfig, error) {
	if v == nil {
		v = NewViper()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		_, pathErr := err.(*os.PathError)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !pathErr && !notFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate normalizes the server and rejects unusable values.
func (c *AppConfig) Validate() error {
	if c.Server != "" {
		host, err := NormalizeServer(c.Server)
		if err != nil {
			return err
		}
		c.Server = host
	}

	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("base_url %q must be an http(s) URL", c.BaseURL)
		}
		c.BaseURL = strings.TrimRight(c.BaseURL, "/")
		if c.Server == "" {
			c.Server = u.Host
		}
	}

	switch c.Login.Detection {
	case DetectMarker, DetectRedirect:
	case "":
		c.Login.Detection = DetectMarker
	default:
		return fmt.Errorf(
			"login.detection must be %q or %q, got %q",
			DetectMarker, DetectRedirect, c.Login.Detection,
		)
	}

	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.HTTP.TimeoutSec <= 0 {
		c.HTTP.TimeoutSec = 30
	}
	if c.HTTP.Burst <= 0 {
		c.HTTP.Burst = 1
	}

	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("base_url", cfg.BaseURL)
	v.Set("username", cfg.Username)
	v.Set("timezone", cfg.Timezone)
	v.Set("user_agent", cfg.UserAgent)
	v.Set("http", cfg.HTTP)
	v.Set("login", cfg.Login)
	v.Set("store", cfg.Store)
	v.Set("keyring", cfg.Keyring)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
