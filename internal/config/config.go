// ABOUTME: Configuration loading and parsing for pause-notify
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable that overrides the config location.
const EnvConfigPath = "PAUSE_NOTIFY_CONFIG"

// Permission modes
const (
	PermissionPrompt  = "prompt"
	PermissionGranted = "granted"
	PermissionDenied  = "denied"
)

// Config represents the complete pause-notify configuration
type Config struct {
	Identity     IdentityConfig     `yaml:"identity" toml:"identity"`
	Feed         FeedConfig         `yaml:"feed" toml:"feed"`
	Permission   PermissionConfig   `yaml:"permission" toml:"permission"`
	Subscription SubscriptionConfig `yaml:"subscription" toml:"subscription"`
	Dedupe       DedupeConfig       `yaml:"dedupe" toml:"dedupe"`
	Relay        RelayConfig        `yaml:"relay" toml:"relay"`
	Database     DatabaseConfig     `yaml:"database" toml:"database"`
	Notify       NotifyConfig       `yaml:"notify" toml:"notify"`
	Logging      LoggingConfig      `yaml:"logging" toml:"logging"`
}

// IdentityConfig is the signed-in user for the watch client
type IdentityConfig struct {
	UserID string `yaml:"user_id" toml:"user_id"`
	// Token is the relay bearer token for UserID
	Token string `yaml:"token" toml:"token"`
}

// FeedConfig locates the relay the watch client subscribes to
type FeedConfig struct {
	URL string `yaml:"url" toml:"url"`
}

// PermissionConfig selects how notification permission is obtained
type PermissionConfig struct {
	Mode string `yaml:"mode" toml:"mode"`
}

// SubscriptionConfig tunes subscription retries and the delivery queue
type SubscriptionConfig struct {
	MaxAttempts int `yaml:"max_attempts" toml:"max_attempts"`
	QueueSize   int `yaml:"queue_size" toml:"queue_size"`

	InitialBackoff time.Duration `yaml:"-" toml:"-"`
	MaxBackoff     time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	InitialBackoffRaw string `yaml:"initial_backoff" toml:"initial_backoff"`
	MaxBackoffRaw     string `yaml:"max_backoff" toml:"max_backoff"`
}

// DedupeConfig bounds the per-identity delivery ledger
type DedupeConfig struct {
	Capacity int `yaml:"capacity" toml:"capacity"`
}

// RelayConfig holds relay server configuration
type RelayConfig struct {
	HTTPAddr  string `yaml:"http_addr" toml:"http_addr"`
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`

	PingInterval    time.Duration `yaml:"-" toml:"-"`
	PingIntervalRaw string        `yaml:"ping_interval" toml:"ping_interval"`
}

// DatabaseConfig holds the notification inbox location
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// NotifyConfig selects notification targets
type NotifyConfig struct {
	Terminal TerminalConfig `yaml:"terminal" toml:"terminal"`
	Inbox    InboxConfig    `yaml:"inbox" toml:"inbox"`
	Matrix   MatrixConfig   `yaml:"matrix" toml:"matrix"`
}

// TerminalConfig controls the terminal notifier
type TerminalConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
	Bell    bool `yaml:"bell" toml:"bell"`
}

// InboxConfig controls persisting notifications to the database
type InboxConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
}

// MatrixConfig holds Matrix room notifier configuration
type MatrixConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	Homeserver  string `yaml:"homeserver" toml:"homeserver"`
	UserID      string `yaml:"user_id" toml:"user_id"`
	AccessToken string `yaml:"access_token" toml:"access_token"`
	RoomID      string `yaml:"room_id" toml:"room_id"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration used for any field a file leaves out.
func Default() *Config {
	return &Config{
		Feed:       FeedConfig{URL: "http://localhost:8080"},
		Permission: PermissionConfig{Mode: PermissionPrompt},
		Subscription: SubscriptionConfig{
			MaxAttempts:       3,
			QueueSize:         256,
			InitialBackoffRaw: "500ms",
			MaxBackoffRaw:     "10s",
			InitialBackoff:    500 * time.Millisecond,
			MaxBackoff:        10 * time.Second,
		},
		Dedupe: DedupeConfig{Capacity: 4096},
		Relay: RelayConfig{
			HTTPAddr:        "localhost:8080",
			PingIntervalRaw: "25s",
			PingInterval:    25 * time.Second,
		},
		Database: DatabaseConfig{Path: defaultDatabasePath()},
		Notify: NotifyConfig{
			Terminal: TerminalConfig{Enabled: true},
			Inbox:    InboxConfig{Enabled: true},
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are TOML; anything else is YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// DefaultPath returns where the config is looked for when no path is given:
// $PAUSE_NOTIFY_CONFIG, then $XDG_CONFIG_HOME/pause-notify/config.yaml,
// then ~/.config/pause-notify/config.yaml.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pause-notify", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "pause-notify", "config.yaml")
}

func defaultDatabasePath() string {
	if data := os.Getenv("XDG_DATA_HOME"); data != "" {
		return filepath.Join(data, "pause-notify", "inbox.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "pause-notify.db"
	}
	return filepath.Join(home, ".local", "share", "pause-notify", "inbox.db")
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// Validate checks values that every command relies on.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.Permission.Mode {
	case PermissionPrompt, PermissionGranted, PermissionDenied:
	default:
		return fmt.Errorf("permission.mode must be one of prompt, granted, denied (got %q)", c.Permission.Mode)
	}

	if c.Subscription.MaxAttempts < 1 {
		return errors.New("subscription.max_attempts must be at least 1")
	}
	if c.Subscription.QueueSize < 1 {
		return errors.New("subscription.queue_size must be at least 1")
	}
	if c.Subscription.InitialBackoff <= 0 || c.Subscription.MaxBackoff <= 0 {
		return errors.New("subscription backoff durations must be positive")
	}
	if c.Subscription.MaxBackoff < c.Subscription.InitialBackoff {
		return errors.New("subscription.max_backoff must not be less than initial_backoff")
	}
	if c.Dedupe.Capacity < 1 {
		return errors.New("dedupe.capacity must be at least 1")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json (got %q)", c.Logging.Format)
	}

	if c.Notify.Matrix.Enabled {
		m := c.Notify.Matrix
		if m.Homeserver == "" || m.AccessToken == "" || m.RoomID == "" {
			return errors.New("notify.matrix requires homeserver, access_token and room_id when enabled")
		}
	}

	return nil
}

// ValidateWatch checks what the watch client needs on top of Validate.
func (c *Config) ValidateWatch() error {
	if c.Identity.UserID == "" {
		return errors.New("identity.user_id is required")
	}
	if c.Identity.Token == "" {
		return errors.New("identity.token is required (mint one with: pause-notify token --user ID)")
	}
	if c.Feed.URL == "" {
		return errors.New("feed.url is required")
	}
	if c.Notify.Inbox.Enabled && c.Database.Path == "" {
		return errors.New("database.path is required when notify.inbox is enabled")
	}
	return nil
}

// ValidateRelay checks what the relay server needs on top of Validate.
func (c *Config) ValidateRelay() error {
	if c.Relay.HTTPAddr == "" {
		return errors.New("relay.http_addr is required")
	}
	if len(c.Relay.JWTSecret) < 32 {
		return errors.New("relay.jwt_secret must be at least 32 bytes")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Subscription.InitialBackoffRaw != "" {
		cfg.Subscription.InitialBackoff, err = time.ParseDuration(cfg.Subscription.InitialBackoffRaw)
		if err != nil {
			return fmt.Errorf("parsing initial_backoff %q: %w", cfg.Subscription.InitialBackoffRaw, err)
		}
	}

	if cfg.Subscription.MaxBackoffRaw != "" {
		cfg.Subscription.MaxBackoff, err = time.ParseDuration(cfg.Subscription.MaxBackoffRaw)
		if err != nil {
			return fmt.Errorf("parsing max_backoff %q: %w", cfg.Subscription.MaxBackoffRaw, err)
		}
	}

	if cfg.Relay.PingIntervalRaw != "" {
		cfg.Relay.PingInterval, err = time.ParseDuration(cfg.Relay.PingIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing ping_interval %q: %w", cfg.Relay.PingIntervalRaw, err)
		}
	}

	return nil
}
