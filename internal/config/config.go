// Package config manages tacgo daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables; command-line flags are not
// read by this package.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete tacgo configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
	TACACS  TACACSConfig  `koanf:"tacacs"`
	Probe   ProbeConfig   `koanf:"probe"`
}

// ServerConfig holds the TACACS+ server this daemon dials.
type ServerConfig struct {
	// Addr is the TACACS+ server address (host:port, default port 49).
	Addr string `koanf:"addr"`

	// DialTimeout bounds how long Dial waits for the TCP handshake.
	DialTimeout string `koanf:"dial_timeout"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// TACACSConfig holds the protocol-level options RFC 8907 leaves to local
// configuration.
type TACACSConfig struct {
	// Secret is the shared key used for body obfuscation. Empty means the
	// connection runs unencrypted and every frame carries FlagUnencrypted.
	Secret string `koanf:"secret"`

	// AllowClearTextReplies permits an inbound frame with FlagUnencrypted
	// set even when Secret is configured.
	AllowClearTextReplies bool `koanf:"allow_clear_text_replies"`

	// PreferSingleConnection requests single-connection multiplexing: the
	// first client packet sets FlagSingleConnection.
	PreferSingleConnection bool `koanf:"prefer_single_connection"`

	// DefaultPrivLvl is the privilege level used when a request does not
	// specify one explicitly (0-15).
	DefaultPrivLvl uint8 `koanf:"default_priv_lvl"`
}

// ProbeConfig controls the daemon's periodic server health probe: an
// accounting WATCHDOG record sent on each tick, with the outcome exported
// through the metrics endpoint.
type ProbeConfig struct {
	// Enabled turns the probe loop on.
	Enabled bool `koanf:"enabled"`

	// Interval is the time between probes (Go duration string).
	Interval string `koanf:"interval"`

	// User is the username carried on the probe's accounting record.
	User string `koanf:"user"`

	// Port is the client port name reported on the probe record.
	Port string `koanf:"port"`

	// RemAddr is the remote address reported on the probe record.
	RemAddr string `koanf:"rem_addr"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":49",
			DialTimeout: "10s",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		TACACS: TACACSConfig{
			AllowClearTextReplies:  false,
			PreferSingleConnection: false,
			DefaultPrivLvl:         1,
		},
		Probe: ProbeConfig{
			Enabled:  false,
			Interval: "30s",
			User:     "tacgo-probe",
			Port:     "probe",
			RemAddr:  "localhost",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for tacgo configuration.
// Variables are named TACGO_<section>_<key>, e.g., TACGO_SERVER_ADDR.
const envPrefix = "TACGO_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (TACGO_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	TACGO_SERVER_ADDR          -> server.addr
//	TACGO_METRICS_ADDR         -> metrics.addr
//	TACGO_METRICS_PATH         -> metrics.path
//	TACGO_LOG_LEVEL            -> log.level
//	TACGO_LOG_FORMAT           -> log.format
//	TACGO_TACACS_SECRET        -> tacacs.secret
//	TACGO_PROBE_INTERVAL       -> probe.interval
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load defaults first.
	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	// Load YAML file on top of defaults.
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	// Load environment variable overrides on top of YAML.
	// TACGO_SERVER_ADDR -> server.addr (strip prefix, lowercase, _ -> .).
	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms TACGO_SERVER_ADDR -> server.addr.
// Strips the TACGO_ prefix, lowercases, and replaces _ with .
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"server.addr":                     defaults.Server.Addr,
		"server.dial_timeout":             defaults.Server.DialTimeout,
		"metrics.addr":                    defaults.Metrics.Addr,
		"metrics.path":                    defaults.Metrics.Path,
		"log.level":                       defaults.Log.Level,
		"log.format":                      defaults.Log.Format,
		"tacacs.secret":                   defaults.TACACS.Secret,
		"tacacs.allow_clear_text_replies": defaults.TACACS.AllowClearTextReplies,
		"tacacs.prefer_single_connection": defaults.TACACS.PreferSingleConnection,
		"tacacs.default_priv_lvl":         defaults.TACACS.DefaultPrivLvl,
		"probe.enabled":                   defaults.Probe.Enabled,
		"probe.interval":                  defaults.Probe.Interval,
		"probe.user":                      defaults.Probe.User,
		"probe.port":                      defaults.Probe.Port,
		"probe.rem_addr":                  defaults.Probe.RemAddr,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyServerAddr indicates the TACACS+ server address is empty.
	ErrEmptyServerAddr = errors.New("server.addr must not be empty")

	// ErrInvalidDialTimeout indicates the dial timeout does not parse as a duration.
	ErrInvalidDialTimeout = errors.New("server.dial_timeout must be a valid duration")

	// ErrInvalidDefaultPrivLvl indicates the default privilege level is out of range.
	ErrInvalidDefaultPrivLvl = errors.New("tacacs.default_priv_lvl must be 0-15")

	// ErrInvalidProbeInterval indicates the probe interval does not parse as a duration.
	ErrInvalidProbeInterval = errors.New("probe.interval must be a valid duration")

	// ErrEmptyProbeUser indicates the probe is enabled without a username.
	ErrEmptyProbeUser = errors.New("probe.user must not be empty when the probe is enabled")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return ErrEmptyServerAddr
	}

	if _, err := time.ParseDuration(cfg.Server.DialTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDialTimeout, err)
	}

	if cfg.TACACS.DefaultPrivLvl > 15 {
		return ErrInvalidDefaultPrivLvl
	}

	if cfg.Probe.Enabled {
		if _, err := time.ParseDuration(cfg.Probe.Interval); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidProbeInterval, err)
		}
		if cfg.Probe.User == "" {
			return ErrEmptyProbeUser
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
