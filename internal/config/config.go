// Package config manages the translator daemon's configuration using
// koanf/v2.
//
// Supports YAML files and environment variables layered over built-in
// defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete translator configuration.
type Config struct {
	Daemon   DaemonConfig   `koanf:"daemon"`
	Tun      TunConfig      `koanf:"tun"`
	Underlay UnderlayConfig `koanf:"underlay"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
}

// DaemonConfig holds the control-plane daemon client configuration.
type DaemonConfig struct {
	// Addr is the SCION daemon's gRPC listen address (e.g., "127.0.0.1:30255").
	Addr string `koanf:"addr"`
}

// TunConfig holds the TUN device and its address configuration.
type TunConfig struct {
	// Name is the TUN device name to open or create (e.g., "scion0").
	Name string `koanf:"name"`

	// HostIP is the host's native underlay address (e.g. "10.0.0.2" or a
	// native IPv6 literal). An IPv4 address is mapped into the SCION
	// address space to form the tunnel address; an IPv6 address is
	// assigned to the tunnel as-is.
	HostIP string `koanf:"host_ip"`

	// PrefixLen is the prefix length installed on the tunnel address.
	PrefixLen int `koanf:"prefix_len"`
}

// HostAddr parses HostIP as a netip.Addr.
func (c TunConfig) HostAddr() (netip.Addr, error) {
	if c.HostIP == "" {
		return netip.Addr{}, fmt.Errorf("tun.host_ip: %w", ErrEmptyHostIP)
	}
	addr, err := netip.ParseAddr(c.HostIP)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parse tun.host_ip %q: %w", c.HostIP, err)
	}
	return addr, nil
}

// UnderlayConfig holds the host-to-host UDP socket configuration.
type UnderlayConfig struct {
	// Interface is the physical interface the underlay socket binds to
	// via SO_BINDTODEVICE (e.g., "eth0").
	Interface string `koanf:"interface"`

	// Port is the well-known UDP port this translator listens on and
	// uses as the empty-path next-hop port for peers.
	Port uint16 `koanf:"port"`
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

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
// The underlay port (30041) matches the reference translator's own
// well-known listening port.
func DefaultConfig() *Config {
	return &Config{
		Daemon: DaemonConfig{
			Addr: "127.0.0.1:30255",
		},
		Tun: TunConfig{
			Name:      "scitun",
			PrefixLen: 40,
		},
		Underlay: UnderlayConfig{
			Port: 30041,
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for translator configuration.
// Variables are named SCITUN_<section>_<key>, e.g., SCITUN_DAEMON_ADDR.
const envPrefix = "SCITUN_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (SCITUN_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	SCITUN_DAEMON_ADDR      -> daemon.addr
//	SCITUN_TUN_NAME         -> tun.name
//	SCITUN_TUN_HOST_IP      -> tun.host_ip
//	SCITUN_UNDERLAY_INTERFACE -> underlay.interface
//	SCITUN_UNDERLAY_PORT    -> underlay.port
//	SCITUN_METRICS_ADDR     -> metrics.addr
//	SCITUN_LOG_LEVEL        -> log.level
//	SCITUN_LOG_FORMAT       -> log.format
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

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

// envKeyMapper transforms SCITUN_DAEMON_ADDR -> daemon.addr.
// Strips the SCITUN_ prefix, lowercases, and replaces the first _ with .
// so that keys containing an underscore (tun.host_ip) survive.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"daemon.addr":         defaults.Daemon.Addr,
		"tun.name":            defaults.Tun.Name,
		"tun.prefix_len":      defaults.Tun.PrefixLen,
		"underlay.port":       defaults.Underlay.Port,
		"metrics.addr":        defaults.Metrics.Addr,
		"metrics.path":        defaults.Metrics.Path,
		"log.level":           defaults.Log.Level,
		"log.format":          defaults.Log.Format,
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
	// ErrEmptyDaemonAddr indicates the daemon's gRPC address is empty.
	ErrEmptyDaemonAddr = errors.New("daemon.addr must not be empty")

	// ErrEmptyTunName indicates the TUN device name is empty.
	ErrEmptyTunName = errors.New("tun.name must not be empty")

	// ErrEmptyHostIP indicates tun.host_ip is empty.
	ErrEmptyHostIP = errors.New("tun.host_ip must not be empty")

	// ErrInvalidPrefixLen indicates tun.prefix_len is out of range.
	ErrInvalidPrefixLen = errors.New("tun.prefix_len must be between 1 and 128")

	// ErrInvalidUnderlayPort indicates underlay.port is zero.
	ErrInvalidUnderlayPort = errors.New("underlay.port must be nonzero")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Daemon.Addr == "" {
		return ErrEmptyDaemonAddr
	}

	if cfg.Tun.Name == "" {
		return ErrEmptyTunName
	}

	if _, err := cfg.Tun.HostAddr(); err != nil {
		return err
	}

	if cfg.Tun.PrefixLen < 1 || cfg.Tun.PrefixLen > 128 {
		return ErrInvalidPrefixLen
	}

	if cfg.Underlay.Port == 0 {
		return ErrInvalidUnderlayPort
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
