package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/netsys-lab/scion-ip-translator/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Daemon.Addr != "127.0.0.1:30255" {
		t.Errorf("Daemon.Addr = %q, want %q", cfg.Daemon.Addr, "127.0.0.1:30255")
	}
	if cfg.Tun.Name != "scitun" {
		t.Errorf("Tun.Name = %q, want %q", cfg.Tun.Name, "scitun")
	}
	if cfg.Tun.PrefixLen != 40 {
		t.Errorf("Tun.PrefixLen = %d, want 40", cfg.Tun.PrefixLen)
	}
	if cfg.Underlay.Port != 30041 {
		t.Errorf("Underlay.Port = %d, want 30041", cfg.Underlay.Port)
	}
	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9100")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}

	// DefaultConfig has no host_ip set; it must fail validation until the
	// caller supplies one via file or env, so don't assert Validate here.
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
daemon:
  addr: "127.0.0.1:40255"
tun:
  name: "scion1"
  host_ip: "10.0.0.2"
  prefix_len: 40
underlay:
  interface: "eth1"
  port: 40041
log:
  level: "debug"
  format: "text"
`
	dir := t.TempDir()
	path := filepath.Join(dir, "scitun.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Daemon.Addr != "127.0.0.1:40255" {
		t.Errorf("Daemon.Addr = %q, want %q", cfg.Daemon.Addr, "127.0.0.1:40255")
	}
	if cfg.Tun.Name != "scion1" {
		t.Errorf("Tun.Name = %q, want %q", cfg.Tun.Name, "scion1")
	}
	if cfg.Tun.HostIP != "10.0.0.2" {
		t.Errorf("Tun.HostIP = %q, want %q", cfg.Tun.HostIP, "10.0.0.2")
	}
	if cfg.Underlay.Interface != "eth1" {
		t.Errorf("Underlay.Interface = %q, want %q", cfg.Underlay.Interface, "eth1")
	}
	if cfg.Underlay.Port != 40041 {
		t.Errorf("Underlay.Port = %d, want 40041", cfg.Underlay.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}

	// Metrics section wasn't in the YAML, so it must inherit defaults.
	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want default %q", cfg.Metrics.Addr, ":9100")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scitun.yaml")
	if err := os.WriteFile(path, []byte("tun:\n  host_ip: \"10.0.0.2\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("SCITUN_DAEMON_ADDR", "127.0.0.1:55255")
	t.Setenv("SCITUN_LOG_LEVEL", "warn")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Daemon.Addr != "127.0.0.1:55255" {
		t.Errorf("Daemon.Addr = %q, want env override", cfg.Daemon.Addr)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want env override", cfg.Log.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := config.Load("/nonexistent/scitun.yaml"); err == nil {
		t.Fatal("expected error loading nonexistent config file")
	}
}

func TestValidateRejectsEmptyDaemonAddr(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Daemon.Addr = ""
	cfg.Tun.HostIP = "10.0.0.2"

	if err := config.Validate(cfg); err != config.ErrEmptyDaemonAddr {
		t.Fatalf("Validate() = %v, want ErrEmptyDaemonAddr", err)
	}
}

func TestValidateRejectsEmptyHostIP(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if err := config.Validate(cfg); err == nil {
		t.Fatal("expected error for missing tun.host_ip")
	}
}

func TestValidateRejectsBadPrefixLen(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Tun.HostIP = "10.0.0.2"
	cfg.Tun.PrefixLen = 200

	if err := config.Validate(cfg); err != config.ErrInvalidPrefixLen {
		t.Fatalf("Validate() = %v, want ErrInvalidPrefixLen", err)
	}
}

func TestValidateRejectsZeroUnderlayPort(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Tun.HostIP = "10.0.0.2"
	cfg.Underlay.Port = 0

	if err := config.Validate(cfg); err != config.ErrInvalidUnderlayPort {
		t.Fatalf("Validate() = %v, want ErrInvalidUnderlayPort", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "bogus": true}
	for level := range cases {
		_ = config.ParseLogLevel(level)
	}
}
