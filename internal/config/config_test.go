package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"HOST", "PORT", "DATA_DIR", "LOG_LEVEL", "LOG_FORMAT"} {
		name := envPrefix + k
		old, had := os.LookupEnv(name)
		_ = os.Unsetenv(name)
		t.Cleanup(func() {
			if had {
				os.Setenv(name, old)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Host != defaultHost || cfg.Server.Port != defaultPort {
		t.Errorf("Load() server = %+v", cfg.Server)
	}
	if cfg.DataDir != defaultDataDir {
		t.Errorf("Load() DataDir = %q", cfg.DataDir)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Load() logging = %+v", cfg.Logging)
	}
	if cfg.Server.Addr() != defaultHost+":1337" {
		t.Errorf("Addr() = %q", cfg.Server.Addr())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	os.Setenv(envPrefix+"HOST", "127.0.0.1")
	os.Setenv(envPrefix+"PORT", "9000")
	os.Setenv(envPrefix+"DATA_DIR", "/var/microstack")
	os.Setenv(envPrefix+"LOG_LEVEL", "debug")
	os.Setenv(envPrefix+"LOG_FORMAT", "json")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("Load() server = %+v", cfg.Server)
	}
	if cfg.DataDir != "/var/microstack" {
		t.Errorf("Load() DataDir = %q", cfg.DataDir)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Load() logging = %+v", cfg.Logging)
	}
}

func TestLoadInvalidPortErrors(t *testing.T) {
	clearEnv(t)
	os.Setenv(envPrefix+"PORT", "not-a-number")
	if _, err := Load(""); err == nil {
		t.Fatal("Load() with a non-numeric port should error")
	}

	os.Setenv(envPrefix+"PORT", "70000")
	if _, err := Load(""); err == nil {
		t.Fatal("Load() with an out-of-range port should error")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "server:\n  host: 10.0.0.1\n  port: 8080\ndata_dir: /data\nlogging:\n  level: warn\n  format: json\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Host != "10.0.0.1" || cfg.Server.Port != 8080 {
		t.Errorf("Load() server = %+v", cfg.Server)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Load() logging level = %q", cfg.Logging.Level)
	}
}

func TestLoadEnvOverridesYAMLFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	os.Setenv(envPrefix+"PORT", "9999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Load() port = %d, want env override to win over the file", cfg.Server.Port)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load() with a missing file should error")
	}
}
