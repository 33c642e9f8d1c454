package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeTemp(t, `
addr: 127.0.0.1:3306
user: app
password: secret
database: app_db
max_connections: 20
dial_timeout: 3s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Addr != "127.0.0.1:3306" {
		t.Errorf("expected addr 127.0.0.1:3306, got %s", cfg.Addr)
	}
	if cfg.MaxConnections != 20 {
		t.Errorf("expected max_connections 20, got %d", cfg.MaxConnections)
	}
	if cfg.DialTimeout != 3*time.Second {
		t.Errorf("expected dial_timeout 3s, got %v", cfg.DialTimeout)
	}
}

func TestLoadEnvSubstitution(t *testing.T) {
	os.Setenv("SQLY_TEST_PASSWORD", "supersecret")
	defer os.Unsetenv("SQLY_TEST_PASSWORD")

	path := writeTemp(t, `
addr: 127.0.0.1:3306
user: app
password: ${SQLY_TEST_PASSWORD}
database: app_db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Password != "supersecret" {
		t.Errorf("expected substituted password, got %q", cfg.Password)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing addr", "user: app\n"},
		{"missing user", "addr: 127.0.0.1:3306\n"},
		{"negative max_connections", "addr: 127.0.0.1:3306\nuser: app\nmax_connections: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, tt.yaml)
			if _, err := Load(path); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	path := writeTemp(t, "addr: 127.0.0.1:3306\nuser: app\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MaxConnections != 10 {
		t.Errorf("expected default max_connections 10, got %d", cfg.MaxConnections)
	}
	if cfg.DialTimeout != 10*time.Second {
		t.Errorf("expected default dial_timeout 10s, got %v", cfg.DialTimeout)
	}
}

func TestRedactedMasksPassword(t *testing.T) {
	cfg := Config{Password: "secret"}
	if cfg.Redacted().Password != "***REDACTED***" {
		t.Errorf("expected password to be masked, got %q", cfg.Redacted().Password)
	}
	if cfg.Password != "secret" {
		t.Errorf("Redacted must not mutate the receiver")
	}
}

func TestPoolOptionsCarriesNoTLS(t *testing.T) {
	cfg := Config{Addr: "127.0.0.1:3306", User: "app", MaxConnections: 5}
	opts := cfg.PoolOptions()
	if opts.TLS != nil {
		t.Errorf("expected nil TLS, got %+v", opts.TLS)
	}
	if opts.MaxConnections != 5 {
		t.Errorf("expected MaxConnections 5, got %d", opts.MaxConnections)
	}
}
