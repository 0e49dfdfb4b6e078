package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRequiresAuthSource(t *testing.T) {
	t.Setenv("DUEL_CONFIG", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("AUTH_VERIFY_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET or AUTH_VERIFY_URL")
	}
}

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("DUEL_CONFIG", "")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("TOKEN_TTL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.TokenTTLSec != 24*3600 {
		t.Fatalf("ttl = %d", cfg.TokenTTLSec)
	}

	t.Setenv("LISTEN_ADDR", ":9999")
	t.Setenv("TOKEN_TTL", "60")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9999" || cfg.TokenTTLSec != 60 {
		t.Fatalf("got %+v", cfg)
	}
}

func TestLoadYAMLUnderEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duel.yaml")
	data := []byte("listen_addr: \":7000\"\njwt_secret: from-file\nlog_level: debug\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DUEL_CONFIG", path)
	t.Setenv("JWT_SECRET", "")
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":7000" || cfg.JWTSecret != "from-file" || cfg.LogLevel != "debug" {
		t.Fatalf("got %+v", cfg)
	}

	// Environment wins over the file.
	t.Setenv("LISTEN_ADDR", ":7001")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":7001" {
		t.Fatalf("listen addr = %q", cfg.ListenAddr)
	}
}

func TestLoadBadConfigFile(t *testing.T) {
	t.Setenv("DUEL_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
