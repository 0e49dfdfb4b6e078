package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig carries everything the server needs at startup. Values come
// from the environment; DUEL_CONFIG may point at a YAML file whose
// values act as defaults under the environment.
type AppConfig struct {
	ListenAddr string `yaml:"listen_addr"`

	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`

	JWTSecret     string `yaml:"jwt_secret"`
	TokenTTLSec   int    `yaml:"token_ttl_sec"`
	AuthVerifyURL string `yaml:"auth_verify_url"`

	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`
	LogFile    string `yaml:"log_file"`
	LogConsole bool   `yaml:"log_console"`
}

func defaults() *AppConfig {
	return &AppConfig{
		ListenAddr:  ":8080",
		TokenTTLSec: 24 * 3600,
		LogLevel:    "info",
		LogFormat:   "console",
		LogConsole:  true,
	}
}

// Load reads DUEL_CONFIG (optional YAML) and then the environment.
// Either a JWT secret or a remote verify URL must be present: without
// one of them no request can be authenticated.
func Load() (*AppConfig, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("DUEL_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if cfg.JWTSecret == "" && cfg.AuthVerifyURL == "" {
		return nil, errors.New("JWT_SECRET or AUTH_VERIFY_URL is required")
	}
	if cfg.TokenTTLSec <= 0 {
		cfg.TokenTTLSec = 24 * 3600
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	setStr(&cfg.ListenAddr, "LISTEN_ADDR")
	setStr(&cfg.DatabaseURL, "DATABASE_URL")
	setStr(&cfg.RedisURL, "REDIS_URL")
	setStr(&cfg.JWTSecret, "JWT_SECRET")
	setStr(&cfg.AuthVerifyURL, "AUTH_VERIFY_URL")
	setStr(&cfg.LogLevel, "LOG_LEVEL")
	setStr(&cfg.LogFormat, "LOG_FORMAT")
	setStr(&cfg.LogFile, "LOG_FILE")

	if v := strings.TrimSpace(os.Getenv("TOKEN_TTL")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TokenTTLSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("LOG_TO_CONSOLE")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LogConsole = b
		}
	}
}

func setStr(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}
