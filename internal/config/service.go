package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/sadopc/greencampus/internal/session"
)

// Dir returns ~/.config/greencampus
func Dir() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "greencampus"), nil
}

// DefaultPath returns ~/.config/greencampus/config.toml
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Default returns the configuration written on first run. dir is where the
// database and log file live.
func Default(dir string) *Config {
	return &Config{
		Session: SessionConfig{
			Email: "admin@greencampus.com",
			Role:  string(session.RoleAdmin),
		},
		Remote: RemoteConfig{
			TimeoutSeconds: 10,
		},
		Server: ServerConfig{
			Listen:         "127.0.0.1:5000",
			JWTSecret:      randomSecret(),
			TokenTTLHours:  24,
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Database: DatabaseConfig{
			Path: filepath.Join(dir, "greencampus.db"),
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dir, "greencampus.log"),
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
	}
}

// Load reads the config at path. When the file does not exist a default
// one is written there and returned with created set.
func Load(path string) (cfg *Config, created bool, err error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		def := Default(filepath.Dir(path))
		if err := Save(path, def); err != nil {
			return nil, false, err
		}
		return def, true, nil
	}

	cfg = Default(filepath.Dir(path))
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, false, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, false, nil
}

// Save writes cfg to path, creating the directory if needed. The file is
// private to the user since it holds secrets.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if _, err := session.ParseRole(c.Session.Role); err != nil {
		return fmt.Errorf("session.role: %w", err)
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	if c.Remote.TimeoutSeconds < 0 {
		return fmt.Errorf("remote.timeout_seconds: must be >= 0")
	}
	if c.Server.TokenTTLHours < 0 {
		return fmt.Errorf("server.token_ttl_hours: must be >= 0")
	}
	return nil
}

// Identity is the session identity the terminal dashboard acts as.
func (c *Config) Identity() session.Identity {
	role, _ := session.ParseRole(c.Session.Role)
	return session.Identity{Email: strings.TrimSpace(c.Session.Email), Role: role}
}

func (c *Config) RemoteTimeout() time.Duration {
	if c.Remote.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Remote.TimeoutSeconds) * time.Second
}

func (c *Config) TokenTTL() time.Duration {
	if c.Server.TokenTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Server.TokenTTLHours) * time.Hour
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "change-me"
	}
	return hex.EncodeToString(b)
}
