// Package config loads the service configuration from defaults, an optional
// YAML file and the environment, in that order of precedence.
package config

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/small-frappuccino/ctfchannels/pkg/errutil"
	"github.com/small-frappuccino/ctfchannels/pkg/util"
)

// Environment variable names.
const (
	EnvConfigFile    = "CTFCHANNELS_CONFIG"
	EnvAddr          = "CTFCHANNELS_ADDR"
	EnvLogDir        = "CTFCHANNELS_LOG_DIR"
	EnvLogLevel      = "CTFCHANNELS_LOG_LEVEL"
	EnvAuditDBPath   = "CTFCHANNELS_AUDIT_DB_PATH"
	EnvAuditRetainHr = "CTFCHANNELS_AUDIT_RETENTION_HOURS"
	EnvApplicationID = "DISCORD_APPLICATION_ID"
	EnvToken         = "DISCORD_TOKEN"
	EnvPublicKey     = "DISCORD_PUBLIC_KEY"
)

// Config holds all configuration for the service.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Discord DiscordConfig `yaml:"discord"`
	Log     LogConfig     `yaml:"log"`
	Audit   AuditConfig   `yaml:"audit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// DiscordConfig holds the three application secrets.
type DiscordConfig struct {
	ApplicationID string `yaml:"application_id"`
	Token         string `yaml:"token"`
	PublicKey     string `yaml:"public_key"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// AuditConfig holds the optional command audit store configuration.
// An empty DBPath disables the store.
type AuditConfig struct {
	DBPath string `yaml:"db_path"`
	// Retention is how long records are kept. Zero keeps them forever.
	Retention time.Duration `yaml:"retention"`
}

// Default returns the configuration used before any file or variable is applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Audit: AuditConfig{
			Retention: 30 * 24 * time.Hour,
		},
	}
}

// Load builds and validates the configuration.
func Load() (*Config, error) {
	if _, err := util.LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg := Default()
	if path := util.EnvString(EnvConfigFile, ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	return errutil.HandleConfigError("load", path, func() error {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(data, c)
	})
}

func (c *Config) applyEnv() {
	c.Server.Addr = util.EnvString(EnvAddr, c.Server.Addr)
	c.Log.Dir = util.EnvString(EnvLogDir, c.Log.Dir)
	c.Log.Level = util.EnvString(EnvLogLevel, c.Log.Level)
	c.Audit.DBPath = util.EnvString(EnvAuditDBPath, c.Audit.DBPath)
	if h := util.EnvInt64(EnvAuditRetainHr, -1); h >= 0 {
		c.Audit.Retention = time.Duration(h) * time.Hour
	}
	c.Discord.ApplicationID = util.EnvString(EnvApplicationID, c.Discord.ApplicationID)
	c.Discord.Token = util.EnvString(EnvToken, c.Discord.Token)
	c.Discord.PublicKey = util.EnvString(EnvPublicKey, c.Discord.PublicKey)
}

// Validate checks that every required secret is present and well formed.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Discord.ApplicationID) == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvApplicationID))
	}
	if strings.TrimSpace(c.Discord.Token) == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvToken))
	}
	if strings.TrimSpace(c.Discord.PublicKey) == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvPublicKey))
	} else if _, err := c.PublicKey(); err != nil {
		errs = append(errs, err)
	}
	if c.Audit.Retention < 0 {
		errs = append(errs, errors.New("audit retention must not be negative"))
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server address is required"))
	}
	return errors.Join(errs...)
}

// PublicKey decodes the hex-encoded Ed25519 verification key.
func (c *Config) PublicKey() (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(c.Discord.PublicKey))
	if err != nil {
		return nil, fmt.Errorf("%s is not valid hex: %w", EnvPublicKey, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%s must be %d bytes, got %d", EnvPublicKey, ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}
