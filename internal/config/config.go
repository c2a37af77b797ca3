// Package config loads the service configuration from an optional TOML
// file and CHORECHAMP_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Streak   StreakConfig   `toml:"streak"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Backup   BackupConfig   `toml:"backup"`
}

type ServerConfig struct {
	Addr         string   `toml:"addr"`
	ReadTimeout  Duration `toml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout"`
	CORSOrigins  []string `toml:"cors_origins"`
	// RateLimit is the number of mutating requests one caller may make per
	// minute. Zero disables limiting.
	RateLimit int `toml:"rate_limit"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type LedgerConfig struct {
	// Strategy is auto, atomic or sequential.
	Strategy   string `toml:"strategy"`
	CASRetries uint64 `toml:"cas_retries"`
}

type StreakConfig struct {
	Timezone    string `toml:"timezone"`
	BonusEvery  int    `toml:"bonus_every"`
	BonusPoints int64  `toml:"bonus_points"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// BackupConfig points at the S3-compatible bucket that holds encrypted
// ledger snapshots. The passphrase is never read from the file; it comes
// from CHORECHAMP_BACKUP_PASSPHRASE or a flag.
type BackupConfig struct {
	Endpoint      string `toml:"endpoint"`
	Bucket        string `toml:"bucket"`
	Region        string `toml:"region"`
	AccessKey     string `toml:"access_key"`
	SecretKey     string `toml:"secret_key"`
	Prefix        string `toml:"prefix"`
	RetentionDays int    `toml:"retention_days"`
}

// Duration is a time.Duration written as a string such as "5s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  Duration{5 * time.Second},
			WriteTimeout: Duration{10 * time.Second},
			RateLimit:    60,
		},
		Database: DatabaseConfig{Path: "chorechamp.db"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Ledger:   LedgerConfig{Strategy: "auto", CASRetries: 5},
		Streak:   StreakConfig{Timezone: "Europe/Berlin", BonusEvery: 7, BonusPoints: 50},
		Metrics:  MetricsConfig{Enabled: true},
		Backup:   BackupConfig{Region: "us-east-1", Prefix: "ledger/", RetentionDays: 30},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file at path is not an error; an empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		_, err := toml.DecodeFile(path, &cfg)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("CHORECHAMP_ADDR", &cfg.Server.Addr)
	str("CHORECHAMP_DB_PATH", &cfg.Database.Path)
	str("CHORECHAMP_LOG_LEVEL", &cfg.Log.Level)
	str("CHORECHAMP_LOG_FORMAT", &cfg.Log.Format)
	str("CHORECHAMP_LEDGER_STRATEGY", &cfg.Ledger.Strategy)
	str("CHORECHAMP_TIMEZONE", &cfg.Streak.Timezone)
	str("CHORECHAMP_BACKUP_ENDPOINT", &cfg.Backup.Endpoint)
	str("CHORECHAMP_BACKUP_BUCKET", &cfg.Backup.Bucket)
	str("CHORECHAMP_BACKUP_REGION", &cfg.Backup.Region)
	str("CHORECHAMP_BACKUP_ACCESS_KEY", &cfg.Backup.AccessKey)
	str("CHORECHAMP_BACKUP_SECRET_KEY", &cfg.Backup.SecretKey)

	if v, ok := lookup("CHORECHAMP_CORS_ORIGINS"); ok && v != "" {
		cfg.Server.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.Server.CORSOrigins = append(cfg.Server.CORSOrigins, o)
			}
		}
	}
	if v, ok := lookup("CHORECHAMP_METRICS_ENABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CHORECHAMP_METRICS_ENABLED: %w", err)
		}
		cfg.Metrics.Enabled = b
	}
	if v, ok := lookup("CHORECHAMP_STREAK_BONUS_EVERY"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CHORECHAMP_STREAK_BONUS_EVERY: %w", err)
		}
		cfg.Streak.BonusEvery = n
	}
	if v, ok := lookup("CHORECHAMP_STREAK_BONUS_POINTS"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CHORECHAMP_STREAK_BONUS_POINTS: %w", err)
		}
		cfg.Streak.BonusPoints = n
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Ledger.Strategy {
	case "auto", "atomic", "sequential":
	default:
		return fmt.Errorf("ledger.strategy must be auto, atomic or sequential, got %q", c.Ledger.Strategy)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Streak.BonusEvery < 0 || c.Streak.BonusPoints < 0 {
		return errors.New("streak bonus settings must not be negative")
	}
	if c.Backup.RetentionDays < 0 {
		return errors.New("backup.retention_days must not be negative")
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	return nil
}

// Location returns the time zone used for calendar days.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Streak.Timezone)
	if err != nil {
		return nil, fmt.Errorf("streak.timezone: %w", err)
	}
	return loc, nil
}
