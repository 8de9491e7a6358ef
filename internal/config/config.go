// Package config loads pacer settings from ~/.pacer/config.yaml, an optional
// .env file and PACER_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fentz26/pacer/internal/clock"
	"github.com/fentz26/pacer/internal/decay"
	"github.com/fentz26/pacer/internal/notify"
	"github.com/fentz26/pacer/internal/pace"
)

// Config is the full daemon configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Work     WorkConfig     `yaml:"work"`
	Decay    DecayConfig    `yaml:"decay"`
	Urgency  UrgencyConfig  `yaml:"urgency"`
	Relay    RelayConfig    `yaml:"relay"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	// Path is the SQLite file. Ignored for postgres.
	Path string `yaml:"path"`
	// DSN is the postgres connection string.
	DSN string `yaml:"dsn"`
}

type WorkConfig struct {
	Timezone    string  `yaml:"timezone"`
	StartHour   float64 `yaml:"start_hour"`
	EndHour     float64 `yaml:"end_hour"`
	DailyTarget int     `yaml:"daily_target"`
	WorkDays    int     `yaml:"work_days"`
}

type DecayConfig struct {
	AgingDays    int `yaml:"aging_days"`
	StaleDays    int `yaml:"stale_days"`
	CriticalDays int `yaml:"critical_days"`
	ArchiveDays  int `yaml:"archive_days"`
}

type UrgencyConfig struct {
	WarningDelta  int `yaml:"warning_delta"`
	UrgentDelta   int `yaml:"urgent_delta"`
	CriticalDelta int `yaml:"critical_delta"`
}

type RelayConfig struct {
	// Kind is "log", "ntfy" or "telegram".
	Kind           string        `yaml:"kind"`
	NtfyServer     string        `yaml:"ntfy_server"`
	NtfyTopic      string        `yaml:"ntfy_topic"`
	NtfyToken      string        `yaml:"ntfy_token"`
	TelegramToken  string        `yaml:"telegram_token"`
	TelegramChatID int64         `yaml:"telegram_chat_id"`
	Timeout        time.Duration `yaml:"timeout"`
}

// ScheduleConfig holds cron specs for the built-in trigger. Specs accept the
// standard five fields or descriptors such as "@hourly".
type ScheduleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Decay   string `yaml:"decay"`
	Urgency string `yaml:"urgency"`
	Goals   string `yaml:"goals"`
}

// Dir returns ~/.pacer, or .pacer when the home directory is unknown.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pacer"
	}
	return filepath.Join(home, ".pacer")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	th := decay.DefaultThresholds()
	urg := notify.DefaultThresholds()
	return &Config{
		Server: ServerConfig{Listen: "127.0.0.1:7466"},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   filepath.Join(Dir(), "pacer.db"),
		},
		Work: WorkConfig{
			Timezone:    "Local",
			StartHour:   9,
			EndHour:     18,
			DailyTarget: 18,
			WorkDays:    5,
		},
		Decay: DecayConfig{
			AgingDays:    th.AgingDays,
			StaleDays:    th.StaleDays,
			CriticalDays: th.CriticalDays,
			ArchiveDays:  th.ArchiveDays,
		},
		Urgency: UrgencyConfig{
			WarningDelta:  urg.WarningDelta,
			UrgentDelta:   urg.UrgentDelta,
			CriticalDelta: urg.CriticalDelta,
		},
		Relay: RelayConfig{
			Kind:       notify.RelayLog,
			NtfyServer: "https://ntfy.sh",
			Timeout:    10 * time.Second,
		},
		Schedule: ScheduleConfig{
			Enabled: true,
			Decay:   "15 3 * * *",
			Urgency: "0 * * * *",
			Goals:   "*/15 * * * *",
		},
	}
}

// LoadConfig reads a YAML file over the defaults. A missing file yields the
// defaults. The result is not validated; see Load.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Load reads configPath, then envFile (if present), then applies PACER_*
// overrides and validates the result. Empty paths mean the ~/.pacer defaults.
func Load(configPath, envFile string) (*Config, error) {
	if configPath == "" {
		configPath = filepath.Join(Dir(), "config.yaml")
	}
	if envFile == "" {
		envFile = filepath.Join(Dir(), ".env")
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	// godotenv never overrides variables already set in the process.
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML, creating the directory if needed.
func SaveConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Listen = getEnv("PACER_LISTEN", c.Server.Listen)

	c.Database.Driver = getEnv("PACER_DB_DRIVER", c.Database.Driver)
	c.Database.Path = getEnv("PACER_DB_PATH", c.Database.Path)
	c.Database.DSN = getEnv("PACER_DB_DSN", c.Database.DSN)

	c.Work.Timezone = getEnv("PACER_TIMEZONE", c.Work.Timezone)
	c.Work.StartHour = getEnvAsFloat("PACER_WORK_START", c.Work.StartHour)
	c.Work.EndHour = getEnvAsFloat("PACER_WORK_END", c.Work.EndHour)
	c.Work.DailyTarget = getEnvAsInt("PACER_DAILY_TARGET", c.Work.DailyTarget)
	c.Work.WorkDays = getEnvAsInt("PACER_WORK_DAYS", c.Work.WorkDays)

	c.Decay.AgingDays = getEnvAsInt("PACER_AGING_DAYS", c.Decay.AgingDays)
	c.Decay.StaleDays = getEnvAsInt("PACER_STALE_DAYS", c.Decay.StaleDays)
	c.Decay.CriticalDays = getEnvAsInt("PACER_CRITICAL_DAYS", c.Decay.CriticalDays)
	c.Decay.ArchiveDays = getEnvAsInt("PACER_ARCHIVE_DAYS", c.Decay.ArchiveDays)

	c.Urgency.WarningDelta = getEnvAsInt("PACER_WARNING_DELTA", c.Urgency.WarningDelta)
	c.Urgency.UrgentDelta = getEnvAsInt("PACER_URGENT_DELTA", c.Urgency.UrgentDelta)
	c.Urgency.CriticalDelta = getEnvAsInt("PACER_CRITICAL_DELTA", c.Urgency.CriticalDelta)

	c.Relay.Kind = getEnv("PACER_RELAY", c.Relay.Kind)
	c.Relay.NtfyServer = getEnv("PACER_NTFY_SERVER", c.Relay.NtfyServer)
	c.Relay.NtfyTopic = getEnv("PACER_NTFY_TOPIC", c.Relay.NtfyTopic)
	c.Relay.NtfyToken = getEnv("PACER_NTFY_TOKEN", c.Relay.NtfyToken)
	c.Relay.TelegramToken = getEnv("PACER_TELEGRAM_TOKEN", c.Relay.TelegramToken)
	c.Relay.TelegramChatID = getEnvAsInt64("PACER_TELEGRAM_CHAT_ID", c.Relay.TelegramChatID)
	c.Relay.Timeout = getEnvAsDuration("PACER_RELAY_TIMEOUT", c.Relay.Timeout)

	c.Schedule.Enabled = getEnvAsBool("PACER_SCHEDULE_ENABLED", c.Schedule.Enabled)
	c.Schedule.Decay = getEnv("PACER_SCHEDULE_DECAY", c.Schedule.Decay)
	c.Schedule.Urgency = getEnv("PACER_SCHEDULE_URGENCY", c.Schedule.Urgency)
	c.Schedule.Goals = getEnv("PACER_SCHEDULE_GOALS", c.Schedule.Goals)
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown database.driver: %s", c.Database.Driver)
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("work.timezone: %w", err)
	}
	w := c.Work
	if w.StartHour < 0 || w.EndHour > 24 || w.StartHour >= w.EndHour {
		return fmt.Errorf("work hours must satisfy 0 <= start_hour < end_hour <= 24, got %v-%v", w.StartHour, w.EndHour)
	}
	if w.DailyTarget <= 0 {
		return fmt.Errorf("work.daily_target must be positive, got %d", w.DailyTarget)
	}
	if w.WorkDays < 1 || w.WorkDays > 7 {
		return fmt.Errorf("work.work_days must be between 1 and 7, got %d", w.WorkDays)
	}

	if err := c.DecayThresholds().Validate(); err != nil {
		return fmt.Errorf("decay: %w", err)
	}

	u := c.Urgency
	if u.WarningDelta <= 0 || u.UrgentDelta <= u.WarningDelta || u.CriticalDelta <= u.UrgentDelta {
		return fmt.Errorf("urgency deltas must satisfy 0 < warning < urgent < critical, got %d/%d/%d",
			u.WarningDelta, u.UrgentDelta, u.CriticalDelta)
	}

	switch c.Relay.Kind {
	case "", notify.RelayLog:
	case notify.RelayNtfy:
		if c.Relay.NtfyTopic == "" {
			return fmt.Errorf("relay.ntfy_topic is required for the ntfy relay")
		}
	case notify.RelayTelegram:
		if c.Relay.TelegramToken == "" || c.Relay.TelegramChatID == 0 {
			return fmt.Errorf("relay.telegram_token and relay.telegram_chat_id are required for the telegram relay")
		}
	default:
		return fmt.Errorf("unknown relay.kind: %s", c.Relay.Kind)
	}
	return nil
}

// Location resolves the work timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Work.Timezone == "Local" {
		return time.Local, nil
	}
	return clock.LoadLocation(c.Work.Timezone)
}

// Window returns the work window.
func (c *Config) Window() pace.Window {
	return pace.Window{StartHour: c.Work.StartHour, EndHour: c.Work.EndHour}
}

// DecayThresholds returns the backlog tier thresholds.
func (c *Config) DecayThresholds() decay.Thresholds {
	return decay.Thresholds{
		AgingDays:    c.Decay.AgingDays,
		StaleDays:    c.Decay.StaleDays,
		CriticalDays: c.Decay.CriticalDays,
		ArchiveDays:  c.Decay.ArchiveDays,
	}
}

// UrgencyThresholds returns the notification deficit thresholds.
func (c *Config) UrgencyThresholds() notify.Thresholds {
	return notify.Thresholds{
		WarningDelta:  c.Urgency.WarningDelta,
		UrgentDelta:   c.Urgency.UrgentDelta,
		CriticalDelta: c.Urgency.CriticalDelta,
	}
}

// RelayOptions returns the relay settings for notify.NewRelay.
func (c *Config) RelayOptions() notify.RelayConfig {
	return notify.RelayConfig{
		Kind:           c.Relay.Kind,
		NtfyServer:     c.Relay.NtfyServer,
		NtfyTopic:      c.Relay.NtfyTopic,
		NtfyToken:      c.Relay.NtfyToken,
		TelegramToken:  c.Relay.TelegramToken,
		TelegramChatID: c.Relay.TelegramChatID,
		Timeout:        c.Relay.Timeout,
	}
}
