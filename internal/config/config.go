package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"petagenda/internal/model"
	"petagenda/internal/slots"
)

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Cache struct {
		Enabled    bool `yaml:"enabled"`
		TTLSeconds int  `yaml:"ttl_seconds"`
	} `yaml:"cache"`

	HTTP struct {
		Port      int      `yaml:"port"`
		APIKeys   []string `yaml:"api_keys"`
		RateLimit float64  `yaml:"rate_limit"`
		Burst     int      `yaml:"burst"`
	} `yaml:"http"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Scheduling struct {
		Timezone               string `yaml:"timezone"`
		DayStart               string `yaml:"day_start"`
		DayEnd                 string `yaml:"day_end"`
		SlotStrideMinutes      int    `yaml:"slot_stride_minutes"`
		CompletionSweepMinutes int    `yaml:"completion_sweep_minutes"`
	} `yaml:"scheduling"`

	Audit struct {
		Enabled       bool   `yaml:"enabled"`
		ExportPath    string `yaml:"export_path"`
		ExportOnStart bool   `yaml:"export_on_start"`
	} `yaml:"audit"`

	Roster struct {
		Path                string `yaml:"path"`
		WatchIntervalSecond int    `yaml:"watch_interval_seconds"`
	} `yaml:"roster"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/petagenda.db"
	}
	if cfg.Roster.Path == "" {
		cfg.Roster.Path = "configs/roster.yaml"
	}
	if cfg.Audit.ExportPath == "" {
		cfg.Audit.ExportPath = "exports"
	}
	if cfg.Backup.Path == "" {
		cfg.Backup.Path = filepath.Join(filepath.Dir(cfg.Database.Path), "backups")
	}

	if _, err := cfg.SlotConfig(); err != nil {
		return nil, err
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Location resolves the business timezone; empty means the host's local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Scheduling.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Scheduling.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduling.timezone: %w", err)
	}
	return loc, nil
}

// SlotConfig builds the business-day window and stride for slot generation.
func (c *Config) SlotConfig() (slots.Config, error) {
	cfg := slots.DefaultConfig()

	if c.Scheduling.DayStart != "" {
		t, err := model.ParseTimeOfDay(c.Scheduling.DayStart)
		if err != nil {
			return cfg, fmt.Errorf("scheduling.day_start: %w", err)
		}
		cfg.DayStart = t
	}
	if c.Scheduling.DayEnd != "" {
		t, err := model.ParseTimeOfDay(c.Scheduling.DayEnd)
		if err != nil {
			return cfg, fmt.Errorf("scheduling.day_end: %w", err)
		}
		cfg.DayEnd = t
	}
	if c.Scheduling.SlotStrideMinutes > 0 {
		cfg.Stride = time.Duration(c.Scheduling.SlotStrideMinutes) * time.Minute
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("scheduling: %w", err)
	}
	return cfg, nil
}

func (c *Config) CacheTTL() time.Duration {
	if c.Cache.TTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

func (c *Config) CompletionSweepInterval() time.Duration {
	if c.Scheduling.CompletionSweepMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.Scheduling.CompletionSweepMinutes) * time.Minute
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) RosterWatchInterval() time.Duration {
	if c.Roster.WatchIntervalSecond <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Roster.WatchIntervalSecond) * time.Second
}

func (c *Config) HTTPPort() int {
	if c.HTTP.Port <= 0 {
		return 8080
	}
	return c.HTTP.Port
}
