// Package config loads the zenkai configuration file and its environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrisonrobin/zenkai/pkg/errs"
	"github.com/harrisonrobin/zenkai/pkg/period"
)

const (
	xdgAppName = "zenkai"
	configFile = "config.yaml"

	DefaultCalendar          = "Tasks"
	DefaultBatchSize         = 50
	DefaultRequestsPerSecond = 5
	DefaultWorkingHours      = "09:00-18:00"
	DefaultScheduleDays      = 7

	BackendGoogle      = "google"
	BackendTaskwarrior = "taskwarrior"
	BackendLocal       = "local"
)

type Config struct {
	Calendar          string   `yaml:"calendar"`
	Timezone          string   `yaml:"timezone"`
	Locale            string   `yaml:"locale"`
	EventBackend      string   `yaml:"event_backend"`
	TaskBackend       string   `yaml:"task_backend"`
	StorePath         string   `yaml:"store_path,omitempty"`
	BatchSize         int      `yaml:"batch_size"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	WorkingHours      string   `yaml:"working_hours"`
	ScheduleDays      int      `yaml:"schedule_days"`
	RecurringTriggers []string `yaml:"recurring_triggers,omitempty"`
	Debug             bool     `yaml:"debug,omitempty"`

	// Path is where the configuration was read from and is saved to.
	Path string `yaml:"-"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Calendar:          DefaultCalendar,
		Timezone:          "Local",
		Locale:            "en",
		EventBackend:      BackendGoogle,
		TaskBackend:       BackendTaskwarrior,
		BatchSize:         DefaultBatchSize,
		RequestsPerSecond: DefaultRequestsPerSecond,
		WorkingHours:      DefaultWorkingHours,
		ScheduleDays:      DefaultScheduleDays,
	}
}

// Dir is the zenkai configuration directory. Credentials and tokens live here too.
func Dir() (string, error) {
	xdgHome, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(xdgHome, ".config", xdgAppName), nil
}

func GetConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads the configuration from path, or from GetConfigPath when path is
// empty. A missing file yields the defaults. Environment overrides are applied
// before validation.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = GetConfigPath(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, err
	}
	cfg.Path = path

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("ZENKAI_CALENDAR"); v != "" {
		c.Calendar = v
	}
	if v := os.Getenv("ZENKAI_TIMEZONE"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv("ZENKAI_STORE_PATH"); v != "" {
		c.StorePath = v
	}
	if v := os.Getenv("ZENKAI_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return errs.Invalid("ZENKAI_DEBUG", "expected a boolean, got %q", v)
		}
		c.Debug = debug
	}
	return nil
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.Calendar == "" {
		c.Calendar = def.Calendar
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.Locale == "" {
		c.Locale = def.Locale
	}
	if c.EventBackend == "" {
		c.EventBackend = def.EventBackend
	}
	if c.TaskBackend == "" {
		c.TaskBackend = def.TaskBackend
	}
	if c.WorkingHours == "" {
		c.WorkingHours = def.WorkingHours
	}
	if c.ScheduleDays <= 0 {
		c.ScheduleDays = def.ScheduleDays
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = def.RequestsPerSecond
	}
	c.BatchSize = min(max(c.BatchSize, 1), DefaultBatchSize)
}

// Validate checks the fields that other packages parse later.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Hours(); err != nil {
		return err
	}
	switch c.EventBackend {
	case BackendGoogle, BackendLocal:
	default:
		return errs.Invalid("event_backend", "unknown backend %q", c.EventBackend)
	}
	switch c.TaskBackend {
	case BackendTaskwarrior, BackendLocal:
	default:
		return errs.Invalid("task_backend", "unknown backend %q", c.TaskBackend)
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errs.Invalid("timezone", "unknown timezone %q", c.Timezone)
	}
	return loc, nil
}

// Hours parses the working hours used for planning.
func (c *Config) Hours() (period.TimePeriod, error) {
	tp, err := period.ParseTimePeriod(c.WorkingHours)
	if err != nil {
		return period.TimePeriod{}, errs.Invalid("working_hours", "%v", err)
	}
	return tp, nil
}

// LocalStorePath is the JSON file backing the local backends.
func (c *Config) LocalStorePath() string {
	if c.StorePath != "" {
		return c.StorePath
	}
	return filepath.Join(filepath.Dir(c.Path), "store.json")
}

// Save writes the configuration back to c.Path, readable by its owner only.
func (c *Config) Save() error {
	path := c.Path
	if path == "" {
		var err error
		if path, err = GetConfigPath(); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return os.Chmod(path, 0600)
}
