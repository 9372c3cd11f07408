package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Scheduler SchedulerConfig `yaml:"scheduler" json:"scheduler"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr" validate:"required"`
}

type StorageConfig struct {
	// Backend selects where state lives: "sqlite" or "memory".
	Backend string `yaml:"backend" json:"backend" validate:"oneof=sqlite memory"`
	DataDir string `yaml:"data_dir" json:"data_dir" validate:"required_if=Backend sqlite"`
}

type SchedulerConfig struct {
	// TickInterval is how often the due-date sweep runs.
	TickInterval time.Duration `yaml:"tick_interval" json:"tick_interval" validate:"min=1s"`
	// DueSoonWindow is how far ahead of a due date the due-soon signal fires.
	DueSoonWindow time.Duration `yaml:"due_soon_window" json:"due_soon_window" validate:"min=0"`
	// ReminderLead is how long before a due date the reminder signal fires.
	ReminderLead time.Duration `yaml:"reminder_lead" json:"reminder_lead" validate:"min=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "sqlite"
	}
	if c.Storage.Backend == "sqlite" && c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Scheduler.TickInterval == 0 {
		c.Scheduler.TickInterval = 5 * time.Minute
	}
	if c.Scheduler.DueSoonWindow == 0 {
		c.Scheduler.DueSoonWindow = 4 * time.Hour
	}
	if c.Scheduler.ReminderLead == 0 {
		c.Scheduler.ReminderLead = 30 * time.Minute
	}
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Default returns a ready-to-run configuration with no file involved.
func Default() *Config {
	var c Config
	c.ApplyDefaults()
	return &c
}

// Load reads path, applies defaults and env overrides, and validates the
// result. A missing file is not an error; env and defaults still apply.
func Load(path string) (*Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	c.ApplyDefaults()
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
