package config

import (
	"os"
	"time"
)

// applyEnv layers environment overrides on top of whatever the file set.
// Unset or malformed variables are ignored.
func (c *Config) applyEnv() {
	if v := os.Getenv("CHOREBOARD_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CHOREBOARD_STORAGE"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("CHOREBOARD_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if d := getEnvDuration("CHOREBOARD_TICK_INTERVAL"); d > 0 {
		c.Scheduler.TickInterval = d
	}
	if d := getEnvDuration("CHOREBOARD_DUE_SOON_WINDOW"); d > 0 {
		c.Scheduler.DueSoonWindow = d
	}
	if d := getEnvDuration("CHOREBOARD_REMINDER_LEAD"); d > 0 {
		c.Scheduler.ReminderLead = d
	}
}

func getEnvDuration(key string) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0
	}
	return d
}
