package classifyfamilyintent

import (
	"fmt"
	"time"

	"family-assistant/internal/common/config"
	"family-assistant/pkg/registry"
)

type Config struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
	InputSchema   map[string]interface{}
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30 * time.Second,
		InputSchema:   InputSchema(),
	}
}

// NewConfig merges the worker settings with the registry entry. A nil
// activity keeps the built-in input schema.
func NewConfig(wcfg config.WorkerConfig, activity *registry.Activity) *Config {
	cfg := DefaultConfig()
	cfg.Enabled = wcfg.Enabled
	if wcfg.MaxJobsActive > 0 {
		cfg.MaxJobsActive = wcfg.MaxJobsActive
	}
	if wcfg.Timeout > 0 {
		cfg.Timeout = config.GetDuration(wcfg.Timeout)
	}
	if activity != nil && len(activity.InputSchema) > 0 {
		cfg.InputSchema = activity.InputSchema
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	return nil
}
