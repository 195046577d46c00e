package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type rawConfig struct {
	Server *struct {
		Address string `json:"address"`
	} `json:"server"`
	// Optional path of a JSON catalog override merged over the built-in
	// action catalog at startup.
	CatalogOverride string `json:"catalog_override"`
	Defaults        *struct {
		PhaseCount    int     `json:"phase_count"`
		BudgetPerSlot float64 `json:"budget_per_slot"`
	} `json:"defaults"`
	// Reminder scan interval in seconds. Zero keeps the default.
	ReminderIntervalSeconds int `json:"reminder_interval_seconds"`
}

// LoadedConfig contains validated server settings and combat defaults.
type LoadedConfig struct {
	ServerAddress       string
	CatalogOverridePath string
	// DefaultPhaseCount is the displayed-phase granularity new combats
	// start with (1, 2 or 4).
	DefaultPhaseCount int
	// DefaultBudgetPerSlot is the per-slot AP budget new combats start with.
	DefaultBudgetPerSlot    float64
	ReminderIntervalSeconds int
}

// LoadConfig reads and validates the configuration file at path. A missing
// file is an error; every field has a usable default otherwise.
func LoadConfig(path string) (*LoadedConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var rc rawConfig
	if err := json.Unmarshal(b, &rc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	out := &LoadedConfig{
		ServerAddress:           ":8080",
		DefaultPhaseCount:       1,
		DefaultBudgetPerSlot:    1,
		ReminderIntervalSeconds: 30,
	}
	if rc.Server != nil && rc.Server.Address != "" {
		out.ServerAddress = rc.Server.Address
	}
	out.CatalogOverridePath = strings.TrimSpace(rc.CatalogOverride)
	if rc.Defaults != nil {
		if pc := rc.Defaults.PhaseCount; pc != 0 {
			if pc != 1 && pc != 2 && pc != 4 {
				return nil, fmt.Errorf("config file %s: phase_count must be 1, 2 or 4 (got %d)", path, pc)
			}
			out.DefaultPhaseCount = pc
		}
		if bud := rc.Defaults.BudgetPerSlot; bud != 0 {
			if bud < 0 {
				return nil, fmt.Errorf("config file %s: budget_per_slot must be positive (got %v)", path, bud)
			}
			out.DefaultBudgetPerSlot = bud
		}
	}
	if rc.ReminderIntervalSeconds < 0 {
		return nil, fmt.Errorf("config file %s: reminder_interval_seconds must not be negative", path)
	}
	if rc.ReminderIntervalSeconds > 0 {
		out.ReminderIntervalSeconds = rc.ReminderIntervalSeconds
	}
	return out, nil
}
