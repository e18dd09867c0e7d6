package model

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultCooldownSeconds is the cooldown used on first run.
const DefaultCooldownSeconds = 30

// MaxCooldownSeconds bounds the configurable cooldown.
const MaxCooldownSeconds = 3600

// ErrInvalidSettings is returned when settings fail validation.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings is the singleton user configuration. It is read at every
// interception so edits take effect immediately.
type Settings struct {
	CategoryBudgets     map[string]float64 `json:"categoryBudgets,omitempty" yaml:"categoryBudgets,omitempty"`
	CooldownSeconds     int                `json:"cooldownSeconds" yaml:"cooldownSeconds"`
	EnableNudges        bool               `json:"enableNudges" yaml:"enableNudges"`
	EnableScamDetection bool               `json:"enableScamDetection" yaml:"enableScamDetection"`
}

// DefaultSettings returns the settings written on first run.
func DefaultSettings() Settings {
	return Settings{
		CooldownSeconds:     DefaultCooldownSeconds,
		EnableNudges:        true,
		EnableScamDetection: true,
	}
}

// Validate checks the settings invariants.
func (s Settings) Validate() error {
	if s.CooldownSeconds <= 0 {
		return fmt.Errorf("%w: cooldownSeconds must be positive, got %d", ErrInvalidSettings, s.CooldownSeconds)
	}
	if s.CooldownSeconds > MaxCooldownSeconds {
		return fmt.Errorf("%w: cooldownSeconds must be at most %d, got %d", ErrInvalidSettings, MaxCooldownSeconds, s.CooldownSeconds)
	}
	for category, limit := range s.CategoryBudgets {
		if strings.TrimSpace(category) == "" {
			return fmt.Errorf("%w: budget category cannot be empty", ErrInvalidSettings)
		}
		if limit < 0 {
			return fmt.Errorf("%w: budget for %q cannot be negative", ErrInvalidSettings, category)
		}
	}
	return nil
}

// Budget returns the monthly limit for a category, matched case-insensitively.
func (s Settings) Budget(category string) (float64, bool) {
	for name, limit := range s.CategoryBudgets {
		if strings.EqualFold(name, category) {
			return limit, true
		}
	}
	return 0, false
}
