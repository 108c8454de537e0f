package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arnavshah/shift-solver-api/pkg/scheduler"
)

// SolverConfig models the solver tuning file
type SolverConfig struct {
	CriticalDifficulty float64                `yaml:"critical_difficulty"`
	ScarceRoleMax      int                    `yaml:"scarce_role_max"`
	LookaheadHours     float64                `yaml:"lookahead_hours"`
	HistoryDays        int                    `yaml:"history_days"`
	DefaultDifficulty  float64                `yaml:"default_difficulty"`
	Manual             scheduler.ManualPolicy `yaml:"manual"`
}

// DefaultSolverConfig returns the stock tuning
func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		CriticalDifficulty: scheduler.DefaultCriticalDifficulty,
		ScarceRoleMax:      scheduler.DefaultScarceRoleMax,
		LookaheadHours:     scheduler.DefaultLookahead.Hours(),
		HistoryDays:        scheduler.DefaultHistoryDays,
		DefaultDifficulty:  scheduler.DefaultDifficulty,
	}
}

// LoadSolverConfig reads and validates a tuning file
func LoadSolverConfig(path string) (SolverConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SolverConfig{}, fmt.Errorf("solver config %s: %w", path, err)
	}
	return SolverConfigFromYAML(data)
}

// SolverConfigFromYAML parses a tuning file on top of the defaults. Unknown
// keys are rejected.
func SolverConfigFromYAML(data []byte) (SolverConfig, error) {
	cfg := DefaultSolverConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return SolverConfig{}, fmt.Errorf("parse solver config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return SolverConfig{}, err
	}
	return cfg, nil
}

// Validate ensures every tuning value is usable
func (c SolverConfig) Validate() error {
	if c.CriticalDifficulty <= 0 {
		return fmt.Errorf("critical_difficulty must be positive")
	}
	if c.ScarceRoleMax < 0 {
		return fmt.Errorf("scarce_role_max must not be negative")
	}
	if c.LookaheadHours <= 0 {
		return fmt.Errorf("lookahead_hours must be positive")
	}
	if c.HistoryDays <= 0 {
		return fmt.Errorf("history_days must be positive")
	}
	if c.DefaultDifficulty <= 0 {
		return fmt.Errorf("default_difficulty must be positive")
	}
	return nil
}

// Options converts the tuning into solver options for loc
func (c SolverConfig) Options(loc *time.Location) scheduler.Options {
	return scheduler.Options{
		CriticalDifficulty: c.CriticalDifficulty,
		ScarceRoleMax:      c.ScarceRoleMax,
		Lookahead:          time.Duration(c.LookaheadHours * float64(time.Hour)),
		DefaultDifficulty:  c.DefaultDifficulty,
		Location:           loc,
	}
}

// ManualPolicy returns the interactive validator policy
func (c SolverConfig) ManualPolicy() scheduler.ManualPolicy {
	return c.Manual
}
