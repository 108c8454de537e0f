package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnavshah/shift-solver-api/pkg/scheduler"
)

func TestSolverConfigFromYAML_Defaults(t *testing.T) {
	cfg, err := SolverConfigFromYAML(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultSolverConfig(), cfg)

	opts := cfg.Options(time.UTC)
	assert.Equal(t, 3.0, opts.CriticalDifficulty)
	assert.Equal(t, 2, opts.ScarceRoleMax)
	assert.Equal(t, 48*time.Hour, opts.Lookahead)
	assert.Equal(t, 30, cfg.HistoryDays)
	assert.Equal(t, scheduler.ManualPolicy{}, cfg.ManualPolicy())
}

func TestSolverConfigFromYAML_Overrides(t *testing.T) {
	cfg, err := SolverConfigFromYAML([]byte(`
critical_difficulty: 4.5
scarce_role_max: 1
lookahead_hours: 24
manual:
  enforce_rest: true
`))
	require.NoError(t, err)

	assert.Equal(t, 4.5, cfg.CriticalDifficulty)
	assert.Equal(t, 1, cfg.ScarceRoleMax)
	assert.Equal(t, 24*time.Hour, cfg.Options(nil).Lookahead)
	assert.Equal(t, 30, cfg.HistoryDays, "unset keys keep their default")
	assert.True(t, cfg.ManualPolicy().EnforceRest)
	assert.False(t, cfg.ManualPolicy().EnforceAvailability)
}

func TestSolverConfigFromYAML_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "critical: 3\n"},
		{"zero lookahead", "lookahead_hours: 0\n"},
		{"negative scarcity", "scarce_role_max: -1\n"},
		{"bad history", "history_days: 0\n"},
		{"not yaml", "critical_difficulty: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SolverConfigFromYAML([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestFromEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "solver.yaml")
	require.NoError(t, os.WriteFile(path, []byte("history_days: 14\n"), 0o600))

	t.Setenv("PORT", "9001")
	t.Setenv("TIMEZONE", "Europe/Berlin")
	t.Setenv("SOLVER_CONFIG", path)
	t.Setenv("ADMIN_USERNAME", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "9001", cfg.Port)
	assert.Equal(t, "admin", cfg.AdminUsername)
	assert.Equal(t, "Europe/Berlin", cfg.Location.String())
	assert.Equal(t, 14, cfg.Solver.HistoryDays)
}

func TestFromEnv_BadTimezone(t *testing.T) {
	t.Setenv("TIMEZONE", "Mars/Olympus")
	t.Setenv("SOLVER_CONFIG", "")

	_, err := FromEnv()
	assert.Error(t, err)
}
