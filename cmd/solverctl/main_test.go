package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnavshah/shift-solver-api/pkg/auth"
	"github.com/arnavshah/shift-solver-api/pkg/models"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func snapshot() models.SolveRequest {
	start := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	return models.SolveRequest{
		Date:   "2024-03-04",
		People: []models.Person{{ID: "p1", RoleIDs: []string{"medic"}}, {ID: "p2"}},
		Templates: []models.TaskTemplate{{ID: "t", Segments: []models.Segment{{
			ID: "seg", StartTime: "08:00", DurationHours: 4, RequiredPeople: 2,
			Roles: []models.RoleRequirement{{RoleID: "medic", Count: 2}},
		}}}},
		Shifts: []models.Shift{{ID: "s1", TaskID: "t", SegmentID: "seg", Start: start, End: start.Add(4 * time.Hour), AssignedPersonIDs: []string{}}},
	}
}

func TestSolve_Table(t *testing.T) {
	out, err := run(t, "solve", "-i", writeJSON(t, snapshot()))
	require.NoError(t, err)

	assert.Contains(t, out, "SHIFT")
	assert.Contains(t, out, "s1")
	assert.Contains(t, out, "2024-03-04 08:00")
	assert.Contains(t, out, "medic")
	assert.Contains(t, out, "fairness")
}

func TestSolve_JSON(t *testing.T) {
	out, err := run(t, "solve", "--json", "-i", writeJSON(t, snapshot()))
	require.NoError(t, err)

	var res models.SolveResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Shifts, 1)
	assert.Equal(t, []string{"p1"}, res.Shifts[0].AssignedPersonIDs)
	require.Len(t, res.Diagnostics.Shortfalls, 1)
	assert.Equal(t, 1, res.Diagnostics.Shortfalls[0].Filled)
}

func TestSolve_UnknownSolverConfigKey(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "solver.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("scare_role_max: 1\n"), 0o600))

	_, err := run(t, "solve", "--solver-config", cfg, "-i", writeJSON(t, snapshot()))
	assert.Error(t, err)
}

func TestSolve_Errors(t *testing.T) {
	_, err := run(t, "solve")
	assert.EqualError(t, err, "--input is required")

	req := snapshot()
	req.Date = "tomorrow"
	_, err = run(t, "solve", "-i", writeJSON(t, req))
	assert.Error(t, err)

	_, err = run(t, "solve", "--timezone", "Mars/Olympus", "-i", writeJSON(t, snapshot()))
	assert.ErrorContains(t, err, "Mars/Olympus")
}

func TestHistory(t *testing.T) {
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	req := models.HistoryRequest{
		ReferenceDate: "2024-03-04",
		PastShifts:    []models.Shift{{ID: "old", TaskID: "t", Start: start, End: start.Add(6 * time.Hour), AssignedPersonIDs: []string{"p1"}}},
		Templates:     snapshot().Templates,
		PersonIDs:     []string{"p1", "p2"},
	}
	path := writeJSON(t, req)

	out, err := run(t, "history", "--json", "-i", path)
	require.NoError(t, err)
	var scores map[string]models.HistoryScore
	require.NoError(t, json.Unmarshal([]byte(out), &scores))
	assert.Equal(t, models.HistoryScore{TotalLoadScore: 6, ShiftsCount: 1}, scores["p1"])
	assert.Equal(t, models.HistoryScore{}, scores["p2"])

	out, err = run(t, "history", "-i", path)
	require.NoError(t, err)
	assert.Contains(t, out, "6.00")
	assert.Less(t, strings.Index(out, "p1"), strings.Index(out, "p2"))
}

func TestKeygen(t *testing.T) {
	t.Setenv("API_MASTER_SECRET", "master")

	out, err := run(t, "keygen", "acme")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	userID, err := auth.New("", "master").VerifyHMACKey(lines[1])
	require.NoError(t, err)
	assert.Equal(t, "acme", userID)

	t.Setenv("API_MASTER_SECRET", "")
	_, err = run(t, "keygen", "acme")
	assert.EqualError(t, err, "API_MASTER_SECRET is not set")
}

func TestImportAndPlan(t *testing.T) {
	t.Setenv("DATA_PATH", filepath.Join(t.TempDir(), "cli.db"))
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SOLVER_CONFIG", "")
	t.Setenv("TIMEZONE", "UTC")

	snap := snapshot()
	out, err := run(t, "import", "-i", writeJSON(t, dataFile{People: snap.People, Templates: snap.Templates}))
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 people, 1 templates")

	out, err = run(t, "plan", "--json", "--from", "2024-03-04", "--to", "2024-03-06")
	require.NoError(t, err)
	var resp models.RangeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 3, resp.Succeeded)
	require.Len(t, resp.Days, 3)
	for _, d := range resp.Days {
		assert.Equal(t, 1, d.AssignedCount, d.Date)
		assert.Equal(t, 1, d.Shortfalls, d.Date)
	}

	_, err = run(t, "plan", "--from", "2024-03-06", "--to", "2024-03-04")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"plan", "--json", "--from", "2024-03-07", "--to", "2024-03-08"})
	err = cmd.ExecuteContext(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	var partial models.RangeResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &partial))
	assert.True(t, partial.Cancelled)
	assert.Empty(t, partial.Days)
}
