package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/arnavshah/shift-solver-api/pkg/auth"
	"github.com/arnavshah/shift-solver-api/pkg/database"
	"github.com/arnavshah/shift-solver-api/pkg/metrics"
	"github.com/arnavshah/shift-solver-api/pkg/models"
	"github.com/arnavshah/shift-solver-api/pkg/planner"
	"github.com/arnavshah/shift-solver-api/pkg/scheduler"
)

var day = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	t      *testing.T
	router *gin.Engine
	h      *Handler
	store  *database.Store
	auth   *auth.Authenticator
	key    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open("", filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	store := database.NewStore(db)
	authn := auth.New("jwt-secret", "master-secret").WithBcryptCost(bcrypt.MinCost)
	require.NoError(t, authn.EnsureAdminExists(context.Background(), store, "admin", "pw", nil))

	log := zaptest.NewLogger(t)
	solver := scheduler.NewSolver(scheduler.DefaultOptions())
	collector := metrics.NewCollector()
	h := &Handler{
		Store:       store,
		Auth:        authn,
		Solver:      solver,
		History:     scheduler.NewHistoryAggregator(solver.Options()),
		HistoryDays: scheduler.DefaultHistoryDays,
		Planner:     planner.New(store, solver, planner.WithLogger(log), planner.WithMetrics(collector)),
		Metrics:     collector,
		Logger:      log,
	}

	return &testEnv{
		t:      t,
		router: NewRouter(h),
		h:      h,
		store:  store,
		auth:   authn,
		key:    authn.GenerateHMACKey("acme"),
	}
}

func (e *testEnv) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func template(id string, roles ...models.RoleRequirement) models.TaskTemplate {
	return models.TaskTemplate{ID: id, Segments: []models.Segment{{
		ID: "seg", StartTime: "08:00", DurationHours: 4, RequiredPeople: 1, Roles: roles,
	}}}
}

func shift(id, taskID string, startHour int, assigned ...string) models.Shift {
	if assigned == nil {
		assigned = []string{}
	}
	start := day.Add(time.Duration(startHour) * time.Hour)
	return models.Shift{ID: id, TaskID: taskID, SegmentID: "seg", Start: start, End: start.Add(4 * time.Hour), AssignedPersonIDs: assigned}
}

func scenarioA() models.SolveRequest {
	return models.SolveRequest{
		Date: "2024-03-04",
		People: []models.Person{
			{ID: "p1", Name: "Ada", RoleIDs: []string{"medic"}},
			{ID: "p2", Name: "Bo", RoleIDs: []string{"medic"}},
		},
		Templates: []models.TaskTemplate{template("t", models.RoleRequirement{RoleID: "medic", Count: 1})},
		Shifts:    []models.Shift{shift("s1", "t", 8)},
		History:   map[string]models.HistoryScore{"p2": {TotalLoadScore: 10}},
	}
}

func TestRoot(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(http.MethodGet, "/", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), Version)
}

func TestAPIKeyRequired(t *testing.T) {
	e := newTestEnv(t)

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodPost, "/api/solve", scenarioA(), "").Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodPost, "/api/solve", scenarioA(), "acme.forged").Code)
}

func TestSolveJSON(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(http.MethodPost, "/api/solve", scenarioA(), e.key)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[models.SolveResult](t, rec)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "2024-03-04", res.Date)
	require.Len(t, res.Shifts, 1)
	assert.Equal(t, []string{"p1"}, res.Shifts[0].AssignedPersonIDs)
	assert.Equal(t, 1, res.AssignedCount)

	usage := decode[map[string]any](t, e.do(http.MethodGet, "/api/usage", nil, e.key))
	assert.Equal(t, "acme", usage["key_name"])
	totals := usage["totals"].(map[string]any)
	assert.Equal(t, 1.0, totals["requests"])
	assert.Equal(t, 2.0, totals["people"])
}

func TestSolveJSON_BadInput(t *testing.T) {
	e := newTestEnv(t)

	req := scenarioA()
	req.Date = "04/03/2024"
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/api/solve", req, e.key).Code)

	req = scenarioA()
	req.Templates[0].Segments[0].RequiredPeople = -1
	rec := e.do(http.MethodPost, "/api/solve", req, e.key)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid solver input")

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/api/solve", map[string]any{}, e.key).Code)
}

func TestSolveCSV(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(http.MethodPost, "/api/solve/csv", scenarioA(), e.key)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[map[string]string](t, rec)
	assert.Contains(t, body["csv"], "shift_id,task_id,person_id,person_name,start,end,duration_hours\n")
	assert.Contains(t, body["csv"], "s1,t,p1,Ada,2024-03-04T08:00:00Z,2024-03-04T12:00:00Z,4.00\n")
}

func importData(t *testing.T, e *testEnv, body any) {
	t.Helper()
	rec := e.do(http.MethodPost, "/api/data", body, e.key)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAssignShift(t *testing.T) {
	e := newTestEnv(t)
	importData(t, e, map[string]any{
		"people":    []models.Person{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}},
		"templates": []models.TaskTemplate{template("t")},
		"shifts":    []models.Shift{shift("s1", "t", 8)},
		"constraints": []models.SchedulingConstraint{
			{ID: "c1", Type: models.NeverAssign, PersonID: "p1", TaskID: "t"},
		},
	})

	rec := e.do(http.MethodPost, "/api/shifts/s1/assign", models.AssignRequest{PersonID: "p1"}, e.key)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "never-assign-violation", decode[models.RejectionResponse](t, rec).Reason)

	rec = e.do(http.MethodPost, "/api/shifts/s1/assign", models.AssignRequest{PersonID: "p2"}, e.key)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"p2"}, decode[models.AssignResponse](t, rec).Shift.AssignedPersonIDs)

	rec = e.do(http.MethodPost, "/api/shifts/s1/assign", models.AssignRequest{PersonID: "p3"}, e.key)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "shift-full", decode[models.RejectionResponse](t, rec).Reason)

	stored, err := e.store.Shift(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, stored.AssignedPersonIDs)

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodPost, "/api/shifts/nope/assign", models.AssignRequest{PersonID: "p2"}, e.key).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodPost, "/api/shifts/s1/assign", models.AssignRequest{PersonID: "ghost"}, e.key).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/api/shifts/s1/assign", map[string]string{}, e.key).Code)
}

func TestSolveRange(t *testing.T) {
	e := newTestEnv(t)
	importData(t, e, map[string]any{
		"people":    []models.Person{{ID: "p1"}},
		"templates": []models.TaskTemplate{template("t")},
	})

	rec := e.do(http.MethodPost, "/api/solve/range", models.RangeRequest{From: "2024-03-04", To: "2024-03-05"}, e.key)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[models.RangeResponse](t, rec)
	assert.Equal(t, 2, resp.Succeeded)
	assert.Zero(t, resp.Failed)
	require.Len(t, resp.Days, 2)
	assert.Equal(t, "2024-03-05", resp.Days[1].Date)
	assert.Equal(t, 1, resp.Days[1].AssignedCount)

	shifts, err := e.store.ShiftsStartingBetween(context.Background(), day, day.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Len(t, shifts, 2)

	rec = e.do(http.MethodPost, "/api/solve/range", models.RangeRequest{From: "2024-03-05", To: "2024-03-04"}, e.key)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSolveRange_Cancelled(t *testing.T) {
	e := newTestEnv(t)
	importData(t, e, map[string]any{
		"people":    []models.Person{{ID: "p1"}},
		"templates": []models.TaskTemplate{template("t")},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	body, err := json.Marshal(models.RangeRequest{From: "2024-03-04", To: "2024-03-05"})
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/solve/range", bytes.NewReader(body)).WithContext(ctx)
	c.Request.Header.Set("Content-Type", "application/json")

	e.h.SolveRange(c)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[models.RangeResponse](t, rec)
	assert.True(t, resp.Cancelled)
	assert.Empty(t, resp.Days)
	assert.Zero(t, resp.Succeeded)

	shifts, err := e.store.ShiftsStartingBetween(context.Background(), day, day.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Empty(t, shifts)
}

func TestAggregateHistory(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(http.MethodPost, "/api/history", models.HistoryRequest{
		ReferenceDate: "2024-03-04",
		PastShifts:    []models.Shift{shift("old", "t", -20, "p1")},
		Templates:     []models.TaskTemplate{template("t")},
		PersonIDs:     []string{"p1", "p2"},
	}, e.key)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[struct {
		WindowDays int                            `json:"window_days"`
		Scores     map[string]models.HistoryScore `json:"scores"`
	}](t, rec)
	assert.Equal(t, scheduler.DefaultHistoryDays, body.WindowDays)
	assert.Equal(t, 4.0, body.Scores["p1"].TotalLoadScore)
	assert.Equal(t, models.HistoryScore{}, body.Scores["p2"])
}

func TestValidateInput(t *testing.T) {
	e := newTestEnv(t)

	body := decode[map[string]any](t, e.do(http.MethodPost, "/api/validate", scenarioA(), e.key))
	assert.Equal(t, true, body["valid"])

	req := scenarioA()
	req.People = append(req.People, req.People[0])
	body = decode[map[string]any](t, e.do(http.MethodPost, "/api/validate", req, e.key))
	assert.Equal(t, false, body["valid"])
	assert.Contains(t, body["error"], `duplicate person id "p1"`)
}

func TestImportData_Invalid(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(http.MethodPost, "/api/data", map[string]any{
		"constraints": []models.SchedulingConstraint{{ID: "c1", Type: models.TimeBlock, PersonID: "p1"}},
	}, e.key)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminFlow(t *testing.T) {
	e := newTestEnv(t)

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/admin/keys", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodPost, "/admin/login", map[string]string{"username": "admin", "password": "nope"}, "").Code)

	rec := e.do(http.MethodPost, "/admin/login", map[string]string{"username": "admin", "password": "pw"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	token := decode[map[string]string](t, rec)["access_token"]
	require.NotEmpty(t, token)

	rec = e.do(http.MethodPost, "/admin/keys", map[string]any{"name": "beta"}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[struct {
		ID  uint   `json:"id"`
		Key string `json:"key"`
	}](t, rec)
	userID, err := e.auth.VerifyHMACKey(created.Key)
	require.NoError(t, err)
	assert.Equal(t, "beta", userID)

	keys := decode[struct {
		Keys []database.APIKey `json:"keys"`
	}](t, e.do(http.MethodGet, "/admin/keys", nil, token))
	require.Len(t, keys.Keys, 1)
	assert.Equal(t, 10000, keys.Keys[0].RateLimit)

	path := fmt.Sprintf("/admin/keys/%d", created.ID)
	assert.Equal(t, http.StatusOK, e.do(http.MethodPut, path, map[string]int{"rate_limit": 5}, token).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPut, path, map[string]int{"rate_limit": 0}, token).Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, fmt.Sprintf("/admin/usage/%d", created.ID), nil, token).Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodDelete, path, nil, token).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodDelete, path, nil, token).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodDelete, "/admin/keys/abc", nil, token).Code)
}

func TestMetricsRoute(t *testing.T) {
	e := newTestEnv(t)
	e.do(http.MethodPost, "/api/solve", scenarioA(), e.key)

	rec := e.do(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `solver_runs_total{outcome="success"} 1`)
}
