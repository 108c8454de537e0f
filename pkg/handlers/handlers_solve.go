package handlers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arnavshah/shift-solver-api/pkg/models"
	"github.com/arnavshah/shift-solver-api/pkg/planner"
	"github.com/arnavshah/shift-solver-api/pkg/scheduler"
)

func (h *Handler) solve(c *gin.Context) (*models.SolveRequest, *models.SolveResult, bool) {
	var req models.SolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, nil, false
	}

	in, err := scheduler.InputFromRequest(req, h.Solver.Options().Location)
	if err != nil {
		h.writeError(c, err)
		return nil, nil, false
	}

	started := time.Now()
	res, err := h.Solver.Solve(in)
	if err != nil {
		h.Metrics.RecordSolveError()
		h.writeError(c, err)
		return nil, nil, false
	}
	res.RunID = uuid.NewString()
	h.Metrics.RecordSolve(res, time.Since(started))
	h.RecordUsage(c, len(req.Shifts), len(req.People))

	h.Logger.Info("solve",
		zap.String("run_id", res.RunID),
		zap.String("date", res.Date),
		zap.Int("assigned", res.AssignedCount),
		zap.Int("shortfalls", len(res.Diagnostics.Shortfalls)),
	)
	return &req, res, true
}

// SolveJSON solves one day from the snapshot in the request body
func (h *Handler) SolveJSON(c *gin.Context) {
	_, res, ok := h.solve(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, res)
}

// SolveCSV solves one day and exports the changed assignments as CSV
func (h *Handler) SolveCSV(c *gin.Context) {
	req, res, ok := h.solve(c)
	if !ok {
		return
	}

	names := make(map[string]string, len(req.People))
	for _, p := range req.People {
		names[p.ID] = p.Name
	}

	var outCSV strings.Builder
	writer := csv.NewWriter(&outCSV)
	_ = writer.Write([]string{"shift_id", "task_id", "person_id", "person_name", "start", "end", "duration_hours"})
	for _, sh := range res.Shifts {
		for _, pid := range sh.AssignedPersonIDs {
			_ = writer.Write([]string{
				sh.ID,
				sh.TaskID,
				pid,
				names[pid],
				sh.Start.Format(time.RFC3339),
				sh.End.Format(time.RFC3339),
				fmt.Sprintf("%.2f", sh.DurationHours()),
			})
		}
	}
	writer.Flush()

	c.JSON(http.StatusOK, gin.H{"run_id": res.RunID, "csv": outCSV.String()})
}

// SolveRange solves and persists every day of a range in order
func (h *Handler) SolveRange(c *gin.Context) {
	var req models.RangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	loc := h.Solver.Options().Location
	from, err := scheduler.ParseDate(req.From, loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from: " + err.Error()})
		return
	}
	to, err := scheduler.ParseDate(req.To, loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to: " + err.Error()})
		return
	}

	days, err := h.Planner.Run(c.Request.Context(), from, to, planner.RunOptions{
		SelectedTaskIDs: req.SelectedTaskIDs,
		ResetUnlocked:   req.ResetUnlocked,
	})
	cancelled := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	if err != nil && !cancelled {
		h.writeError(c, err)
		return
	}
	resp := planner.Summarize(days)
	resp.Cancelled = cancelled
	if cancelled {
		h.Logger.Warn("range solve stopped early", zap.Int("days_done", len(days)), zap.Error(err))
	}
	h.RecordUsage(c, resp.Succeeded, 0)
	c.JSON(http.StatusOK, resp)
}

// AssignShift manually adds a person to a stored shift
func (h *Handler) AssignShift(c *gin.Context) {
	var req models.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	shiftID := c.Param("id")

	person, err := h.Store.Person(ctx, req.PersonID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	current, err := h.Store.Shift(ctx, shiftID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	templates, err := h.Store.Templates(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}
	constraints, err := h.Store.Constraints(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}

	opts := h.Solver.Options()
	var surrounding []models.Shift
	if h.Manual.EnforceRest {
		dayStart, dayEnd := scheduler.DayBounds(current.Start, opts.Location)
		surrounding, err = h.Store.ShiftsForPerson(ctx, person.ID, dayStart.AddDate(0, 0, -1), dayEnd.Add(opts.Lookahead))
		if err != nil {
			h.writeError(c, err)
			return
		}
	}

	validator := scheduler.NewValidator(templates, h.Manual, opts)
	updated, err := h.Store.UpdateShift(ctx, shiftID, func(sh models.Shift) (models.Shift, error) {
		return validator.TryAssign(sh, person, constraints, surrounding...)
	})
	if err != nil {
		if rej, ok := scheduler.AsRejection(err); ok {
			h.Metrics.RecordManual(string(rej.Reason))
			h.Logger.Info("manual assignment rejected",
				zap.String("shift_id", shiftID),
				zap.String("person_id", person.ID),
				zap.String("reason", string(rej.Reason)),
				zap.String("constraint_id", rej.Constraint),
			)
			c.JSON(http.StatusConflict, models.RejectionResponse{Error: rej.Error(), Reason: string(rej.Reason)})
			return
		}
		h.writeError(c, err)
		return
	}

	h.Metrics.RecordManual("accepted")
	h.Logger.Info("manual assignment accepted", zap.String("shift_id", shiftID), zap.String("person_id", person.ID))
	c.JSON(http.StatusOK, models.AssignResponse{Shift: updated})
}

// AggregateHistory computes history scores from the past shifts in the body
func (h *Handler) AggregateHistory(c *gin.Context) {
	var req models.HistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ref, err := scheduler.ParseDate(req.ReferenceDate, h.Solver.Options().Location)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reference_date: " + err.Error()})
		return
	}
	window := req.WindowDays
	if window <= 0 {
		window = h.HistoryDays
	}

	scores := h.History.Aggregate(req.PastShifts, req.Templates, req.PersonIDs, ref, window)
	h.RecordUsage(c, len(req.PastShifts), len(scores))
	c.JSON(http.StatusOK, gin.H{"window_days": window, "scores": scores})
}

// ImportData upserts people, templates, shifts and constraints into the store
func (h *Handler) ImportData(c *gin.Context) {
	var req struct {
		People      []models.Person               `json:"people"`
		Templates   []models.TaskTemplate         `json:"templates"`
		Shifts      []models.Shift                `json:"shifts"`
		Constraints []models.SchedulingConstraint `json:"constraints"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := scheduler.ValidateInput(scheduler.Input{
		Date:        time.Now(),
		People:      req.People,
		Templates:   req.Templates,
		Shifts:      req.Shifts,
		Constraints: req.Constraints,
	}); err != nil {
		h.writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.Store.SavePeople(ctx, req.People); err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.Store.SaveTemplates(ctx, req.Templates); err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.Store.SaveShifts(ctx, req.Shifts); err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.Store.SaveConstraints(ctx, req.Constraints); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"people":      len(req.People),
		"templates":   len(req.Templates),
		"shifts":      len(req.Shifts),
		"constraints": len(req.Constraints),
	})
}
