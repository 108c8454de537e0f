package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arnavshah/shift-solver-api/pkg/models"
	"github.com/arnavshah/shift-solver-api/pkg/scheduler"
)

// ValidateInput checks a solve snapshot without solving it
func (h *Handler) ValidateInput(c *gin.Context) {
	var req models.SolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	in, err := scheduler.InputFromRequest(req, h.Solver.Options().Location)
	if err == nil {
		err = scheduler.ValidateInput(in)
	}
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid": true,
		"stats": gin.H{
			"person_count":     len(req.People),
			"template_count":   len(req.Templates),
			"shift_count":      len(req.Shifts),
			"constraint_count": len(req.Constraints),
		},
	})
}
