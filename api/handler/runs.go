package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sortcheck/models"
)

// RunService starts runs and reports on them.
type RunService interface {
	Start(req models.RunRequest) (string, error)
	Status(id string) (models.RunStatus, error)
}

// PostRun returns a handler for POST /api/v1/runs.
//
// The run proceeds in the background; the response carries only its ID.
// Progress is observable through GET /api/v1/events and the final report
// through GET /api/v1/runs/:id.
func PostRun(rs RunService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RunRequest
		// An empty body selects the defaults.
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(c, models.NewRunError(models.ErrCodeInvalidInput, err.Error(), err))
			return
		}

		id, err := rs.Start(req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, models.RunResponse{ID: id, Status: models.RunStatusRunning})
	}
}

// GetRun returns a handler for GET /api/v1/runs/:id.
func GetRun(rs RunService) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := rs.Status(c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

// StartTest returns a handler for the legacy POST /start-test trigger,
// which starts a default-sized run and acknowledges it without an ID.
func StartTest(rs RunService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := rs.Start(models.RunRequest{}); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Test started"})
	}
}
