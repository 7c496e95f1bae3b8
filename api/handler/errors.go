package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sortcheck/models"
)

// respondError maps a RunError to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error) {
	re := models.AsRunError(err)
	c.JSON(mapErrorToStatus(re), models.RunResponse{
		Status: models.RunStatusFailed,
		Error:  re.ToDetail(),
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.RunError) int {
	switch e.Code {
	case models.ErrCodeExtractionTimeout, models.ErrCodeDeadlineExceeded:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRunInProgress:
		return http.StatusConflict // 409
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	default:
		return http.StatusInternalServerError // 500
	}
}
