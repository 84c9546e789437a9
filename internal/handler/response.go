package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"commute/internal/monitor"
	"commute/internal/repository"
	"commute/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrFavoriteNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidUserID),
		errors.Is(err, service.ErrInvalidRecommendation),
		errors.Is(err, service.ErrInvalidAddress),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidFavorite):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrActiveTripExists),
		errors.Is(err, service.ErrTripNotCompleted),
		errors.Is(err, service.ErrRewardPending),
		errors.Is(err, service.ErrDemoSession),
		errors.Is(err, monitor.ErrInvalidPhase),
		errors.Is(err, monitor.ErrWatchActive):
		return http.StatusConflict

	// Forbidden/Business rule errors
	case errors.Is(err, service.ErrDemoDisabled):
		return http.StatusForbidden

	// Unprocessable: the trip exists but cannot be monitored yet
	case errors.Is(err, monitor.ErrLocationsNotReady),
		errors.Is(err, monitor.ErrPositionUnavailable):
		return http.StatusUnprocessableEntity

	// Service unavailable
	case errors.Is(err, monitor.ErrPositionStream):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}

// formatTime renders a timestamp as RFC 3339, or "" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
