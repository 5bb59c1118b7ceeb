package api

import (
	"errors"
	"net/http"

	"alcyxob/fitness-assessment/internal/logger"
	"alcyxob/fitness-assessment/internal/service"

	"github.com/gin-gonic/gin"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, errorResponse{Message: message})
}

// statusForError maps service errors onto HTTP statuses.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrValidationFailed), errors.Is(err, service.ErrUnsupportedExercise):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, service.ErrMediaNotFound):
		return http.StatusNotFound, "Media not found"
	case errors.Is(err, service.ErrAnalysisEngine):
		return http.StatusBadGateway, "Analysis failed"
	case errors.Is(err, service.ErrStorageUpload):
		return http.StatusInternalServerError, "Failed to upload media"
	case errors.Is(err, service.ErrPersistence):
		return http.StatusInternalServerError, "Failed to save results"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// respondWithServiceError writes the mapped status. Client errors carry the
// cause; server errors are logged and only name the failing step.
func respondWithServiceError(c *gin.Context, log *logger.Logger, op string, err error) {
	code, message := statusForError(err)
	resp := errorResponse{Message: message}
	if code < http.StatusInternalServerError || code == http.StatusBadGateway {
		resp.Error = err.Error()
	}
	if code >= http.StatusInternalServerError {
		log.Error("request failed", "op", op, "status", code, "error", err)
	}
	c.AbortWithStatusJSON(code, resp)
}
