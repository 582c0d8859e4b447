package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facecommand/internal/command"
	"github.com/your-org/facecommand/internal/detection"
	"github.com/your-org/facecommand/internal/faces"
	"github.com/your-org/facecommand/internal/storage"
)

// statusCode maps service errors to HTTP status codes.
func statusCode(err error) int {
	var execErr *command.ExecutionError
	switch {
	case errors.Is(err, faces.ErrFaceNotFound),
		errors.Is(err, command.ErrCommandNotFound),
		errors.Is(err, command.ErrFaceNotFound),
		errors.Is(err, detection.ErrStatusNotFound):
		return http.StatusNotFound
	case errors.Is(err, faces.ErrDuplicateFace),
		errors.Is(err, storage.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, faces.ErrInvalidFace),
		errors.Is(err, command.ErrInvalidCommand),
		errors.Is(err, command.ErrFacesRequired),
		errors.Is(err, command.ErrCommandTypeNotFound),
		errors.Is(err, detection.ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.Is(err, faces.ErrNoFacesDetected),
		errors.Is(err, faces.ErrTooManyFaces):
		return http.StatusUnprocessableEntity
	case errors.Is(err, faces.ErrNoCamera):
		return http.StatusServiceUnavailable
	case errors.As(err, &execErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "status", code, "error", err)
	}
	body := gin.H{"error": err.Error()}
	var execErr *command.ExecutionError
	if errors.As(err, &execErr) {
		body["name"] = execErr.Name
		body["message"] = execErr.Message
	}
	c.JSON(code, body)
}

// paramID parses the :id path parameter, responding 400 when it is invalid.
func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
