package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/partimer-be/internal/matching/domain"
)

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrDeadlinePassed),
		errors.Is(err, domain.ErrAlreadyResponded),
		errors.As(err, &verr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a JSON error. Internal errors are logged and
// replaced with fallback so storage details do not leak.
func respondError(c *gin.Context, logger *slog.Logger, err error, fallback string) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logger.Error(fallback,
			slog.String("path", c.Request.URL.Path),
			slog.String("error", err.Error()),
		)
		c.JSON(code, gin.H{"error": fallback})
		return
	}

	c.JSON(code, gin.H{"error": err.Error()})
}

// parseID reads a positive integer path parameter
func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": name + " must be a positive integer",
		})
		return 0, false
	}
	return id, true
}

// parseMatchStatus reads an optional status filter. An empty value selects
// def, "all" disables filtering.
func parseMatchStatus(c *gin.Context, raw string, def domain.MatchStatus) (domain.MatchStatus, bool) {
	switch raw {
	case "":
		return def, true
	case "all":
		return "", true
	}
	status, err := domain.ParseMatchStatus(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return status, true
}
