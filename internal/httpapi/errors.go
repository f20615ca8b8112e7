package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"campus/internal/apperr"
	"campus/internal/timetable"
)

// writeError maps domain errors to status codes.
func (s *Server) writeError(c *gin.Context, err error) {
	var (
		validation   *apperr.ValidationError
		notScheduled *timetable.NotScheduledError
		already      *timetable.AlreadyMarkedError
	)
	switch {
	case errors.As(err, &validation):
		body := gin.H{"error": validation.Message}
		if validation.Field != "" {
			body["field"] = validation.Field
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, apperr.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
	case errors.Is(err, apperr.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed"})
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &notScheduled):
		c.JSON(http.StatusConflict, gin.H{"error": notScheduled.Error(), "code": "not_scheduled"})
	case errors.As(err, &already):
		c.JSON(http.StatusConflict, gin.H{"error": already.Error(), "code": "already_marked"})
	case errors.Is(err, timetable.ErrHoliday):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "holiday"})
	case apperr.IsRemote(err):
		s.log.Warn("remote dependency failed", zap.String("route", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "service temporarily unavailable, try again"})
	default:
		s.log.Error("request failed", zap.String("route", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
