package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"campus/internal/auth"
	"campus/internal/timetable"
)

func (s *Server) manager(c *gin.Context) (*timetable.Manager, bool) {
	m, err := s.Timetables.Get(c.Request.Context(), auth.Current(c))
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}
	return m, true
}

// holiday reports whether date is a calendar holiday. An unreachable
// calendar counts as a working day.
func (s *Server) holiday(ctx context.Context, date string) bool {
	cal, err := s.Calendar.Fetch(ctx)
	if err != nil {
		s.log.Warn("calendar unavailable, assuming working day", zap.Error(err))
		return false
	}
	return cal.IsHoliday(date)
}

func (s *Server) timetableView(c *gin.Context) {
	m, ok := s.manager(c)
	if !ok {
		return
	}
	date, _ := m.Today()
	c.JSON(http.StatusOK, m.View(s.holiday(c.Request.Context(), date)))
}

func (s *Server) addClass(c *gin.Context) {
	var req struct {
		Type string   `json:"type"`
		Name string   `json:"name"`
		Days []string `json:"days"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	m, ok := s.manager(c)
	if !ok {
		return
	}
	if err := m.AddClass(c.Request.Context(), timetable.ClassType(req.Type), req.Name, req.Days); err != nil {
		s.writeError(c, err)
		return
	}
	date, _ := m.Today()
	c.JSON(http.StatusCreated, m.View(s.holiday(c.Request.Context(), date)))
}

func (s *Server) deleteClass(c *gin.Context) {
	m, ok := s.manager(c)
	if !ok {
		return
	}
	if err := m.DeleteClass(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) markAttendance(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	m, ok := s.manager(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	date, _ := m.Today()
	if s.holiday(ctx, date) {
		s.writeError(c, timetable.ErrHoliday)
		return
	}
	if err := m.MarkAttendance(ctx, c.Param("id"), timetable.Status(req.Status)); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m.View(false))
}
