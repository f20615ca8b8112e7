// Package httpapi exposes the campus services over JSON HTTP.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"campus/internal/analytics"
	"campus/internal/auth"
	"campus/internal/calendar"
	"campus/internal/clubs"
	"campus/internal/complaints"
	"campus/internal/discussion"
	"campus/internal/mess"
	"campus/internal/metrics"
	"campus/internal/session"
	"campus/internal/store"
	"campus/internal/timetable"
)

// Deps are the services the router dispatches to.
type Deps struct {
	Sessions   *session.Service
	Timetables *timetable.Registry
	Calendar   *calendar.Source
	Menu       *mess.Service
	Clubs      *clubs.Service
	Board      *discussion.Board
	Complaints *complaints.Service
	Analytics  *analytics.Service
	Health     *store.Health

	JWTIssuer     string
	JWTSigningKey string
	AccessTTL     time.Duration
	Location      *time.Location
	Log           *zap.Logger
}

// Server holds the handlers.
type Server struct {
	Deps
	log *zap.Logger
	now func() time.Time
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	s := &Server{Deps: d, log: d.Log, now: time.Now}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.Location == nil {
		s.Location = time.Local
	}
	if s.Health == nil {
		s.Health = store.NewHealth()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware(r))
	r.Use(securityHeaders())
	r.Use(metrics.GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", s.healthz)

	v1 := r.Group("/v1")
	v1.POST("/login", s.login)
	v1.POST("/login/guest", s.guestLogin)
	v1.GET("/menu", s.menu)
	v1.GET("/calendar", s.calendar)

	authed := v1.Group("", auth.SessionAuth(s.Sessions, s.JWTSigningKey, s.JWTIssuer))
	authed.POST("/logout", s.logout)
	authed.GET("/clubs", s.listClubs)
	authed.GET("/discussion", s.discussionFeed)
	authed.POST("/admin/auth", s.adminAuth)
	authed.POST("/admin/logout", s.logout)
	authed.GET("/admin/stats", auth.RequireAdmin(), s.adminStats)

	registered := authed.Group("", auth.RequireRegistered())
	registered.POST("/clubs/:name/follow", s.toggleFollow)
	registered.GET("/timetable", s.timetableView)
	registered.POST("/timetable/classes", s.addClass)
	registered.DELETE("/timetable/classes/:id", s.deleteClass)
	registered.POST("/timetable/classes/:id/attendance", s.markAttendance)
	registered.POST("/discussion", s.sendMessage)
	registered.DELETE("/discussion/:id", s.deleteMessage)
	registered.GET("/complaints", s.listComplaints)
	registered.POST("/complaints", s.submitComplaint)

	return r
}

func (s *Server) healthz(c *gin.Context) {
	checks, ok := s.Health.Run(c.Request.Context())
	status := http.StatusOK
	body := gin.H{"status": "ok", "checks": checks}
	if !ok {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}

func (s *Server) today() string {
	return s.now().In(s.Location).Format("2006-01-02")
}
