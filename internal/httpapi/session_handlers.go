package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campus/internal/auth"
	"campus/internal/session"
)

type sessionResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresAt   int64  `json:"expiresAt"`
	CollegeID   string `json:"collegeId,omitempty"`
	Kind        string `json:"kind"`
	DisplayName string `json:"displayName"`
}

func (s *Server) issue(c *gin.Context, sess session.Session, status int) {
	tok, err := auth.Issue(sess.ID, sess.CollegeID, string(sess.Kind), s.JWTIssuer, s.JWTSigningKey, s.AccessTTL)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(status, sessionResponse{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.ExpiresAt.Unix(),
		CollegeID:   sess.CollegeID,
		Kind:        string(sess.Kind),
		DisplayName: sess.DisplayName(),
	})
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		CollegeID string `json:"collegeId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please enter a valid college ID (e.g., BT25CSE001)"})
		return
	}
	sess, err := s.Sessions.Login(c.Request.Context(), req.CollegeID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.issue(c, sess, http.StatusCreated)
}

func (s *Server) guestLogin(c *gin.Context) {
	sess, err := s.Sessions.Guest(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.issue(c, sess, http.StatusCreated)
}

// logout ends the session and drops its timetable state. Admin logout is
// the same operation.
func (s *Server) logout(c *gin.Context) {
	sess := auth.Current(c)
	if err := s.Sessions.Logout(c.Request.Context(), sess.ID); err != nil {
		s.writeError(c, err)
		return
	}
	s.Timetables.Release(sess.ID)
	c.Status(http.StatusNoContent)
}

func (s *Server) adminAuth(c *gin.Context) {
	var req struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	sess, err := s.Sessions.AuthenticateAdmin(c.Request.Context(), auth.Current(c).ID, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": sess.AdminAuthenticated})
}

func (s *Server) adminStats(c *gin.Context) {
	st, err := s.Analytics.Stats(c.Request.Context(), auth.Current(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
