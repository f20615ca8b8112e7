package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campus/internal/auth"
	"campus/internal/complaints"
)

func (s *Server) menu(c *gin.Context) {
	menu, err := s.Menu.Get(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, menu)
}

func (s *Server) calendar(c *gin.Context) {
	cal, err := s.Calendar.Fetch(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cal.Summarize(s.today()))
}

func (s *Server) listClubs(c *gin.Context) {
	list, err := s.Clubs.List(c.Request.Context(), auth.Current(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clubs": list})
}

func (s *Server) toggleFollow(c *gin.Context) {
	following, err := s.Clubs.ToggleFollow(c.Request.Context(), auth.Current(c), c.Param("name"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": following})
}

func (s *Server) discussionFeed(c *gin.Context) {
	items, err := s.Board.Feed(c.Request.Context(), auth.Current(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) sendMessage(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	msg, err := s.Board.Send(c.Request.Context(), auth.Current(c), req.Content)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if msg == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (s *Server) deleteMessage(c *gin.Context) {
	if err := s.Board.Delete(c.Request.Context(), auth.Current(c), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listComplaints(c *gin.Context) {
	list, err := s.Complaints.ListMine(c.Request.Context(), auth.Current(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": list})
}

func (s *Server) submitComplaint(c *gin.Context) {
	var in complaints.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	sub, err := s.Complaints.Submit(c.Request.Context(), auth.Current(c), in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}
