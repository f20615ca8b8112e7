package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus/internal/apperr"
	"campus/internal/session"
)

func TestIssueParse(t *testing.T) {
	tok, err := Issue("sid-1", "BT25CSE001", "registered", "campus", "k", time.Hour)
	require.NoError(t, err)

	claims, err := Parse(tok.AccessToken, "k", "campus")
	require.NoError(t, err)
	assert.Equal(t, "sid-1", claims.SessionID)
	assert.Equal(t, "BT25CSE001", claims.Subject)
	assert.Equal(t, "registered", claims.Role)

	_, err = Parse(tok.AccessToken, "other-key", "campus")
	assert.Error(t, err)
	_, err = Parse(tok.AccessToken, "k", "someone-else")
	assert.Error(t, err)

	expired, err := Issue("sid-1", "x", "guest", "campus", "k", -time.Minute)
	require.NoError(t, err)
	_, err = Parse(expired.AccessToken, "k", "campus")
	assert.Error(t, err)
}

type fakeSessions map[string]session.Session

func (f fakeSessions) Load(ctx context.Context, id string) (session.Session, error) {
	if id == "down" {
		return session.Session{}, apperr.Remote("load session", errors.New("connection refused"))
	}
	s, ok := f[id]
	if !ok {
		return session.Session{}, apperr.ErrUnauthorized
	}
	return s, nil
}

func TestSessionAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sessions := fakeSessions{
		"reg":   {ID: "reg", CollegeID: "BT25CSE001", Kind: session.KindRegistered},
		"guest": {ID: "guest", Kind: session.KindGuest},
		"admin": {ID: "admin", CollegeID: session.AdminID, Kind: session.KindAdmin, AdminAuthenticated: true},
	}

	r := gin.New()
	g := r.Group("/", SessionAuth(sessions, "k", "campus"))
	g.GET("/any", func(c *gin.Context) { c.String(http.StatusOK, Current(c).DisplayName()) })
	g.GET("/registered", RequireRegistered(), func(c *gin.Context) { c.Status(http.StatusOK) })
	g.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })

	token := func(sid string) string {
		tok, err := Issue(sid, "", "", "campus", "k", time.Hour)
		require.NoError(t, err)
		return "Bearer " + tok.AccessToken
	}

	tests := []struct {
		name   string
		path   string
		authz  string
		status int
	}{
		{name: "no header", path: "/any", status: http.StatusUnauthorized},
		{name: "garbage token", path: "/any", authz: "Bearer nope", status: http.StatusUnauthorized},
		{name: "logged out session", path: "/any", authz: token("gone"), status: http.StatusUnauthorized},
		{name: "session store down", path: "/any", authz: token("down"), status: http.StatusBadGateway},
		{name: "guest any", path: "/any", authz: token("guest"), status: http.StatusOK},
		{name: "guest registered", path: "/registered", authz: token("guest"), status: http.StatusForbidden},
		{name: "registered", path: "/registered", authz: token("reg"), status: http.StatusOK},
		{name: "registered admin", path: "/admin", authz: token("reg"), status: http.StatusForbidden},
		{name: "admin", path: "/admin", authz: token("admin"), status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.authz != "" {
				req.Header.Set("Authorization", tt.authz)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
