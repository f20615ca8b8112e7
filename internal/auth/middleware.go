package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"campus/internal/apperr"
	"campus/internal/session"
)

const sessionKey = "session"

// SessionLoader resolves the session a token points at.
type SessionLoader interface {
	Load(ctx context.Context, id string) (session.Session, error)
}

// SessionAuth enforces bearer JWT tokens signed with HS256 and loads the
// session they belong to. A logged out session invalidates its token.
func SessionAuth(sessions SessionLoader, signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		sess, err := sessions.Load(c.Request.Context(), claims.SessionID)
		if apperr.IsRemote(err) {
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "service temporarily unavailable, try again"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}
		c.Set("claims", claims)
		c.Set(sessionKey, sess)
		c.Next()
	}
}

// RequireRegistered rejects guest sessions.
func RequireRegistered() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Current(c).Registered() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You must be logged in to access this feature."})
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects sessions that have not unlocked the admin dashboard.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Current(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin authentication required"})
			return
		}
		c.Next()
	}
}

// Current returns the session placed on the context by SessionAuth.
func Current(c *gin.Context) session.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return session.Session{}
	}
	sess, _ := v.(session.Session)
	return sess
}
