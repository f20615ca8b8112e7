package httpapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
)

// corsMiddleware lets the web client call the API from another origin.
// Preflights are answered with the methods registered for the requested
// path; unknown paths get a 404. Auth travels in the Authorization header,
// so credentials mode is not enabled.
func corsMiddleware(r *gin.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Vary", "Origin")

		if c.Request.Method != http.MethodOptions {
			c.Next()
			return
		}
		methods := routeMethods(r.Routes(), c.Request.URL.Path)
		if len(methods) == 0 {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		c.Header("Access-Control-Allow-Methods", strings.Join(append(methods, http.MethodOptions), ", "))
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Max-Age", "600")
		c.AbortWithStatus(http.StatusNoContent)
	}
}

// routeMethods lists the methods whose route pattern matches path.
func routeMethods(routes gin.RoutesInfo, path string) []string {
	seen := make(map[string]bool)
	var methods []string
	for _, rt := range routes {
		if seen[rt.Method] || !matchRoute(rt.Path, path) {
			continue
		}
		seen[rt.Method] = true
		methods = append(methods, rt.Method)
	}
	sort.Strings(methods)
	return methods
}

func matchRoute(pattern, path string) bool {
	ps := strings.Split(strings.Trim(pattern, "/"), "/")
	xs := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range ps {
		if strings.HasPrefix(seg, "*") {
			return true
		}
		if i >= len(xs) {
			return false
		}
		if strings.HasPrefix(seg, ":") {
			if xs[i] == "" {
				return false
			}
			continue
		}
		if seg != xs[i] {
			return false
		}
	}
	return len(ps) == len(xs)
}

// securityHeaders marks every response as JSON-only: no sniffing, no
// framing, no referrer and nothing cached.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cache-Control", "no-store")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
