package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-vinyl-storefront/internal/logging"
)

// Authenticate parses a bearer token when one is present. Invalid tokens are
// logged and the request continues anonymously; the route decides whether
// that is acceptable.
func Authenticate(issuer *Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.Next()
			return
		}
		claims, err := issuer.Parse(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
		if err != nil {
			logging.FromContext(c.Request.Context()).Warn("invalid bearer token", zap.Error(err))
			c.Next()
			return
		}
		SetPrincipal(c, principalFromClaims(claims))
		c.Next()
	}
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := PrincipalFrom(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "unauthorized", "data": nil})
			return
		}
		c.Next()
	}
}

// RequireRole rejects anonymous requests with 401 and callers without role with 403.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "unauthorized", "data": nil})
			return
		}
		if !p.HasRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"status": "forbidden", "data": nil})
			return
		}
		c.Next()
	}
}

// RequireSelfOrAdmin allows the user named by the path parameter, or an admin.
func RequireSelfOrAdmin(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "unauthorized", "data": nil})
			return
		}
		if !p.CanActFor(c.Param(param)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"status": "forbidden", "data": nil})
			return
		}
		c.Next()
	}
}
