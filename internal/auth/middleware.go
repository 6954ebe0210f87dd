package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"coursetrack/internal/model"
)

const claimsKey = "claims"

// RequireSession enforces bearer JWT tokens signed with HS256.
func RequireSession(signingKey, issuer string) gin.HandlerFunc {
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
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRole rejects sessions of any other role. Must run after RequireSession.
func RequireRole(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Session(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session"})
			return
		}
		if claims.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "requires " + string(role) + " role"})
			return
		}
		c.Next()
	}
}

// Session returns the claims stored by RequireSession.
func Session(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}
