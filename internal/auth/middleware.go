package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"attendmate/internal/identity"
)

const callerKey = "caller"

// Require enforces bearer JWT tokens signed with HS256 and threads the
// verified caller identity into the request context.
func Require(signingKey, issuer string) gin.HandlerFunc {
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
		caller := identity.User{ID: claims.Subject, Role: identity.Role(claims.Role)}
		c.Set(callerKey, caller)
		c.Request = c.Request.WithContext(identity.NewContext(c.Request.Context(), caller))
		c.Next()
	}
}

// RequireRole rejects callers whose role is not in the allowed set. It must
// run after Require.
func RequireRole(roles ...identity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := Caller(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		for _, role := range roles {
			if caller.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	}
}

// Caller returns the authenticated caller set by Require.
func Caller(c *gin.Context) (identity.User, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return identity.User{}, false
	}
	u, ok := v.(identity.User)
	return u, ok
}
