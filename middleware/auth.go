package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/battleevent/config"
)

const OperatorKey = "operator"

// AdminAuth requires a Bearer JWT signed with the admin secret and carrying
// the admin role. With no secret configured every request is refused.
func AdminAuth(sec config.SecurityConfig) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if sec.AdminJWTSecret == "" {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin api disabled"})
			return
		}
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := ParseToken(strings.TrimPrefix(header, "Bearer "), sec.AdminJWTSecret)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if claims.Role != RoleAdmin {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}

		ctx.Set(OperatorKey, claims.Subject)
		ctx.Next()
	}
}

// GetOperator returns the authenticated operator name from the Gin context.
func GetOperator(c *gin.Context) string {
	return c.GetString(OperatorKey)
}
