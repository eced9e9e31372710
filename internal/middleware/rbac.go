package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/quiz-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/quiz-scheduler-api/pkg/errors"
	"github.com/noah-isme/quiz-scheduler-api/pkg/response"
)

// Roles recognized by the access layer.
const (
	RoleAdmin    = "admin"
	RoleEducator = "educator"
	RoleStudent  = "student"
)

// RequireRoles enforces role-based access control for routes.
func RequireRoles(allowed ...string) gin.HandlerFunc {
	allowedRoles := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		allowedRoles[role] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowedRoles[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
