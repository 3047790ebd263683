package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/acadhub/timetable-api/internal/models"
	appErrors "github.com/acadhub/timetable-api/pkg/errors"
	"github.com/acadhub/timetable-api/pkg/response"
)

// RequireRoles enforces role-based access control for routes.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
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
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Reviewers shortcuts the role set allowed to resolve approval transitions.
func Reviewers() gin.HandlerFunc {
	return RequireRoles(models.RoleAdmin, models.RoleVPAA, models.RoleDean, models.RoleChair)
}
