package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	"carmarket/backend/internal/service"
	"carmarket/backend/pkg/response"
)

// Require aborts unless the principal satisfies req. Must be used after
// Authenticate. Roles and permissions are read fresh on every request.
func Require(rbac service.RBACService, req service.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := rbac.Authorize(c.Request.Context(), PrincipalFrom(c), req)
		switch {
		case err == nil:
			c.Next()
			return
		case errors.Is(err, service.ErrUnauthenticated):
			response.Unauthorized(c, "Unauthenticated.")
		case errors.Is(err, service.ErrForbidden):
			response.Forbidden(c, "This action is unauthorized.")
		default:
			response.InternalError(c, "failed to authorize")
		}
		c.Abort()
	}
}

// RequireRole passes when the principal holds any of roles.
func RequireRole(rbac service.RBACService, roles ...string) gin.HandlerFunc {
	return Require(rbac, service.RequireRoles(roles...))
}

func RequirePermission(rbac service.RBACService, permission string) gin.HandlerFunc {
	return Require(rbac, service.RequirePermission(permission))
}
