package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"carmarket/backend/internal/service"
	"carmarket/backend/pkg/response"
)

const ContextKeyPrincipal = "principal"

// Authenticate resolves the bearer token to a principal. The token must still
// be live in both revocation stores.
func Authenticate(auth service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "Unauthenticated.")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			response.Unauthorized(c, "Unauthenticated.")
			c.Abort()
			return
		}

		p, err := auth.Authenticate(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			if errors.Is(err, service.ErrUnauthenticated) {
				response.Unauthorized(c, "Unauthenticated.")
			} else {
				response.InternalError(c, "failed to authenticate")
			}
			c.Abort()
			return
		}

		c.Set(ContextKeyPrincipal, p)
		c.Next()
	}
}

// PrincipalFrom returns the caller set by Authenticate, or nil.
func PrincipalFrom(c *gin.Context) *service.Principal {
	v, ok := c.Get(ContextKeyPrincipal)
	if !ok {
		return nil
	}
	p, _ := v.(*service.Principal)
	return p
}
