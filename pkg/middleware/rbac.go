package middleware

import (
	"strings"

	"victim-support/backend/pkg/errors"
	"victim-support/backend/pkg/jwt"
	"victim-support/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RequireRole returns a middleware that requires the user to have a specific role
func RequireRole(role jwt.Role) gin.HandlerFunc {
	return RequireAnyRole(role)
}

// RequireAnyRole returns middleware that requires the user to have at least one of the specified roles
func RequireAnyRole(roles ...jwt.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		jwtClaims, ok := claimsFrom(c)
		if !ok {
			return
		}

		for _, role := range roles {
			if jwtClaims.HasRole(role) {
				c.Next()
				return
			}
		}

		c.Error(errors.NewForbiddenError("INSUFFICIENT_ROLE", "Your role does not allow this operation"))
		c.Abort()
	}
}

func claimsFrom(c *gin.Context) (*jwt.Claims, bool) {
	// Get claims from context (set by JWTAuthMiddleware)
	claims, exists := c.Get("claims")
	if !exists {
		c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
		c.Abort()
		return nil, false
	}

	jwtClaims, ok := claims.(*jwt.Claims)
	if !ok {
		c.Error(errors.NewInternalServerError("INVALID_CLAIMS", "Invalid JWT claims format"))
		c.Abort()
		return nil, false
	}
	return jwtClaims, true
}

// JWTAuthMiddleware checks that the request has a valid JWT and adds claims
// to the context. Browsers cannot set headers on a websocket handshake, so
// the token query parameter is accepted as well.
func JWTAuthMiddleware(jwtService *jwt.Service, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authorization header is required"))
			c.Abort()
			return
		}

		token = strings.TrimPrefix(token, "Bearer ")

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			logger.Warn("Invalid JWT token", "error", err.Error())
			c.Error(errors.NewUnauthorizedError("INVALID_TOKEN", "Invalid or expired token"))
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Set("userId", claims.Principal())
		c.Set("userRole", claims.Role)

		c.Next()
	}
}
