// Package auth turns verified token claims into the chat identity of a request.
package auth

import (
	"github.com/gin-gonic/gin"

	"victim-support/backend/internal/models"
	"victim-support/backend/pkg/errors"
	"victim-support/backend/pkg/jwt"
)

// ContextKey is where the identity is stored on the gin context
const ContextKey = "identity"

// FromClaims maps token claims onto a chat identity
func FromClaims(claims *jwt.Claims) (models.Identity, error) {
	return models.NewIdentity(string(claims.Role), claims.Principal())
}

// RequireIdentity must run after middleware.JWTAuthMiddleware
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, exists := c.Get("claims")
		if !exists {
			c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
			c.Abort()
			return
		}
		claims, ok := raw.(*jwt.Claims)
		if !ok {
			c.Error(errors.NewInternalServerError("INVALID_CLAIMS", "Invalid JWT claims format"))
			c.Abort()
			return
		}

		identity, err := FromClaims(claims)
		if err != nil {
			c.Error(errors.NewUnauthorizedError("INVALID_IDENTITY", "Token does not carry a valid identity"))
			c.Abort()
			return
		}

		SetIdentity(c, identity)
		c.Next()
	}
}

func SetIdentity(c *gin.Context, identity models.Identity) {
	c.Set(ContextKey, identity)
}

// Identity returns the identity set by RequireIdentity
func Identity(c *gin.Context) (models.Identity, bool) {
	raw, exists := c.Get(ContextKey)
	if !exists {
		return models.Identity{}, false
	}
	identity, ok := raw.(models.Identity)
	return identity, ok && !identity.IsZero()
}
