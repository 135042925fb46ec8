package jwt

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Role is the participant type carried in a token
type Role string

const (
	RoleVictim    Role = "Victim"
	RoleAnonymous Role = "Anonymous"
	RoleAdmin     Role = "Admin"
	RoleCounselor Role = "Counselor"
)

// Claims represents the claims in a JWT token. Tokens issued by the
// account services carry the id under a role specific key; Subject wins
// when present.
type Claims struct {
	Role        Role   `json:"role"`
	UserID      string `json:"userId,omitempty"`
	AnonymousID string `json:"anonymousId,omitempty"`
	AdminID     string `json:"adminId,omitempty"`
	CounselorID string `json:"counselorId,omitempty"`
	jwt.RegisteredClaims
}

// Principal returns the id of the token holder
func (c *Claims) Principal() string {
	if c.Subject != "" {
		return c.Subject
	}
	switch c.Role {
	case RoleVictim:
		return c.UserID
	case RoleAnonymous:
		return c.AnonymousID
	case RoleAdmin:
		return c.AdminID
	case RoleCounselor:
		return c.CounselorID
	}
	return ""
}

// HasRole checks the token role
func (c *Claims) HasRole(role Role) bool {
	return c.Role == role
}

// GenerateToken signs a token for the given role and id
func GenerateToken(secretKey string, expiry time.Duration, role Role, id string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secretKey))
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(secretKey, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			// Validate signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidToken
			}
			return []byte(secretKey), nil
		},
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Role == "" || claims.Principal() == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// getSecretKey gets the JWT secret key from environment variables
func getSecretKey() string {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		// Fallback to a default secret for development (not recommended for production)
		secret = "devJwtSecretDoNotUseInProduction"
	}
	return secret
}
