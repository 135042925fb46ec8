package jwt

import (
	"time"
)

// Service is a wrapper for JWT operations bound to one secret
type Service struct {
	secretKey string
	expiry    time.Duration
}

// NewService creates a new JWT service
func NewService(secretKey string, expiry time.Duration) *Service {
	if secretKey == "" {
		secretKey = getSecretKey()
	}

	if expiry == 0 {
		expiry = 24 * time.Hour // Default to 24 hours
	}

	return &Service{
		secretKey: secretKey,
		expiry:    expiry,
	}
}

// GenerateToken issues a token for a participant
func (s *Service) GenerateToken(role Role, id string) (string, error) {
	return GenerateToken(s.secretKey, s.expiry, role, id)
}

// ValidateToken validates a JWT token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.secretKey, tokenString)
}
