package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceRoundTrip(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	token, err := svc.GenerateToken(RoleVictim, "V1")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, RoleVictim, claims.Role)
	assert.Equal(t, "V1", claims.Principal())
	assert.True(t, claims.HasRole(RoleVictim))
	assert.False(t, claims.HasRole(RoleAdmin))
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewService("one", time.Hour).GenerateToken(RoleAdmin, "A1")
	require.NoError(t, err)

	_, err = NewService("two", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenExpired(t *testing.T) {
	token, err := GenerateToken("secret", -time.Minute, RoleAdmin, "A1")
	require.NoError(t, err)

	_, err = ValidateToken("secret", token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestPrincipalFallsBackToRoleSpecificID(t *testing.T) {
	tests := []struct {
		name   string
		claims Claims
		want   string
	}{
		{"victim", Claims{Role: RoleVictim, UserID: "u1"}, "u1"},
		{"anonymous", Claims{Role: RoleAnonymous, AnonymousID: "anon-1"}, "anon-1"},
		{"admin", Claims{Role: RoleAdmin, AdminID: "a1"}, "a1"},
		{"counselor", Claims{Role: RoleCounselor, CounselorID: "c1"}, "c1"},
		{"subject wins", Claims{Role: RoleAdmin, AdminID: "a1", RegisteredClaims: jwt.RegisteredClaims{Subject: "s1"}}, "s1"},
		{"unknown role", Claims{Role: "Guest", UserID: "u1"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.claims.Principal())
		})
	}
}

func TestValidateTokenRequiresPrincipal(t *testing.T) {
	claims := &Claims{
		Role: RoleCounselor,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ValidateToken("secret", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
