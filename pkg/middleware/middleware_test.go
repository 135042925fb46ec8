package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"victim-support/backend/pkg/errors"
	"victim-support/backend/pkg/jwt"
	"victim-support/backend/pkg/logger"
	"victim-support/backend/pkg/metrics"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: io.Discard})
}

func ok(c *gin.Context) { c.Status(http.StatusOK) }

func TestRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	opts := DefaultRateLimiterOptions()
	opts.Limit = 0.001
	opts.Burst = 2
	opts.Surface = "test"
	limiter := NewRateLimiter(testLogger(), opts)
	defer limiter.Stop()

	r := gin.New()
	r.Use(errors.ErrorHandler(), limiter.Middleware())
	r.GET("/", ok)

	before := testutil.ToFloat64(metrics.RateLimitHits.WithLabelValues("test"))

	call := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, call("10.0.0.1").Code)

	w := call("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))

	// other clients keep their own budget
	assert.Equal(t, http.StatusOK, call("10.0.0.2").Code)

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RateLimitHits.WithLabelValues("test")))
}

func TestUserKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "10.0.0.9:1234"

	assert.Equal(t, "10.0.0.9", UserKey(c))

	c.Set("userId", "V1")
	assert.Equal(t, "user:V1", UserKey(c))
}

func TestJWTAuthAndRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := jwt.NewService("test-secret", time.Hour)

	r := gin.New()
	r.Use(errors.ErrorHandler())
	r.GET("/victim", JWTAuthMiddleware(svc, testLogger()), RequireAnyRole(jwt.RoleVictim, jwt.RoleAnonymous), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": c.GetString("userId")})
	})
	r.GET("/admin", JWTAuthMiddleware(svc, testLogger()), RequireRole(jwt.RoleAdmin), ok)
	r.GET("/no-auth", RequireRole(jwt.RoleAdmin), ok)

	victim, err := svc.GenerateToken(jwt.RoleVictim, "V1")
	require.NoError(t, err)
	admin, err := svc.GenerateToken(jwt.RoleAdmin, "A1")
	require.NoError(t, err)
	foreign, err := jwt.NewService("other-secret", time.Hour).GenerateToken(jwt.RoleAdmin, "A1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		status int
		code   string
	}{
		{"bearer header", "/victim", "Bearer " + victim, http.StatusOK, ""},
		{"query token", "/victim?token=" + victim, "", http.StatusOK, ""},
		{"missing token", "/victim", "", http.StatusUnauthorized, "AUTH_REQUIRED"},
		{"foreign signature", "/admin", "Bearer " + foreign, http.StatusUnauthorized, "INVALID_TOKEN"},
		{"wrong role", "/admin", "Bearer " + victim, http.StatusForbidden, "INSUFFICIENT_ROLE"},
		{"admin", "/admin", "Bearer " + admin, http.StatusOK, ""},
		{"role check without auth", "/no-auth", "", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				assert.Contains(t, w.Body.String(), tt.code)
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Body.String())
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, w.Header().Get("X-Request-ID"), w.Body.String())
}

func TestMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/rooms/:roomId", ok)

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/rooms/:roomId", "200")
	before := testutil.ToFloat64(counter)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/rooms/room-V1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/rooms/room-V2", nil))

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}
