package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("unit-test-secret")

func TestTokenRoundTrip(t *testing.T) {
	tok, err := GenerateToken("drv-9", RoleDriver, secret, time.Minute)
	require.NoError(t, err)

	claims, err := ValidateToken(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "drv-9", claims.Subject)
	assert.Equal(t, RoleDriver, claims.Role)

	_, err = ValidateToken(tok, []byte("wrong"))
	assert.Error(t, err)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	tok, err := GenerateToken("drv-9", RoleDriver, secret, -time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken(tok, secret)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTokenWithoutSubjectIsRejected(t *testing.T) {
	tok, err := GenerateToken("", RoleAdmin, secret, time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken(tok, secret)
	assert.Error(t, err)
}

func TestRequireAuthWithRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", RequireAuthWithRole(secret, RoleAdmin), func(c *gin.Context) {
		c.String(http.StatusOK, Subject(c))
	})

	admin, err := GenerateToken("adm-1", RoleAdmin, secret, time.Minute)
	require.NoError(t, err)
	driver, err := GenerateToken("drv-1", RoleDriver, secret, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"admin", "Bearer " + admin, http.StatusOK},
		{"driver", "Bearer " + driver, http.StatusForbidden},
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic " + admin, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusOK {
				assert.Equal(t, "adm-1", rec.Body.String())
			}
		})
	}
}

func TestRequestIDReusesCallerHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestID)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Body.String())
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}
