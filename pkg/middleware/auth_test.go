package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobtrail/jobtrail/pkg/contextkeys"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims Claims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims() Claims {
	return Claims{
		Email: "user@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestAuthenticatorVerify(t *testing.T) {
	auth := NewAuthenticator(testSecret)

	t.Run("valid token", func(t *testing.T) {
		id, err := auth.Verify(signToken(t, validClaims(), testSecret))
		require.NoError(t, err)
		assert.Equal(t, int64(42), id.UserID)
		assert.Equal(t, "user@example.com", id.Email)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := auth.Verify(signToken(t, validClaims(), "other-secret"))
		assert.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		claims := validClaims()
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
		_, err := auth.Verify(signToken(t, claims, testSecret))
		assert.Error(t, err)
	})

	t.Run("non-numeric subject", func(t *testing.T) {
		claims := validClaims()
		claims.Subject = "bob"
		_, err := auth.Verify(signToken(t, claims, testSecret))
		assert.Error(t, err)
	})

	t.Run("missing email claim", func(t *testing.T) {
		claims := validClaims()
		claims.Email = ""
		_, err := auth.Verify(signToken(t, claims, testSecret))
		assert.Error(t, err)
	})
}

func TestAuthMiddleware(t *testing.T) {
	auth := NewAuthenticator(testSecret)

	var gotIdentity *contextkeys.Identity
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity, _ = contextkeys.IdentityFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("attaches the identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, validClaims(), testSecret))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotIdentity)
		assert.Equal(t, int64(42), gotIdentity.UserID)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("not a bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
