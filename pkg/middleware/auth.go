package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jobtrail/jobtrail/pkg/contextkeys"
	"github.com/jobtrail/jobtrail/pkg/httputil"
)

// Claims is the JWT payload issued by the identity service. Subject
// carries the numeric user ID.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Authenticator validates bearer tokens and attaches the caller identity
// to the request context.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates an authenticator for HS256 tokens signed with
// secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			httputil.WriteError(w, http.StatusUnauthorized, "authorization header must be a bearer token")
			return
		}

		identity, err := a.Verify(raw)
		if err != nil {
			httputil.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := contextkeys.WithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Verify parses and validates a token, returning the identity it carries.
func (a *Authenticator) Verify(raw string) (*contextkeys.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}

	var userID int64
	if _, err := fmt.Sscanf(claims.Subject, "%d", &userID); err != nil || userID <= 0 {
		return nil, fmt.Errorf("token subject is not a user id")
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("token is missing the email claim")
	}

	return &contextkeys.Identity{UserID: userID, Email: claims.Email}, nil
}
