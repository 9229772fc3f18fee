package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"go.railyard.dev/internal/rop"
)

// ContextKey is a type for context keys
type ContextKey string

// ContextKeyClaims is the key for validated token claims.
const ContextKeyClaims ContextKey = "claims"

// CodeUnauthorized is the error code of rejected bearer tokens.
const CodeUnauthorized = "Auth.Unauthorized"

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims are the claims carried by railyard access tokens.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims grant role.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// TokenService issues and validates HS256 bearer tokens.
type TokenService struct {
	key    []byte
	issuer string
	expiry time.Duration
}

// NewTokenService creates a token service signing with key. Tokens from any
// other issuer are rejected.
func NewTokenService(key []byte, issuer string, expiry time.Duration) *TokenService {
	if expiry == 0 {
		expiry = time.Hour
	}
	return &TokenService{key: key, issuer: issuer, expiry: expiry}
}

// Issue creates a signed token for subject.
func (s *TokenService) Issue(subject string, roles ...string) (string, error) {
	now := time.Now()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses token and checks signature, issuer and expiry.
func (s *TokenService) Validate(token string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return claims, nil
}

// RequireBearer rejects requests without a valid bearer token and stores
// the claims in the request context.
func (s *TokenService) RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			WriteFailure(w, http.StatusUnauthorized, rop.NewError(CodeUnauthorized, "Authentication required"))
			return
		}

		claims, err := s.Validate(token)
		if err != nil {
			slog.Debug("Token validation failed", "error", err)
			WriteFailure(w, http.StatusUnauthorized, rop.NewError(CodeUnauthorized, "Invalid or expired token"))
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClaims returns the validated claims from the context
func GetClaims(ctx context.Context) *Claims {
	c, _ := ctx.Value(ContextKeyClaims).(*Claims)
	return c
}

// extractBearerToken extracts the token from the Authorization header
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
