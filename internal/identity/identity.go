// Package identity resolves the calling user from a request. The storefront only
// verifies tokens; issuing them belongs to the auth service.
package identity

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joao-fontenele/storefront/internal/api"
	"github.com/joao-fontenele/storefront/internal/domain"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type Resolver interface {
	ResolveUser(r *http.Request) (string, error)
}

type JWTResolver struct {
	secret []byte
}

func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret)}
}

// ResolveUser returns the subject of a valid HS256 bearer token.
func (j *JWTResolver) ResolveUser(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return "", ErrUnauthenticated
	}

	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return j.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrUnauthenticated
	}

	return claims.Subject, nil
}

// IssueToken signs a token for userID. Used by local tooling and tests.
func (j *JWTResolver) IssueToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

type userKey struct{}

func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

func UserFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userKey{}).(string)
	return userID, ok && userID != ""
}

// ServiceTokenHeader carries the shared secret of service-to-service calls.
const ServiceTokenHeader = "X-Internal-Token"

// RequireServiceToken lets a request through only when it carries token in
// ServiceTokenHeader. An empty token rejects everything.
func RequireServiceToken(token string, resp *api.Responder, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(ServiceTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			resp.Fail(w, domain.ErrUnauthorized)
			return
		}
		next(w, r)
	}
}

// Require fails closed with Unauthorized before next runs when no user resolves.
func Require(resolver Resolver, resp *api.Responder, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := resolver.ResolveUser(r)
		if err != nil || userID == "" {
			resp.Fail(w, domain.ErrUnauthorized)
			return
		}
		next(w, r.WithContext(WithUser(r.Context(), userID)))
	}
}
