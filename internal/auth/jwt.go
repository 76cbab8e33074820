// Package auth provides optional bearer-token protection for the metadata
// service using HS256-signed JWTs.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/VinodKandula/file-metadata-app/internal/apierror"
	"github.com/VinodKandula/file-metadata-app/internal/logging"
	"github.com/VinodKandula/file-metadata-app/internal/metrics"
	"github.com/VinodKandula/file-metadata-app/pkg/protocol"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// Issuer is stamped into every token this package signs.
const Issuer = "file-metadata-app"

// Claims holds JWT token claims.
type Claims struct {
	jwt.RegisteredClaims
}

// Auth signs and validates tokens with a shared secret.
type Auth struct {
	secret []byte
}

// New creates a new Auth handler.
func New(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// IssueToken signs a token for subject valid for ttl.
func (a *Auth) IssueToken(subject string, ttl time.Duration) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("subject required")
	}
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    Issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses tokenStr and checks signature, issuer and expiry.
func (a *Auth) Validate(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(Issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Middleware returns HTTP middleware that requires a valid bearer token.
// Rejections are written through errs.
func (a *Auth) Middleware(errs apierror.Writer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := extractToken(r)
			if tokenStr == "" {
				metrics.RecordAuthAttempt(false)
				sendAuthError(w, r, errs, "missing authentication token")
				return
			}

			claims, err := a.Validate(tokenStr)
			if err != nil {
				metrics.RecordAuthAttempt(false)
				logging.WithContext(r.Context()).Debug("token rejected", zap.Error(err))
				sendAuthError(w, r, errs, "invalid token: "+err.Error())
				return
			}
			metrics.RecordAuthAttempt(true)

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaims extracts claims from the request context.
func GetClaims(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsContextKey).(*Claims)
	return claims
}

func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func sendAuthError(w http.ResponseWriter, r *http.Request, errs apierror.Writer, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="filemetadata"`)
	errs.Send(w, r, http.StatusUnauthorized, protocol.CodeUnauthorized, message)
}
