package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/cvlift/cvlift-api/internal/pkg/jwt"
	"github.com/cvlift/cvlift-api/internal/pkg/response"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	EmailKey  contextKey = "email"
)

// Provisioner lazily creates the account row for a token identity. Sign-in
// happens on the OAuth frontend, so the first API request may arrive before
// any row exists.
type Provisioner interface {
	EnsureUser(ctx context.Context, id, email string) error
}

// Auth returns middleware that validates the access token and resolves the
// caller's identity. provisioner may be nil.
func Auth(jwtService *jwt.Service, provisioner Provisioner) func(http.Handler) http.Handler {
	var seen sync.Map

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "Missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				response.Unauthorized(w, "Invalid authorization header format")
				return
			}

			claims, err := jwtService.ValidateAccessToken(parts[1])
			if err != nil {
				if errors.Is(err, jwt.ErrExpiredToken) {
					response.Unauthorized(w, "Token expired")
				} else {
					response.Unauthorized(w, "Invalid token")
				}
				return
			}

			// Ensure once per identity per process; a restart just repeats
			// the idempotent upsert.
			if provisioner != nil {
				if _, ok := seen.Load(claims.UserID); !ok {
					if err := provisioner.EnsureUser(r.Context(), claims.UserID, claims.Email); err != nil {
						log.Error().Err(err).Str("user_id", claims.UserID).Msg("account provisioning failed")
						response.InternalError(w)
						return
					}
					seen.Store(claims.UserID, struct{}{})
				}
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, EmailKey, claims.Email)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID extracts the caller's user id from context
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

// GetEmail extracts the caller's email from context
func GetEmail(ctx context.Context) string {
	if email, ok := ctx.Value(EmailKey).(string); ok {
		return email
	}
	return ""
}
