package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"conforma/pkg/requestcontext"
)

// TokenValidator defines the interface for validating bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*ActorClaims, error)
}

// ActorClaims represents the claims we expect from the token validator.
type ActorClaims struct {
	Actor string
	Role  string
}

// GetActor retrieves the authenticated actor from the context.
func GetActor(ctx context.Context) string {
	return requestcontext.Actor(ctx)
}

// GetActorRole retrieves the authenticated actor's role from the context.
func GetActorRole(ctx context.Context) string {
	return requestcontext.ActorRole(ctx)
}

// ActorContext resolves the acting user from an optional bearer token.
// Identity is advisory here: requests without an Authorization header pass
// through and handlers fall back to actor fields in the request body, but a
// token that is present and invalid is rejected so a caller can never act
// under a forged identity.
func ActorContext(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			if token, ok := strings.CutPrefix(authHeader, bearerPrefix); ok {
				claims, err := validator.ValidateToken(token)
				if err != nil {
					ctx := r.Context()
					requestID := GetRequestID(ctx)
					logger.WarnContext(ctx, "rejected request - invalid token",
						"error", err,
						"request_id", requestID,
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnauthorized)
					_, err = w.Write([]byte(`{"error":"unauthorized","error_description":"Invalid or expired token"}`))
					if err != nil {
						logger.ErrorContext(ctx, "failed to write unauthorized response",
							"error", err,
							"request_id", requestID,
						)
					}
					return
				}

				ctx := requestcontext.WithActor(r.Context(), claims.Actor, claims.Role)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// No Authorization header or a non-bearer scheme
			next.ServeHTTP(w, r)
		})
	}
}
