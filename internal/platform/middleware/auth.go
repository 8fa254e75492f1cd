package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	ServiceID string
	Scopes    []string
}

// Context keys for storing authenticated caller information
type contextKeyServiceID struct{}
type contextKeyScopes struct{}

// ContextKeyServiceID is exported for use in handlers
var (
	ContextKeyServiceID = contextKeyServiceID{}
	ContextKeyScopes    = contextKeyScopes{}
)

// GetServiceID retrieves the authenticated caller ID from the context
func GetServiceID(ctx context.Context) string {
	serviceID, ok := ctx.Value(ContextKeyServiceID).(string)
	if !ok {
		return ""
	}
	return serviceID
}

// GetScopes retrieves the caller's token scopes from the context
func GetScopes(ctx context.Context) []string {
	scopes, ok := ctx.Value(ContextKeyScopes).([]string)
	if !ok {
		return nil
	}
	return scopes
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + errCode + `","error_description":"` + errDesc + `"}`))
}

func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			if after, ok := strings.CutPrefix(authHeader, bearerPrefix); ok {
				claims, err := validator.ValidateToken(after)
				if err != nil {
					ctx := r.Context()
					logger.WarnContext(ctx, "unauthorized access - invalid token",
						"error", err,
						"request_id", GetRequestID(ctx),
					)
					writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
					return
				}

				ctx := r.Context()
				ctx = context.WithValue(ctx, ContextKeyServiceID, claims.ServiceID)
				ctx = context.WithValue(ctx, ContextKeyScopes, claims.Scopes)

				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// No Authorization header or invalid format
			ctx := r.Context()
			logger.WarnContext(ctx, "unauthorized access - missing token",
				"request_id", GetRequestID(ctx),
			)
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
		})
	}
}

// RequireScope rejects authenticated callers whose token lacks the scope.
// Must be mounted after RequireAuth.
func RequireScope(scope string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if !slices.Contains(GetScopes(ctx), scope) {
				logger.WarnContext(ctx, "forbidden - missing scope",
					"scope", scope,
					"service_id", GetServiceID(ctx),
					"request_id", GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusForbidden, "forbidden", "Token missing required scope")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
