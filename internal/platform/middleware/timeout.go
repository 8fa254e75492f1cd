package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout bounds the request context. Handlers must honor ctx cancellation
// for this to have effect. Scheduler-driven cycles run outside any request
// and are not bounded here.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
