// Package requesttime pins one "now" per HTTP request. Every expiry check a
// request triggers, for holds and certificates alike, reads the same instant.
package requesttime

import (
	"net/http"
	"time"

	"tokenhold/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request
// and stores it in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC().Truncate(time.Second))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
