// Package admin guards operator endpoints that sit outside the bearer-token
// API, such as /metrics.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "tokenhold/pkg/domain-errors"
	"tokenhold/pkg/platform/httputil"
	"tokenhold/pkg/requestcontext"
)

// TokenHeader carries the operator token.
const TokenHeader = "X-Admin-Token"

var errAdminToken = dErrors.New(dErrors.CodeUnauthorized, "admin token required")

// RequireAdminToken rejects requests whose TokenHeader does not match
// expected. An empty expected token leaves the endpoint open, which is how
// local runs without ADMIN_TOKEN behave.
func RequireAdminToken(expected string, logger *slog.Logger) func(http.Handler) http.Handler {
	want := []byte(expected)
	return func(next http.Handler) http.Handler {
		if len(want) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if subtle.ConstantTimeCompare([]byte(r.Header.Get(TokenHeader)), want) == 1 {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			logger.WarnContext(ctx, "operator endpoint refused",
				"path", r.URL.Path,
				"client_ip", requestcontext.ClientIP(ctx),
				"request_id", requestcontext.RequestID(ctx),
			)
			httputil.WriteError(w, errAdminToken)
		})
	}
}
