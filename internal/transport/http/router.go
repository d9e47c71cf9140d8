package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tokenhold/internal/platform/metrics"
	"tokenhold/internal/platform/middleware"
	"tokenhold/internal/platform/ratelimit"
	"tokenhold/pkg/platform/httputil"
	"tokenhold/pkg/platform/middleware/admin"
	"tokenhold/pkg/platform/middleware/auth"
	"tokenhold/pkg/platform/middleware/metadata"
	"tokenhold/pkg/platform/middleware/request"
	"tokenhold/pkg/platform/middleware/requesttime"
)

// HealthCheck probes one backing dependency.
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	Logger       *slog.Logger
	JWTValidator auth.JWTValidator
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	AdminToken   string
	HealthChecks map[string]HealthCheck

	// RateLimit throttles /v1 per caller; nil disables it.
	RateLimit *ratelimit.Window
	// RequestTimeout bounds every /v1 request; zero means 10s.
	RequestTimeout time.Duration
}

func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Latency(cfg.Metrics))

	r.Get("/health", healthHandler(cfg.HealthChecks, cfg.Logger))
	if cfg.Gatherer != nil {
		r.With(admin.RequireAdminToken(cfg.AdminToken, cfg.Logger)).
			Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(chimw.Timeout(timeout))
		r.Use(auth.RequireAuth(cfg.JWTValidator, cfg.Logger))
		r.Use(ratelimit.PerCaller(cfg.RateLimit, cfg.Logger))
		h.Register(r)
	})
	return r
}

func healthHandler(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		result := map[string]string{}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				logger.WarnContext(r.Context(), "health check failed", "dependency", name, "error", err)
				result[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			result[name] = "up"
		}
		httputil.WriteJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": result})
	}
}
