// Package ratelimit throttles /v1 calls per authenticated account with an
// in-memory sliding window. It is per process, not distributed.
package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"tokenhold/pkg/platform/httputil"
	"tokenhold/pkg/requestcontext"
)

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int
}

// Window keeps the request timestamps of every key inside the window.
type Window struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string][]time.Time
}

type Option func(*Window)

func WithClock(now func() time.Time) Option {
	return func(w *Window) {
		w.now = now
	}
}

func NewWindow(limit int, window time.Duration, opts ...Option) *Window {
	w := &Window{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Allow records one request for key when it fits under the limit.
func (w *Window) Allow(key string) Result {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	stamps := prune(w.buckets[key], now.Add(-w.window))
	if len(stamps) >= w.limit {
		w.buckets[key] = stamps
		resetAt := stamps[0].Add(w.window)
		return Result{
			Limit:      w.limit,
			ResetAt:    resetAt,
			RetryAfter: max(1, int(resetAt.Sub(now).Seconds()+0.5)),
		}
	}
	stamps = append(stamps, now)
	w.buckets[key] = stamps
	return Result{
		Allowed:   true,
		Limit:     w.limit,
		Remaining: w.limit - len(stamps),
		ResetAt:   stamps[0].Add(w.window),
	}
}

func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	if i == len(stamps) {
		return nil
	}
	return stamps[i:]
}

type exceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"error_description"`
	RetryAfter int    `json:"retry_after"`
}

// PerCaller keys on the authenticated account and falls back to the client
// IP. Mount it after authentication. A nil window disables the check.
func PerCaller(w *Window, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if w == nil {
			return next
		}
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := "ip:" + requestcontext.ClientIP(ctx)
			if caller := requestcontext.Caller(ctx); !caller.IsZero() {
				key = "caller:" + caller.String()
			}

			result := w.Allow(key)
			rw.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			rw.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			rw.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
			if !result.Allowed {
				logger.WarnContext(ctx, "rate limit exceeded",
					"request_id", requestcontext.RequestID(ctx),
					"key", key,
				)
				rw.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteJSON(rw, http.StatusTooManyRequests, exceededResponse{
					Error:      "rate_limit_exceeded",
					Message:    "Too many requests. Please try again later.",
					RetryAfter: result.RetryAfter,
				})
				return
			}
			next.ServeHTTP(rw, r)
		})
	}
}
