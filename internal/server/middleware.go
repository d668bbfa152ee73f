package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// CallerHeader carries the opaque caller id of a request.
const CallerHeader = "X-Caller-ID"

type contextKeyCallerID struct{}

// ContextKeyCallerID is exported for use in handlers
var ContextKeyCallerID = contextKeyCallerID{}

// GetCallerID retrieves the caller id from the context
func GetCallerID(ctx context.Context) string {
	callerID, ok := ctx.Value(ContextKeyCallerID).(string)
	if !ok {
		return ""
	}
	return callerID
}

// RequireToken rejects requests without the shared bearer token and
// stores the caller id in the request context.
func RequireToken(token string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := middleware.GetReqID(ctx)

			const bearerPrefix = "Bearer "
			presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || token == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"request_id", requestID,
				)
				writeError(w, logger, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			callerID := strings.TrimSpace(r.Header.Get(CallerHeader))
			if callerID == "" {
				logger.WarnContext(ctx, "request without caller id",
					"request_id", requestID,
				)
				writeError(w, logger, http.StatusBadRequest, "bad_request", "Missing "+CallerHeader+" header")
				return
			}

			ctx = context.WithValue(ctx, ContextKeyCallerID, callerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// callerLimiter keeps one token bucket per caller id.
type callerLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newCallerLimiter(perSecond float64, burst int) *callerLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &callerLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *callerLimiter) get(callerID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[callerID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[callerID] = lim
	}
	return lim
}

// Middleware enforces the per-caller rate. It must run after RequireToken.
func (l *callerLimiter) Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			callerID := GetCallerID(r.Context())
			if !l.get(callerID).Allow() {
				logger.WarnContext(r.Context(), "rate limit exceeded",
					"caller", callerID,
					"request_id", middleware.GetReqID(r.Context()),
				)
				w.Header().Set("Retry-After", "1")
				writeError(w, logger, http.StatusTooManyRequests, "rate_limited", "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
