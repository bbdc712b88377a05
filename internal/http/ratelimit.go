package httpapi

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"campusevents-backend/internal/ratelimit"
	"campusevents-backend/internal/services"

	"go.uber.org/zap"
)

type RateLimitResponse struct {
	Error             string `json:"error"`
	RetryAfterSeconds int    `json:"retryAfterSeconds"`
}

// RateLimit caps requests per client IP. A limiter store failure lets the
// request through.
func RateLimit(limiter *ratelimit.FixedWindow, event, message string, audit SecurityRecorder, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			decision, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				logger.Warn("rate limiter unavailable", zap.String("event", event), zap.Error(err))
			}
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			if decision.RetryAfter > 0 {
				h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(decision.RetryAfter).Unix(), 10))
			}
			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}
			audit.Record(r.Context(), event, message, requestMeta(r, nil))
			writeTooMany(w, decision.RetryAfter, message+" Try again in "+formatWait(decision.RetryAfter)+".")
		})
	}
}

// LoginGuard rejects login attempts from clients that are locked out.
func LoginGuard(lockout *ratelimit.Lockout, audit SecurityRecorder, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wait, blocked, err := lockout.Blocked(r.Context(), clientIP(r))
			if err != nil {
				logger.Warn("lockout store unavailable", zap.Error(err))
			}
			if !blocked {
				next.ServeHTTP(w, r)
				return
			}
			audit.Record(r.Context(), services.EventLoginBlocked, "Login attempt from blocked IP", requestMeta(r, nil))
			writeTooMany(w, wait, "Too many failed login attempts. Try again in "+formatWait(wait)+".")
		})
	}
}

func writeTooMany(w http.ResponseWriter, wait time.Duration, message string) {
	seconds := int(math.Ceil(wait.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	WriteJSON(w, http.StatusTooManyRequests, RateLimitResponse{Error: message, RetryAfterSeconds: seconds})
}

// formatWait renders a wait as whole minutes, or seconds when under one.
func formatWait(d time.Duration) string {
	if d < time.Minute {
		s := int(math.Ceil(d.Seconds()))
		if s < 1 {
			s = 1
		}
		return plural(s, "second")
	}
	return plural(int(math.Ceil(d.Minutes())), "minute")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
