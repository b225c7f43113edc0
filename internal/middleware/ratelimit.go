// internal/middleware/ratelimit.go
package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"boq-portal.kz/internal/ratelimit"
)

// ClientIP берет первый адрес из X-Forwarded-For, затем X-Real-IP, затем RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware ограничивает количество запросов с одного IP.
func RateLimitMiddleware(limiter *ratelimit.Keyed) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := ClientIP(r)
			if !limiter.Allow(clientIP) {
				slog.Warn("Превышен лимит запросов (Rate Limit)", "ip", clientIP, "path", r.URL.Path)
				http.Error(w, "Слишком много запросов. Пожалуйста, попробуйте позже.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
