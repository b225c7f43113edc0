package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"boq-portal.kz/internal/roles"
)

var guardRedirectsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "portal_route_guard_redirects_total",
		Help: "Перенаправления на канонический slug роли",
	},
	[]string{"expected"},
)

// CanonicalPath заменяет первый сегмент пути на expectedSlug.
// Остаток пути сохраняется, пустой остаток становится "dashboard".
// Если первый сегмент уже равен expectedSlug, перенаправление не нужно.
func CanonicalPath(path, expectedSlug string) (string, bool) {
	trimmed := strings.TrimPrefix(path, "/")
	first, rest, _ := strings.Cut(trimmed, "/")
	if first == expectedSlug {
		return path, false
	}
	rest = strings.Trim(rest, "/")
	if rest == "" {
		rest = "dashboard"
	}
	return "/" + expectedSlug + "/" + rest, true
}

// RouteGuard сверяет slug роли в URL с эффективной ролью и перенаправляет
// на канонический путь при несовпадении. Монтируется на /{role}.
func RouteGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		view, ok := ViewFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		expected := roles.Slug(view.Effective)
		if chi.URLParam(r, "role") == expected {
			next.ServeHTTP(w, r)
			return
		}

		target, redirect := CanonicalPath(r.URL.Path, expected)
		if !redirect {
			next.ServeHTTP(w, r)
			return
		}
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}

		guardRedirectsTotal.WithLabelValues(expected).Inc()
		slog.Debug("Перенаправление на slug эффективной роли", "userID", view.Real.UserID, "from", r.URL.Path, "to", target, "request_id", RequestIDFrom(r.Context()))
		http.Redirect(w, r, target, http.StatusSeeOther)
	})
}
