// internal/middleware/csrf.go
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/justinas/nosurf"
)

// NoSurfMiddleware обеспечивает CSRF-защиту форм.
// isProduction: true для production окружения (Secure cookie, доступ только по HTTPS).
func NoSurfMiddleware(next http.Handler, isProduction bool) http.Handler {
	csrfHandler := nosurf.New(next)

	csrfHandler.SetBaseCookie(http.Cookie{
		HttpOnly: true,
		Path:     "/",
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
	})

	csrfHandler.SetIsTLSFunc(isTLSRequest(isProduction))

	csrfHandler.SetFailureHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Warn("Неудачная проверка CSRF токена", "path", r.URL.Path, "method", r.Method, "reason", nosurf.Reason(r))
		http.Error(w, "Ошибка безопасности: неверный или отсутствующий CSRF токен.", http.StatusForbidden)
	}))

	return csrfHandler
}

// CSRF: NoSurfMiddleware в форме, пригодной для chi Use.
func CSRF(isProduction bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return NoSurfMiddleware(next, isProduction)
	}
}

// isTLSRequest определяет схему, с которой nosurf сравнивает Origin и Referer.
// В production портал доступен только по HTTPS (TLS может завершаться на прокси),
// в остальных окружениях схема берется из самого соединения.
func isTLSRequest(isProduction bool) func(*http.Request) bool {
	return func(r *http.Request) bool {
		return isProduction || r.TLS != nil
	}
}
