// internal/middleware/admin_auth.go
package middleware

import (
	"log/slog"
	"net/http"
	"slices"

	"boq-portal.kz/internal/roles"
)

// RequireRole пропускает только пользователей с одной из ролей.
// Проверяется реальная роль, режим просмотра на права не влияет.
func RequireRole(allowedRoles ...roles.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			real, ok := RealIdentity(r.Context())
			if !ok {
				slog.Error("RequireRole: пользователь не найден в контексте, хотя ожидался")
				http.Error(w, "Доступ запрещен: пользователь не аутентифицирован.", http.StatusUnauthorized)
				return
			}

			if !slices.Contains(allowedRoles, real.Role) {
				slog.Warn("Доступ запрещен: недостаточная роль", "userID", real.UserID, "userRole", real.Role, "requiredRoles", allowedRoles, "path", r.URL.Path, "request_id", RequestIDFrom(r.Context()))
				http.Error(w, "Доступ запрещен: у вас нет необходимых прав для доступа к этому ресурсу.", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
