package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"boq-portal.kz/internal/models"
	"boq-portal.kz/internal/roles"
	"boq-portal.kz/internal/viewas"
)

type contextKey string

const (
	UserIDContextKey          contextKey = "userID"
	IsAuthenticatedContextKey contextKey = "isAuthenticated"
	UserContextKey            contextKey = "user"
	IdentityContextKey        contextKey = "identity"
	ViewContextKey            contextKey = "view"
)

// SessionUserIDKey: ключ ID пользователя в сессии.
const SessionUserIDKey = string(UserIDContextKey)

// UserLoader загружает пользователя по ID (обычно db.GetUserByID).
type UserLoader func(id int64) (*models.User, error)

// IdentityFromUser разбирает роль пользователя один раз на границе аутентификации.
func IdentityFromUser(u *models.User) roles.Identity {
	var roleName string
	if u.RoleName != nil {
		roleName = *u.RoleName
	}
	return roles.Identity{
		UserID:      u.ID,
		Role:        roles.ResolveIdentity(roleName, u.RoleLegacyID),
		DisplayName: u.FullName(),
	}
}

// RequireAuthentication перечитывает пользователя из БД на каждом запросе
// и кладет его и его Identity в контекст.
func RequireAuthentication(sessionManager *scs.SessionManager, load UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := sessionManager.GetInt64(r.Context(), SessionUserIDKey)
			if userID == 0 {
				slog.Debug("Доступ запрещен: пользователь не аутентифицирован", "path", r.URL.Path)
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			user, err := load(userID)
			if err != nil || user == nil || !user.IsActive {
				slog.Warn("RequireAuthentication: пользователь не найден или отключен", "userID", userID, "error", err)
				sessionManager.Remove(r.Context(), SessionUserIDKey)
				http.Redirect(w, r, "/login?err=session_invalid", http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDContextKey, userID)
			ctx = context.WithValue(ctx, UserContextKey, user)
			ctx = context.WithValue(ctx, IsAuthenticatedContextKey, true)
			ctx = context.WithValue(ctx, IdentityContextKey, IdentityFromUser(user))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// InjectUserData: для публичных страниц: отмечает, вошел ли пользователь,
// не требуя входа.
func InjectUserData(sessionManager *scs.SessionManager, load UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if _, ok := ctx.Value(UserContextKey).(*models.User); ok {
				next.ServeHTTP(w, r)
				return
			}

			isAuthenticated := false
			if id := sessionManager.GetInt64(ctx, SessionUserIDKey); id != 0 {
				user, err := load(id)
				if err == nil && user != nil && user.IsActive {
					isAuthenticated = true
					ctx = context.WithValue(ctx, UserContextKey, user)
					ctx = context.WithValue(ctx, IdentityContextKey, IdentityFromUser(user))
				} else if err != nil {
					slog.Warn("InjectUserData: ошибка загрузки пользователя из сессии", "userID", id, "error", err)
				}
			}
			ctx = context.WithValue(ctx, IsAuthenticatedContextKey, isAuthenticated)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// View: результат разрешения роли для запроса.
type View struct {
	Real      roles.Identity
	Effective roles.Role
	Override  *viewas.Override
}

// Previewing: администратор смотрит портал от имени другой роли.
func (v View) Previewing() bool {
	return v.Effective != v.Real.Role
}

func (v View) Descriptor() roles.Descriptor {
	return roles.DescriptorFor(v.Effective)
}

// ResolveView вычисляет эффективную роль с учетом оверлея администратора.
// Должен стоять после RequireAuthentication.
func ResolveView(views *viewas.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			real, ok := RealIdentity(r.Context())
			if !ok {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			view := View{Real: real, Effective: real.Role}
			if ov, active := views.Current(r.Context(), real); active {
				view.Effective = ov.EffectiveFor(real)
				if view.Previewing() {
					view.Override = &ov
				}
			}

			ctx := context.WithValue(r.Context(), ViewContextKey, view)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RealIdentity: настоящий пользователь запроса. Используется для
// проверки прав и доступа к данным.
func RealIdentity(ctx context.Context) (roles.Identity, bool) {
	id, ok := ctx.Value(IdentityContextKey).(roles.Identity)
	return id, ok
}

func ViewFromContext(ctx context.Context) (View, bool) {
	v, ok := ctx.Value(ViewContextKey).(View)
	return v, ok
}

func CurrentUser(ctx context.Context) *models.User {
	u, _ := ctx.Value(UserContextKey).(*models.User)
	return u
}
