// cmd/server/routes.go
package main

import (
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"boq-portal.kz/internal/config"
	"boq-portal.kz/internal/handlers"
	adminhandlers "boq-portal.kz/internal/handlers/admin"
	"boq-portal.kz/internal/middleware"
	"boq-portal.kz/internal/ratelimit"
	"boq-portal.kz/internal/roles"
)

type application struct {
	cfg          *config.Config
	sessions     *scs.SessionManager
	app          *handlers.AppHandlers
	loginLimiter *ratelimit.Keyed
	csrf         bool
}

func (a *application) routes() http.Handler {
	authHandlers := handlers.NewAuthHandlers(a.app)
	loadUser := middleware.UserLoader(a.app.Store.GetUserByID)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.MetricsMiddleware())

	r.Get("/healthz", a.app.HealthzHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(a.sessions.LoadAndSave)
		if a.csrf {
			r.Use(middleware.CSRF(a.cfg.IsProduction()))
		}

		r.With(middleware.InjectUserData(a.sessions, loadUser)).Get("/login", authHandlers.LoginPageHandler)
		r.With(middleware.RateLimitMiddleware(a.loginLimiter)).Post("/login", authHandlers.LoginHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuthentication(a.sessions, loadUser))
			r.Use(middleware.ResolveView(a.app.Views))

			r.Get("/", a.app.HomeHandler)
			r.Post("/logout", authHandlers.LogoutHandler)

			r.Get("/api/notifications", a.app.ListNotificationsHandler)
			r.Post("/api/notifications/{id}/read", a.app.MarkNotificationReadHandler)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(roles.Admin))
				r.Post("/view-as", a.app.ViewAsHandler)
				r.Post("/view-as/reset", a.app.ResetViewHandler)

				r.Route("/manage", func(r chi.Router) {
					r.Get("/users", adminhandlers.AdminUsersListPageHandler(a.app))
					r.Post("/users/create", adminhandlers.AdminCreateUserHandler(a.app))
					r.Post("/users/role", adminhandlers.AdminAssignRoleHandler(a.app))
					r.Post("/notifications", adminhandlers.AdminBroadcastHandler(a.app))
					r.Get("/stats", adminhandlers.AdminStatsHandler(a.app))
				})
			})

			r.Route("/{role}", func(r chi.Router) {
				r.Use(middleware.RouteGuard)
				r.Get("/", a.app.RolePageHandler)
				r.Get("/*", a.app.RolePageHandler)
			})
		})
	})

	return r
}
