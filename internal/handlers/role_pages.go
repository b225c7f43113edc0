package handlers

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"boq-portal.kz/internal/middleware"
	"boq-portal.kz/internal/roles"
)

// Страницы каждой роли по slug. Первая страница: дашборд.
var pageBundles = map[string][]string{
	"admin":              {"dashboard", "roles", "notifications"},
	"technical-director": {"dashboard", "approvals", "change-requests", "projects", "notifications"},
	"project-manager":    {"dashboard", "boq", "change-requests", "purchases", "notifications"},
	"estimator":          {"dashboard", "boq", "change-requests", "notifications"},
	"site-engineer":      {"dashboard", "material-requests", "projects", "notifications"},
	"buyer":              {"dashboard", "purchases", "vendors", "notifications"},
	"accounts":           {"dashboard", "payments", "vendors", "notifications"},
	roles.GenericSlug:    {"dashboard", "notifications"},
}

var pageTitles = map[string]string{
	"dashboard":         "Дашборд",
	"roles":             "Просмотр от имени роли",
	"notifications":     "Уведомления",
	"approvals":         "Согласования закупок",
	"change-requests":   "Запросы на изменения",
	"projects":          "Проекты",
	"boq":               "Ведомость объемов работ",
	"purchases":         "Закупки",
	"material-requests": "Заявки на материалы",
	"vendors":           "Поставщики",
	"payments":          "Платежи",
}

// bundle: шаблоны страниц одной роли. Парсятся при первом обращении.
type bundle struct {
	slug   string
	names  []string
	once   sync.Once
	loaded atomic.Bool
	pages  map[string]*template.Template
	err    error
}

type bundleSet struct {
	base    *template.Template
	bundles map[string]*bundle
}

func newBundleSet(base *template.Template) *bundleSet {
	s := &bundleSet{base: base, bundles: make(map[string]*bundle, len(pageBundles))}
	for slug, names := range pageBundles {
		s.bundles[slug] = &bundle{slug: slug, names: names}
	}
	return s
}

// forRole возвращает набор страниц роли. Неизвестная роль получает общий набор.
func (s *bundleSet) forRole(r roles.Role) *bundle {
	if b, ok := s.bundles[roles.Slug(r)]; ok {
		return b
	}
	return s.bundles[roles.GenericSlug]
}

func (s *bundleSet) load(b *bundle) error {
	b.once.Do(func() {
		pages := make(map[string]*template.Template, len(b.names))
		for _, name := range b.names {
			tmpl, err := s.base.Clone()
			if err != nil {
				b.err = err
				return
			}
			if _, err := tmpl.ParseFS(templateFS, "templates/roles/"+name+".html"); err != nil {
				b.err = fmt.Errorf("страница %s/%s: %w", b.slug, name, err)
				return
			}
			pages[name] = tmpl
		}
		b.pages = pages
		b.loaded.Store(true)
		slog.Debug("Загружен набор страниц роли", "slug", b.slug, "pages", len(pages))
	})
	return b.err
}

// page возвращает шаблон страницы. nil без ошибки, если страницы нет в наборе.
func (s *bundleSet) page(b *bundle, name string) (*template.Template, error) {
	if err := s.load(b); err != nil {
		return nil, err
	}
	return b.pages[name], nil
}

// splitPagePath разбирает остаток пути после slug: "boq/42" -> ("boq", "42").
func splitPagePath(rest string) (page, item string) {
	page, item, _ = strings.Cut(strings.Trim(rest, "/"), "/")
	return page, strings.Trim(item, "/")
}

// RolePageHandler выбирает страницу по эффективной роли. Slug в URL уже
// проверен RouteGuard.
func (h *AppHandlers) RolePageHandler(w http.ResponseWriter, r *http.Request) {
	view, ok := middleware.ViewFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	page, item := splitPagePath(chi.URLParam(r, "*"))
	if page == "" {
		http.Redirect(w, r, roles.DashboardPath(view.Effective), http.StatusSeeOther)
		return
	}

	b := h.bundles.forRole(view.Effective)
	tmpl, err := h.bundles.page(b, page)
	if err != nil {
		slog.Error("Не удалось загрузить страницы роли", "slug", b.slug, "error", err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}
	if tmpl == nil {
		http.NotFound(w, r)
		return
	}

	data := h.NewPageData(r)
	data.Page = page
	data.Item = item
	data.NavPages = b.names
	data.PageTitle = pageTitles[page] + " | " + data.Role.DisplayName

	// Данные всегда читаются от имени реального пользователя.
	switch page {
	case "dashboard":
		if view.Effective == roles.Admin {
			stats, err := h.Store.GetDashboardStats()
			if err != nil {
				slog.Error("RolePageHandler: не удалось получить статистику", "error", err)
			}
			data.Stats = stats
		}
	case "notifications":
		list, unread, err := h.Notifier.List(r.Context(), view.Real.UserID)
		if err != nil {
			slog.Error("RolePageHandler: не удалось получить уведомления", "userID", view.Real.UserID, "error", err)
		}
		data.Notifications = list
		data.UnreadCount = unread
	}

	h.execute(w, r, tmpl, data)
}
