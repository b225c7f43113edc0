// internal/handlers/pages.go
package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/justinas/nosurf"

	"boq-portal.kz/internal/config"
	"boq-portal.kz/internal/db"
	"boq-portal.kz/internal/middleware"
	"boq-portal.kz/internal/models"
	"boq-portal.kz/internal/notify"
	"boq-portal.kz/internal/roles"
	"boq-portal.kz/internal/viewas"
)

//go:embed templates
var templateFS embed.FS

type PageData struct {
	SiteName        string
	SiteDescription string
	CurrentYear     int
	BaseURL         string
	CurrentPath     string
	CSRFToken       string
	IsAuthenticated bool
	User            *models.User
	UserName        string
	FlashSuccess    string
	FlashError      string
	Errors          url.Values
	Form            interface{}
	FormValues      url.Values
	PageTitle       string
	StatusCode      int

	// Роль, по которой выбираются страницы, и реальная роль пользователя.
	Role      roles.Descriptor
	RealRole  roles.Descriptor
	ViewingAs bool
	Override  *viewas.Override

	Page     string
	Item     string
	NavPages []string

	Notifications []models.Notification
	UnreadCount   int
	Stats         *db.ReportStats
	AllRoles      []roles.Descriptor
	Users         []*models.User
	TotalUsers    int
	CurrentPage   int
	TotalPages    int
	Limit         int
}

// Store: то, что обработчикам нужно от хранилища. db.Store подходит.
type Store interface {
	GetUserByID(id int64) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	TouchLastLogin(userID int64) error
	CreateUser(u *models.User, roleName string) (int64, error)
	SetUserRole(userID int64, roleName string) error
	GetAllUsers(limit, offset int) ([]*models.User, int, error)
	GetDashboardStats() (*db.ReportStats, error)
}

type AppHandlers struct {
	Config         *config.Config
	BaseTmpl       *template.Template
	SessionManager *scs.SessionManager
	Views          *viewas.Manager
	Store          Store
	Notifier       *notify.Service

	bundles *bundleSet
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"fmtTime": func(t time.Time) string { return t.Format("02.01.2006 15:04") },
		"seq": func(start, end int) []int {
			var s []int
			for i := start; i <= end; i++ {
				s = append(s, i)
			}
			return s
		},
	}
}

func parseBaseTemplate() (*template.Template, error) {
	tmpl, err := template.New("base.html").Funcs(templateFuncs()).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга базового шаблона: %w", err)
	}
	return tmpl, nil
}

func NewAppHandlers(cfg *config.Config, sm *scs.SessionManager, views *viewas.Manager, store Store, notifier *notify.Service) (*AppHandlers, error) {
	baseTmpl, err := parseBaseTemplate()
	if err != nil {
		return nil, err
	}
	if cfg.CurrentYear == 0 {
		cfg.CurrentYear = time.Now().Year()
	}

	return &AppHandlers{
		Config:         cfg,
		BaseTmpl:       baseTmpl,
		SessionManager: sm,
		Views:          views,
		Store:          store,
		Notifier:       notifier,
		bundles:        newBundleSet(baseTmpl),
	}, nil
}

func (h *AppHandlers) NewPageData(r *http.Request) *PageData {
	ctx := r.Context()
	isAuthenticated, _ := ctx.Value(middleware.IsAuthenticatedContextKey).(bool)
	currentUser := middleware.CurrentUser(ctx)

	userName := "Гость"
	if isAuthenticated && currentUser != nil {
		userName = currentUser.FullName()
	}

	data := &PageData{
		SiteName:        h.Config.SiteName,
		SiteDescription: h.Config.SiteDescription,
		CurrentYear:     h.Config.CurrentYear,
		BaseURL:         strings.TrimSuffix(h.Config.BaseURL, "/"),
		CurrentPath:     r.URL.Path,
		CSRFToken:       nosurf.Token(r),
		IsAuthenticated: isAuthenticated,
		User:            currentUser,
		UserName:        userName,
		FlashSuccess:    h.SessionManager.PopString(ctx, "flash_success"),
		FlashError:      h.SessionManager.PopString(ctx, "flash_error"),
		Errors:          url.Values{},
	}

	if view, ok := middleware.ViewFromContext(ctx); ok {
		data.Role = view.Descriptor()
		data.RealRole = view.Real.Descriptor()
		data.ViewingAs = view.Previewing()
		data.Override = view.Override
		if view.Real.IsAdmin() {
			data.AllRoles = roles.All()
		}
	} else if real, ok := middleware.RealIdentity(ctx); ok {
		data.Role = real.Descriptor()
		data.RealRole = data.Role
	}
	return data
}

// RenderPage рендерит templates/pages/<pageName> внутри base.html.
func (h *AppHandlers) RenderPage(w http.ResponseWriter, r *http.Request, pageName string, data *PageData) {
	tmpl, err := h.BaseTmpl.Clone()
	if err != nil {
		slog.Error("Не удалось клонировать базовый шаблон", "error", err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}
	tmpl, err = tmpl.ParseFS(templateFS, "templates/pages/"+pageName)
	if err != nil {
		slog.Error("Не удалось загрузить шаблон страницы", "page", pageName, "error", err)
		http.Error(w, "Внутренняя ошибка сервера (шаблон страницы)", http.StatusInternalServerError)
		return
	}
	h.execute(w, r, tmpl, data)
}

func (h *AppHandlers) execute(w http.ResponseWriter, r *http.Request, tmpl *template.Template, data *PageData) {
	if data == nil {
		data = h.NewPageData(r)
	}
	if data.PageTitle == "" {
		data.PageTitle = h.Config.SiteName
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		slog.Error("Ошибка выполнения шаблона", "path", r.URL.Path, "error", err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if data.StatusCode != 0 {
		w.WriteHeader(data.StatusCode)
	}
	buf.WriteTo(w)
}

// HomeHandler отправляет пользователя на дашборд эффективной роли.
func (h *AppHandlers) HomeHandler(w http.ResponseWriter, r *http.Request) {
	view, ok := middleware.ViewFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, roles.DashboardPath(view.Effective), http.StatusSeeOther)
}

func (h *AppHandlers) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	if err := db.Ping(); err != nil {
		slog.Error("Проверка состояния: БД недоступна", "error", err)
		http.Error(w, "db unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}
