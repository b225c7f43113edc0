// internal/handlers/auth.go
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/alexedwards/scs/v2"

	"boq-portal.kz/internal/auth"
	"boq-portal.kz/internal/config"
	"boq-portal.kz/internal/db"
	"boq-portal.kz/internal/middleware"
	"boq-portal.kz/internal/models"
	"boq-portal.kz/internal/roles"
	"boq-portal.kz/internal/validation"
	"boq-portal.kz/internal/viewas"
)

// LoginStore: часть хранилища, нужная для входа.
type LoginStore interface {
	GetUserByEmail(email string) (*models.User, error)
	TouchLastLogin(userID int64) error
}

type AuthHandlers struct {
	SessionManager *scs.SessionManager
	Render         func(w http.ResponseWriter, r *http.Request, pageName string, data *PageData)
	NewPageData    func(r *http.Request) *PageData
	AppConfig      *config.Config
	Users          LoginStore
	Views          *viewas.Manager
}

func NewAuthHandlers(app *AppHandlers) *AuthHandlers {
	return &AuthHandlers{
		SessionManager: app.SessionManager,
		Render:         app.RenderPage,
		NewPageData:    app.NewPageData,
		AppConfig:      app.Config,
		Users:          app.Store,
		Views:          app.Views,
	}
}

func (h *AuthHandlers) LoginPageHandler(w http.ResponseWriter, r *http.Request) {
	if real, ok := middleware.RealIdentity(r.Context()); ok {
		http.Redirect(w, r, roles.DashboardPath(real.Role), http.StatusSeeOther)
		return
	}

	data := h.NewPageData(r)
	data.PageTitle = "Вход | " + h.AppConfig.SiteName
	data.Form = models.LoginForm{}
	if r.URL.Query().Get("err") == "session_invalid" && data.FlashError == "" {
		data.FlashError = "Сессия недействительна. Войдите снова."
	}
	h.Render(w, r, "login.html", data)
}

func (h *AuthHandlers) renderLoginError(w http.ResponseWriter, r *http.Request, form models.LoginForm, status int, errs url.Values) {
	form.Password = ""
	data := h.NewPageData(r)
	data.PageTitle = "Вход - Ошибка"
	data.Form = form
	data.Errors = errs
	data.StatusCode = status
	h.Render(w, r, "login.html", data)
}

func (h *AuthHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("Ошибка парсинга формы входа", "error", err)
		http.Error(w, "Ошибка сервера", http.StatusBadRequest)
		return
	}
	form := models.LoginForm{
		Email:    strings.TrimSpace(r.PostForm.Get("email")),
		Password: r.PostForm.Get("password"),
	}
	if validationErrors := validation.ValidateStruct(form); len(validationErrors) > 0 {
		h.renderLoginError(w, r, form, http.StatusBadRequest, validationErrors)
		return
	}

	user, err := h.Users.GetUserByEmail(strings.ToLower(form.Email))
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		slog.Error("Ошибка поиска пользователя по email при входе", "email", form.Email, "error", err)
		h.renderLoginError(w, r, form, http.StatusInternalServerError, url.Values{"general": {"Ошибка сервера при входе."}})
		return
	}
	if user == nil || !auth.CheckPasswordHash(form.Password, user.PasswordHash) {
		slog.Warn("Неудачная попытка входа", "email", form.Email, "ip", middleware.ClientIP(r))
		h.renderLoginError(w, r, form, http.StatusUnauthorized, url.Values{"general": {"Неверный email или пароль."}})
		return
	}
	if !user.IsActive {
		slog.Warn("Попытка входа в отключенную учетную запись", "userID", user.ID)
		h.renderLoginError(w, r, form, http.StatusForbidden, url.Values{"general": {"Учетная запись отключена. Обратитесь к администратору."}})
		return
	}

	if err := h.SessionManager.RenewToken(r.Context()); err != nil {
		slog.Error("Ошибка обновления токена сессии", "error", err)
		http.Error(w, "Ошибка сервера", http.StatusInternalServerError)
		return
	}
	h.Views.ClearViewContext(r.Context())
	h.SessionManager.Put(r.Context(), middleware.SessionUserIDKey, user.ID)

	if err := h.Users.TouchLastLogin(user.ID); err != nil {
		slog.Error("Не удалось обновить время последнего входа", "userID", user.ID, "error", err)
	}

	real := middleware.IdentityFromUser(user)
	slog.Info("Пользователь успешно вошел", "user_id", user.ID, "email", user.Email, "role", real.Role)
	http.Redirect(w, r, roles.DashboardPath(real.Role), http.StatusSeeOther)
}

func (h *AuthHandlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	userID := h.SessionManager.GetInt64(r.Context(), middleware.SessionUserIDKey)
	h.Views.ClearViewContext(r.Context())
	if err := h.SessionManager.Destroy(r.Context()); err != nil {
		slog.Error("Ошибка уничтожения сессии при выходе", "userID", userID, "error", err)
		http.Error(w, "Ошибка сервера", http.StatusInternalServerError)
		return
	}
	slog.Info("Пользователь вышел", "user_id", userID)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// BootstrapAdmin создает первого администратора или назначает роль
// администратора существующему пользователю с этим email.
func BootstrapAdmin(store Store, cfg config.FirstAdminConfig) error {
	if cfg.Email == "" {
		slog.Info("FIRST_ADMIN_EMAIL не установлен, первый администратор не назначается автоматически.")
		return nil
	}
	email := strings.ToLower(strings.TrimSpace(cfg.Email))

	user, err := store.GetUserByEmail(email)
	switch {
	case err == nil:
		if middleware.IdentityFromUser(user).Role == roles.Admin {
			slog.Info("Пользователь уже является администратором", "email", email)
			return nil
		}
		if err := store.SetUserRole(user.ID, roles.Admin.String()); err != nil {
			return err
		}
		slog.Info("Роль администратора успешно установлена", "email", email)
		return nil
	case !errors.Is(err, db.ErrNotFound):
		return err
	}

	if cfg.Password == "" {
		slog.Warn("Пользователь для назначения администратором не найден, пароль для создания не задан", "email", email)
		return nil
	}
	hash, err := auth.HashPassword(cfg.Password)
	if err != nil {
		return err
	}
	id, err := store.CreateUser(&models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Admin",
		IsActive:     true,
	}, roles.Admin.String())
	if err != nil {
		return err
	}
	slog.Info("Создан первый администратор", "userID", id, "email", email)
	return nil
}
