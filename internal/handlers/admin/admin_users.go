// internal/handlers/admin/admin_users.go
package adminhandlers

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"boq-portal.kz/internal/auth"
	"boq-portal.kz/internal/db"
	"boq-portal.kz/internal/handlers"
	"boq-portal.kz/internal/middleware"
	"boq-portal.kz/internal/models"
	"boq-portal.kz/internal/roles"
	"boq-portal.kz/internal/validation"
)

const DefaultUsersPerPage = 20

// AdminUsersListPageHandler отображает список пользователей с пагинацией.
func AdminUsersListPageHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := app.NewPageData(r)
		data.PageTitle = "Управление пользователями"

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}
		limit := DefaultUsersPerPage
		offset := (page - 1) * limit

		users, totalUsers, err := app.Store.GetAllUsers(limit, offset)
		if err != nil {
			slog.Error("AdminUsersListPageHandler: не удалось получить пользователей", "error", err)
			http.Error(w, "Ошибка сервера при загрузке пользователей", http.StatusInternalServerError)
			return
		}

		data.Users = users
		data.TotalUsers = totalUsers
		data.CurrentPage = page
		data.Limit = limit
		data.TotalPages = int(math.Ceil(float64(totalUsers) / float64(limit)))
		data.AllRoles = roles.All()

		app.RenderPage(w, r, "manage_users.html", data)
	}
}

// AdminCreateUserHandler создает пользователя с ролью.
func AdminCreateUserHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			app.SessionManager.Put(r.Context(), "flash_error", "Ошибка сервера: не удалось обработать форму.")
			http.Redirect(w, r, "/manage/users", http.StatusSeeOther)
			return
		}

		form := models.CreateUserForm{
			Email:     strings.ToLower(strings.TrimSpace(r.PostForm.Get("email"))),
			Password:  r.PostForm.Get("password"),
			FirstName: strings.TrimSpace(r.PostForm.Get("first_name")),
			LastName:  strings.TrimSpace(r.PostForm.Get("last_name")),
			Role:      strings.TrimSpace(r.PostForm.Get("role")),
		}

		if validationErrors := validation.ValidateStruct(form); len(validationErrors) > 0 {
			slog.Warn("AdminCreateUserHandler: ошибки валидации", "errors", validationErrors)
			renderUsersWithErrors(app, w, r, validationErrors)
			return
		}

		hash, err := auth.HashPassword(form.Password)
		if err != nil {
			slog.Error("AdminCreateUserHandler: ошибка хеширования пароля", "error", err)
			http.Error(w, "Ошибка сервера", http.StatusInternalServerError)
			return
		}

		role, _ := roles.Parse(form.Role)
		user := &models.User{
			Email:        form.Email,
			PasswordHash: hash,
			FirstName:    auth.SanitizeName(form.FirstName),
			LastName:     auth.SanitizeName(form.LastName),
			IsActive:     true,
		}
		id, err := app.Store.CreateUser(user, role.String())
		if errors.Is(err, db.ErrDuplicateEmail) {
			renderUsersWithErrors(app, w, r, map[string][]string{"email": {"Пользователь с таким email уже существует."}})
			return
		}
		if err != nil {
			slog.Error("AdminCreateUserHandler: не удалось создать пользователя", "email", form.Email, "error", err)
			app.SessionManager.Put(r.Context(), "flash_error", "Не удалось создать пользователя.")
			http.Redirect(w, r, "/manage/users", http.StatusSeeOther)
			return
		}

		real, _ := middleware.RealIdentity(r.Context())
		slog.Info("Пользователь создан администратором", "adminUserID", real.UserID, "newUserID", id, "role", role)
		app.SessionManager.Put(r.Context(), "flash_success", "Пользователь "+form.Email+" создан.")
		http.Redirect(w, r, "/manage/users", http.StatusSeeOther)
	}
}

// AdminAssignRoleHandler назначает пользователю роль.
func AdminAssignRoleHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			app.SessionManager.Put(r.Context(), "flash_error", "Ошибка сервера: не удалось обработать форму.")
			http.Redirect(w, r, "/manage/users", http.StatusSeeOther)
			return
		}

		userID, _ := strconv.ParseInt(r.PostForm.Get("user_id"), 10, 64)
		form := models.AssignRoleForm{UserID: userID, Role: strings.TrimSpace(r.PostForm.Get("role"))}
		if validationErrors := validation.ValidateStruct(form); len(validationErrors) > 0 {
			slog.Warn("AdminAssignRoleHandler: ошибки валидации", "errors", validationErrors)
			app.SessionManager.Put(r.Context(), "flash_error", "Неверный пользователь или роль.")
			http.Redirect(w, r, "/manage/users", http.StatusSeeOther)
			return
		}

		role, _ := roles.Parse(form.Role)
		err := app.Store.SetUserRole(form.UserID, role.String())
		switch {
		case errors.Is(err, db.ErrNotFound):
			app.SessionManager.Put(r.Context(), "flash_error", "Пользователь не найден.")
		case err != nil:
			slog.Error("AdminAssignRoleHandler: не удалось назначить роль", "targetUserID", form.UserID, "error", err)
			app.SessionManager.Put(r.Context(), "flash_error", "Не удалось назначить роль.")
		default:
			real, _ := middleware.RealIdentity(r.Context())
			slog.Info("Роль пользователя изменена администратором", "adminUserID", real.UserID, "targetUserID", form.UserID, "role", role)
			app.SessionManager.Put(r.Context(), "flash_success", "Роль назначена: "+roles.DisplayName(role)+".")
		}
		http.Redirect(w, r, "/manage/users", http.StatusSeeOther)
	}
}

func renderUsersWithErrors(app *handlers.AppHandlers, w http.ResponseWriter, r *http.Request, errs map[string][]string) {
	data := app.NewPageData(r)
	data.PageTitle = "Управление пользователями - Ошибка"
	data.Errors = errs
	data.FormValues = r.PostForm
	data.FormValues.Del("password")
	data.AllRoles = roles.All()
	data.StatusCode = http.StatusBadRequest
	users, total, err := app.Store.GetAllUsers(DefaultUsersPerPage, 0)
	if err != nil {
		slog.Error("renderUsersWithErrors: не удалось получить пользователей", "error", err)
	}
	data.Users = users
	data.TotalUsers = total
	data.CurrentPage = 1
	data.TotalPages = int(math.Ceil(float64(total) / float64(DefaultUsersPerPage)))
	app.RenderPage(w, r, "manage_users.html", data)
}
