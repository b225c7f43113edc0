package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"boq-portal.kz/internal/db"
	"boq-portal.kz/internal/middleware"
	"boq-portal.kz/internal/models"
	"boq-portal.kz/internal/roles"
	"boq-portal.kz/internal/validation"
	"boq-portal.kz/internal/viewas"
)

// ViewAsHandler включает для администратора просмотр портала от имени роли.
func (h *AppHandlers) ViewAsHandler(w http.ResponseWriter, r *http.Request) {
	real, ok := middleware.RealIdentity(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Неверная форма", http.StatusBadRequest)
		return
	}

	back := roles.DashboardPath(h.Views.Effective(r.Context(), real))
	fail := func(msg string) {
		h.SessionManager.Put(r.Context(), "flash_error", msg)
		http.Redirect(w, r, back, http.StatusSeeOther)
	}

	form := models.ViewAsForm{
		Role:     strings.TrimSpace(r.PostForm.Get("role")),
		RoleName: strings.TrimSpace(r.PostForm.Get("role_name")),
	}
	if raw := strings.TrimSpace(r.PostForm.Get("user_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			slog.Warn("ViewAsHandler: некорректный user_id", "adminID", real.UserID, "user_id", raw)
			fail("Некорректный идентификатор пользователя.")
			return
		}
		form.UserID = id
	}
	if validationErrors := validation.ValidateStruct(form); len(validationErrors) > 0 {
		slog.Warn("ViewAsHandler: ошибки валидации", "adminID", real.UserID, "errors", validationErrors)
		if validationErrors.Has("user_id") {
			fail("Некорректный идентификатор пользователя.")
			return
		}
		fail("Неизвестная роль для просмотра.")
		return
	}

	role := roles.ResolveToken(form.Role)
	if role == roles.Admin {
		h.Views.ResetToAdminView(r.Context())
		slog.Info("Режим просмотра сброшен выбором роли администратора", "adminID", real.UserID)
		http.Redirect(w, r, roles.DashboardPath(real.Role), http.StatusSeeOther)
		return
	}

	var target *roles.Identity
	if form.UserID > 0 {
		user, err := h.Store.GetUserByID(form.UserID)
		switch {
		case errors.Is(err, db.ErrNotFound):
			fail("Пользователь не найден.")
			return
		case err != nil:
			slog.Error("ViewAsHandler: не удалось загрузить пользователя", "userID", form.UserID, "error", err)
			http.Error(w, "Ошибка сервера", http.StatusInternalServerError)
			return
		}
		id := middleware.IdentityFromUser(user)
		if id.Role != role {
			fail("Пользователь " + id.DisplayName + " не имеет роли " + roles.DisplayName(role) + ".")
			return
		}
		target = &id
	}

	if h.Views.IsViewingAs(r.Context(), real, role) {
		if ov, _ := h.Views.Current(r.Context(), real); ov.UserID == form.UserID {
			http.Redirect(w, r, back, http.StatusSeeOther)
			return
		}
	}

	err := h.Views.SetRoleView(r.Context(), real, role, 0, form.RoleName, target)
	switch {
	case errors.Is(err, viewas.ErrNotAdmin):
		http.Error(w, "Доступ запрещен", http.StatusForbidden)
		return
	case err != nil:
		slog.Error("ViewAsHandler: не удалось сохранить режим просмотра", "adminID", real.UserID, "error", err)
		http.Error(w, "Ошибка сервера", http.StatusInternalServerError)
		return
	}

	msg := "Вы просматриваете портал как " + roles.DisplayName(role)
	if target != nil {
		msg += " (" + target.DisplayName + ")"
	}
	h.SessionManager.Put(r.Context(), "flash_success", msg+".")
	http.Redirect(w, r, roles.DashboardPath(h.Views.Effective(r.Context(), real)), http.StatusSeeOther)
}

// ResetViewHandler возвращает администратора к собственному виду.
func (h *AppHandlers) ResetViewHandler(w http.ResponseWriter, r *http.Request) {
	real, ok := middleware.RealIdentity(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	h.Views.ResetToAdminView(r.Context())
	slog.Info("Режим просмотра сброшен", "adminID", real.UserID)
	http.Redirect(w, r, roles.DashboardPath(real.Role), http.StatusSeeOther)
}
