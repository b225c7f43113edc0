package adminhandlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"boq-portal.kz/internal/handlers"
	"boq-portal.kz/internal/models"
	"boq-portal.kz/internal/notify"
	"boq-portal.kz/internal/roles"
	"boq-portal.kz/internal/validation"
)

// AdminBroadcastHandler рассылает уведомление всем пользователям роли.
func AdminBroadcastHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			app.SessionManager.Put(r.Context(), "flash_error", "Ошибка сервера: не удалось обработать форму.")
			http.Redirect(w, r, "/manage/users", http.StatusSeeOther)
			return
		}
		form := models.BroadcastForm{
			Role:  strings.TrimSpace(r.PostForm.Get("role")),
			Title: r.PostForm.Get("title"),
			Body:  r.PostForm.Get("body"),
			Link:  strings.TrimSpace(r.PostForm.Get("link")),
			Email: r.PostForm.Get("email") == "on",
			SMS:   r.PostForm.Get("sms") == "on",
		}
		if validationErrors := validation.ValidateStruct(form); len(validationErrors) > 0 {
			slog.Warn("AdminBroadcastHandler: ошибки валидации", "errors", validationErrors)
			app.SessionManager.Put(r.Context(), "flash_error", "Проверьте роль, заголовок и ссылку рассылки.")
			http.Redirect(w, r, "/manage/users", http.StatusSeeOther)
			return
		}

		role, _ := roles.Parse(form.Role)
		res, err := app.Notifier.Broadcast(r.Context(), role, notify.Message{
			Title: form.Title,
			Body:  form.Body,
			Link:  form.Link,
			Email: form.Email,
			SMS:   form.SMS,
		})
		switch {
		case errors.Is(err, notify.ErrEmptyTitle):
			app.SessionManager.Put(r.Context(), "flash_error", "Заголовок уведомления пуст после очистки.")
		case err != nil:
			slog.Error("AdminBroadcastHandler: ошибка рассылки", "role", role, "error", err)
			app.SessionManager.Put(r.Context(), "flash_error", "Не удалось выполнить рассылку.")
		default:
			app.SessionManager.Put(r.Context(), "flash_success", fmt.Sprintf(
				"Рассылка для роли %s: отправлено %d из %d, отброшено лимитом %d, ошибок %d.",
				roles.DisplayName(role), res.Sent, res.Recipients, res.Limited, res.Failed))
		}
		http.Redirect(w, r, "/manage/users", http.StatusSeeOther)
	}
}
