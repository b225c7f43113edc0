// internal/handlers/admin/admin_reports.go
package adminhandlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"boq-portal.kz/internal/handlers"
)

// AdminStatsHandler отдает статистику дашборда администратора в JSON.
func AdminStatsHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := app.Store.GetDashboardStats()
		if err != nil {
			slog.Error("AdminStatsHandler: не удалось получить статистику", "error", err)
			http.Error(w, "Ошибка сервера", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			slog.Error("AdminStatsHandler: ошибка кодирования", "error", err)
		}
	}
}
