// internal/db/reports_db.go
package db

import (
	"fmt"
	"log/slog"
	"time"
)

// ReportStats содержит агрегированные данные для панели администратора.
type ReportStats struct {
	TotalUsers          int
	ActiveUsers         int
	NewUsersToday       int
	NewUsersLast7Days   int
	UsersByRole         map[string]int
	UsersWithoutRole    int
	NotificationsToday  int
	UnreadNotifications int
}

// GetDashboardStats извлекает основную статистику для панели администратора.
// Ошибки отдельных запросов логируются, собранная часть возвращается.
func GetDashboardStats() (*ReportStats, error) {
	if DB == nil {
		return nil, fmt.Errorf("база данных не инициализирована")
	}

	stats := &ReportStats{UsersByRole: make(map[string]int)}

	if err := DB.QueryRow("SELECT COUNT(*) FROM users").Scan(&stats.TotalUsers); err != nil {
		slog.Error("Ошибка получения общего количества пользователей для статистики", "error", err)
	}
	if err := DB.QueryRow("SELECT COUNT(*) FROM users WHERE is_active = 1").Scan(&stats.ActiveUsers); err != nil {
		slog.Error("Ошибка получения количества активных пользователей", "error", err)
	}

	todayStart := time.Now().Truncate(24 * time.Hour)
	if err := DB.QueryRow("SELECT COUNT(*) FROM users WHERE created_at >= ?", todayStart).Scan(&stats.NewUsersToday); err != nil {
		slog.Error("Ошибка получения новых пользователей за сегодня", "error", err)
	}

	sevenDaysAgo := time.Now().AddDate(0, 0, -7).Truncate(24 * time.Hour)
	if err := DB.QueryRow("SELECT COUNT(*) FROM users WHERE created_at >= ?", sevenDaysAgo).Scan(&stats.NewUsersLast7Days); err != nil {
		slog.Error("Ошибка получения новых пользователей за последние 7 дней", "error", err)
	}

	rows, err := DB.Query(`SELECT COALESCE(r.name, ''), COUNT(*) FROM users u LEFT JOIN roles r ON u.role_id = r.id GROUP BY r.name`)
	if err != nil {
		slog.Error("Ошибка получения распределения пользователей по ролям", "error", err)
	} else {
		defer rows.Close()
		for rows.Next() {
			var name string
			var count int
			if err := rows.Scan(&name, &count); err != nil {
				slog.Error("Ошибка сканирования строки статистики ролей", "error", err)
				continue
			}
			if name == "" {
				stats.UsersWithoutRole = count
				continue
			}
			stats.UsersByRole[name] = count
		}
	}

	if err := DB.QueryRow("SELECT COUNT(*) FROM notifications WHERE created_at >= ?", todayStart).Scan(&stats.NotificationsToday); err != nil {
		slog.Error("Ошибка получения количества уведомлений за сегодня", "error", err)
	}
	if err := DB.QueryRow("SELECT COUNT(*) FROM notifications WHERE read_at IS NULL").Scan(&stats.UnreadNotifications); err != nil {
		slog.Error("Ошибка получения количества непрочитанных уведомлений", "error", err)
	}

	return stats, nil
}
