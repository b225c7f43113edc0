package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"boq-portal.kz/internal/models"
)

// CreateNotification сохраняет уведомление. ID генерируется, если пуст.
func CreateNotification(n *models.Notification) error {
	if DB == nil {
		return errNotInitialized
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	var link sql.NullString
	if n.Link != "" {
		link = sql.NullString{String: n.Link, Valid: true}
	}

	_, err := DB.Exec(`INSERT INTO notifications (id, user_id, title, body, link, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Body, link, n.CreatedAt)
	if err != nil {
		slog.Error("Ошибка сохранения уведомления", "userID", n.UserID, "error", err)
		return fmt.Errorf("не удалось сохранить уведомление: %w", err)
	}
	return nil
}

// ListNotifications возвращает последние уведомления пользователя.
func ListNotifications(userID int64, limit int) ([]models.Notification, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	rows, err := DB.Query(`SELECT id, user_id, title, body, link, created_at, read_at
                           FROM notifications WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения уведомлений: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		var link sql.NullString
		var readAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &link, &n.CreatedAt, &readAt); err != nil {
			slog.Error("Ошибка сканирования уведомления", "error", err)
			continue
		}
		n.Link = link.String
		if readAt.Valid {
			n.ReadAt = &readAt.Time
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации по уведомлениям: %w", err)
	}
	return out, nil
}

// MarkNotificationRead отмечает уведомление прочитанным. Чужое уведомление
// неотличимо от несуществующего.
func MarkNotificationRead(userID int64, id string) error {
	if DB == nil {
		return errNotInitialized
	}
	res, err := DB.Exec(`UPDATE notifications SET read_at = COALESCE(read_at, ?) WHERE id = ? AND user_id = ?`,
		time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("не удалось отметить уведомление: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("не удалось отметить уведомление: %w", err)
	}
	if n == 0 {
		var exists int
		err := DB.QueryRow(`SELECT 1 FROM notifications WHERE id = ? AND user_id = ?`, id, userID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
	}
	return nil
}

// CountUnreadNotifications: количество непрочитанных уведомлений.
func CountUnreadNotifications(userID int64) (int, error) {
	if DB == nil {
		return 0, errNotInitialized
	}
	var count int
	err := DB.QueryRow(`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read_at IS NULL`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчета уведомлений: %w", err)
	}
	return count, nil
}
