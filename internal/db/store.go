package db

import "boq-portal.kz/internal/models"

// Store: адаптер пакетных функций к интерфейсам хранилищ, которые
// объявляют потребители (handlers, notify).
type Store struct{}

func (Store) GetUserByID(id int64) (*models.User, error) {
	return GetUserByID(id)
}

func (Store) GetUserByEmail(email string) (*models.User, error) {
	return GetUserByEmail(email)
}

func (Store) CreateUser(u *models.User, role string) (int64, error) {
	return CreateUser(u, role)
}

func (Store) SetUserRole(userID int64, role string) error {
	return SetUserRole(userID, role)
}

func (Store) TouchLastLogin(userID int64) error {
	return TouchLastLogin(userID)
}

func (Store) GetAllUsers(limit, offset int) ([]*models.User, int, error) {
	return GetAllUsers(limit, offset)
}

func (Store) GetActiveUsersByRole(role string) ([]*models.User, error) {
	return GetActiveUsersByRole(role)
}

func (Store) GetDashboardStats() (*ReportStats, error) {
	return GetDashboardStats()
}

func (Store) CreateNotification(n *models.Notification) error {
	return CreateNotification(n)
}

func (Store) ListNotifications(userID int64, limit int) ([]models.Notification, error) {
	return ListNotifications(userID, limit)
}

func (Store) MarkNotificationRead(userID int64, id string) error {
	return MarkNotificationRead(userID, id)
}

func (Store) CountUnreadNotifications(userID int64) (int, error) {
	return CountUnreadNotifications(userID)
}
