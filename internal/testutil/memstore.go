// Пакет testutil: хранилище в памяти для тестов обработчиков и сервера.
package testutil

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"boq-portal.kz/internal/auth"
	"boq-portal.kz/internal/db"
	"boq-portal.kz/internal/models"
	"boq-portal.kz/internal/roles"
)

// MemStore повторяет поведение db.Store без MySQL.
type MemStore struct {
	mu            sync.Mutex
	nextID        int64
	users         map[int64]*models.User
	notifications []models.Notification
}

func NewMemStore() *MemStore {
	return &MemStore{users: make(map[int64]*models.User)}
}

// AddUser создает активного пользователя с паролем и ролью (имя роли как в БД).
func (s *MemStore) AddUser(email, password, roleName string) *models.User {
	hash, err := auth.HashPassword(password)
	if err != nil {
		panic(err)
	}
	u := &models.User{Email: strings.ToLower(email), PasswordHash: hash, FirstName: "Test", IsActive: true}
	id, err := s.CreateUser(u, roleName)
	if err != nil {
		panic(err)
	}
	got, _ := s.GetUserByID(id)
	return got
}

func (s *MemStore) SetActive(id int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.IsActive = active
	}
}

func withRole(u *models.User, roleName string) {
	if roleName == "" {
		u.RoleName, u.RoleLegacyID = nil, nil
		return
	}
	name := roleName
	u.RoleName = &name
	if r, err := roles.Parse(roleName); err == nil {
		legacy := int64(roles.LegacyID(r))
		u.RoleLegacyID = &legacy
	}
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func (s *MemStore) GetUserByID(id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *MemStore) GetUserByEmail(email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *MemStore) CreateUser(u *models.User, roleName string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return 0, db.ErrDuplicateEmail
		}
	}
	if _, err := roles.Parse(roleName); err != nil {
		return 0, db.ErrNotFound
	}
	s.nextID++
	c := copyUser(u)
	c.ID = s.nextID
	c.IsActive = true
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	withRole(c, roleName)
	s.users[c.ID] = c
	return c.ID, nil
}

func (s *MemStore) SetUserRole(userID int64, roleName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := roles.Parse(roleName); err != nil {
		return db.ErrNotFound
	}
	u, ok := s.users[userID]
	if !ok {
		return db.ErrNotFound
	}
	withRole(u, roleName)
	return nil
}

func (s *MemStore) TouchLastLogin(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		now := time.Now()
		u.LastLoginAt = &now
	}
	return nil
}

func (s *MemStore) GetAllUsers(limit, offset int) ([]*models.User, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, copyUser(u))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset >= total {
		return []*models.User{}, total, nil
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (s *MemStore) GetActiveUsersByRole(roleName string) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.User
	for _, u := range s.users {
		if u.IsActive && u.RoleName != nil && *u.RoleName == roleName {
			out = append(out, copyUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) GetDashboardStats() (*db.ReportStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &db.ReportStats{UsersByRole: make(map[string]int)}
	for _, u := range s.users {
		stats.TotalUsers++
		if u.IsActive {
			stats.ActiveUsers++
		}
		if u.RoleName == nil {
			stats.UsersWithoutRole++
			continue
		}
		stats.UsersByRole[*u.RoleName]++
	}
	for _, n := range s.notifications {
		if n.ReadAt == nil {
			stats.UnreadNotifications++
		}
	}
	return stats, nil
}

func (s *MemStore) CreateNotification(n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = uuid.NewString()
	n.CreatedAt = time.Now()
	s.notifications = append(s.notifications, *n)
	return nil
}

func (s *MemStore) ListNotifications(userID int64, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for i := len(s.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		if s.notifications[i].UserID == userID {
			out = append(out, s.notifications[i])
		}
	}
	return out, nil
}

func (s *MemStore) MarkNotificationRead(userID int64, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		n := &s.notifications[i]
		if n.ID == id && n.UserID == userID {
			if n.ReadAt == nil {
				now := time.Now()
				n.ReadAt = &now
			}
			return nil
		}
	}
	return db.ErrNotFound
}

func (s *MemStore) CountUnreadNotifications(userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.notifications {
		if n.UserID == userID && n.ReadAt == nil {
			count++
		}
	}
	return count, nil
}
