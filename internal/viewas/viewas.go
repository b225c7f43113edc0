// Пакет viewas: режим "просмотр как роль" для администратора.
// Оверлей меняет только выбор страниц и slug в URL. Проверки прав и
// запросы к данным всегда идут от реального пользователя.
package viewas

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"boq-portal.kz/internal/roles"
)

const sessionKey = "view_override"

var (
	ErrNotAdmin           = errors.New("просмотр от имени роли доступен только администратору")
	ErrTargetRoleMismatch = errors.New("выбранный пользователь не имеет этой роли")
)

var changesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "portal_view_as_changes_total",
		Help: "Количество включений и сбросов режима просмотра от имени роли",
	},
	[]string{"action"},
)

// Override: сохраненное в сессии состояние просмотра.
type Override struct {
	Role     roles.Role `json:"role"`
	RoleID   int        `json:"role_id,omitempty"`
	RoleName string     `json:"role_name,omitempty"`
	UserID   int64      `json:"user_id,omitempty"`
	UserName string     `json:"user_name,omitempty"`
	OwnerID  int64      `json:"owner_id"`
	SetAt    time.Time  `json:"set_at"`
}

type Manager struct {
	sessions *scs.SessionManager
}

func NewManager(sm *scs.SessionManager) *Manager {
	return &Manager{sessions: sm}
}

// EffectiveFor возвращает роль для выбора страниц при этом оверлее.
// Оверлей с ролью администратора ничего не меняет.
func (o Override) EffectiveFor(real roles.Identity) roles.Role {
	if o.Role == "" || o.Role == roles.Admin {
		return real.Role
	}
	return o.Role
}

// SetRoleView включает просмотр от имени роли. target задает конкретного
// пользователя этой роли, nil означает роль в целом. Для не-администратора
// состояние не меняется и возвращается ErrNotAdmin. Просмотр от имени
// администратора равносилен сбросу.
func (m *Manager) SetRoleView(ctx context.Context, real roles.Identity, role roles.Role, roleID int, roleName string, target *roles.Identity) error {
	if !real.IsAdmin() {
		slog.Warn("Попытка включить просмотр от имени роли без прав администратора", "userID", real.UserID, "role", real.Role, "target", role)
		return ErrNotAdmin
	}
	if role == "" {
		return roles.ErrUnknownRole
	}
	if target != nil && target.Role != role {
		return ErrTargetRoleMismatch
	}
	if role == roles.Admin {
		m.ResetToAdminView(ctx)
		return nil
	}

	ov := Override{
		Role:     role,
		RoleID:   roleID,
		RoleName: roleName,
		OwnerID:  real.UserID,
		SetAt:    time.Now().UTC(),
	}
	if ov.RoleName == "" {
		ov.RoleName = roles.DisplayName(role)
	}
	if ov.RoleID == 0 {
		ov.RoleID = roles.LegacyID(role)
	}
	if target != nil {
		ov.UserID = target.UserID
		ov.UserName = target.DisplayName
	}

	raw, err := json.Marshal(ov)
	if err != nil {
		return err
	}
	m.sessions.Put(ctx, sessionKey, string(raw))
	changesTotal.WithLabelValues("set").Inc()
	slog.Info("Включен просмотр от имени роли", "adminID", real.UserID, "role", role, "targetUserID", ov.UserID)
	return nil
}

// ResetToAdminView сбрасывает оверлей без проверок.
func (m *Manager) ResetToAdminView(ctx context.Context) {
	if m.sessions.Exists(ctx, sessionKey) {
		changesTotal.WithLabelValues("reset").Inc()
	}
	m.sessions.Remove(ctx, sessionKey)
}

// ClearViewContext вызывается при входе и выходе.
func (m *Manager) ClearViewContext(ctx context.Context) {
	m.sessions.Remove(ctx, sessionKey)
}

// Current возвращает активный оверлей для данного пользователя.
// Оверлей, созданный другим пользователем, игнорируется.
func (m *Manager) Current(ctx context.Context, real roles.Identity) (Override, bool) {
	if !real.IsAdmin() {
		return Override{}, false
	}
	raw := m.sessions.GetString(ctx, sessionKey)
	if raw == "" {
		return Override{}, false
	}

	var ov Override
	if err := json.Unmarshal([]byte(raw), &ov); err != nil {
		slog.Warn("Поврежденный оверлей просмотра в сессии, сбрасываем", "error", err)
		m.sessions.Remove(ctx, sessionKey)
		return Override{}, false
	}
	if ov.OwnerID != real.UserID || ov.Role == "" {
		return Override{}, false
	}
	return ov, true
}

// IsViewingAs сообщает, просматривает ли администратор портал от имени role.
func (m *Manager) IsViewingAs(ctx context.Context, real roles.Identity, role roles.Role) bool {
	ov, ok := m.Current(ctx, real)
	return ok && ov.Role == role && ov.EffectiveFor(real) != real.Role
}

// Effective возвращает роль для выбора страниц и slug.
func (m *Manager) Effective(ctx context.Context, real roles.Identity) roles.Role {
	ov, ok := m.Current(ctx, real)
	if !ok {
		return real.Role
	}
	return ov.EffectiveFor(real)
}
