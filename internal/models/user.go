// internal/models/user.go
package models

import "time"

type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Phone        *string    `json:"phone"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"-"`
	RoleID       *int64     `json:"-"`
	RoleName     *string    `json:"role_name,omitempty"`
	RoleLegacyID *int64     `json:"-"` // roles.legacy_id, для записей без имени роли
}

// FullName возвращает имя для отображения, email если имя пустое.
func (u *User) FullName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Email
	}
	return name
}

type LoginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

// CreateUserForm: создание пользователя администратором.
type CreateUserForm struct {
	Email     string `form:"email" validate:"required,email"`
	Password  string `form:"password" validate:"required,min=8,complex_password"`
	FirstName string `form:"first_name" validate:"required,alpha_space"`
	LastName  string `form:"last_name" validate:"omitempty,alpha_space"`
	Role      string `form:"role" validate:"required,role_token"`
}

type AssignRoleForm struct {
	UserID int64  `form:"user_id" validate:"required,gt=0"`
	Role   string `form:"role" validate:"required,role_token"`
}

// ViewAsForm: выбор роли для режима просмотра.
type ViewAsForm struct {
	Role     string `form:"role" validate:"required,role_token"`
	UserID   int64  `form:"user_id" validate:"gte=0"`
	RoleName string `form:"role_name" validate:"max=64"`
}
