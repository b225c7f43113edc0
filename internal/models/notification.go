package models

import "time"

type Notification struct {
	ID        string     `json:"id"`
	UserID    int64      `json:"-"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Link      string     `json:"link,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}

// BroadcastForm: рассылка уведомления всем пользователям роли.
type BroadcastForm struct {
	Role  string `form:"role" validate:"required,role_token"`
	Title string `form:"title" validate:"required,max=200"`
	Body  string `form:"body" validate:"required,max=2000"`
	Link  string `form:"link" validate:"omitempty,startswith=/"`
	Email bool   `form:"email"`
	SMS   bool   `form:"sms"`
}
