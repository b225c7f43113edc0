// internal/models/role.go
package models

import "time"

// Role: запись таблицы roles. Name хранит канонический токен роли.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	LegacyID    int       `json:"legacy_id"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
