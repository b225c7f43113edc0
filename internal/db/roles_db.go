// internal/db/roles_db.go
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"boq-portal.kz/internal/models"
	"boq-portal.kz/internal/roles"
)

// SeedRoles создает записи для всех ролей портала.
func SeedRoles() error {
	if DB == nil {
		return errNotInitialized
	}
	for _, d := range roles.All() {
		r := models.Role{Name: d.Role.String(), LegacyID: d.LegacyID, Description: d.DisplayName}
		if _, err := CreateRoleIfNotExists(&r); err != nil {
			return fmt.Errorf("не удалось создать роль '%s': %w", r.Name, err)
		}
	}
	return nil
}

// CreateRoleIfNotExists создает роль, если она еще не существует.
func CreateRoleIfNotExists(role *models.Role) (int64, error) {
	if DB == nil {
		return 0, errNotInitialized
	}
	existingRole, err := GetRoleByName(role.Name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return 0, fmt.Errorf("ошибка проверки существующей роли '%s': %w", role.Name, err)
	}
	if existingRole != nil {
		slog.Debug("Роль уже существует, пропуск создания", "role_name", role.Name, "role_id", existingRole.ID)
		return existingRole.ID, nil
	}

	var legacyID sql.NullInt64
	if role.LegacyID != 0 {
		legacyID = sql.NullInt64{Int64: int64(role.LegacyID), Valid: true}
	}

	query := `INSERT INTO roles (name, legacy_id, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	now := time.Now()
	res, err := DB.Exec(query, role.Name, legacyID, role.Description, now, now)
	if err != nil {
		slog.Error("Ошибка при создании роли", "role_name", role.Name, "error", err)
		return 0, fmt.Errorf("не удалось создать роль '%s': %w", role.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("не удалось получить ID роли '%s': %w", role.Name, err)
	}
	slog.Info("Роль успешно создана", "role_id", id, "role_name", role.Name)
	return id, nil
}

const roleColumns = `id, name, legacy_id, description, created_at, updated_at`

func scanRole(row scanner) (*models.Role, error) {
	role := &models.Role{}
	var legacyID sql.NullInt64
	var description sql.NullString
	err := row.Scan(&role.ID, &role.Name, &legacyID, &description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования роли: %w", err)
	}
	if legacyID.Valid {
		role.LegacyID = int(legacyID.Int64)
	}
	role.Description = description.String
	return role, nil
}

// GetRoleByName возвращает роль по ее имени (канонический токен).
func GetRoleByName(name string) (*models.Role, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	row := DB.QueryRow(`SELECT `+roleColumns+` FROM roles WHERE LOWER(name) = LOWER(?)`, strings.ToLower(name))
	role, err := scanRole(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		slog.Error("Ошибка при поиске роли по имени", "name", name, "error", err)
	}
	return role, err
}

// GetRoleByID возвращает роль по первичному ключу.
func GetRoleByID(id int64) (*models.Role, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	row := DB.QueryRow(`SELECT `+roleColumns+` FROM roles WHERE id = ?`, id)
	role, err := scanRole(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		slog.Error("Ошибка при поиске роли по ID", "id", id, "error", err)
	}
	return role, err
}

// GetAllRoles возвращает список всех ролей.
func GetAllRoles() ([]models.Role, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	rows, err := DB.Query(`SELECT ` + roleColumns + ` FROM roles ORDER BY legacy_id ASC, name ASC`)
	if err != nil {
		slog.Error("Ошибка при получении списка всех ролей", "error", err)
		return nil, fmt.Errorf("ошибка получения списка ролей: %w", err)
	}
	defer rows.Close()

	var out []models.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			slog.Error("Ошибка сканирования роли при получении списка", "error", err)
			continue
		}
		out = append(out, *role)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации по списку ролей: %w", err)
	}
	return out, nil
}
