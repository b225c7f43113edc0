// internal/db/users.go
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"boq-portal.kz/internal/models"
)

var ErrDuplicateEmail = errors.New("пользователь с таким email уже существует")

// CreateUser создает пользователя с ролью roleName и возвращает его ID.
func CreateUser(user *models.User, roleName string) (int64, error) {
	if DB == nil {
		return 0, errNotInitialized
	}

	role, err := GetRoleByName(roleName)
	if err != nil {
		slog.Error("Не удалось получить роль для нового пользователя", "roleName", roleName, "error", err)
		return 0, fmt.Errorf("роль '%s' не найдена: %w", roleName, err)
	}

	query := `INSERT INTO users (email, phone, password_hash, first_name, last_name, role_id, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now()
	var phone sql.NullString
	if user.Phone != nil {
		phone = sql.NullString{String: *user.Phone, Valid: true}
	}

	res, err := DB.Exec(query,
		strings.ToLower(user.Email),
		phone,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		role.ID,
		true,
		now,
		now,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return 0, ErrDuplicateEmail
		}
		slog.Error("Ошибка при создании пользователя", "error", err, "email", user.Email)
		return 0, fmt.Errorf("не удалось создать пользователя: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("не удалось получить ID пользователя: %w", err)
	}

	slog.Info("Пользователь успешно создан", "user_id", id, "email", user.Email, "role", roleName)
	return id, nil
}

func GetUserByEmail(email string) (*models.User, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	row := DB.QueryRow(getFullUserQuery()+" WHERE LOWER(u.email) = LOWER(?)", strings.ToLower(email))
	return scanFullUser(row)
}

func GetUserByID(id int64) (*models.User, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	row := DB.QueryRow(getFullUserQuery()+" WHERE u.id = ?", id)
	return scanFullUser(row)
}

// SetUserRole назначает пользователю роль по ее имени.
func SetUserRole(userID int64, roleName string) error {
	if DB == nil {
		return errNotInitialized
	}
	role, err := GetRoleByName(roleName)
	if err != nil {
		return fmt.Errorf("ошибка при проверке существования роли '%s': %w", roleName, err)
	}

	res, err := DB.Exec(`UPDATE users SET role_id = ?, updated_at = ? WHERE id = ?`, role.ID, time.Now(), userID)
	if err != nil {
		slog.Error("Ошибка обновления роли пользователя", "userID", userID, "role", roleName, "error", err)
		return fmt.Errorf("не удалось обновить роль пользователя: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := GetUserByID(userID); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
	}
	slog.Info("Роль пользователя обновлена", "userID", userID, "role", roleName)
	return nil
}

// TouchLastLogin фиксирует время последнего входа.
func TouchLastLogin(userID int64) error {
	if DB == nil {
		return errNotInitialized
	}
	if _, err := DB.Exec(`UPDATE users SET last_login_at = ? WHERE id = ?`, time.Now(), userID); err != nil {
		return fmt.Errorf("не удалось обновить время входа: %w", err)
	}
	return nil
}

func GetAllUsers(limit, offset int) ([]*models.User, int, error) {
	if DB == nil {
		return nil, 0, errNotInitialized
	}

	var totalUsers int
	if err := DB.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&totalUsers); err != nil {
		slog.Error("Ошибка при подсчете общего количества пользователей", "error", err)
		return nil, 0, fmt.Errorf("ошибка подсчета пользователей: %w", err)
	}

	rows, err := DB.Query(getFullUserQuery()+" ORDER BY u.created_at DESC LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		slog.Error("Ошибка при получении списка всех пользователей", "error", err)
		return nil, 0, fmt.Errorf("ошибка получения списка пользователей: %w", err)
	}
	defer rows.Close()

	users, err := scanUsers(rows)
	if err != nil {
		return nil, 0, err
	}
	return users, totalUsers, nil
}

// GetActiveUsersByRole: все активные пользователи роли, для рассылок.
func GetActiveUsersByRole(roleName string) ([]*models.User, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	rows, err := DB.Query(getFullUserQuery()+" WHERE LOWER(r.name) = LOWER(?) AND u.is_active = 1 ORDER BY u.id", roleName)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователей роли '%s': %w", roleName, err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func scanUsers(rows *sql.Rows) ([]*models.User, error) {
	var users []*models.User
	for rows.Next() {
		user, errScan := scanFullUser(rows)
		if errScan != nil {
			slog.Error("Ошибка сканирования пользователя при получении списка", "error", errScan)
			continue
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		slog.Error("Ошибка итерации по списку пользователей", "error", err)
		return nil, fmt.Errorf("ошибка итерации по списку пользователей: %w", err)
	}
	return users, nil
}

func getFullUserQuery() string {
	return `SELECT u.id, u.email, u.phone, u.password_hash, u.first_name, u.last_name,
                   u.is_active, u.last_login_at, u.created_at, u.updated_at,
                   u.role_id, r.name AS role_name, r.legacy_id
            FROM users u
            LEFT JOIN roles r ON u.role_id = r.id`
}

// scanner удовлетворяется и *sql.Row, и *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFullUser(row scanner) (*models.User, error) {
	user := &models.User{}
	var phone, roleName sql.NullString
	var lastLoginAt sql.NullTime
	var roleID, legacyID sql.NullInt64

	err := row.Scan(
		&user.ID, &user.Email, &phone, &user.PasswordHash, &user.FirstName, &user.LastName,
		&user.IsActive, &lastLoginAt, &user.CreatedAt, &user.UpdatedAt,
		&roleID, &roleName, &legacyID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования данных пользователя: %w", err)
	}

	if phone.Valid {
		user.Phone = &phone.String
	}
	if lastLoginAt.Valid {
		user.LastLoginAt = &lastLoginAt.Time
	}
	if roleID.Valid {
		user.RoleID = &roleID.Int64
	}
	if roleName.Valid {
		user.RoleName = &roleName.String
	}
	if legacyID.Valid {
		user.RoleLegacyID = &legacyID.Int64
	}
	return user, nil
}
