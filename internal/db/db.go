// internal/db/db.go
package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"boq-portal.kz/internal/config"
)

var DB *sql.DB

var ErrNotFound = errors.New("запись не найдена")

var errNotInitialized = errors.New("база данных не инициализирована")

//go:embed migrations/*.sql
var migrationsFS embed.FS

func RunMigrations(dbConn *sql.DB, dbName string) error {
	driverInstance, err := mysql.WithInstance(dbConn, &mysql.Config{
		DatabaseName: dbName,
	})
	if err != nil {
		return fmt.Errorf("не удалось создать драйвер миграций mysql: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("не удалось открыть встроенные миграции: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "mysql", driverInstance)
	if err != nil {
		return fmt.Errorf("ошибка создания экземпляра migrate: %w", err)
	}

	slog.Info("Применение миграций...")
	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		version, dirty, verr := m.Version()
		if verr != nil {
			slog.Error("Ошибка получения статуса миграции после неудачного Up", "migration_error", err, "status_error", verr)
		} else {
			slog.Error("Ошибка применения миграций", "current_version", version, "dirty_state", dirty, "error_up", err)
		}
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		slog.Info("Миграции: нет изменений.")
	} else {
		slog.Info("Миграции успешно применены.")
	}
	return nil
}

// BuildDSN собирает DSN из конфигурации. Явный DSN имеет приоритет.
func BuildDSN(dbCfg config.DatabaseConfig) (string, error) {
	var dsn string
	switch {
	case dbCfg.Path != "":
		dsn = dbCfg.Path
	case dbCfg.Host != "" && dbCfg.User != "" && dbCfg.DBName != "":
		port := dbCfg.Port
		if port == 0 {
			port = 3306
		}
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
			dbCfg.User, dbCfg.Password, dbCfg.Host, port, dbCfg.DBName)
	default:
		return "", fmt.Errorf("недостаточно параметров для подключения к БД: DSN или Host+User+DBName должны быть заданы")
	}

	// миграции содержат несколько выражений в одном файле
	for _, opt := range []string{"multiStatements=true", "parseTime=true"} {
		if strings.Contains(dsn, opt) {
			continue
		}
		if strings.Contains(dsn, "?") {
			dsn += "&" + opt
		} else {
			dsn += "?" + opt
		}
	}
	return dsn, nil
}

func InitDB(appConfig *config.Config) error {
	dbCfg := appConfig.Database

	dsn, err := BuildDSN(dbCfg)
	if err != nil {
		return err
	}
	safeDSN := dsn
	if i := strings.LastIndex(dsn, "@"); i >= 0 {
		safeDSN = "****" + dsn[i:]
	}
	slog.Info("Подключение к MySQL", "dsn", safeDSN)

	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("ошибка открытия соединения с MySQL: %w", err)
	}

	DB.SetConnMaxLifetime(time.Minute * 3)
	DB.SetMaxOpenConns(10)
	DB.SetMaxIdleConns(10)

	if err = DB.Ping(); err != nil {
		_ = DB.Close()
		return fmt.Errorf("ошибка подключения к MySQL (ping failed): %w", err)
	}
	slog.Info("Успешное подключение к MySQL.")

	dbName := dbCfg.DBName
	if dbName == "" {
		if err := DB.QueryRow("SELECT DATABASE()").Scan(&dbName); err != nil {
			slog.Warn("Не удалось определить имя базы данных", "error", err)
		}
	}
	if err = RunMigrations(DB, dbName); err != nil {
		_ = DB.Close()
		return fmt.Errorf("ошибка выполнения миграций: %w", err)
	}

	if err := SeedRoles(); err != nil {
		slog.Warn("Не удалось проверить роли по умолчанию", "error", err)
	}

	slog.Info("База данных успешно инициализирована (включая миграции и начальные данные).")
	return nil
}

// Ping используется в /healthz.
func Ping() error {
	if DB == nil {
		return errNotInitialized
	}
	return DB.Ping()
}
