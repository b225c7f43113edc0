// internal/db/test_helpers.go
package db

import (
	"database/sql"
	"fmt"
	"os"
	"testing"
)

// OpenTestDB подключается к БД из TEST_DATABASE_DSN и применяет миграции.
// Без переменной тест пропускается.
func OpenTestDB(t *testing.T) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN не задан, пропуск интеграционного теста")
	}
	if DB != nil {
		return
	}

	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if err := conn.Ping(); err != nil {
		t.Skipf("тестовая БД недоступна: %v", err)
	}
	var dbName string
	if err := conn.QueryRow("SELECT DATABASE()").Scan(&dbName); err != nil {
		t.Fatalf("SELECT DATABASE(): %v", err)
	}
	if err := RunMigrations(conn, dbName); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	DB = conn
	if err := SeedRoles(); err != nil {
		t.Fatalf("SeedRoles: %v", err)
	}
}

func ClearTestDBTables(t *testing.T, tableNames ...string) {
	t.Helper()
	if DB == nil {
		t.Skip("DB not initialized, skipping table clear")
		return
	}
	for _, table := range tableNames {
		// DELETE вместо TRUNCATE из-за внешних ключей
		if _, err := DB.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			t.Fatalf("Failed to clear table %s: %v", table, err)
		}
	}
}
