package db

import (
	"errors"
	"strings"
	"testing"

	"boq-portal.kz/internal/config"
	"boq-portal.kz/internal/models"
	"boq-portal.kz/internal/roles"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.DatabaseConfig
		want    []string
		wantErr bool
	}{
		{
			name: "components",
			cfg:  config.DatabaseConfig{Host: "db", User: "boq", Password: "pw", DBName: "boq"},
			want: []string{"boq:pw@tcp(db:3306)/boq?", "parseTime=true", "multiStatements=true"},
		},
		{
			name: "explicit dsn",
			cfg:  config.DatabaseConfig{Path: "u:p@tcp(h:3307)/x"},
			want: []string{"u:p@tcp(h:3307)/x?multiStatements=true&parseTime=true"},
		},
		{
			name:    "empty",
			cfg:     config.DatabaseConfig{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn, err := BuildDSN(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			for _, part := range tt.want {
				if !strings.Contains(dsn, part) {
					t.Errorf("dsn %q does not contain %q", dsn, part)
				}
			}
		})
	}
}

func TestNotInitialized(t *testing.T) {
	if DB != nil {
		t.Skip("DB already initialized")
	}
	if _, err := GetUserByID(1); !errors.Is(err, errNotInitialized) {
		t.Errorf("err = %v", err)
	}
	if err := Ping(); err == nil {
		t.Error("Ping without DB must fail")
	}
}

func TestUsersAndNotificationsIntegration(t *testing.T) {
	OpenTestDB(t)
	ClearTestDBTables(t, "notifications", "users")

	id, err := CreateUser(&models.User{Email: "PM@boq.kz", PasswordHash: "x", FirstName: "Ерлан"}, roles.ProjectManager.String())
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := CreateUser(&models.User{Email: "pm@boq.kz", PasswordHash: "x"}, roles.Buyer.String()); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("duplicate err = %v", err)
	}

	u, err := GetUserByEmail("pm@BOQ.kz")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if u.ID != id || u.RoleName == nil || *u.RoleName != "projectManager" {
		t.Errorf("user = %+v", u)
	}
	if u.RoleLegacyID == nil || *u.RoleLegacyID != 6 {
		t.Errorf("legacy id = %v", u.RoleLegacyID)
	}

	if err := SetUserRole(id, roles.Estimator.String()); err != nil {
		t.Fatalf("SetUserRole: %v", err)
	}
	list, err := GetActiveUsersByRole("estimator")
	if err != nil || len(list) != 1 {
		t.Fatalf("GetActiveUsersByRole = %v, %v", list, err)
	}

	n := &models.Notification{UserID: id, Title: "BOQ", Body: "Обновлена смета"}
	if err := CreateNotification(n); err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}
	if err := MarkNotificationRead(id+1000, n.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign mark err = %v", err)
	}
	if err := MarkNotificationRead(id, n.ID); err != nil {
		t.Errorf("MarkNotificationRead: %v", err)
	}
	unread, err := CountUnreadNotifications(id)
	if err != nil || unread != 0 {
		t.Errorf("unread = %d, %v", unread, err)
	}

	stats, err := GetDashboardStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.UsersByRole["estimator"] != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
