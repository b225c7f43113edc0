package validation

import (
	"testing"

	"boq-portal.kz/internal/models"
)

func TestValidateLoginForm(t *testing.T) {
	errs := ValidateStruct(models.LoginForm{Email: "bad", Password: ""})
	if errs.Get("email") == "" {
		t.Error("expected email error")
	}
	if errs.Get("password") == "" {
		t.Error("expected password error")
	}

	if errs := ValidateStruct(models.LoginForm{Email: "a@b.kz", Password: "x"}); errs != nil {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestRoleToken(t *testing.T) {
	tests := []struct {
		role string
		ok   bool
	}{
		{"projectManager", true},
		{"project-manager", true},
		{"Site Engineer", true},
		{"6", true},
		{"auditor", false},
		{"7", false},
	}
	for _, tt := range tests {
		errs := ValidateStruct(models.ViewAsForm{Role: tt.role})
		if got := errs.Get("role") == ""; got != tt.ok {
			t.Errorf("role %q valid = %v, want %v (%v)", tt.role, got, tt.ok, errs)
		}
	}
}

func TestCreateUserForm(t *testing.T) {
	form := models.CreateUserForm{
		Email:     "pm@boq.kz",
		Password:  "weak",
		FirstName: "Айгерим1",
		Role:      "buyer",
	}
	errs := ValidateStruct(form)
	if errs.Get("password") == "" {
		t.Error("expected password error")
	}
	if errs.Get("first_name") == "" {
		t.Error("expected first_name error")
	}
	if errs.Get("role") != "" {
		t.Errorf("role should be valid: %v", errs.Get("role"))
	}
}
