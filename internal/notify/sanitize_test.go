package notify

import (
	"testing"
	"unicode/utf8"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"tags", "<b>Смета</b> <script>alert(1)</script>готова", 0, "Смета alert(1) готова"},
		{"control", "a\x00b\x07c", 0, "abc"},
		{"whitespace", "  много \n\t пробелов  ", 0, "много пробелов"},
		{"truncate", "абвгдеёжзи", 5, "абвг…"},
		{"short enough", "abc", 5, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.in, tt.max)
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if tt.max > 0 && utf8.RuneCountInString(got) > tt.max {
				t.Errorf("length %d exceeds %d", utf8.RuneCountInString(got), tt.max)
			}
		})
	}
}

func TestSanitizeLink(t *testing.T) {
	tests := map[string]string{
		"/buyer/purchases/12":   "/buyer/purchases/12",
		"https://evil.example":  "",
		"//evil.example/x":      "",
		"javascript:alert(1)":   "",
		"/ok\"><script>":        "",
		"  /estimator/boq/3  ":  "/estimator/boq/3",
	}
	for in, want := range tests {
		if got := SanitizeLink(in); got != want {
			t.Errorf("SanitizeLink(%q) = %q, want %q", in, got, want)
		}
	}
}
