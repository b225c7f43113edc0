// internal/auth/password.go
package auth

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// IsPasswordComplex: не короче 8 символов, есть буква, цифра и символ.
func IsPasswordComplex(password string) bool {
	if len(password) < 8 {
		return false
	}
	var hasLetter, hasDigit, hasSymbol bool
	for _, char := range password {
		switch {
		case unicode.IsLetter(char):
			hasLetter = true
		case unicode.IsDigit(char):
			hasDigit = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSymbol = true
		}
	}
	return hasLetter && hasDigit && hasSymbol
}

var nonAlphaSpaceDash = regexp.MustCompile(`[^\p{L}\s-]`)

// SanitizeName убирает все, кроме букв, пробелов и дефисов, и делает первую букву заглавной.
func SanitizeName(name string) string {
	cleaned := strings.TrimSpace(nonAlphaSpaceDash.ReplaceAllString(strings.TrimSpace(name), ""))
	if cleaned == "" {
		return ""
	}
	r := []rune(cleaned)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
