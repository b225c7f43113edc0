package notify

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	tagPattern        = regexp.MustCompile(`(?s)<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Sanitize убирает HTML-теги и управляющие символы, схлопывает пробелы
// и обрезает строку до maxLen рун. maxLen <= 0 отключает обрезку.
func Sanitize(s string, maxLen int) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = strings.Map(func(r rune) rune {
		if r == utf8.RuneError {
			return -1
		}
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))

	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		r := []rune(s)
		s = strings.TrimSpace(string(r[:maxLen-1])) + "…"
	}
	return s
}

// SanitizeLink допускает только относительные ссылки внутри портала.
func SanitizeLink(link string) string {
	link = strings.TrimSpace(link)
	if !strings.HasPrefix(link, "/") || strings.HasPrefix(link, "//") {
		return ""
	}
	if strings.ContainsAny(link, " \t\r\n<>\"'") {
		return ""
	}
	return link
}
