// internal/email/sender.go
package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"sort"
	"strings"

	"boq-portal.kz/internal/config"
)

//go:embed templates/*.html
var templatesFS embed.FS

var notificationTmpl = template.Must(template.ParseFS(templatesFS, "templates/notification.html"))

// sendFunc совпадает с smtp.SendMail, подменяется в тестах.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Sender отправляет копии уведомлений по SMTP.
type Sender struct {
	cfg      config.EmailConfig
	appEnv   string
	siteName string
	baseURL  string
	send     sendFunc
}

func NewSender(appCfg *config.Config) *Sender {
	return &Sender{
		cfg:      appCfg.Email,
		appEnv:   appCfg.AppEnv,
		siteName: appCfg.SiteName,
		baseURL:  appCfg.BaseURL,
		send:     smtp.SendMail,
	}
}

// Send отправляет HTML-письмо. Без настроенного SMTP в development
// письмо только логируется.
func (s *Sender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.cfg.SMTPhost == "" || s.cfg.Sender == "" {
		slog.Warn("SMTP хост или отправитель не настроены. Псевдо-отправка email.", "to", to, "subject", subject)
		if s.appEnv != "development" {
			return fmt.Errorf("SMTP хост или отправитель не настроены для отправки email")
		}
		return nil
	}

	msg, err := s.buildMessage(to, subject, body)
	if err != nil {
		return err
	}

	auth := smtp.PlainAuth("", s.cfg.SMTPuser, s.cfg.SMTPpassword, s.cfg.SMTPhost)
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPhost, s.cfg.SMTPport)
	if err := s.send(addr, auth, s.cfg.Sender, []string{to}, msg); err != nil {
		slog.Error("Ошибка отправки email", "to", to, "error", err)
		return fmt.Errorf("не удалось отправить email: %w", err)
	}

	slog.Info("Email успешно отправлен", "to", to, "subject", subject)
	return nil
}

func (s *Sender) buildMessage(to, subject, body string) ([]byte, error) {
	var html bytes.Buffer
	err := notificationTmpl.Execute(&html, struct {
		Subject, Body, SiteName, BaseURL string
	}{subject, body, s.siteName, s.baseURL})
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения шаблона письма: %w", err)
	}

	headers := map[string]string{
		"From":         s.cfg.Sender,
		"To":           to,
		"Subject":      strings.NewReplacer("\r", "", "\n", "").Replace(subject),
		"MIME-version": "1.0",
		"Content-Type": "text/html; charset=\"UTF-8\"",
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var msg strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&msg, "%s: %s\r\n", k, headers[k])
	}
	msg.WriteString("\r\n")
	msg.Write(html.Bytes())
	return []byte(msg.String()), nil
}
