// internal/sms/sender.go
package sms

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"boq-portal.kz/internal/config"
)

// Sender отправляет SMS через HTTP API шлюза (form POST: api_key, to, text, from).
type Sender struct {
	cfg    config.SMSConfig
	client *http.Client
}

func NewSender(cfg config.SMSConfig) *Sender {
	return &Sender{cfg: cfg, client: &http.Client{Timeout: 10 * time.Second}}
}

// Configured сообщает, заданы ли адрес и ключ шлюза.
func (s *Sender) Configured() bool {
	return s.cfg.APIKey != "" && s.cfg.APIURL != ""
}

func (s *Sender) Send(ctx context.Context, phoneNumber, message string) error {
	if !s.Configured() {
		slog.Warn("SMS шлюз не настроен. Псевдо-отправка SMS.", "to", phoneNumber, "message", message)
		return nil
	}

	data := url.Values{}
	data.Set("api_key", s.cfg.APIKey)
	data.Set("to", phoneNumber)
	data.Set("text", message)
	data.Set("from", s.cfg.SenderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("ошибка создания запроса к SMS шлюзу: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка отправки запроса к SMS шлюзу: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ошибка отправки SMS: статус %d", resp.StatusCode)
	}

	slog.Info("SMS успешно отправлено", "to", phoneNumber)
	return nil
}
