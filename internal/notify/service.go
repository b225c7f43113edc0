// Пакет notify: уведомления пользователей портала: очистка текста,
// ограничение частоты на получателя, хранение и копия на email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"boq-portal.kz/internal/models"
	"boq-portal.kz/internal/ratelimit"
	"boq-portal.kz/internal/roles"
)

var (
	ErrRateLimited = errors.New("превышен лимит уведомлений для получателя")
	ErrEmptyTitle  = errors.New("пустой заголовок уведомления")
)

var notificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "portal_notifications_total",
		Help: "Количество уведомлений по результату обработки",
	},
	[]string{"result"},
)

type Store interface {
	CreateNotification(n *models.Notification) error
	ListNotifications(userID int64, limit int) ([]models.Notification, error)
	MarkNotificationRead(userID int64, id string) error
	CountUnreadNotifications(userID int64) (int, error)
	GetActiveUsersByRole(role string) ([]*models.User, error)
}

// Mailer отправляет копию уведомления на email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Texter отправляет короткую копию уведомления по SMS.
type Texter interface {
	Send(ctx context.Context, phone, text string) error
}

type Options struct {
	RatePerMinute float64
	Burst         int
	MaxTitleLen   int
	MaxBodyLen    int
	ListLimit     int
	EmailCopies   bool
}

type Message struct {
	Title string
	Body  string
	Link  string
	Email bool
	SMS   bool
}

// BroadcastResult: итог рассылки по роли.
type BroadcastResult struct {
	Recipients int
	Sent       int
	Limited    int
	Failed     int
}

type Service struct {
	store   Store
	mailer  Mailer
	texter  Texter
	opts    Options
	limiter *ratelimit.Keyed
}

func NewService(store Store, mailer Mailer, opts Options) *Service {
	if opts.ListLimit <= 0 {
		opts.ListLimit = 50
	}
	return &Service{
		store:   store,
		mailer:  mailer,
		opts:    opts,
		limiter: ratelimit.NewKeyed(opts.RatePerMinute/60, opts.Burst, time.Hour),
	}
}

// WithSMS подключает отправку SMS-копий.
func (s *Service) WithSMS(t Texter) *Service {
	s.texter = t
	return s
}

// StartCleanup запускает очистку лимитеров неактивных получателей.
func (s *Service) StartCleanup(stop <-chan struct{}) {
	s.limiter.StartCleanup(10*time.Minute, stop)
}

// Publish сохраняет уведомление для пользователя. При превышении лимита
// уведомление отбрасывается и возвращается ErrRateLimited.
func (s *Service) Publish(ctx context.Context, to *models.User, msg Message) (*models.Notification, error) {
	n := &models.Notification{
		UserID: to.ID,
		Title:  Sanitize(msg.Title, s.opts.MaxTitleLen),
		Body:   Sanitize(msg.Body, s.opts.MaxBodyLen),
		Link:   SanitizeLink(msg.Link),
	}
	if n.Title == "" {
		notificationsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrEmptyTitle
	}

	if !s.limiter.Allow(strconv.FormatInt(to.ID, 10)) {
		notificationsTotal.WithLabelValues("rate_limited").Inc()
		slog.Warn("Уведомление отброшено: превышен лимит", "userID", to.ID, "title", n.Title)
		return nil, ErrRateLimited
	}

	if err := s.store.CreateNotification(n); err != nil {
		notificationsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("не удалось сохранить уведомление: %w", err)
	}
	notificationsTotal.WithLabelValues("stored").Inc()

	if s.mailer != nil && (msg.Email || s.opts.EmailCopies) && to.Email != "" {
		if err := s.mailer.Send(ctx, to.Email, n.Title, n.Body); err != nil {
			slog.Error("Не удалось отправить копию уведомления на email", "userID", to.ID, "error", err)
		}
	}
	if s.texter != nil && msg.SMS && to.Phone != nil && *to.Phone != "" {
		text := n.Title
		if n.Link != "" {
			text += " " + n.Link
		}
		if err := s.texter.Send(ctx, *to.Phone, text); err != nil {
			slog.Error("Не удалось отправить SMS-копию уведомления", "userID", to.ID, "error", err)
		}
	}
	return n, nil
}

// Broadcast публикует уведомление всем активным пользователям роли.
func (s *Service) Broadcast(ctx context.Context, role roles.Role, msg Message) (BroadcastResult, error) {
	var res BroadcastResult
	users, err := s.store.GetActiveUsersByRole(role.String())
	if err != nil {
		return res, fmt.Errorf("не удалось получить получателей рассылки: %w", err)
	}
	res.Recipients = len(users)

	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		_, err := s.Publish(ctx, u, msg)
		switch {
		case err == nil:
			res.Sent++
		case errors.Is(err, ErrRateLimited):
			res.Limited++
		case errors.Is(err, ErrEmptyTitle):
			return res, err
		default:
			res.Failed++
			slog.Error("Ошибка рассылки уведомления", "userID", u.ID, "role", role, "error", err)
		}
	}
	slog.Info("Рассылка по роли завершена", "role", role, "recipients", res.Recipients, "sent", res.Sent, "limited", res.Limited, "failed", res.Failed)
	return res, nil
}

// List возвращает уведомления и число непрочитанных для пользователя.
func (s *Service) List(ctx context.Context, userID int64) ([]models.Notification, int, error) {
	list, err := s.store.ListNotifications(userID, s.opts.ListLimit)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.store.CountUnreadNotifications(userID)
	if err != nil {
		return nil, 0, err
	}
	return list, unread, nil
}

func (s *Service) MarkRead(ctx context.Context, userID int64, id string) error {
	return s.store.MarkNotificationRead(userID, id)
}
