// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/mysqlstore"
	"github.com/alexedwards/scs/v2"

	"boq-portal.kz/internal/config"
	"boq-portal.kz/internal/db"
	"boq-portal.kz/internal/email"
	"boq-portal.kz/internal/handlers"
	"boq-portal.kz/internal/notify"
	"boq-portal.kz/internal/ratelimit"
	"boq-portal.kz/internal/sms"
	"boq-portal.kz/internal/viewas"
)

func newSessionManager(cfg *config.Config) *scs.SessionManager {
	sm := scs.New()
	sm.Lifetime = cfg.SessionLifetime()
	sm.Cookie.Name = cfg.Session.CookieName
	sm.Cookie.HttpOnly = true
	sm.Cookie.Persist = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = cfg.IsProduction()
	sm.Cookie.Path = "/"
	return sm
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "путь к файлу конфигурации")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Критическая ошибка: не удалось загрузить конфигурацию: %v\n", err)
		os.Exit(1)
	}

	config.InitLogger(cfg.AppEnv)
	slog.Info("Запуск портала...", "app_env", cfg.AppEnv)

	if err := db.InitDB(cfg); err != nil {
		slog.Error("Критическая ошибка: не удалось инициализировать базу данных", "error", err)
		os.Exit(1)
	}
	defer db.DB.Close()
	slog.Info("База данных успешно инициализирована и миграции применены.")

	store := db.Store{}
	if err := handlers.BootstrapAdmin(store, cfg.FirstAdmin); err != nil {
		slog.Error("Не удалось создать первого администратора", "email", cfg.FirstAdmin.Email, "error", err)
	}

	sessionManager := newSessionManager(cfg)
	sessionManager.Store = mysqlstore.New(db.DB)
	slog.Info("Менеджер сессий инициализирован", "store", "mysqlstore", "lifetime", sessionManager.Lifetime, "secure_cookie", sessionManager.Cookie.Secure)

	stop := make(chan struct{})
	defer close(stop)

	notifier := notify.NewService(store, email.NewSender(cfg), notify.Options{
		RatePerMinute: cfg.Notifications.RatePerMinute,
		Burst:         cfg.Notifications.Burst,
		MaxTitleLen:   cfg.Notifications.MaxTitleLen,
		MaxBodyLen:    cfg.Notifications.MaxBodyLen,
		ListLimit:     cfg.Notifications.ListLimit,
		EmailCopies:   cfg.Notifications.EmailCopies,
	}).WithSMS(sms.NewSender(cfg.SMS))
	notifier.StartCleanup(stop)

	appHandlers, err := handlers.NewAppHandlers(cfg, sessionManager, viewas.NewManager(sessionManager), store, notifier)
	if err != nil {
		slog.Error("Критическая ошибка: не удалось инициализировать обработчики страниц", "error", err)
		os.Exit(1)
	}

	loginLimiter := ratelimit.NewKeyed(cfg.LoginRateLimit.RPS, cfg.LoginRateLimit.Burst, time.Hour)
	loginLimiter.StartCleanup(10*time.Minute, stop)

	a := &application{
		cfg:          cfg,
		sessions:     sessionManager,
		app:          appHandlers,
		loginLimiter: loginLimiter,
		csrf:         true,
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		slog.Info("Сервер запущен и слушает", "address", fmt.Sprintf("http://localhost%s", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Критическая ошибка: не удалось запустить HTTP-сервер", "address", addr, "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("Остановка сервера...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Ошибка при остановке сервера", "error", err)
	}
}
