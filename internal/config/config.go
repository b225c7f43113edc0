// internal/config/config.go
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

type EmailConfig struct {
	SMTPhost     string `yaml:"smtp_host"`
	SMTPport     int    `yaml:"smtp_port"`
	SMTPuser     string `yaml:"smtp_user"`
	SMTPpassword string `yaml:"smtp_password"`
	Sender       string `yaml:"sender"`
}

// SMSConfig: HTTP-шлюз для SMS-копий уведомлений.
type SMSConfig struct {
	APIURL   string `yaml:"api_url"`
	SenderID string `yaml:"sender_id"`
	APIKey   string `yaml:"-"`
}

type SessionConfig struct {
	CookieName    string `yaml:"cookie_name"`
	LifetimeHours int    `yaml:"lifetime_hours"`
}

// NotificationsConfig: ограничения для уведомлений.
type NotificationsConfig struct {
	RatePerMinute float64 `yaml:"rate_per_minute"`
	Burst         int     `yaml:"burst"`
	MaxTitleLen   int     `yaml:"max_title_len"`
	MaxBodyLen    int     `yaml:"max_body_len"`
	ListLimit     int     `yaml:"list_limit"`
	EmailCopies   bool    `yaml:"email_copies"`
}

type LoginRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type Config struct {
	SiteName        string               `yaml:"site_name"`
	SiteDescription string               `yaml:"site_description"`
	CurrentYear     int                  `yaml:"current_year"`
	BaseURL         string               `yaml:"base_url"`
	Port            int                  `yaml:"port"`
	AppEnv          string               `yaml:"app_env"`
	Database        DatabaseConfig       `yaml:"database"`
	Email           EmailConfig          `yaml:"email"`
	SMS             SMSConfig            `yaml:"sms"`
	Session         SessionConfig        `yaml:"session"`
	Notifications   NotificationsConfig  `yaml:"notifications"`
	LoginRateLimit  LoginRateLimitConfig `yaml:"login_rate_limit"`
	FirstAdmin      FirstAdminConfig     `yaml:"-"`
}

// FirstAdminConfig: учетная запись администратора, создаваемая при старте.
type FirstAdminConfig struct {
	Email    string
	Password string
}

func (cfg *Config) IsProduction() bool {
	return cfg.AppEnv == "production"
}

func (cfg *Config) SessionLifetime() time.Duration {
	return time.Duration(cfg.Session.LifetimeHours) * time.Hour
}

func getStringEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
		slog.Warn("Не удалось преобразовать переменную окружения в число, используется значение по умолчанию", "key", key, "value", valueStr)
	}
	return defaultValue
}

func LoadConfig(filename string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load("configs/.env"); err != nil {
			slog.Info("configs/.env не найден, используются системные переменные окружения", "error", err)
		} else {
			slog.Info("Переменные окружения загружены из configs/.env")
		}
	}

	file, err := os.Open(filename)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("файл конфигурации не найден: %s", filename)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия файла конфигурации '%s': %w", filename, err)
	}
	defer file.Close()

	var cfg Config
	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка декодирования YAML из файла '%s': %w", filename, err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Info("Конфигурация загружена", "app_env", cfg.AppEnv, "base_url", cfg.BaseURL, "port", cfg.Port)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.AppEnv = getStringEnvOrDefault("APP_ENV", cfg.AppEnv)
	cfg.BaseURL = getStringEnvOrDefault("BASE_URL", cfg.BaseURL)
	cfg.Port = getIntEnvOrDefault("PORT", cfg.Port)

	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		cfg.Database.Path = dsn
		cfg.Database.Host = ""
	} else {
		cfg.Database.Host = getStringEnvOrDefault("DB_HOST", cfg.Database.Host)
		cfg.Database.Port = getIntEnvOrDefault("DB_PORT", cfg.Database.Port)
		cfg.Database.User = getStringEnvOrDefault("DB_USER", cfg.Database.User)
		cfg.Database.DBName = getStringEnvOrDefault("DB_NAME", cfg.Database.DBName)
		cfg.Database.Password = getStringEnvOrDefault("DB_PASSWORD", cfg.Database.Password)
	}

	cfg.Email.SMTPhost = getStringEnvOrDefault("SMTP_HOST", cfg.Email.SMTPhost)
	cfg.Email.SMTPport = getIntEnvOrDefault("SMTP_PORT", cfg.Email.SMTPport)
	cfg.Email.SMTPuser = getStringEnvOrDefault("SMTP_USER", cfg.Email.SMTPuser)
	cfg.Email.SMTPpassword = getStringEnvOrDefault("SMTP_PASSWORD", "") // только из ENV
	cfg.Email.Sender = getStringEnvOrDefault("EMAIL_SENDER", cfg.Email.Sender)

	cfg.SMS.APIURL = getStringEnvOrDefault("SMS_API_URL", cfg.SMS.APIURL)
	cfg.SMS.APIKey = getStringEnvOrDefault("SMS_API_KEY", "")

	cfg.Session.LifetimeHours = getIntEnvOrDefault("SESSION_LIFETIME_HOURS", cfg.Session.LifetimeHours)

	cfg.FirstAdmin.Email = os.Getenv("FIRST_ADMIN_EMAIL")
	cfg.FirstAdmin.Password = os.Getenv("FIRST_ADMIN_PASSWORD")
}

func applyDefaults(cfg *Config) {
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.SiteName == "" {
		cfg.SiteName = "BOQ Portal"
	}
	if cfg.CurrentYear == 0 {
		cfg.CurrentYear = time.Now().Year()
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "boq_session"
	}
	if cfg.Session.LifetimeHours <= 0 {
		cfg.Session.LifetimeHours = 24
	}

	n := &cfg.Notifications
	if n.RatePerMinute <= 0 {
		n.RatePerMinute = 30
	}
	if n.Burst <= 0 {
		n.Burst = 10
	}
	if n.MaxTitleLen <= 0 {
		n.MaxTitleLen = 200
	}
	if n.MaxBodyLen <= 0 {
		n.MaxBodyLen = 2000
	}
	if n.ListLimit <= 0 {
		n.ListLimit = 50
	}

	if cfg.LoginRateLimit.RPS <= 0 {
		cfg.LoginRateLimit.RPS = 0.2
	}
	if cfg.LoginRateLimit.Burst <= 0 {
		cfg.LoginRateLimit.Burst = 5
	}
}

// Validate проверяет обязательные параметры.
func (cfg *Config) Validate() error {
	isProduction := cfg.IsProduction()

	if cfg.BaseURL == "" {
		return fmt.Errorf("BASE_URL не задан")
	}
	if isProduction && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return fmt.Errorf("в production окружении BASE_URL должен начинаться с https://")
	}
	if cfg.Database.Path == "" && cfg.Database.Host == "" {
		return fmt.Errorf("параметры подключения к БД (DATABASE_DSN или DB_HOST и др.) не заданы")
	}
	if cfg.Database.Host != "" {
		if cfg.Database.User == "" {
			return fmt.Errorf("DB_USER не задан для подключения к БД")
		}
		if cfg.Database.DBName == "" {
			return fmt.Errorf("DB_NAME не задан для подключения к БД")
		}
	}
	if isProduction && (cfg.Email.SMTPhost == "" || cfg.Email.Sender == "") {
		slog.Warn("Параметры SMTP (SMTP_HOST, EMAIL_SENDER) не настроены для production. Копии уведомлений на email отправляться не будут.")
	}
	if cfg.FirstAdmin.Email != "" && cfg.FirstAdmin.Password == "" {
		slog.Warn("FIRST_ADMIN_EMAIL задан без FIRST_ADMIN_PASSWORD: существующему пользователю будет только назначена роль администратора")
	}
	return nil
}

func InitLogger(appEnv string) {
	var logger *slog.Logger
	logLevel := slog.LevelInfo

	if appEnv == "development" {
		logLevel = slog.LevelDebug
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		}))
	}
	slog.SetDefault(logger)
}
