package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config представляет конфигурацию приложения
type Config struct {
	Server struct {
		Port         int
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
		RateLimit    int // запросов в минуту на пользователя

		RequestTimeout time.Duration // срок обработки запроса вместе с обращениями к внешним сервисам
	}
	DB struct {
		Driver     string // postgres или memory
		Host       string
		Port       int
		User       string
		Password   string
		DBName     string
		Migrations string

		MaxIdleConns    int
		MaxOpenConns    int
		ConnMaxLifetime time.Duration
		SlowQuery       time.Duration
	}
	JWT struct {
		SecretKey string
		ExpiresIn int // в часах
	}
	SMTP struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
	}
	Cloudinary struct {
		CloudName string
		APIKey    string
		APISecret string
		Folder    string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
		Channel  string
	}
	Payments struct {
		WindowDays       int // отрицательное значение отключает окно регистрации
		ReminderInterval time.Duration
	}
	LogDir string
}

var defaults = map[string]interface{}{
	"SERVER_PORT":            8080,
	"SERVER_READ_TIMEOUT":    "15s",
	"SERVER_WRITE_TIMEOUT":   "15s",
	"SERVER_REQUEST_TIMEOUT": "10s",
	"RATE_LIMIT":             120,
	"DB_DRIVER":              "postgres",
	"DB_HOST":                "localhost",
	"DB_PORT":                5432,
	"DB_USER":                "postgres",
	"DB_PASSWORD":            "postgres",
	"DB_NAME":                "rentahome",
	"DB_MIGRATIONS":          "file://migrations",
	"DB_MAX_IDLE_CONNS":      10,
	"DB_MAX_OPEN_CONNS":      100,
	"DB_CONN_MAX_LIFETIME":   "1h",
	"DB_SLOW_QUERY":          "1s",
	"JWT_SECRET_KEY":         "your-secret-key-here",
	"JWT_EXPIRES_IN":         24,
	"SMTP_HOST":              "smtp.gmail.com",
	"SMTP_PORT":              587,
	"SMTP_USERNAME":          "",
	"SMTP_PASSWORD":          "",
	"SMTP_FROM":              "no-reply@rentahome.local",
	"CLOUDINARY_CLOUD_NAME":  "",
	"CLOUDINARY_API_KEY":     "",
	"CLOUDINARY_API_SECRET":  "",
	"CLOUDINARY_FOLDER":      "comprobantes",
	"REDIS_ADDR":             "",
	"REDIS_PASSWORD":         "",
	"REDIS_DB":               0,
	"REDIS_CHANNEL":          "rentahome:events",
	"PAYMENT_WINDOW_DAYS":    2,
	"REMINDER_INTERVAL":      "24h",
	"LOG_DIR":                "",
}

// NewConfig создает новый экземпляр конфигурации из переменных окружения и config.yaml
func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	// Настройки сервера
	cfg.Server.Port = v.GetInt("SERVER_PORT")
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("неверный формат порта сервера: %q", v.GetString("SERVER_PORT"))
	}
	cfg.Server.ReadTimeout = v.GetDuration("SERVER_READ_TIMEOUT")
	cfg.Server.WriteTimeout = v.GetDuration("SERVER_WRITE_TIMEOUT")
	cfg.Server.RateLimit = v.GetInt("RATE_LIMIT")
	cfg.Server.RequestTimeout = v.GetDuration("SERVER_REQUEST_TIMEOUT")
	if cfg.Server.RequestTimeout <= 0 {
		return nil, fmt.Errorf("неверный срок обработки запроса: %q", v.GetString("SERVER_REQUEST_TIMEOUT"))
	}

	// Настройки базы данных
	cfg.DB.Driver = strings.ToLower(v.GetString("DB_DRIVER"))
	if cfg.DB.Driver != "postgres" && cfg.DB.Driver != "memory" {
		return nil, fmt.Errorf("неизвестный драйвер базы данных: %q", cfg.DB.Driver)
	}
	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = v.GetInt("DB_PORT")
	if cfg.DB.Driver == "postgres" && cfg.DB.Port <= 0 {
		return nil, fmt.Errorf("неверный формат порта базы данных: %q", v.GetString("DB_PORT"))
	}
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASSWORD")
	cfg.DB.DBName = v.GetString("DB_NAME")
	cfg.DB.Migrations = v.GetString("DB_MIGRATIONS")
	cfg.DB.MaxIdleConns = v.GetInt("DB_MAX_IDLE_CONNS")
	cfg.DB.MaxOpenConns = v.GetInt("DB_MAX_OPEN_CONNS")
	cfg.DB.ConnMaxLifetime = v.GetDuration("DB_CONN_MAX_LIFETIME")
	cfg.DB.SlowQuery = v.GetDuration("DB_SLOW_QUERY")

	// Настройки JWT
	cfg.JWT.SecretKey = v.GetString("JWT_SECRET_KEY")
	cfg.JWT.ExpiresIn = v.GetInt("JWT_EXPIRES_IN")
	if cfg.JWT.ExpiresIn <= 0 {
		return nil, fmt.Errorf("неверный формат времени жизни JWT: %q", v.GetString("JWT_EXPIRES_IN"))
	}

	// Настройки SMTP
	cfg.SMTP.Host = v.GetString("SMTP_HOST")
	cfg.SMTP.Port = v.GetInt("SMTP_PORT")
	cfg.SMTP.Username = v.GetString("SMTP_USERNAME")
	cfg.SMTP.Password = v.GetString("SMTP_PASSWORD")
	cfg.SMTP.From = v.GetString("SMTP_FROM")

	// Хранилище чеков об оплате
	cfg.Cloudinary.CloudName = v.GetString("CLOUDINARY_CLOUD_NAME")
	cfg.Cloudinary.APIKey = v.GetString("CLOUDINARY_API_KEY")
	cfg.Cloudinary.APISecret = v.GetString("CLOUDINARY_API_SECRET")
	cfg.Cloudinary.Folder = v.GetString("CLOUDINARY_FOLDER")

	// Redis для рассылки событий между экземплярами
	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")
	cfg.Redis.Channel = v.GetString("REDIS_CHANNEL")

	// Платежи
	cfg.Payments.WindowDays = v.GetInt("PAYMENT_WINDOW_DAYS")
	cfg.Payments.ReminderInterval = v.GetDuration("REMINDER_INTERVAL")
	if cfg.Payments.ReminderInterval <= 0 {
		return nil, fmt.Errorf("неверный интервал напоминаний: %q", v.GetString("REMINDER_INTERVAL"))
	}

	cfg.LogDir = v.GetString("LOG_DIR")

	return cfg, nil
}

// CloudinaryEnabled сообщает, заданы ли учетные данные Cloudinary
func (c *Config) CloudinaryEnabled() bool {
	return c.Cloudinary.CloudName != "" && c.Cloudinary.APIKey != "" && c.Cloudinary.APISecret != ""
}

// DSN возвращает строку подключения к PostgreSQL
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.DBName,
	)
}

// MigrationURL возвращает URL базы данных для golang-migrate
func (c *Config) MigrationURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User,
		c.DB.Password,
		c.DB.Host,
		c.DB.Port,
		c.DB.DBName,
	)
}
