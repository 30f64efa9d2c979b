package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/yourusername/exam-portal-api/internal/service/examaccess"
)

// Config хранит все настройки приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Email    EmailConfig
	Gemini   GeminiConfig
	Exam     ExamConfig
	Admin    AdminConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	ReadTimeout    int      `mapstructure:"read_timeout"`  // секунды
	WriteTimeout   int      `mapstructure:"write_timeout"` // секунды
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig содержит настройки подключения к Redis.
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	Mode  string   `mapstructure:"mode"`
	Addrs []string `mapstructure:"addrs"`
	// Addr используется в режиме single, если Addrs пуст
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	MasterName string `mapstructure:"master_name"`

	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"` // миллисекунды
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"` // миллисекунды
}

// JWTConfig содержит настройки экзаменационных токенов
type JWTConfig struct {
	Secret            string `mapstructure:"secret"`
	ExpirationHrs     int    `mapstructure:"expiration_hrs"`
	WSTicketExpirySec int    `mapstructure:"ws_ticket_expiry_sec"`
}

// EmailConfig содержит настройки Resend. Пустой ключ отключает письма.
type EmailConfig struct {
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
}

// GeminiConfig содержит настройки отчетов. Пустой ключ отключает отчеты.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// ExamConfig содержит настройки доступа к экзаменам
type ExamConfig struct {
	MaxRetries         int  `mapstructure:"max_retries"`
	RetryBaseDelayMs   int  `mapstructure:"retry_base_delay_ms"`
	TimerTickSec       int  `mapstructure:"timer_tick_sec"`
	ProgressTTLHours   int  `mapstructure:"progress_ttl_hours"`
	AccessLogCapacity  int  `mapstructure:"access_log_capacity"`
	RestrictOnComplete bool `mapstructure:"restrict_on_complete"`
	LoginRateLimit     int  `mapstructure:"login_rate_limit"` // попыток в минуту с одного IP
}

// AdminConfig содержит ключ админских маршрутов
type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// AccessConfig переводит настройки экзамена в конфигурацию сервисов доступа
func (e ExamConfig) AccessConfig() *examaccess.Config {
	cfg := examaccess.DefaultConfig()
	if e.MaxRetries > 0 {
		cfg.MaxRetries = e.MaxRetries
	}
	if e.RetryBaseDelayMs > 0 {
		cfg.RetryBaseDelay = time.Duration(e.RetryBaseDelayMs) * time.Millisecond
	}
	if e.TimerTickSec > 0 {
		cfg.TimerTick = time.Duration(e.TimerTickSec) * time.Second
	}
	if e.ProgressTTLHours > 0 {
		cfg.ProgressMaxAge = time.Duration(e.ProgressTTLHours) * time.Hour
	}
	if e.AccessLogCapacity > 0 {
		cfg.AccessLogCapacity = e.AccessLogCapacity
	}
	cfg.RestrictOnComplete = e.RestrictOnComplete
	return cfg
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.read_timeout", 15)
	vip.SetDefault("server.write_timeout", 30)
	vip.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("redis.mode", "single")
	vip.SetDefault("redis.addr", "localhost:6379")
	vip.SetDefault("jwt.expiration_hrs", 12)
	vip.SetDefault("jwt.ws_ticket_expiry_sec", 60)
	vip.SetDefault("gemini.model", "gemini-1.5-flash")
	vip.SetDefault("exam.max_retries", examaccess.DefaultMaxRetries)
	vip.SetDefault("exam.retry_base_delay_ms", 1000)
	vip.SetDefault("exam.timer_tick_sec", 1)
	vip.SetDefault("exam.progress_ttl_hours", 24)
	vip.SetDefault("exam.access_log_capacity", examaccess.DefaultAccessLogCapacity)
	vip.SetDefault("exam.restrict_on_complete", true)
	vip.SetDefault("exam.login_rate_limit", 10)
}

func bindEnv(vip *viper.Viper) {
	bindings := map[string]string{
		"server.port":            "SERVER_PORT",
		"server.allowed_origins": "SERVER_ALLOWED_ORIGINS",

		"database.host":     "DATABASE_HOST",
		"database.port":     "DATABASE_PORT",
		"database.user":     "DATABASE_USER",
		"database.password": "DATABASE_PASSWORD",
		"database.dbname":   "DATABASE_DBNAME",
		"database.sslmode":  "DATABASE_SSLMODE",

		"redis.mode":        "REDIS_MODE",
		"redis.addrs":       "REDIS_ADDRS",
		"redis.addr":        "REDIS_ADDR",
		"redis.password":    "REDIS_PASSWORD",
		"redis.db":          "REDIS_DB",
		"redis.master_name": "REDIS_MASTER_NAME",

		"jwt.secret":               "JWT_SECRET",
		"jwt.expiration_hrs":       "JWT_EXPIRATION_HRS",
		"jwt.ws_ticket_expiry_sec": "JWT_WS_TICKET_EXPIRY_SEC",

		"email.resend_api_key": "RESEND_API_KEY",
		"email.from":           "EMAIL_FROM",

		"gemini.api_key": "GEMINI_API_KEY",
		"gemini.model":   "GEMINI_MODEL",

		"exam.max_retries":          "EXAM_MAX_RETRIES",
		"exam.retry_base_delay_ms":  "EXAM_RETRY_BASE_DELAY_MS",
		"exam.timer_tick_sec":       "EXAM_TIMER_TICK_SEC",
		"exam.progress_ttl_hours":   "EXAM_PROGRESS_TTL_HOURS",
		"exam.access_log_capacity":  "EXAM_ACCESS_LOG_CAPACITY",
		"exam.restrict_on_complete": "EXAM_RESTRICT_ON_COMPLETE",
		"exam.login_rate_limit":     "EXAM_LOGIN_RATE_LIMIT",

		"admin.api_key": "ADMIN_API_KEY",
	}
	for key, env := range bindings {
		if err := vip.BindEnv(key, env); err != nil {
			log.Printf("[Config] BindEnv %s: %v", key, err)
		}
	}
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	vip := viper.New() // отдельный экземпляр без глобального состояния

	setDefaults(vip)
	bindEnv(vip)

	if configPath != "" {
		vip.SetConfigFile(configPath)
		// файла может не быть: env и значения по умолчанию достаточно
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Database: %s@%s:%s/%s (sslmode=%s)", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, cfg.Database.SSLMode)
		log.Printf("Redis: mode=%s addr=%s addrs=%v", cfg.Redis.Mode, cfg.Redis.Addr, cfg.Redis.Addrs)
		log.Printf("JWT Expiration Hours: %d", cfg.JWT.ExpirationHrs)
		log.Printf("Resend enabled: %t, Gemini enabled: %t", cfg.Email.ResendAPIKey != "", cfg.Gemini.APIKey != "")
		log.Printf("Exam: retries=%d tick=%ds progress_ttl=%dh restrict_on_complete=%t",
			cfg.Exam.MaxRetries, cfg.Exam.TimerTickSec, cfg.Exam.ProgressTTLHours, cfg.Exam.RestrictOnComplete)
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("-----------------------------------------")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required (check JWT_SECRET env var)")
	}
	if c.Database.Host == "" || c.Database.DBName == "" || c.Database.User == "" {
		return fmt.Errorf("database configuration (host, dbname, user) is incomplete (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if os.Getenv("GIN_MODE") == "release" && c.Database.Password == "" {
		return fmt.Errorf("database password is required in release mode (check DATABASE_PASSWORD env var)")
	}
	if c.Email.ResendAPIKey != "" && c.Email.From == "" {
		return fmt.Errorf("EMAIL_FROM is required when RESEND_API_KEY is set")
	}
	return nil
}
