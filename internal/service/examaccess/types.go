package examaccess

import (
	"time"
)

// Значения по умолчанию
const (
	DefaultMaxRetries        = 3
	DefaultAccessLogCapacity = 100
	DefaultProgressMaxAge    = 24 * time.Hour
)

// Config содержит настройки доступа к экзаменам и таймеров
type Config struct {
	// Повторные попытки сетевых операций
	MaxRetries     int           // Максимальное количество вызовов операции
	RetryBaseDelay time.Duration // Задержка перед второй попыткой, далее удваивается

	// Таймер экзамена
	TimerTick time.Duration // Шаг таймера (секунда или минута)

	// Автосохранение прогресса
	ProgressMaxAge time.Duration // Снимки старше считаются устаревшими

	// Журнал доступа
	AccessLogCapacity int

	// RestrictOnComplete закрывает доступ к порталу после сдачи экзамена
	RestrictOnComplete bool
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:         DefaultMaxRetries,
		RetryBaseDelay:     time.Second,
		TimerTick:          time.Second,
		ProgressMaxAge:     DefaultProgressMaxAge,
		AccessLogCapacity:  DefaultAccessLogCapacity,
		RestrictOnComplete: true,
	}
}

// RetryPolicy derives the retry policy from the config.
func (c *Config) RetryPolicy() RetryPolicy {
	p := DefaultRetryPolicy()
	if c == nil {
		return p
	}
	if c.MaxRetries > 0 {
		p.MaxRetries = c.MaxRetries
	}
	if c.RetryBaseDelay > 0 {
		p.BaseDelay = c.RetryBaseDelay
	}
	return p
}
