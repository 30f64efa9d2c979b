package repository

import (
	"time"
)

// CacheRepository определяет методы для работы с кешем (Redis).
// Используется для снимков прогресса, состояния запущенных экзаменов
// и блокировок повторной отправки.
type CacheRepository interface {
	Set(key string, value interface{}, expiration time.Duration) error
	// Get возвращает ErrNotFound, если ключ отсутствует
	Get(key string) (string, error)
	Delete(key string) error
	SetJSON(key string, value interface{}, expiration time.Duration) error
	GetJSON(key string, dest interface{}) error
	// SetNX устанавливает значение, только если ключ не существует
	SetNX(key string, value interface{}, expiration time.Duration) (bool, error)
}
