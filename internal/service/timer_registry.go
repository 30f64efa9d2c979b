package service

import (
	"log"
	"sync"
	"time"

	"github.com/yourusername/exam-portal-api/internal/service/examaccess"
	"github.com/yourusername/exam-portal-api/internal/websocket"
)

// EventNotifier отправляет события во вкладки запущенного экзамена
type EventNotifier interface {
	SendEventToRoom(room string, eventType string, data interface{}) error
}

// TimerRegistry владеет таймерами запущенных экзаменов, по одному на ключ запуска
type TimerRegistry struct {
	mu       sync.Mutex
	timers   map[string]*examaccess.Timer
	tick     time.Duration
	notifier EventNotifier
}

// NewTimerRegistry создает реестр таймеров
func NewTimerRegistry(tick time.Duration, notifier EventNotifier) *TimerRegistry {
	if tick <= 0 {
		tick = time.Second
	}
	return &TimerRegistry{
		timers:   make(map[string]*examaccess.Timer),
		tick:     tick,
		notifier: notifier,
	}
}

func (r *TimerRegistry) notify(key, eventType string, data interface{}) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.SendEventToRoom(key, eventType, data); err != nil {
		log.Printf("[TimerRegistry] Не удалось отправить %s в %s: %v", eventType, key, err)
	}
}

// Start arms a deadline timer for the run key unless one is already running,
// and returns the remaining seconds. onTimeUp runs once when the deadline passes.
func (r *TimerRegistry) Start(key string, endsAt time.Time, onTimeUp func()) int {
	r.mu.Lock()
	if existing, ok := r.timers[key]; ok && existing.State() == examaccess.TimerRunning {
		r.mu.Unlock()
		return existing.Remaining()
	}

	var timer *examaccess.Timer
	timer = examaccess.NewDeadlineTimer(endsAt, r.tick, func() {
		r.notify(key, websocket.EXAM_TIME_UP, map[string]interface{}{"remaining": 0})
		r.release(key, timer)
		if onTimeUp != nil {
			onTimeUp()
		}
	})
	timer.OnTick(func(remaining int) {
		r.notify(key, websocket.EXAM_TIMER_TICK, map[string]interface{}{"remaining": remaining})
	})
	r.timers[key] = timer
	r.mu.Unlock()

	timer.Sync(true, false)
	log.Printf("[TimerRegistry] Таймер %s запущен до %v", key, endsAt.Format(time.RFC3339))
	return timer.Remaining()
}

func (r *TimerRegistry) release(key string, timer *examaccess.Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.timers[key]; ok && current == timer {
		delete(r.timers, key)
	}
}

// Remaining возвращает оставшиеся секунды, если таймер существует
func (r *TimerRegistry) Remaining(key string) (int, bool) {
	r.mu.Lock()
	timer, ok := r.timers[key]
	r.mu.Unlock()
	if !ok {
		return 0, false
	}
	return timer.Remaining(), true
}

// Stop останавливает и удаляет таймер
func (r *TimerRegistry) Stop(key string) {
	r.mu.Lock()
	timer, ok := r.timers[key]
	delete(r.timers, key)
	r.mu.Unlock()
	if ok {
		timer.Stop()
		log.Printf("[TimerRegistry] Таймер %s остановлен", key)
	}
}

// StopAll останавливает все таймеры (при завершении процесса)
func (r *TimerRegistry) StopAll() {
	r.mu.Lock()
	timers := r.timers
	r.timers = make(map[string]*examaccess.Timer)
	r.mu.Unlock()
	for _, timer := range timers {
		timer.Stop()
	}
}

// Count возвращает количество активных таймеров
func (r *TimerRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}
