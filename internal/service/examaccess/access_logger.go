package examaccess

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
)

// Уровни записей журнала доступа
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// AccessLogEntry: одна запись журнала доступа к экзаменам
type AccessLogEntry struct {
	Time   time.Time         `json:"time"`
	Level  string            `json:"level"`
	Event  string            `json:"event"`
	Fields map[string]string `json:"fields,omitempty"`
}

// AccessLogger keeps the most recent access events in a fixed-size ring buffer
// and mirrors each one to the process log. It is constructed once in main and
// passed to the services that record access decisions.
type AccessLogger struct {
	mu      sync.Mutex
	entries []AccessLogEntry
	next    int
	full    bool
	now     func() time.Time
}

// NewAccessLogger создает журнал заданной емкости
func NewAccessLogger(capacity int) *AccessLogger {
	if capacity <= 0 {
		capacity = DefaultAccessLogCapacity
	}
	return &AccessLogger{
		entries: make([]AccessLogEntry, capacity),
		now:     time.Now,
	}
}

// Capacity returns the maximum number of retained entries.
func (l *AccessLogger) Capacity() int {
	return len(l.entries)
}

func (l *AccessLogger) record(level, event string, fields map[string]string) {
	if l == nil {
		return
	}
	entry := AccessLogEntry{
		Time:   l.now(),
		Level:  level,
		Event:  event,
		Fields: fields,
	}

	l.mu.Lock()
	l.entries[l.next] = entry
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
	l.mu.Unlock()

	log.Printf("[ExamAccess] %s %s%s", strings.ToUpper(level), event, formatFields(fields))
}

// Info записывает информационное событие
func (l *AccessLogger) Info(event string, fields map[string]string) {
	l.record(LevelInfo, event, fields)
}

// Warn записывает предупреждение
func (l *AccessLogger) Warn(event string, fields map[string]string) {
	l.record(LevelWarn, event, fields)
}

// Error записывает ошибку
func (l *AccessLogger) Error(event string, err error, fields map[string]string) {
	if err != nil {
		merged := make(map[string]string, len(fields)+1)
		for k, v := range fields {
			merged[k] = v
		}
		merged["error"] = err.Error()
		fields = merged
	}
	l.record(LevelError, event, fields)
}

// Entries returns a copy of the retained entries, oldest first.
func (l *AccessLogger) Entries() []AccessLogEntry {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.full {
		out := make([]AccessLogEntry, l.next)
		copy(out, l.entries[:l.next])
		return out
	}
	out := make([]AccessLogEntry, 0, len(l.entries))
	out = append(out, l.entries[l.next:]...)
	out = append(out, l.entries[:l.next]...)
	return out
}

func formatFields(fields map[string]string) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, fields[k])
	}
	return b.String()
}
