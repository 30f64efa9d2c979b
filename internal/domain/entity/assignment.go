package entity

import (
	"time"

	"github.com/google/uuid"
)

// Статусы назначения
const (
	AssignmentStatusPending   = "pending"
	AssignmentStatusStarted   = "started"
	AssignmentStatusCompleted = "completed"
)

// Assignment представляет назначение экзамена пользователю через портал
type Assignment struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	UserID             uint       `gorm:"not null;index" json:"user_id"`
	ExamID             *uint      `gorm:"index" json:"exam_id,omitempty"`
	PsychometricTestID *uint      `gorm:"index" json:"psychometric_test_id,omitempty"`
	TestType           string     `gorm:"size:20;not null;index" json:"test_type"`
	Status             string     `gorm:"size:20;not null;default:'pending';index" json:"status"`
	AssignedAt         time.Time  `gorm:"not null" json:"assigned_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// TableName определяет имя таблицы для GORM
func (Assignment) TableName() string {
	return "assignments"
}

// IsCompleted проверяет, завершено ли назначение
func (a *Assignment) IsCompleted() bool {
	return a.Status == AssignmentStatusCompleted
}

// CanTransitionTo enforces the monotonic pending -> started -> completed order.
func (a *Assignment) CanTransitionTo(status string) bool {
	rank := map[string]int{
		AssignmentStatusPending:   0,
		AssignmentStatusStarted:   1,
		AssignmentStatusCompleted: 2,
	}
	from, ok1 := rank[a.Status]
	to, ok2 := rank[status]
	return ok1 && ok2 && to > from
}

// Статусы сессии
const (
	SessionStatusPending   = "pending"
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
)

// ExamSession представляет доступ к тесту по ссылке (без портала)
type ExamSession struct {
	ID                 uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	TestType           string            `gorm:"size:20;not null" json:"test_type"`
	UserID             *uint             `gorm:"index" json:"user_id,omitempty"`
	ExamID             *uint             `gorm:"index" json:"exam_id,omitempty"`
	PsychometricTestID *uint             `gorm:"index" json:"psychometric_test_id,omitempty"`
	Status             string            `gorm:"size:20;not null;default:'pending'" json:"status"`
	Exam               *Exam             `gorm:"foreignKey:ExamID" json:"exam,omitempty"`
	PsychometricTest   *PsychometricTest `gorm:"foreignKey:PsychometricTestID" json:"psychometric_test,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (ExamSession) TableName() string {
	return "exam_sessions"
}

// IsCompleted проверяет, завершена ли сессия
func (s *ExamSession) IsCompleted() bool {
	return s.Status == SessionStatusCompleted
}

// TargetExam returns the embedded exam metadata, whichever test kind the
// session points at. Nil when the session carries no test metadata.
func (s *ExamSession) TargetExam() *Exam {
	if s.TestType == TestTypePsychometric {
		if s.PsychometricTest == nil {
			return nil
		}
		return s.PsychometricTest.AsExam()
	}
	return s.Exam
}
