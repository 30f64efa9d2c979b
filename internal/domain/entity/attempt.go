package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Attempt представляет завершенную попытку прохождения экзамена.
// Запись создается один раз при отправке и далее не изменяется
// (кроме поля Report, заполняемого фоновым отчетом).
type Attempt struct {
	ID                 uint              `gorm:"primaryKey" json:"id"`
	ExamID             *uint             `gorm:"index" json:"exam_id,omitempty"`
	PsychometricTestID *uint             `gorm:"index" json:"psychometric_test_id,omitempty"`
	TestType           string            `gorm:"size:20;not null" json:"test_type"`
	UserID             *uint             `gorm:"index" json:"user_id,omitempty"`
	AssignmentID       *uint             `gorm:"index" json:"assignment_id,omitempty"`
	SessionID          *uuid.UUID        `gorm:"type:uuid;index" json:"session_id,omitempty"`
	CredentialID       *uint             `gorm:"index" json:"credential_id,omitempty"`
	SubmissionKey      string            `gorm:"size:200;uniqueIndex" json:"-"`
	Questions          pq.Int64Array     `gorm:"type:bigint[];not null" json:"questions"`
	Answers            datatypes.JSONMap `gorm:"type:jsonb;not null" json:"answers"`
	Score              int               `gorm:"not null;default:0" json:"score"`
	AdjustedScore      float64           `gorm:"not null;default:0" json:"adjusted_score"`
	TimedOut           bool              `gorm:"not null;default:false" json:"timed_out"`
	Report             string            `gorm:"type:text;not null;default:''" json:"report,omitempty"`
	StartedAt          time.Time         `gorm:"not null" json:"started_at"`
	CompletedAt        time.Time         `gorm:"not null" json:"completed_at"`
	CreatedAt          time.Time         `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (Attempt) TableName() string {
	return "attempts"
}

// AnswerCount returns the number of answer entries recorded on the attempt.
func (a *Attempt) AnswerCount() int {
	return len(a.Answers)
}

// AnswerFor returns the stored answer text for a question id.
func (a *Attempt) AnswerFor(questionID string) string {
	v, ok := a.Answers[questionID]
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
