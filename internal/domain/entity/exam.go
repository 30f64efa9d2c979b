package entity

import (
	"time"
)

// Статусы экзамена (значения хранятся в БД в исходном виде)
const (
	ExamStatusActive    = "activo"
	ExamStatusDraft     = "borrador"
	ExamStatusPaused    = "pausado"
	ExamStatusFinalized = "finalizado"
)

// Типы тестов, для которых выдаются учетные данные
const (
	TestTypeReliability  = "reliability"
	TestTypePsychometric = "psychometric"
	TestTypeTurnover     = "turnover"
)

// IsValidTestType reports whether t is one of the known test types.
func IsValidTestType(t string) bool {
	switch t {
	case TestTypeReliability, TestTypePsychometric, TestTypeTurnover:
		return true
	}
	return false
}

// Exam представляет экзамен (тест на надежность или текучесть)
type Exam struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Title           string     `gorm:"size:200;not null" json:"title"`
	TestType        string     `gorm:"size:20;not null;default:'reliability'" json:"test_type"`
	Estado          string     `gorm:"column:estado;size:20;not null;default:'borrador';index" json:"estado"`
	FechaApertura   *time.Time `gorm:"column:fecha_apertura" json:"fecha_apertura,omitempty"`
	FechaCierre     *time.Time `gorm:"column:fecha_cierre" json:"fecha_cierre,omitempty"`
	DuracionMinutos int        `gorm:"column:duracion_minutos;not null;default:60" json:"duracion_minutos"`
	Questions       []Question `gorm:"foreignKey:ExamID" json:"questions,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Exam) TableName() string {
	return "exams"
}

// IsActive проверяет, активен ли экзамен
func (e *Exam) IsActive() bool {
	return e.Estado == ExamStatusActive
}

// Kind возвращает тип теста экзамена; пустое значение считается reliability
func (e *Exam) Kind() string {
	if e.TestType == "" {
		return TestTypeReliability
	}
	return e.TestType
}

// DurationSeconds returns the configured exam length in seconds.
func (e *Exam) DurationSeconds() int {
	if e.DuracionMinutos <= 0 {
		return 0
	}
	return e.DuracionMinutos * 60
}

// PsychometricTest представляет психометрический тест
type PsychometricTest struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Name            string     `gorm:"size:200;not null" json:"name"`
	DuracionMinutos int        `gorm:"column:duracion_minutos;not null;default:30" json:"duracion_minutos"`
	IsActive        bool       `gorm:"not null;default:true" json:"is_active"`
	Questions       []Question `gorm:"foreignKey:PsychometricTestID" json:"questions,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (PsychometricTest) TableName() string {
	return "psychometric_tests"
}

// AsExam presents a psychometric test through the exam shape used by the
// timer and submission flow. Psychometric tests have no close date.
func (p *PsychometricTest) AsExam() *Exam {
	estado := ExamStatusPaused
	if p.IsActive {
		estado = ExamStatusActive
	}
	return &Exam{
		ID:              p.ID,
		Title:           p.Name,
		TestType:        TestTypePsychometric,
		Estado:          estado,
		DuracionMinutos: p.DuracionMinutos,
		Questions:       p.Questions,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}
