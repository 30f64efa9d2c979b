package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"github.com/yourusername/exam-portal-api/internal/domain/entity"
	"github.com/yourusername/exam-portal-api/internal/handler/helper"
	"github.com/yourusername/exam-portal-api/internal/service"
)

// LoginRequest: вход по учетным данным экзамена
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
	ExamID     *uint  `json:"exam_id,omitempty"`
	TestType   string `json:"test_type" binding:"required"`
}

// ResolveRequest: вход по ссылке сессии или назначению портала.
// Пользователь портала берется из токена, а не из тела запроса.
type ResolveRequest struct {
	SessionID *uuid.UUID `json:"session_id,omitempty"`
	ExamID    *uint      `json:"exam_id,omitempty"`
	TestType  string     `json:"test_type"`
}

// ExamResponse: метаданные экзамена без вопросов
type ExamResponse struct {
	ID              uint       `json:"id"`
	Title           string     `json:"title"`
	TestType        string     `json:"test_type"`
	Estado          string     `json:"estado"`
	FechaApertura   *time.Time `json:"fecha_apertura,omitempty"`
	FechaCierre     *time.Time `json:"fecha_cierre,omitempty"`
	DuracionMinutos int        `json:"duracion_minutos"`
}

// QuestionResponse: вопрос в том виде, в каком его видит студент
type QuestionResponse struct {
	ID       uint                    `json:"id"`
	Text     string                  `json:"text"`
	Options  []helper.QuestionOption `json:"options" copier:"-"`
	Position int                     `json:"position"`
}

// AccessResponse: результат входа: токен и экзамен
type AccessResponse struct {
	Token                   string        `json:"token"`
	ExpiresAt               *time.Time    `json:"expires_at,omitempty"`
	TestType                string        `json:"test_type"`
	Exam                    *ExamResponse `json:"exam,omitempty"`
	SessionID               *uuid.UUID    `json:"session_id,omitempty"`
	AssignmentID            *uint         `json:"assignment_id,omitempty"`
	UserID                  *uint         `json:"user_id,omitempty"`
	AlreadyCompletedWarning bool          `json:"already_completed_warning,omitempty"`
}

// StartResponse: данные запущенного экзамена
type StartResponse struct {
	Exam                    ExamResponse             `json:"exam"`
	Questions               []QuestionResponse       `json:"questions"`
	RemainingSeconds        int                      `json:"remaining_seconds"`
	StartedAt               time.Time                `json:"started_at"`
	EndsAt                  time.Time                `json:"ends_at"`
	Resumed                 bool                     `json:"resumed"`
	AlreadyCompletedWarning bool                     `json:"already_completed_warning,omitempty"`
	RecoverableProgress     *entity.ProgressSnapshot `json:"recoverable_progress,omitempty"`
}

// SubmitRequest: ответы студента
type SubmitRequest struct {
	Answers   map[string]string `json:"answers" binding:"required"`
	Questions []uint            `json:"questions,omitempty"`
}

// AttemptResponse: сохраненная попытка
type AttemptResponse struct {
	ID                 uint      `json:"id"`
	ExamID             *uint     `json:"exam_id,omitempty"`
	PsychometricTestID *uint     `json:"psychometric_test_id,omitempty"`
	TestType           string    `json:"test_type"`
	Score              int       `json:"score"`
	AdjustedScore      float64   `json:"adjusted_score"`
	TimedOut           bool      `json:"timed_out"`
	CompletedAt        time.Time `json:"completed_at"`
	AnswerCount        int       `json:"answer_count"`
}

// NewExamResponse копирует метаданные экзамена
func NewExamResponse(exam *entity.Exam) *ExamResponse {
	if exam == nil {
		return nil
	}
	var resp ExamResponse
	_ = copier.Copy(&resp, exam)
	return &resp
}

// NewQuestionResponses копирует вопросы в порядке экзамена
func NewQuestionResponses(questions []entity.Question) []QuestionResponse {
	resp := make([]QuestionResponse, len(questions))
	for i := range questions {
		_ = copier.Copy(&resp[i], &questions[i])
		resp[i].Options = helper.ConvertOptionsToObjects(questions[i].Options)
	}
	return resp
}

// NewStartResponse собирает ответ на запуск экзамена
func NewStartResponse(result *service.StartResult) *StartResponse {
	resp := &StartResponse{
		Questions:               NewQuestionResponses(result.Questions),
		RemainingSeconds:        result.RemainingSeconds,
		StartedAt:               result.Run.StartedAt,
		EndsAt:                  result.Run.EndsAt,
		Resumed:                 result.Resumed,
		AlreadyCompletedWarning: result.AlreadyCompletedWarning,
		RecoverableProgress:     result.Recovered,
	}
	if exam := NewExamResponse(result.Exam); exam != nil {
		resp.Exam = *exam
	}
	return resp
}

// NewAttemptResponse копирует попытку без ответов
func NewAttemptResponse(attempt *entity.Attempt) *AttemptResponse {
	var resp AttemptResponse
	_ = copier.Copy(&resp, attempt)
	resp.AnswerCount = attempt.AnswerCount()
	return &resp
}
