package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/exam-portal-api/internal/domain/entity"
	"github.com/yourusername/exam-portal-api/pkg/auth"
)

// ExamRun: состояние запущенного экзамена между стартом и отправкой.
// Хранится в Redis; попытка в БД создается только при отправке.
type ExamRun struct {
	ExamID       uint       `json:"exam_id"`
	TestType     string     `json:"test_type"`
	UserID       *uint      `json:"user_id,omitempty"`
	SessionID    *uuid.UUID `json:"session_id,omitempty"`
	AssignmentID *uint      `json:"assignment_id,omitempty"`
	CredentialID *uint      `json:"credential_id,omitempty"`
	Email        string     `json:"email,omitempty"`
	Questions    []uint     `json:"questions"`
	StartedAt    time.Time  `json:"started_at"`
	EndsAt       time.Time  `json:"ends_at"`
}

// RunIdentity identifies one student's attempt at one exam. Users take
// precedence over session links; credential-only logins use the credential id.
type RunIdentity struct {
	UserID       string
	SessionID    string
	CredentialID uint
}

// IdentityFromClaims derives the run identity from an exam token.
func IdentityFromClaims(claims *auth.ExamClaims) RunIdentity {
	userID, sessionID := claims.Identity()
	return RunIdentity{UserID: userID, SessionID: sessionID, CredentialID: claims.CredentialID}
}

// Identity возвращает идентичность запуска
func (r *ExamRun) Identity() RunIdentity {
	id := RunIdentity{}
	if r.UserID != nil {
		id.UserID = fmt.Sprint(*r.UserID)
	}
	if r.SessionID != nil {
		id.SessionID = r.SessionID.String()
	}
	if r.CredentialID != nil {
		id.CredentialID = *r.CredentialID
	}
	return id
}

func (id RunIdentity) progressSession() string {
	if id.SessionID == "" && id.UserID == "" && id.CredentialID != 0 {
		return fmt.Sprintf("credential-%d", id.CredentialID)
	}
	return id.SessionID
}

// ProgressKey returns the snapshot key for this identity.
func (id RunIdentity) ProgressKey(examID uint) string {
	return entity.ProgressKey(examID, id.UserID, id.progressSession())
}

// RunKey returns the storage key of the live run, also used as the websocket room.
func (id RunIdentity) RunKey(examID uint) string {
	identity := "anonymous"
	switch {
	case id.UserID != "":
		identity = id.UserID
	case id.progressSession() != "":
		identity = id.progressSession()
	}
	return fmt.Sprintf("exam_run_%d_%s", examID, identity)
}

// Key возвращает ключ запуска
func (r *ExamRun) Key() string {
	return r.Identity().RunKey(r.ExamID)
}

// ProgressKey возвращает ключ снимка прогресса
func (r *ExamRun) ProgressKey() string {
	return r.Identity().ProgressKey(r.ExamID)
}

// SubmissionKey identifies the single attempt this run may produce.
func (r *ExamRun) SubmissionKey() string {
	return fmt.Sprintf("%s_%d", r.Key(), r.StartedAt.UnixNano())
}

// RemainingSeconds returns whole seconds left until EndsAt.
func (r *ExamRun) RemainingSeconds(now time.Time) int {
	d := r.EndsAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
