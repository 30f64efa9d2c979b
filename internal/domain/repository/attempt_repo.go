package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/yourusername/exam-portal-api/internal/domain/entity"
	apperrors "github.com/yourusername/exam-portal-api/internal/pkg/errors"
)

// ErrSubmissionRecorded: попытка с таким SubmissionKey уже записана
var ErrSubmissionRecorded = fmt.Errorf("%w: submission already recorded", apperrors.ErrConflict)

// AttemptCompletion описывает все изменения, записываемые при сдаче экзамена
// в одной транзакции.
type AttemptCompletion struct {
	Attempt *entity.Attempt

	AssignmentID *uint      // назначение -> completed
	SessionID    *uuid.UUID // сессия -> completed
	CredentialID *uint      // учетные данные -> is_used
	// RestrictUserID закрывает доступ к порталу (access_restricted=true, can_login=false)
	RestrictUserID *uint
}

// AttemptFilters определяет фильтры для выгрузки попыток
type AttemptFilters struct {
	ExamID             *uint
	PsychometricTestID *uint
	TestType           string
}

// AttemptRepository определяет методы для работы с попытками
type AttemptRepository interface {
	// Complete сохраняет попытку и связанные изменения статусов атомарно
	Complete(ctx context.Context, completion *AttemptCompletion) error
	GetByID(ctx context.Context, id uint) (*entity.Attempt, error)
	GetBySubmissionKey(ctx context.Context, key string) (*entity.Attempt, error)
	List(ctx context.Context, filters AttemptFilters) ([]entity.Attempt, error)
	UpdateReport(ctx context.Context, id uint, report string) error
}
