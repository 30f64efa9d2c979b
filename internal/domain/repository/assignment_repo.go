package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/exam-portal-api/internal/domain/entity"
)

// AssignmentRepository определяет методы для работы с назначениями
type AssignmentRepository interface {
	GetByID(ctx context.Context, id uint) (*entity.Assignment, error)
	// GetByUserAndTarget ищет назначение по точной паре (user_id, exam_id|psychometric_test_id)
	GetByUserAndTarget(ctx context.Context, userID uint, testType string, targetID uint) (*entity.Assignment, error)
	// GetLatestOpenByType возвращает последнее незавершенное назначение пользователя данного типа
	GetLatestOpenByType(ctx context.Context, userID uint, testType string) (*entity.Assignment, error)
	// UpdateStatus переводит статус только вперед; ErrConflict если переход невозможен
	UpdateStatus(ctx context.Context, id uint, status string, at time.Time) error
	Create(ctx context.Context, assignment *entity.Assignment) error
}

// SessionRepository определяет методы для работы с сессиями доступа по ссылке
type SessionRepository interface {
	// GetWithTest возвращает сессию вместе с метаданными экзамена или психометрического теста
	GetWithTest(ctx context.Context, id uuid.UUID) (*entity.ExamSession, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Create(ctx context.Context, session *entity.ExamSession) error
}
