package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yourusername/exam-portal-api/internal/domain/entity"
	apperrors "github.com/yourusername/exam-portal-api/internal/pkg/errors"
)

// AssignmentRepo реализует repository.AssignmentRepository
type AssignmentRepo struct {
	db *gorm.DB
}

// NewAssignmentRepo создает новый репозиторий назначений
func NewAssignmentRepo(db *gorm.DB) *AssignmentRepo {
	return &AssignmentRepo{db: db}
}

func targetColumn(testType string) string {
	if testType == entity.TestTypePsychometric {
		return "psychometric_test_id"
	}
	return "exam_id"
}

// GetByID возвращает назначение по ID
func (r *AssignmentRepo) GetByID(ctx context.Context, id uint) (*entity.Assignment, error) {
	var a entity.Assignment
	if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, classify("AssignmentRepo.GetByID", err)
	}
	return &a, nil
}

// GetByUserAndTarget ищет назначение по пользователю и экзамену
func (r *AssignmentRepo) GetByUserAndTarget(ctx context.Context, userID uint, testType string, targetID uint) (*entity.Assignment, error) {
	var a entity.Assignment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND test_type = ?", userID, testType).
		Where(targetColumn(testType)+" = ?", targetID).
		Order("assigned_at DESC").
		Take(&a).Error
	if err != nil {
		return nil, classify("AssignmentRepo.GetByUserAndTarget", err)
	}
	return &a, nil
}

// GetLatestOpenByType возвращает последнее незавершенное назначение пользователя
func (r *AssignmentRepo) GetLatestOpenByType(ctx context.Context, userID uint, testType string) (*entity.Assignment, error) {
	var a entity.Assignment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND test_type = ? AND status <> ?", userID, testType, entity.AssignmentStatusCompleted).
		Order("assigned_at DESC").
		Take(&a).Error
	if err != nil {
		return nil, classify("AssignmentRepo.GetLatestOpenByType", err)
	}
	return &a, nil
}

// UpdateStatus переводит назначение в следующий статус
func (r *AssignmentRepo) UpdateStatus(ctx context.Context, id uint, status string, at time.Time) error {
	return updateAssignmentStatus(r.db.WithContext(ctx), id, status, at)
}

// allowedPrevious lists statuses an assignment may move from into the target status.
func allowedPrevious(status string) []string {
	switch status {
	case entity.AssignmentStatusStarted:
		return []string{entity.AssignmentStatusPending}
	case entity.AssignmentStatusCompleted:
		return []string{entity.AssignmentStatusPending, entity.AssignmentStatusStarted}
	}
	return nil
}

func updateAssignmentStatus(db *gorm.DB, id uint, status string, at time.Time) error {
	from := allowedPrevious(status)
	if len(from) == 0 {
		return fmt.Errorf("%w: unsupported assignment status %q", apperrors.ErrValidation, status)
	}

	updates := map[string]interface{}{"status": status}
	switch status {
	case entity.AssignmentStatusStarted:
		updates["started_at"] = at
	case entity.AssignmentStatusCompleted:
		updates["completed_at"] = at
	}

	result := db.Model(&entity.Assignment{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return classify("AssignmentRepo.UpdateStatus", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: assignment #%d cannot move to %s", apperrors.ErrConflict, id, status)
	}
	return nil
}

// Create создает назначение
func (r *AssignmentRepo) Create(ctx context.Context, assignment *entity.Assignment) error {
	if assignment.Status == "" {
		assignment.Status = entity.AssignmentStatusPending
	}
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now()
	}
	return classify("AssignmentRepo.Create", r.db.WithContext(ctx).Create(assignment).Error)
}

// SessionRepo реализует repository.SessionRepository
type SessionRepo struct {
	db *gorm.DB
}

// NewSessionRepo создает новый репозиторий сессий
func NewSessionRepo(db *gorm.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// GetWithTest возвращает сессию вместе с экзаменом или психометрическим тестом
func (r *SessionRepo) GetWithTest(ctx context.Context, id uuid.UUID) (*entity.ExamSession, error) {
	var s entity.ExamSession
	err := r.db.WithContext(ctx).
		Preload("Exam").
		Preload("PsychometricTest").
		Where("id = ?", id).
		Take(&s).Error
	if err != nil {
		return nil, classify("SessionRepo.GetWithTest", err)
	}
	return &s, nil
}

// UpdateStatus обновляет статус сессии
func (r *SessionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return updateSessionStatus(r.db.WithContext(ctx), id, status)
}

func updateSessionStatus(db *gorm.DB, id uuid.UUID, status string) error {
	result := db.Model(&entity.ExamSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if result.Error != nil {
		return classify("SessionRepo.UpdateStatus", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Create создает сессию
func (r *SessionRepo) Create(ctx context.Context, session *entity.ExamSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.Status == "" {
		session.Status = entity.SessionStatusPending
	}
	return classify("SessionRepo.Create", r.db.WithContext(ctx).Create(session).Error)
}
