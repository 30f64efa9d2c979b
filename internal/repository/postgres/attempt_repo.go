package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yourusername/exam-portal-api/internal/domain/entity"
	"github.com/yourusername/exam-portal-api/internal/domain/repository"
	apperrors "github.com/yourusername/exam-portal-api/internal/pkg/errors"
)

// AttemptRepo реализует repository.AttemptRepository
type AttemptRepo struct {
	db *gorm.DB
}

// NewAttemptRepo создает новый репозиторий попыток
func NewAttemptRepo(db *gorm.DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

// Complete записывает попытку и закрывает назначение, сессию, учетные данные
// и доступ к порталу в одной транзакции.
func (r *AttemptRepo) Complete(ctx context.Context, c *repository.AttemptCompletion) error {
	if c == nil || c.Attempt == nil {
		return fmt.Errorf("%w: attempt is required", apperrors.ErrValidation)
	}
	completedAt := c.Attempt.CompletedAt

	tx := r.db.WithContext(ctx).Begin()
	defer func() {
		if rec := recover(); rec != nil {
			tx.Rollback()
			panic(rec)
		}
	}()
	if tx.Error != nil {
		return classify("AttemptRepo.Complete", tx.Error)
	}

	if err := tx.Create(c.Attempt).Error; err != nil {
		tx.Rollback()
		if isUniqueViolation(err) {
			return fmt.Errorf("attempt %s: %w", c.Attempt.SubmissionKey, repository.ErrSubmissionRecorded)
		}
		return classify("AttemptRepo.Complete", err)
	}

	if c.AssignmentID != nil {
		if err := updateAssignmentStatus(tx, *c.AssignmentID, entity.AssignmentStatusCompleted, completedAt); err != nil {
			tx.Rollback()
			return err
		}
	}

	if c.SessionID != nil {
		if err := updateSessionStatus(tx, *c.SessionID, entity.SessionStatusCompleted); err != nil {
			tx.Rollback()
			return err
		}
	}

	if c.CredentialID != nil {
		if err := markCredentialUsed(tx, *c.CredentialID, completedAt); err != nil {
			tx.Rollback()
			return err
		}
	}

	if c.RestrictUserID != nil {
		err := tx.Model(&entity.User{}).
			Where("id = ?", *c.RestrictUserID).
			Updates(map[string]interface{}{
				"access_restricted": true,
				"can_login":         false,
				"updated_at":        completedAt,
			}).Error
		if err != nil {
			tx.Rollback()
			return classify("AttemptRepo.Complete", err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return classify("AttemptRepo.Complete", err)
	}
	return nil
}

// GetByID возвращает попытку по ID
func (r *AttemptRepo) GetByID(ctx context.Context, id uint) (*entity.Attempt, error) {
	var attempt entity.Attempt
	if err := r.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, classify("AttemptRepo.GetByID", err)
	}
	return &attempt, nil
}

// GetBySubmissionKey возвращает попытку, записанную для запуска экзамена
func (r *AttemptRepo) GetBySubmissionKey(ctx context.Context, key string) (*entity.Attempt, error) {
	var attempt entity.Attempt
	if err := r.db.WithContext(ctx).Where("submission_key = ?", key).Take(&attempt).Error; err != nil {
		return nil, classify("AttemptRepo.GetBySubmissionKey", err)
	}
	return &attempt, nil
}

// List возвращает попытки по фильтрам, отсортированные по времени завершения
func (r *AttemptRepo) List(ctx context.Context, filters repository.AttemptFilters) ([]entity.Attempt, error) {
	q := r.db.WithContext(ctx).Model(&entity.Attempt{})
	if filters.ExamID != nil {
		q = q.Where("exam_id = ?", *filters.ExamID)
	}
	if filters.PsychometricTestID != nil {
		q = q.Where("psychometric_test_id = ?", *filters.PsychometricTestID)
	}
	if filters.TestType != "" {
		q = q.Where("test_type = ?", filters.TestType)
	}

	var attempts []entity.Attempt
	if err := q.Order("completed_at ASC, id ASC").Find(&attempts).Error; err != nil {
		return nil, classify("AttemptRepo.List", err)
	}
	return attempts, nil
}

// UpdateReport сохраняет текстовый отчет по попытке
func (r *AttemptRepo) UpdateReport(ctx context.Context, id uint, report string) error {
	result := r.db.WithContext(ctx).Model(&entity.Attempt{}).
		Where("id = ?", id).
		Update("report", report)
	if result.Error != nil {
		return classify("AttemptRepo.UpdateReport", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
