package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/exam-portal-api/internal/domain/entity"
	"github.com/yourusername/exam-portal-api/internal/domain/repository"
	apperrors "github.com/yourusername/exam-portal-api/internal/pkg/errors"
)

// CredentialRepo реализует repository.CredentialRepository
type CredentialRepo struct {
	db *gorm.DB
}

// NewCredentialRepo создает новый репозиторий учетных данных
func NewCredentialRepo(db *gorm.DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

func applyCredentialCriteria(q *gorm.DB, c repository.CredentialCriteria) *gorm.DB {
	if c.Username != "" {
		q = q.Where("username = ?", c.Username)
	}
	if c.Email != "" {
		q = q.Where("user_email = ?", c.Email)
	}
	if c.UsernameOrEmail != "" {
		q = q.Where("(username = ? OR user_email = ?)", c.UsernameOrEmail, c.UsernameOrEmail)
	}
	if c.TestType != "" {
		q = q.Where("test_type = ?", c.TestType)
	}
	if c.ExamID != nil {
		q = q.Where("exam_id = ?", *c.ExamID)
	}
	if c.PsychometricTestID != nil {
		q = q.Where("psychometric_test_id = ?", *c.PsychometricTestID)
	}
	if c.UnusedOnly {
		q = q.Where("is_used = ?", false)
	}
	if c.MostRecentFirst {
		q = q.Order("created_at DESC").Order("id DESC")
	} else {
		q = q.Order("id")
	}
	return q
}

// FindFirst возвращает первую запись, удовлетворяющую критериям
func (r *CredentialRepo) FindFirst(ctx context.Context, criteria repository.CredentialCriteria) (*entity.Credential, error) {
	var cred entity.Credential
	q := applyCredentialCriteria(r.db.WithContext(ctx).Model(&entity.Credential{}), criteria)
	// Take не добавляет сортировку по первичному ключу поверх заданной
	if err := q.Take(&cred).Error; err != nil {
		return nil, classify("CredentialRepo.FindFirst", err)
	}
	return &cred, nil
}

// GetByID возвращает учетные данные по ID
func (r *CredentialRepo) GetByID(ctx context.Context, id uint) (*entity.Credential, error) {
	var cred entity.Credential
	if err := r.db.WithContext(ctx).First(&cred, id).Error; err != nil {
		return nil, classify("CredentialRepo.GetByID", err)
	}
	return &cred, nil
}

// MarkUsed атомарно помечает учетные данные использованными
func (r *CredentialRepo) MarkUsed(ctx context.Context, id uint, usedAt time.Time) error {
	return markCredentialUsed(r.db.WithContext(ctx), id, usedAt)
}

func markCredentialUsed(db *gorm.DB, id uint, usedAt time.Time) error {
	result := db.Model(&entity.Credential{}).
		Where("id = ? AND is_used = ?", id, false).
		Updates(map[string]interface{}{
			"is_used": true,
			"used_at": usedAt,
		})
	if result.Error != nil {
		return classify("CredentialRepo.MarkUsed", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := db.Model(&entity.Credential{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return classify("CredentialRepo.MarkUsed", err)
		}
		if count == 0 {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("%w: credential #%d already used", apperrors.ErrConflict, id)
	}
	return nil
}

// Create создает учетные данные; пароль хешируется, если передан в открытом виде
func (r *CredentialRepo) Create(ctx context.Context, credential *entity.Credential) error {
	if err := credential.HashPassword(); err != nil {
		return fmt.Errorf("failed to hash credential password: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(credential).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: credential %s already exists", apperrors.ErrConflict, credential.Username)
		}
		return classify("CredentialRepo.Create", err)
	}
	return nil
}
