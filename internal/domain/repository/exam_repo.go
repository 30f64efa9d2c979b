package repository

import (
	"context"

	"github.com/yourusername/exam-portal-api/internal/domain/entity"
)

// ExamRepository определяет методы для работы с экзаменами и психометрическими тестами
type ExamRepository interface {
	GetByID(ctx context.Context, id uint) (*entity.Exam, error)
	// GetWithQuestions возвращает экзамен с вопросами, упорядоченными по position
	GetWithQuestions(ctx context.Context, id uint) (*entity.Exam, error)
	GetPsychometricTest(ctx context.Context, id uint) (*entity.PsychometricTest, error)
	GetPsychometricTestWithQuestions(ctx context.Context, id uint) (*entity.PsychometricTest, error)
	Create(ctx context.Context, exam *entity.Exam) error
	CreatePsychometricTest(ctx context.Context, test *entity.PsychometricTest) error
}
