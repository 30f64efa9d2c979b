package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/yourusername/exam-portal-api/internal/domain/entity"
)

// ExamRepo реализует repository.ExamRepository
type ExamRepo struct {
	db *gorm.DB
}

// NewExamRepo создает новый репозиторий экзаменов
func NewExamRepo(db *gorm.DB) *ExamRepo {
	return &ExamRepo{db: db}
}

func orderedQuestions(db *gorm.DB) *gorm.DB {
	return db.Order("questions.position ASC, questions.id ASC")
}

// GetByID возвращает экзамен по ID
func (r *ExamRepo) GetByID(ctx context.Context, id uint) (*entity.Exam, error) {
	var exam entity.Exam
	if err := r.db.WithContext(ctx).First(&exam, id).Error; err != nil {
		return nil, classify("ExamRepo.GetByID", err)
	}
	return &exam, nil
}

// GetWithQuestions возвращает экзамен вместе с вопросами
func (r *ExamRepo) GetWithQuestions(ctx context.Context, id uint) (*entity.Exam, error) {
	var exam entity.Exam
	err := r.db.WithContext(ctx).Preload("Questions", orderedQuestions).First(&exam, id).Error
	if err != nil {
		return nil, classify("ExamRepo.GetWithQuestions", err)
	}
	return &exam, nil
}

// GetPsychometricTest возвращает психометрический тест по ID
func (r *ExamRepo) GetPsychometricTest(ctx context.Context, id uint) (*entity.PsychometricTest, error) {
	var test entity.PsychometricTest
	if err := r.db.WithContext(ctx).First(&test, id).Error; err != nil {
		return nil, classify("ExamRepo.GetPsychometricTest", err)
	}
	return &test, nil
}

// GetPsychometricTestWithQuestions возвращает психометрический тест вместе с вопросами
func (r *ExamRepo) GetPsychometricTestWithQuestions(ctx context.Context, id uint) (*entity.PsychometricTest, error) {
	var test entity.PsychometricTest
	err := r.db.WithContext(ctx).Preload("Questions", orderedQuestions).First(&test, id).Error
	if err != nil {
		return nil, classify("ExamRepo.GetPsychometricTestWithQuestions", err)
	}
	return &test, nil
}

// Create создает экзамен вместе с вопросами
func (r *ExamRepo) Create(ctx context.Context, exam *entity.Exam) error {
	return classify("ExamRepo.Create", r.db.WithContext(ctx).Create(exam).Error)
}

// CreatePsychometricTest создает психометрический тест вместе с вопросами
func (r *ExamRepo) CreatePsychometricTest(ctx context.Context, test *entity.PsychometricTest) error {
	return classify("ExamRepo.CreatePsychometricTest", r.db.WithContext(ctx).Create(test).Error)
}
