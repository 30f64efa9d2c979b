package repository

import (
	"context"
	"time"

	"github.com/yourusername/exam-portal-api/internal/domain/entity"
)

// CredentialCriteria описывает один запрос поиска учетных данных.
// Пустые поля не участвуют в фильтрации.
type CredentialCriteria struct {
	Username        string // точное совпадение username
	Email           string // точное совпадение user_email
	UsernameOrEmail string // совпадение username ИЛИ user_email

	TestType           string
	ExamID             *uint
	PsychometricTestID *uint

	UnusedOnly      bool
	MostRecentFirst bool
}

// CredentialRepository определяет методы для работы с учетными данными экзаменов
type CredentialRepository interface {
	// FindFirst возвращает первую запись, удовлетворяющую критериям, или ErrNotFound
	FindFirst(ctx context.Context, criteria CredentialCriteria) (*entity.Credential, error)
	GetByID(ctx context.Context, id uint) (*entity.Credential, error)
	// MarkUsed атомарно помечает запись использованной; ErrConflict если уже использована
	MarkUsed(ctx context.Context, id uint, usedAt time.Time) error
	Create(ctx context.Context, credential *entity.Credential) error
}
