package repository

import (
	"context"

	"github.com/yourusername/exam-portal-api/internal/domain/entity"
)

// UserRepository определяет методы для работы с профилями
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id uint) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
}
