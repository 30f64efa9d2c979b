package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/yourusername/exam-portal-api/internal/domain/entity"
	"github.com/yourusername/exam-portal-api/internal/domain/repository"
	apperrors "github.com/yourusername/exam-portal-api/internal/pkg/errors"
	"github.com/yourusername/exam-portal-api/internal/service/examaccess"
)

// ProgressService хранит снимки прогресса незавершенных экзаменов
type ProgressService struct {
	cacheRepo repository.CacheRepository
	maxAge    time.Duration
	retry     examaccess.RetryPolicy
	now       func() time.Time
}

// NewProgressService создает новый сервис прогресса
func NewProgressService(cacheRepo repository.CacheRepository, config *examaccess.Config) *ProgressService {
	maxAge := config.ProgressMaxAge
	if maxAge <= 0 {
		maxAge = examaccess.DefaultProgressMaxAge
	}
	return &ProgressService{
		cacheRepo: cacheRepo,
		maxAge:    maxAge,
		retry:     config.RetryPolicy(),
		now:       time.Now,
	}
}

// fingerprint serializes the snapshot without its timestamp so that two
// saves of the same state compare equal.
func fingerprint(snapshot entity.ProgressSnapshot) (string, error) {
	snapshot.LastUpdated = time.Time{}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *ProgressService) load(ctx context.Context, key string) (string, error) {
	return examaccess.Retry(ctx, s.retry, func(ctx context.Context) (string, error) {
		return s.cacheRepo.Get(key)
	})
}

// Save writes the snapshot unless it is identical to the stored one. It
// reports whether a write happened.
func (s *ProgressService) Save(ctx context.Context, snapshot *entity.ProgressSnapshot) (bool, error) {
	if snapshot == nil {
		return false, apperrors.E(apperrors.KindValidation, "ProgressService.Save", "snapshot is required", nil)
	}
	key := snapshot.Key()

	next, err := fingerprint(*snapshot)
	if err != nil {
		return false, err
	}

	stored, err := s.load(ctx, key)
	switch {
	case err == nil:
		var previous entity.ProgressSnapshot
		if json.Unmarshal([]byte(stored), &previous) == nil {
			if prev, fpErr := fingerprint(previous); fpErr == nil && prev == next {
				return false, nil
			}
		}
	case !errors.Is(err, apperrors.ErrNotFound):
		return false, err
	}

	if snapshot.LastUpdated.IsZero() {
		snapshot.LastUpdated = s.now().UTC()
	}
	err = examaccess.RetryErr(ctx, s.retry, func(ctx context.Context) error {
		return s.cacheRepo.SetJSON(key, snapshot, s.maxAge)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Recover returns the stored snapshot when it can be resumed: younger than
// the max age, started and not completed. Anything else is deleted and nil
// is returned. The snapshot is not applied to any state.
func (s *ProgressService) Recover(ctx context.Context, key string) (*entity.ProgressSnapshot, error) {
	stored, err := s.load(ctx, key)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snapshot entity.ProgressSnapshot
	if err := json.Unmarshal([]byte(stored), &snapshot); err != nil {
		log.Printf("[ProgressService] Снимок %s поврежден, удаляем: %v", key, err)
		return nil, s.Discard(ctx, key)
	}

	age := s.now().Sub(snapshot.LastUpdated)
	if age >= s.maxAge || !snapshot.ExamStarted || snapshot.ExamCompleted {
		log.Printf("[ProgressService] Снимок %s устарел (age=%v started=%t completed=%t), удаляем",
			key, age.Round(time.Second), snapshot.ExamStarted, snapshot.ExamCompleted)
		return nil, s.Discard(ctx, key)
	}
	return &snapshot, nil
}

// Load returns the stored snapshot as is, without staleness checks.
func (s *ProgressService) Load(ctx context.Context, key string) (*entity.ProgressSnapshot, error) {
	var snapshot entity.ProgressSnapshot
	err := examaccess.RetryErr(ctx, s.retry, func(ctx context.Context) error {
		return s.cacheRepo.GetJSON(key, &snapshot)
	})
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Discard удаляет снимок по ключу
func (s *ProgressService) Discard(ctx context.Context, key string) error {
	return examaccess.RetryErr(ctx, s.retry, func(ctx context.Context) error {
		return s.cacheRepo.Delete(key)
	})
}

// Cleanup удаляет снимок после завершения экзамена
func (s *ProgressService) Cleanup(ctx context.Context, key string) {
	if err := s.Discard(ctx, key); err != nil {
		log.Printf("[ProgressService] Не удалось удалить снимок %s: %v", key, err)
	}
}
