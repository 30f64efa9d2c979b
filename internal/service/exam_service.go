package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/exam-portal-api/internal/domain/entity"
	"github.com/yourusername/exam-portal-api/internal/domain/repository"
	apperrors "github.com/yourusername/exam-portal-api/internal/pkg/errors"
	"github.com/yourusername/exam-portal-api/internal/service/examaccess"
	"github.com/yourusername/exam-portal-api/pkg/auth"
)

// StartResult: данные для отображения запущенного экзамена
type StartResult struct {
	Run                     *ExamRun
	Exam                    *entity.Exam
	Questions               []entity.Question
	RemainingSeconds        int
	Recovered               *entity.ProgressSnapshot
	Resumed                 bool
	AlreadyCompletedWarning bool
}

// ExamService связывает доступ, таймер, автосохранение и отправку экзамена
type ExamService struct {
	access      *AccessService
	credentials *CredentialService
	progress    *ProgressService
	submission  *SubmissionService
	timers      *TimerRegistry
	examRepo    repository.ExamRepository
	cacheRepo   repository.CacheRepository
	logger      *examaccess.AccessLogger
	retry       examaccess.RetryPolicy
	now         func() time.Time
}

// NewExamService создает новый сервис экзаменов
func NewExamService(
	access *AccessService,
	credentials *CredentialService,
	progress *ProgressService,
	submission *SubmissionService,
	timers *TimerRegistry,
	examRepo repository.ExamRepository,
	cacheRepo repository.CacheRepository,
	logger *examaccess.AccessLogger,
	config *examaccess.Config,
) *ExamService {
	return &ExamService{
		access:      access,
		credentials: credentials,
		progress:    progress,
		submission:  submission,
		timers:      timers,
		examRepo:    examRepo,
		cacheRepo:   cacheRepo,
		logger:      logger,
		retry:       config.RetryPolicy(),
		now:         time.Now,
	}
}

func checkTokenExam(claims *auth.ExamClaims, examID uint) error {
	if claims == nil {
		return apperrors.E(apperrors.KindInvalidCredentials, "ExamService", "exam token is required", nil)
	}
	if claims.ExamID == 0 || claims.ExamID != examID {
		return apperrors.E(apperrors.KindRestricted, "ExamService", "token is not valid for this exam", nil)
	}
	return nil
}

func runTestType(run *ExamRun) string {
	if run.TestType == "" {
		return entity.TestTypeReliability
	}
	return run.TestType
}

func (s *ExamService) loadRun(ctx context.Context, key string) (*ExamRun, error) {
	var run ExamRun
	err := examaccess.RetryErr(ctx, s.retry, func(ctx context.Context) error {
		return s.cacheRepo.GetJSON(key, &run)
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *ExamService) saveRun(ctx context.Context, run *ExamRun) error {
	ttl := run.EndsAt.Sub(s.now()) + time.Hour
	return examaccess.RetryErr(ctx, s.retry, func(ctx context.Context) error {
		return s.cacheRepo.SetJSON(run.Key(), run, ttl)
	})
}

func (s *ExamService) loadQuestions(ctx context.Context, testType string, examID uint) (*entity.Exam, error) {
	exam, err := examaccess.Retry(ctx, s.retry, func(ctx context.Context) (*entity.Exam, error) {
		if testType == entity.TestTypePsychometric {
			test, err := s.examRepo.GetPsychometricTestWithQuestions(ctx, examID)
			if err != nil {
				return nil, err
			}
			return test.AsExam(), nil
		}
		return s.examRepo.GetWithQuestions(ctx, examID)
	})
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.E(apperrors.KindNotFound, "ExamService.loadQuestions", "exam not found", err)
	}
	return exam, err
}

// buildRun resolves access for the token holder and prepares a new run.
func (s *ExamService) buildRun(ctx context.Context, claims *auth.ExamClaims, examID uint) (*ExamRun, bool, error) {
	run := &ExamRun{
		ExamID:   examID,
		TestType: claims.TestType,
		Email:    claims.Email,
	}

	var warning bool
	if claims.SessionUUID() != nil || claims.UserID != 0 {
		input := ResolveInput{SessionID: claims.SessionUUID(), ExamID: &examID, TestType: claims.TestType}
		if claims.UserID != 0 {
			userID := claims.UserID
			input.UserID = &userID
		}
		grant, err := s.access.ResolveAccess(ctx, input)
		if err != nil {
			return nil, false, err
		}
		run.TestType = grant.TestType
		run.ExamID = grant.Exam.ID
		run.UserID = grant.UserID
		run.SessionID = grant.SessionID
		run.AssignmentID = grant.AssignmentID
		warning = grant.AlreadyCompletedWarning
	}

	if claims.CredentialID != 0 {
		cred, _, err := s.credentials.CheckUsable(ctx, claims.CredentialID)
		if err != nil {
			return nil, false, err
		}
		credID := cred.ID
		run.CredentialID = &credID
		if run.Email == "" {
			run.Email = cred.UserEmail
		}
	}

	if run.SessionID == nil && run.UserID == nil && run.CredentialID == nil {
		return nil, false, apperrors.E(apperrors.KindInvalidCredentials, "ExamService.buildRun", "token carries no access", nil)
	}
	return run, warning, nil
}

// Start resolves access, loads the questions and arms the countdown. Starting
// an exam that is already running resumes it with the original deadline.
func (s *ExamService) Start(ctx context.Context, claims *auth.ExamClaims, examID uint) (*StartResult, error) {
	const op = "ExamService.Start"
	if err := checkTokenExam(claims, examID); err != nil {
		return nil, err
	}

	identity := IdentityFromClaims(claims)
	existing, err := s.loadRun(ctx, identity.RunKey(examID))
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	result := &StartResult{}
	run := existing
	if run != nil {
		result.Resumed = true
	} else {
		var warning bool
		run, warning, err = s.buildRun(ctx, claims, examID)
		if err != nil {
			return nil, err
		}
		result.AlreadyCompletedWarning = warning
	}

	exam, err := s.loadQuestions(ctx, run.TestType, run.ExamID)
	if err != nil {
		return nil, err
	}
	if exam.Kind() != runTestType(run) {
		s.logger.Warn("exam_test_type_mismatch", map[string]string{
			"exam_id":   fmt.Sprint(exam.ID),
			"exam_type": exam.Kind(),
			"run_type":  runTestType(run),
		})
		return nil, apperrors.E(apperrors.KindRestricted, op, "token is not valid for this exam type", nil)
	}
	now := s.now()
	if !examaccess.ExamOpen(exam, now) {
		return nil, apperrors.E(apperrors.KindRestricted, op, "exam is not open", nil)
	}
	if len(exam.Questions) == 0 {
		return nil, apperrors.E(apperrors.KindValidation, op, "exam has no questions", nil)
	}

	if !result.Resumed {
		duration := exam.DurationSeconds()
		if duration <= 0 {
			return nil, apperrors.E(apperrors.KindValidation, op, "exam has no duration configured", nil)
		}
		run.Questions = entity.QuestionIDs(exam.Questions)
		run.StartedAt = now
		run.EndsAt = now.Add(time.Duration(duration) * time.Second)
		if exam.FechaCierre != nil && exam.FechaCierre.Before(run.EndsAt) {
			run.EndsAt = *exam.FechaCierre
		}

		if run.AssignmentID != nil {
			if err := s.access.StartAssignment(ctx, *run.AssignmentID); err != nil {
				return nil, err
			}
		}
		if run.SessionID != nil && !result.AlreadyCompletedWarning {
			if err := s.access.ActivateSession(ctx, *run.SessionID); err != nil {
				log.Printf("[ExamService] Не удалось активировать сессию %s: %v", run.SessionID, err)
			}
		}
		if err := s.saveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to store exam run: %w", err)
		}
		s.logger.Info("exam_started", map[string]string{"run": run.Key(), "ends_at": run.EndsAt.Format(time.RFC3339)})
	}

	result.Run = run
	result.Exam = exam
	result.Questions = exam.Questions
	result.RemainingSeconds = s.armTimer(run)

	recovered, err := s.progress.Recover(ctx, run.ProgressKey())
	if err != nil {
		log.Printf("[ExamService] Не удалось прочитать снимок %s: %v", run.ProgressKey(), err)
	}
	result.Recovered = recovered
	return result, nil
}

func (s *ExamService) armTimer(run *ExamRun) int {
	runCopy := *run
	return s.timers.Start(run.Key(), run.EndsAt, func() {
		s.submitOnTimeout(&runCopy)
	})
}

// submitOnTimeout submits whatever the last saved snapshot holds.
func (s *ExamService) submitOnTimeout(run *ExamRun) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	answers := map[string]string{}
	if snapshot, err := s.progress.Load(ctx, run.ProgressKey()); err == nil && snapshot.Answers != nil {
		answers = snapshot.Answers
	}

	_, err := s.submission.Submit(ctx, SubmitInput{Run: run, Answers: answers, TimedOut: true})
	if err != nil {
		log.Printf("[ExamService] Автоматическая отправка %s не удалась: %v", run.Key(), err)
		return
	}
	log.Printf("[ExamService] Экзамен %s отправлен по истечении времени", run.Key())
}

// currentRun loads the live run of the token holder.
func (s *ExamService) currentRun(ctx context.Context, claims *auth.ExamClaims, examID uint) (*ExamRun, error) {
	if err := checkTokenExam(claims, examID); err != nil {
		return nil, err
	}
	run, err := s.loadRun(ctx, IdentityFromClaims(claims).RunKey(examID))
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.E(apperrors.KindNotFound, "ExamService.currentRun", "exam has not been started", err)
	}
	return run, err
}

// Remaining returns the seconds left for the token holder's run. A timer lost
// on restart is armed again from the stored deadline.
func (s *ExamService) Remaining(ctx context.Context, claims *auth.ExamClaims, examID uint) (int, error) {
	run, err := s.currentRun(ctx, claims, examID)
	if err != nil {
		return 0, err
	}
	if remaining, ok := s.timers.Remaining(run.Key()); ok {
		return remaining, nil
	}
	return s.armTimer(run), nil
}

// RoomFor returns the websocket room of the token holder's run.
func (s *ExamService) RoomFor(claims *auth.ExamClaims, examID uint) (string, error) {
	if err := checkTokenExam(claims, examID); err != nil {
		return "", err
	}
	return IdentityFromClaims(claims).RunKey(examID), nil
}

// SaveProgress stores a snapshot under the token holder's identity.
func (s *ExamService) SaveProgress(ctx context.Context, claims *auth.ExamClaims, examID uint, snapshot *entity.ProgressSnapshot) (bool, error) {
	if err := checkTokenExam(claims, examID); err != nil {
		return false, err
	}
	identity := IdentityFromClaims(claims)
	snapshot.ExamID = examID
	snapshot.UserID = identity.UserID
	snapshot.SessionID = identity.progressSession()
	return s.progress.Save(ctx, snapshot)
}

// RecoverProgress returns a resumable snapshot or nil.
func (s *ExamService) RecoverProgress(ctx context.Context, claims *auth.ExamClaims, examID uint) (*entity.ProgressSnapshot, error) {
	if err := checkTokenExam(claims, examID); err != nil {
		return nil, err
	}
	return s.progress.Recover(ctx, IdentityFromClaims(claims).ProgressKey(examID))
}

// DiscardProgress удаляет снимок прогресса
func (s *ExamService) DiscardProgress(ctx context.Context, claims *auth.ExamClaims, examID uint) error {
	if err := checkTokenExam(claims, examID); err != nil {
		return err
	}
	return s.progress.Discard(ctx, IdentityFromClaims(claims).ProgressKey(examID))
}

// Submit отправляет экзамен вручную
func (s *ExamService) Submit(ctx context.Context, claims *auth.ExamClaims, examID uint, answers map[string]string, questions []uint) (*entity.Attempt, error) {
	run, err := s.currentRun(ctx, claims, examID)
	if err != nil {
		return nil, err
	}
	return s.submission.Submit(ctx, SubmitInput{Run: run, Answers: answers, Questions: questions})
}
