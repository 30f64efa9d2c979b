package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"

	"github.com/yourusername/exam-portal-api/internal/domain/entity"
	"github.com/yourusername/exam-portal-api/internal/domain/repository"
	apperrors "github.com/yourusername/exam-portal-api/internal/pkg/errors"
	"github.com/yourusername/exam-portal-api/internal/service/examaccess"
	"github.com/yourusername/exam-portal-api/internal/websocket"
)

// CompletionHook получает сохраненную попытку после коммита.
// Ошибки хуков логируются и не влияют на результат отправки.
type CompletionHook interface {
	Name() string
	OnAttemptCompleted(ctx context.Context, attempt *entity.Attempt, email string) error
}

// TimerStopper останавливает таймер запуска
type TimerStopper interface {
	Stop(key string)
}

// SubmitInput: данные отправки экзамена
type SubmitInput struct {
	Run     *ExamRun
	Answers map[string]string
	// Questions is used only when the run carries no question list.
	Questions []uint
	TimedOut  bool
}

// SubmissionService сохраняет результат экзамена
type SubmissionService struct {
	attemptRepo repository.AttemptRepository
	cacheRepo   repository.CacheRepository
	progress    *ProgressService
	timers      TimerStopper
	notifier    EventNotifier
	hooks       []CompletionHook
	logger      *examaccess.AccessLogger
	config      *examaccess.Config
	retry       examaccess.RetryPolicy
	hookTimeout time.Duration
	now         func() time.Time
	wg          sync.WaitGroup
}

// NewSubmissionService создает новый сервис отправки
func NewSubmissionService(
	attemptRepo repository.AttemptRepository,
	cacheRepo repository.CacheRepository,
	progress *ProgressService,
	timers TimerStopper,
	notifier EventNotifier,
	logger *examaccess.AccessLogger,
	config *examaccess.Config,
	hooks ...CompletionHook,
) *SubmissionService {
	return &SubmissionService{
		attemptRepo: attemptRepo,
		cacheRepo:   cacheRepo,
		progress:    progress,
		timers:      timers,
		notifier:    notifier,
		hooks:       hooks,
		logger:      logger,
		config:      config,
		retry:       config.RetryPolicy(),
		hookTimeout: 2 * time.Minute,
		now:         time.Now,
	}
}

// Score counts non-empty answers.
func Score(questions []uint, answers map[string]string) int {
	score := 0
	for _, id := range questions {
		if strings.TrimSpace(answers[strconv.FormatUint(uint64(id), 10)]) != "" {
			score++
		}
	}
	return score
}

// AdjustedScore is the score as a percentage of the question count, rounded
// to two decimals.
func AdjustedScore(score, questionCount int) float64 {
	if questionCount <= 0 {
		return 0
	}
	return math.Round(float64(score)*100/float64(questionCount)*100) / 100
}

func missingAnswers(questions []uint, answers map[string]string) int {
	missing := 0
	for _, id := range questions {
		if _, ok := answers[strconv.FormatUint(uint64(id), 10)]; !ok {
			missing++
		}
	}
	return missing
}

// Submit persists the attempt and closes the assignment, session, credential
// and, when configured, the profile's portal access in one transaction.
func (s *SubmissionService) Submit(ctx context.Context, input SubmitInput) (*entity.Attempt, error) {
	const op = "SubmissionService.Submit"

	run := input.Run
	if run == nil {
		return nil, apperrors.E(apperrors.KindValidation, op, "exam run is required", nil)
	}
	questions := run.Questions
	if len(questions) == 0 {
		questions = input.Questions
	}
	if len(questions) == 0 {
		return nil, apperrors.E(apperrors.KindValidation, op, "exam has no questions", nil)
	}
	answers := input.Answers
	if answers == nil {
		answers = map[string]string{}
	}

	if missing := missingAnswers(questions, answers); missing > 0 && !input.TimedOut {
		return nil, apperrors.E(apperrors.KindIncompleteSubmission, op,
			fmt.Sprintf("%d of %d questions are unanswered", missing, len(questions)), nil)
	}

	lockKey := "exam_submit_lock_" + run.Key()
	if s.cacheRepo != nil {
		acquired, err := s.cacheRepo.SetNX(lockKey, "1", 30*time.Second)
		if err != nil {
			log.Printf("[SubmissionService] Не удалось взять блокировку %s: %v", lockKey, err)
		} else if !acquired {
			return nil, apperrors.E(apperrors.KindAlreadyCompleted, op, "submission already in progress", nil)
		}
		defer func() {
			if err := s.cacheRepo.Delete(lockKey); err != nil {
				log.Printf("[SubmissionService] Не удалось снять блокировку %s: %v", lockKey, err)
			}
		}()
	}

	stored := make(datatypes.JSONMap, len(questions))
	ids := make(pq.Int64Array, len(questions))
	for i, id := range questions {
		key := strconv.FormatUint(uint64(id), 10)
		stored[key] = answers[key]
		ids[i] = int64(id)
	}

	score := Score(questions, answers)
	attempt := &entity.Attempt{
		TestType:      run.TestType,
		UserID:        run.UserID,
		AssignmentID:  run.AssignmentID,
		SessionID:     run.SessionID,
		CredentialID:  run.CredentialID,
		SubmissionKey: run.SubmissionKey(),
		Questions:     ids,
		Answers:       stored,
		Score:         score,
		AdjustedScore: AdjustedScore(score, len(questions)),
		TimedOut:      input.TimedOut,
		StartedAt:     run.StartedAt,
		CompletedAt:   s.now(),
	}
	examID := run.ExamID
	if run.TestType == entity.TestTypePsychometric {
		attempt.PsychometricTestID = &examID
	} else {
		attempt.ExamID = &examID
	}

	completion := &repository.AttemptCompletion{
		Attempt:      attempt,
		AssignmentID: run.AssignmentID,
		SessionID:    run.SessionID,
		CredentialID: run.CredentialID,
	}
	if s.config.RestrictOnComplete && run.UserID != nil {
		completion.RestrictUserID = run.UserID
	}

	calls := 0
	err := examaccess.RetryErr(ctx, s.retry, func(ctx context.Context) error {
		calls++
		attempt.ID = 0
		return s.attemptRepo.Complete(ctx, completion)
	})
	if calls > 1 && errors.Is(err, repository.ErrSubmissionRecorded) {
		// предыдущий вызов закоммитил попытку, но ответ потерялся в сети
		stored, getErr := examaccess.Retry(ctx, s.retry, func(ctx context.Context) (*entity.Attempt, error) {
			return s.attemptRepo.GetBySubmissionKey(ctx, attempt.SubmissionKey)
		})
		if getErr == nil {
			s.logger.Warn("submission_commit_recovered", map[string]string{
				"attempt_id": fmt.Sprint(stored.ID),
				"run":        run.Key(),
			})
			attempt, err = stored, nil
		}
	}
	if err != nil {
		s.logger.Error("submission_failed", err, map[string]string{"run": run.Key()})
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.E(apperrors.KindAlreadyCompleted, op, "evaluation already completed", err)
		}
		return nil, err
	}

	s.logger.Info("submission_completed", map[string]string{
		"attempt_id": fmt.Sprint(attempt.ID),
		"run":        run.Key(),
		"score":      fmt.Sprint(score),
		"timed_out":  fmt.Sprint(input.TimedOut),
	})
	s.afterCommit(ctx, run, attempt)
	return attempt, nil
}

func (s *SubmissionService) afterCommit(ctx context.Context, run *ExamRun, attempt *entity.Attempt) {
	if s.progress != nil {
		s.progress.Cleanup(ctx, run.ProgressKey())
	}
	if s.timers != nil {
		s.timers.Stop(run.Key())
	}
	if s.cacheRepo != nil {
		if err := s.cacheRepo.Delete(run.Key()); err != nil {
			log.Printf("[SubmissionService] Не удалось удалить запуск %s: %v", run.Key(), err)
		}
	}
	if s.notifier != nil {
		data := map[string]interface{}{"attempt_id": attempt.ID, "timed_out": attempt.TimedOut}
		if err := s.notifier.SendEventToRoom(run.Key(), websocket.EXAM_SUBMITTED, data); err != nil {
			log.Printf("[SubmissionService] Не удалось уведомить %s: %v", run.Key(), err)
		}
	}

	for _, hook := range s.hooks {
		s.wg.Add(1)
		go func(hook CompletionHook) {
			defer s.wg.Done()
			hookCtx, cancel := context.WithTimeout(context.Background(), s.hookTimeout)
			defer cancel()
			copied := *attempt
			if err := hook.OnAttemptCompleted(hookCtx, &copied, run.Email); err != nil {
				s.logger.Error("completion_hook_failed", err, map[string]string{
					"hook":       hook.Name(),
					"attempt_id": fmt.Sprint(attempt.ID),
				})
			}
		}(hook)
	}
}

// Wait blocks until running completion hooks have returned.
func (s *SubmissionService) Wait() {
	s.wg.Wait()
}
