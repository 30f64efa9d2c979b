package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/exam-portal-api/internal/domain/entity"
	"github.com/yourusername/exam-portal-api/internal/domain/repository"
	apperrors "github.com/yourusername/exam-portal-api/internal/pkg/errors"
	"github.com/yourusername/exam-portal-api/internal/service/examaccess"
)

// ResolveInput описывает, как студент пришел к экзамену: по ссылке сессии
// или через портал (пользователь + назначение).
type ResolveInput struct {
	SessionID *uuid.UUID `json:"session_id,omitempty"`
	UserID    *uint      `json:"user_id,omitempty"`
	ExamID    *uint      `json:"exam_id,omitempty"`
	TestType  string     `json:"test_type"`
}

// AccessGrant: разрешение начать экзамен
type AccessGrant struct {
	Exam         *entity.Exam
	TestType     string
	SessionID    *uuid.UUID
	AssignmentID *uint
	UserID       *uint
	// AlreadyCompletedWarning is set when the session link was already used.
	// It does not block access.
	AlreadyCompletedWarning bool
}

// AccessService разрешает доступ к экзамену по сессии или назначению
type AccessService struct {
	sessionRepo    repository.SessionRepository
	assignmentRepo repository.AssignmentRepository
	examRepo       repository.ExamRepository
	userRepo       repository.UserRepository
	logger         *examaccess.AccessLogger
	retry          examaccess.RetryPolicy
	now            func() time.Time
}

// NewAccessService создает новый сервис доступа
func NewAccessService(
	sessionRepo repository.SessionRepository,
	assignmentRepo repository.AssignmentRepository,
	examRepo repository.ExamRepository,
	userRepo repository.UserRepository,
	logger *examaccess.AccessLogger,
	config *examaccess.Config,
) *AccessService {
	return &AccessService{
		sessionRepo:    sessionRepo,
		assignmentRepo: assignmentRepo,
		examRepo:       examRepo,
		userRepo:       userRepo,
		logger:         logger,
		retry:          config.RetryPolicy(),
		now:            time.Now,
	}
}

// ResolveAccess validates a session link or a portal assignment and returns the
// exam metadata needed to start the timer.
func (s *AccessService) ResolveAccess(ctx context.Context, input ResolveInput) (*AccessGrant, error) {
	var (
		grant *AccessGrant
		err   error
	)
	switch {
	case input.SessionID != nil:
		grant, err = s.resolveSession(ctx, *input.SessionID)
	case input.UserID != nil:
		grant, err = s.resolveAssignment(ctx, *input.UserID, input.ExamID, input.TestType)
	default:
		return nil, apperrors.E(apperrors.KindValidation, "AccessService.ResolveAccess", "session_id or user_id is required", nil)
	}
	if err != nil {
		return nil, err
	}

	if examaccess.ExamExpired(grant.Exam, s.now()) {
		s.logger.Warn("exam_expired", map[string]string{"exam_id": fmt.Sprint(grant.Exam.ID)})
		return nil, apperrors.E(apperrors.KindExpired, "AccessService.ResolveAccess", "exam is closed", nil)
	}
	return grant, nil
}

func (s *AccessService) resolveSession(ctx context.Context, sessionID uuid.UUID) (*AccessGrant, error) {
	const op = "AccessService.resolveSession"

	session, err := examaccess.Retry(ctx, s.retry, func(ctx context.Context) (*entity.ExamSession, error) {
		return s.sessionRepo.GetWithTest(ctx, sessionID)
	})
	if errors.Is(err, apperrors.ErrNotFound) {
		s.logger.Warn("session_not_found", map[string]string{"session_id": sessionID.String()})
		return nil, apperrors.E(apperrors.KindNotFound, op, "session not found", err)
	}
	if err != nil {
		return nil, err
	}

	exam := session.TargetExam()
	if exam == nil {
		s.logger.Warn("session_test_missing", map[string]string{"session_id": sessionID.String()})
		return nil, apperrors.E(apperrors.KindNotFound, op, "session not found", nil)
	}

	grant := &AccessGrant{
		Exam:      exam,
		TestType:  session.TestType,
		SessionID: &session.ID,
		UserID:    session.UserID,
	}
	if session.IsCompleted() {
		grant.AlreadyCompletedWarning = true
		s.logger.Warn("session_already_completed", map[string]string{"session_id": sessionID.String()})
	} else {
		s.logger.Info("session_resolved", map[string]string{"session_id": sessionID.String(), "exam_id": fmt.Sprint(exam.ID)})
	}
	return grant, nil
}

func (s *AccessService) resolveAssignment(ctx context.Context, userID uint, examID *uint, testType string) (*AccessGrant, error) {
	const op = "AccessService.resolveAssignment"
	fields := map[string]string{"user_id": fmt.Sprint(userID), "test_type": testType}

	if s.userRepo != nil {
		user, err := examaccess.Retry(ctx, s.retry, func(ctx context.Context) (*entity.User, error) {
			return s.userRepo.GetByID(ctx, userID)
		})
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		if err == nil && !user.HasPortalAccess() {
			s.logger.Warn("profile_restricted", fields)
			return nil, apperrors.E(apperrors.KindRestricted, op, "portal access is closed for this profile", nil)
		}
	}

	var exact *entity.Assignment
	if examID != nil {
		a, err := examaccess.Retry(ctx, s.retry, func(ctx context.Context) (*entity.Assignment, error) {
			return s.assignmentRepo.GetByUserAndTarget(ctx, userID, testType, *examID)
		})
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		exact = a
	}

	assignment := exact
	if assignment == nil || assignment.IsCompleted() {
		latest, err := examaccess.Retry(ctx, s.retry, func(ctx context.Context) (*entity.Assignment, error) {
			return s.assignmentRepo.GetLatestOpenByType(ctx, userID, testType)
		})
		switch {
		case err == nil:
			assignment = latest
		case !errors.Is(err, apperrors.ErrNotFound):
			return nil, err
		case exact != nil:
			s.logger.Warn("assignment_already_completed", fields)
			return nil, apperrors.E(apperrors.KindAlreadyCompleted, op, "evaluation already completed", nil)
		default:
			s.logger.Warn("assignment_not_found", fields)
			return nil, apperrors.E(apperrors.KindNotFound, op, "no assignment found", nil)
		}
	}

	exam, err := s.loadTarget(ctx, assignment.TestType, assignmentTarget(assignment))
	if err != nil {
		return nil, err
	}

	fields["assignment_id"] = fmt.Sprint(assignment.ID)
	s.logger.Info("assignment_resolved", fields)
	return &AccessGrant{
		Exam:         exam,
		TestType:     assignment.TestType,
		AssignmentID: &assignment.ID,
		UserID:       &userID,
	}, nil
}

func assignmentTarget(a *entity.Assignment) *uint {
	if a.TestType == entity.TestTypePsychometric {
		return a.PsychometricTestID
	}
	return a.ExamID
}

func (s *AccessService) loadTarget(ctx context.Context, testType string, targetID *uint) (*entity.Exam, error) {
	if targetID == nil {
		return nil, apperrors.E(apperrors.KindNotFound, "AccessService.loadTarget", "assignment has no exam", nil)
	}
	exam, err := examaccess.Retry(ctx, s.retry, func(ctx context.Context) (*entity.Exam, error) {
		if testType == entity.TestTypePsychometric {
			test, err := s.examRepo.GetPsychometricTest(ctx, *targetID)
			if err != nil {
				return nil, err
			}
			return test.AsExam(), nil
		}
		return s.examRepo.GetByID(ctx, *targetID)
	})
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.E(apperrors.KindNotFound, "AccessService.loadTarget", "exam not found", err)
	}
	return exam, err
}

// StartAssignment moves a pending assignment to started. Already started
// assignments are left as they are.
func (s *AccessService) StartAssignment(ctx context.Context, assignmentID uint) error {
	const op = "AccessService.StartAssignment"

	a, err := examaccess.Retry(ctx, s.retry, func(ctx context.Context) (*entity.Assignment, error) {
		return s.assignmentRepo.GetByID(ctx, assignmentID)
	})
	if err != nil {
		return err
	}
	switch a.Status {
	case entity.AssignmentStatusCompleted:
		return apperrors.E(apperrors.KindAlreadyCompleted, op, "evaluation already completed", nil)
	case entity.AssignmentStatusStarted:
		return nil
	}

	err = examaccess.RetryErr(ctx, s.retry, func(ctx context.Context) error {
		return s.assignmentRepo.UpdateStatus(ctx, assignmentID, entity.AssignmentStatusStarted, s.now())
	})
	if errors.Is(err, apperrors.ErrConflict) {
		// concurrent start from another tab
		return nil
	}
	if err == nil {
		s.logger.Info("assignment_started", map[string]string{"assignment_id": fmt.Sprint(assignmentID)})
	}
	return err
}

// ActivateSession marks a pending session link as active.
func (s *AccessService) ActivateSession(ctx context.Context, sessionID uuid.UUID) error {
	return examaccess.RetryErr(ctx, s.retry, func(ctx context.Context) error {
		return s.sessionRepo.UpdateStatus(ctx, sessionID, entity.SessionStatusActive)
	})
}
