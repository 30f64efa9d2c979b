package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/yourusername/exam-portal-api/internal/domain/entity"
	"github.com/yourusername/exam-portal-api/internal/domain/repository"
	apperrors "github.com/yourusername/exam-portal-api/internal/pkg/errors"
	"github.com/yourusername/exam-portal-api/internal/service/examaccess"
	"github.com/yourusername/exam-portal-api/pkg/auth"
)

// TokenIssuer выпускает токены экзаменационных сессий
type TokenIssuer interface {
	GenerateExamToken(claims auth.ExamClaims, expiresAt *time.Time) (string, error)
}

// LoginInput: данные входа студента по учетным данным экзамена
type LoginInput struct {
	Identifier string `json:"identifier" validate:"required,max=255"`
	Password   string `json:"password" validate:"required,max=128"`
	ExamID     *uint  `json:"exam_id,omitempty"`
	TestType   string `json:"test_type" validate:"required,oneof=reliability psychometric turnover"`
}

// LoginResult: результат успешного входа
type LoginResult struct {
	Token      string
	ExpiresAt  *time.Time
	Credential *entity.Credential
	Exam       *entity.Exam
	UserID     *uint
}

// ValidationResult: ответ проверки пары логин/пароль
type ValidationResult struct {
	Valid     bool   `json:"valid"`
	IsExpired bool   `json:"is_expired"`
	UserEmail string `json:"user_email"`
}

// CredentialService находит и проверяет одноразовые учетные данные экзаменов
type CredentialService struct {
	credentialRepo repository.CredentialRepository
	examRepo       repository.ExamRepository
	userRepo       repository.UserRepository
	tokens         TokenIssuer
	logger         *examaccess.AccessLogger
	tiers          []examaccess.CredentialTier
	retry          examaccess.RetryPolicy
	validate       *validator.Validate
	now            func() time.Time
}

// NewCredentialService создает новый сервис учетных данных
func NewCredentialService(
	credentialRepo repository.CredentialRepository,
	examRepo repository.ExamRepository,
	userRepo repository.UserRepository,
	tokens TokenIssuer,
	logger *examaccess.AccessLogger,
	config *examaccess.Config,
) *CredentialService {
	return &CredentialService{
		credentialRepo: credentialRepo,
		examRepo:       examRepo,
		userRepo:       userRepo,
		tokens:         tokens,
		logger:         logger,
		tiers:          examaccess.DefaultCredentialTiers,
		retry:          config.RetryPolicy(),
		validate:       validator.New(),
		now:            time.Now,
	}
}

// findByTiers walks the tier list and returns the first hit with its tier name.
func (s *CredentialService) findByTiers(ctx context.Context, q examaccess.CredentialQuery) (*entity.Credential, string, error) {
	for _, tier := range s.tiers {
		if !tier.Applies(q) {
			continue
		}
		criteria := tier.Criteria(q)
		cred, err := examaccess.Retry(ctx, s.retry, func(ctx context.Context) (*entity.Credential, error) {
			return s.credentialRepo.FindFirst(ctx, criteria)
		})
		if err == nil {
			return cred, tier.Name, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, "", err
		}
	}
	return nil, "", apperrors.E(apperrors.KindNotFound, "CredentialService.ValidateCredentials", "no matching credential", nil)
}

// linkedExam loads the exam the credential points at. Missing exams are
// reported as nil so that only the credential deadline applies.
func (s *CredentialService) linkedExam(ctx context.Context, cred *entity.Credential) (*entity.Exam, error) {
	targetID := cred.TargetID()
	if targetID == nil {
		return nil, nil
	}
	exam, err := s.loadTarget(ctx, cred.TestType, *targetID)
	if errors.Is(err, apperrors.ErrNotFound) {
		s.logger.Warn("credential_exam_missing", map[string]string{
			"credential_id": fmt.Sprint(cred.ID),
			"exam_id":       fmt.Sprint(*targetID),
		})
		return nil, nil
	}
	return exam, err
}

func (s *CredentialService) loadTarget(ctx context.Context, testType string, id uint) (*entity.Exam, error) {
	return examaccess.Retry(ctx, s.retry, func(ctx context.Context) (*entity.Exam, error) {
		if testType == entity.TestTypePsychometric {
			test, err := s.examRepo.GetPsychometricTest(ctx, id)
			if err != nil {
				return nil, err
			}
			return test.AsExam(), nil
		}
		return s.examRepo.GetByID(ctx, id)
	})
}

// ValidateCredentials resolves the identifier to an unused credential and
// checks that neither the credential nor its exam has expired. It has no side
// effects on the store.
func (s *CredentialService) ValidateCredentials(ctx context.Context, identifier string, examID *uint, testType string) (*entity.Credential, error) {
	const op = "CredentialService.ValidateCredentials"

	q := examaccess.CredentialQuery{
		Identifier: strings.TrimSpace(identifier),
		ExamID:     examID,
		TestType:   testType,
	}
	if q.Identifier == "" {
		return nil, apperrors.E(apperrors.KindValidation, op, "identifier is required", nil)
	}

	cred, tierName, err := s.findByTiers(ctx, q)
	if err != nil {
		s.logger.Warn("credential_not_found", map[string]string{"identifier": q.Identifier, "test_type": testType})
		return nil, err
	}

	fields := map[string]string{
		"credential_id": fmt.Sprint(cred.ID),
		"tier":          tierName,
	}
	if testType != "" && cred.TestType != testType {
		// the loosest tier ignores test_type
		fields["requested_test_type"] = testType
		fields["credential_test_type"] = cred.TestType
		s.logger.Warn("credential_test_type_mismatch", fields)
	} else {
		s.logger.Info("credential_matched", fields)
	}

	exam, err := s.linkedExam(ctx, cred)
	if err != nil {
		return nil, err
	}
	if examaccess.AccessExpired(exam, cred, s.now()) {
		s.logger.Warn("credential_expired", fields)
		return nil, apperrors.E(apperrors.KindExpired, op, "exam or credential has expired", nil)
	}
	return cred, nil
}

// MarkUsed consumes the credential. A credential can be consumed only once.
func (s *CredentialService) MarkUsed(ctx context.Context, credentialID uint) error {
	err := examaccess.RetryErr(ctx, s.retry, func(ctx context.Context) error {
		return s.credentialRepo.MarkUsed(ctx, credentialID, s.now())
	})
	if errors.Is(err, apperrors.ErrConflict) {
		return apperrors.E(apperrors.KindAlreadyCompleted, "CredentialService.MarkUsed", "credential already used", err)
	}
	if err == nil {
		s.logger.Info("credential_used", map[string]string{"credential_id": fmt.Sprint(credentialID)})
	}
	return err
}

// Validate checks a username/password pair against unused credentials.
// Store failures are returned as errors; a wrong pair is Valid=false.
func (s *CredentialService) Validate(ctx context.Context, username, password string, checkExpiration bool) (*ValidationResult, error) {
	criteria := repository.CredentialCriteria{
		UsernameOrEmail: strings.TrimSpace(username),
		UnusedOnly:      true,
		MostRecentFirst: true,
	}
	cred, err := examaccess.Retry(ctx, s.retry, func(ctx context.Context) (*entity.Credential, error) {
		return s.credentialRepo.FindFirst(ctx, criteria)
	})
	if errors.Is(err, apperrors.ErrNotFound) {
		return &ValidationResult{}, nil
	}
	if err != nil {
		return nil, err
	}
	if !cred.CheckPassword(password) {
		return &ValidationResult{}, nil
	}

	result := &ValidationResult{Valid: true, UserEmail: cred.UserEmail}
	if checkExpiration {
		exam, err := s.linkedExam(ctx, cred)
		if err != nil {
			return nil, err
		}
		result.IsExpired = examaccess.AccessExpired(exam, cred, s.now())
	}
	return result, nil
}

// Login validates the input, resolves the credential, checks the password and
// issues an exam session token bounded by the effective expiration.
func (s *CredentialService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	const op = "CredentialService.Login"

	if err := s.validate.Struct(input); err != nil {
		return nil, apperrors.E(apperrors.KindValidation, op, err.Error(), apperrors.ErrValidation)
	}

	cred, err := s.ValidateCredentials(ctx, input.Identifier, input.ExamID, input.TestType)
	if err != nil {
		return nil, err
	}
	if !cred.CheckPassword(input.Password) {
		s.logger.Warn("credential_wrong_password", map[string]string{"credential_id": fmt.Sprint(cred.ID)})
		return nil, apperrors.E(apperrors.KindInvalidCredentials, op, "invalid username or password", nil)
	}

	exam, err := s.linkedExam(ctx, cred)
	if err != nil {
		return nil, err
	}

	claims := auth.ExamClaims{
		CredentialID: cred.ID,
		TestType:     cred.TestType,
		Email:        cred.UserEmail,
	}
	if target := cred.TargetID(); target != nil {
		claims.ExamID = *target
	} else if input.ExamID != nil {
		claims.ExamID = *input.ExamID
	}

	var userID *uint
	if cred.UserEmail != "" && s.userRepo != nil {
		user, err := examaccess.Retry(ctx, s.retry, func(ctx context.Context) (*entity.User, error) {
			return s.userRepo.GetByEmail(ctx, cred.UserEmail)
		})
		switch {
		case err == nil:
			if !user.HasPortalAccess() {
				s.logger.Warn("profile_restricted", map[string]string{"user_id": fmt.Sprint(user.ID)})
				return nil, apperrors.E(apperrors.KindRestricted, op, "portal access is closed for this profile", nil)
			}
			claims.UserID = user.ID
			userID = &user.ID
		case !errors.Is(err, apperrors.ErrNotFound):
			return nil, err
		}
	}

	// токен всегда привязан к конкретному экзамену
	if claims.ExamID == 0 {
		return nil, apperrors.E(apperrors.KindValidation, op, "exam_id is required for a credential without a linked exam", apperrors.ErrValidation)
	}
	if exam == nil && cred.TargetID() == nil {
		exam, err = s.loadTarget(ctx, cred.TestType, claims.ExamID)
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.E(apperrors.KindNotFound, op, "exam not found", err)
		}
		if err != nil {
			return nil, err
		}
	}
	if exam != nil && exam.Kind() != cred.TestType {
		s.logger.Warn("login_exam_type_mismatch", map[string]string{
			"credential_id": fmt.Sprint(cred.ID),
			"exam_id":       fmt.Sprint(exam.ID),
			"exam_type":     exam.Kind(),
		})
		return nil, apperrors.E(apperrors.KindRestricted, op, "credential is not valid for this exam type", nil)
	}

	expiresAt := examaccess.EffectiveExpiration(exam, cred)
	token, err := s.tokens.GenerateExamToken(claims, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to issue exam token: %w", err)
	}

	s.logger.Info("login_succeeded", map[string]string{
		"credential_id": fmt.Sprint(cred.ID),
		"exam_id":       fmt.Sprint(claims.ExamID),
		"test_type":     cred.TestType,
	})
	return &LoginResult{
		Token:      token,
		ExpiresAt:  expiresAt,
		Credential: cred,
		Exam:       exam,
		UserID:     userID,
	}, nil
}

// CheckUsable reloads a credential issued at login and verifies it is still
// unused and unexpired. It returns the linked exam, if any.
func (s *CredentialService) CheckUsable(ctx context.Context, credentialID uint) (*entity.Credential, *entity.Exam, error) {
	const op = "CredentialService.CheckUsable"

	cred, err := examaccess.Retry(ctx, s.retry, func(ctx context.Context) (*entity.Credential, error) {
		return s.credentialRepo.GetByID(ctx, credentialID)
	})
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil, apperrors.E(apperrors.KindNotFound, op, "credential not found", err)
	}
	if err != nil {
		return nil, nil, err
	}
	if cred.IsUsed {
		return nil, nil, apperrors.E(apperrors.KindAlreadyCompleted, op, "evaluation already completed", nil)
	}

	exam, err := s.linkedExam(ctx, cred)
	if err != nil {
		return nil, nil, err
	}
	if examaccess.AccessExpired(exam, cred, s.now()) {
		return nil, nil, apperrors.E(apperrors.KindExpired, op, "exam or credential has expired", nil)
	}
	return cred, exam, nil
}
