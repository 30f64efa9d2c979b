package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/exam-portal-api/internal/domain/entity"
	"github.com/yourusername/exam-portal-api/internal/domain/repository"
	apperrors "github.com/yourusername/exam-portal-api/internal/pkg/errors"
	"github.com/yourusername/exam-portal-api/internal/service/examaccess"
)

func newTestCredentialService(credRepo *MockCredentialRepo, examRepo *MockExamRepo, userRepo *MockUserRepo, tokens *fakeTokens) (*CredentialService, *examaccess.AccessLogger) {
	logger := examaccess.NewAccessLogger(10)
	svc := NewCredentialService(credRepo, examRepo, userRepo, tokens, logger, testConfig())
	return svc, logger
}

func uintPtr(v uint) *uint { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func TestValidateCredentials_FallsThroughToAnyExamTier(t *testing.T) {
	// Arrange
	credRepo := new(MockCredentialRepo)
	examRepo := new(MockExamRepo)
	svc, logger := newTestCredentialService(credRepo, examRepo, new(MockUserRepo), &fakeTokens{})

	examID := uint(7)
	identifier := "ana@example.com"
	found := &entity.Credential{ID: 31, UserEmail: identifier, TestType: entity.TestTypeReliability, ExamID: uintPtr(9)}

	credRepo.On("FindFirst", mock.Anything, repository.CredentialCriteria{
		Username: identifier, TestType: entity.TestTypeReliability, ExamID: &examID, UnusedOnly: true,
	}).Return(nil, apperrors.ErrNotFound).Once()
	credRepo.On("FindFirst", mock.Anything, repository.CredentialCriteria{
		Email: identifier, TestType: entity.TestTypeReliability, ExamID: &examID, UnusedOnly: true,
	}).Return(nil, apperrors.ErrNotFound).Once()
	credRepo.On("FindFirst", mock.Anything, repository.CredentialCriteria{
		UsernameOrEmail: identifier, TestType: entity.TestTypeReliability, UnusedOnly: true, MostRecentFirst: true,
	}).Return(found, nil).Once()
	examRepo.On("GetByID", mock.Anything, uint(9)).Return(&entity.Exam{ID: 9, Estado: entity.ExamStatusActive}, nil)

	// Act
	cred, err := svc.ValidateCredentials(context.Background(), identifier, &examID, entity.TestTypeReliability)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, uint(31), cred.ID)
	credRepo.AssertExpectations(t)
	credRepo.AssertNumberOfCalls(t, "FindFirst", 3)

	entries := logger.Entries()
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1]
	assert.Equal(t, "credential_matched", last.Event)
	assert.Equal(t, "identifier_any_exam", last.Fields["tier"])
}

func TestValidateCredentials_SkipsEmailTierForUsernames(t *testing.T) {
	credRepo := new(MockCredentialRepo)
	examRepo := new(MockExamRepo)
	svc, _ := newTestCredentialService(credRepo, examRepo, new(MockUserRepo), &fakeTokens{})

	credRepo.On("FindFirst", mock.Anything, mock.MatchedBy(func(c repository.CredentialCriteria) bool {
		return c.Username == "ana"
	})).Return(nil, apperrors.ErrNotFound).Once()
	credRepo.On("FindFirst", mock.Anything, mock.MatchedBy(func(c repository.CredentialCriteria) bool {
		return c.UsernameOrEmail == "ana"
	})).Return(nil, apperrors.ErrNotFound).Twice()

	_, err := svc.ValidateCredentials(context.Background(), "ana", nil, entity.TestTypeTurnover)

	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	credRepo.AssertNumberOfCalls(t, "FindFirst", 3)
}

func TestValidateCredentials_LooseTierLogsTestTypeMismatch(t *testing.T) {
	credRepo := new(MockCredentialRepo)
	svc, logger := newTestCredentialService(credRepo, new(MockExamRepo), new(MockUserRepo), &fakeTokens{})

	other := &entity.Credential{ID: 4, Username: "ana", TestType: entity.TestTypeTurnover}
	credRepo.On("FindFirst", mock.Anything, mock.MatchedBy(func(c repository.CredentialCriteria) bool {
		return c.TestType != ""
	})).Return(nil, apperrors.ErrNotFound)
	credRepo.On("FindFirst", mock.Anything, mock.MatchedBy(func(c repository.CredentialCriteria) bool {
		return c.TestType == ""
	})).Return(other, nil)

	cred, err := svc.ValidateCredentials(context.Background(), "ana", nil, entity.TestTypeReliability)

	require.NoError(t, err)
	assert.Equal(t, entity.TestTypeTurnover, cred.TestType)
	entries := logger.Entries()
	last := entries[len(entries)-1]
	assert.Equal(t, examaccess.LevelWarn, last.Level)
	assert.Equal(t, "credential_test_type_mismatch", last.Event)
	assert.Equal(t, "identifier_any_type", last.Fields["tier"])
}

func TestValidateCredentials_StoreErrorStopsSearch(t *testing.T) {
	credRepo := new(MockCredentialRepo)
	svc, _ := newTestCredentialService(credRepo, new(MockExamRepo), new(MockUserRepo), &fakeTokens{})

	boom := errors.New("syntax error")
	credRepo.On("FindFirst", mock.Anything, mock.Anything).Return(nil, boom).Once()

	_, err := svc.ValidateCredentials(context.Background(), "ana", nil, entity.TestTypeTurnover)

	assert.ErrorIs(t, err, boom)
	credRepo.AssertNumberOfCalls(t, "FindFirst", 1)
}

func TestValidateCredentials_ExpiredExamRejectsValidCredential(t *testing.T) {
	credRepo := new(MockCredentialRepo)
	examRepo := new(MockExamRepo)
	svc, _ := newTestCredentialService(credRepo, examRepo, new(MockUserRepo), &fakeTokens{})
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	cred := &entity.Credential{ID: 2, Username: "ana", TestType: entity.TestTypeReliability, ExamID: uintPtr(5),
		ExpiresAt: timePtr(now.Add(48 * time.Hour))}
	credRepo.On("FindFirst", mock.Anything, mock.Anything).Return(cred, nil).Once()
	examRepo.On("GetByID", mock.Anything, uint(5)).Return(&entity.Exam{ID: 5, FechaCierre: timePtr(now.Add(-time.Hour))}, nil)

	_, err := svc.ValidateCredentials(context.Background(), "ana", nil, entity.TestTypeReliability)

	assert.True(t, apperrors.Is(err, apperrors.KindExpired))
}

func TestValidateCredentials_MissingExamLeavesCredentialDeadline(t *testing.T) {
	credRepo := new(MockCredentialRepo)
	examRepo := new(MockExamRepo)
	svc, logger := newTestCredentialService(credRepo, examRepo, new(MockUserRepo), &fakeTokens{})

	cred := &entity.Credential{ID: 2, Username: "ana", TestType: entity.TestTypeReliability, ExamID: uintPtr(5)}
	credRepo.On("FindFirst", mock.Anything, mock.Anything).Return(cred, nil).Once()
	examRepo.On("GetByID", mock.Anything, uint(5)).Return(nil, apperrors.ErrNotFound)

	got, err := svc.ValidateCredentials(context.Background(), "ana", nil, entity.TestTypeReliability)

	require.NoError(t, err)
	assert.Equal(t, cred, got)
	var events []string
	for _, e := range logger.Entries() {
		events = append(events, e.Event)
	}
	assert.Contains(t, events, "credential_exam_missing")
}

func TestLogin(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	closes := now.Add(6 * time.Hour)
	expires := now.Add(2 * time.Hour)

	t.Run("issues token bounded by the earlier deadline", func(t *testing.T) {
		credRepo := new(MockCredentialRepo)
		examRepo := new(MockExamRepo)
		userRepo := new(MockUserRepo)
		tokens := &fakeTokens{}
		svc, _ := newTestCredentialService(credRepo, examRepo, userRepo, tokens)
		svc.now = func() time.Time { return now }

		cred := hashedCredential(t, &entity.Credential{ID: 8, Username: "ana", UserEmail: "ana@example.com",
			TestType: entity.TestTypeReliability, ExamID: uintPtr(3), ExpiresAt: &expires}, "s3cret")
		credRepo.On("FindFirst", mock.Anything, mock.Anything).Return(cred, nil).Once()
		examRepo.On("GetByID", mock.Anything, uint(3)).Return(&entity.Exam{ID: 3, FechaCierre: &closes}, nil)
		userRepo.On("GetByEmail", mock.Anything, "ana@example.com").
			Return(&entity.User{ID: 40, Email: "ana@example.com", CanLogin: true}, nil)

		result, err := svc.Login(context.Background(), LoginInput{
			Identifier: "ana", Password: "s3cret", TestType: entity.TestTypeReliability,
		})

		require.NoError(t, err)
		assert.Equal(t, "token-reliability", result.Token)
		require.NotNil(t, result.ExpiresAt)
		assert.True(t, result.ExpiresAt.Equal(expires))
		require.Len(t, tokens.issued, 1)
		assert.Equal(t, uint(8), tokens.issued[0].CredentialID)
		assert.Equal(t, uint(3), tokens.issued[0].ExamID)
		assert.Equal(t, uint(40), tokens.issued[0].UserID)
	})

	t.Run("wrong password", func(t *testing.T) {
		credRepo := new(MockCredentialRepo)
		examRepo := new(MockExamRepo)
		tokens := &fakeTokens{}
		svc, _ := newTestCredentialService(credRepo, examRepo, new(MockUserRepo), tokens)

		cred := &entity.Credential{ID: 8, Username: "ana", Password: "plain", TestType: entity.TestTypeTurnover}
		credRepo.On("FindFirst", mock.Anything, mock.Anything).Return(cred, nil).Once()

		_, err := svc.Login(context.Background(), LoginInput{Identifier: "ana", Password: "nope", TestType: entity.TestTypeTurnover})

		assert.True(t, apperrors.Is(err, apperrors.KindInvalidCredentials))
		assert.Empty(t, tokens.issued)
	})

	t.Run("restricted profile", func(t *testing.T) {
		credRepo := new(MockCredentialRepo)
		userRepo := new(MockUserRepo)
		svc, _ := newTestCredentialService(credRepo, new(MockExamRepo), userRepo, &fakeTokens{})

		cred := &entity.Credential{ID: 8, Username: "ana", UserEmail: "ana@example.com", Password: "plain", TestType: entity.TestTypeTurnover}
		credRepo.On("FindFirst", mock.Anything, mock.Anything).Return(cred, nil).Once()
		userRepo.On("GetByEmail", mock.Anything, "ana@example.com").
			Return(&entity.User{ID: 1, AccessRestricted: true, CanLogin: false}, nil)

		_, err := svc.Login(context.Background(), LoginInput{Identifier: "ana", Password: "plain", TestType: entity.TestTypeTurnover})

		assert.True(t, apperrors.Is(err, apperrors.KindRestricted))
	})

	t.Run("credential without exam requires exam_id", func(t *testing.T) {
		credRepo := new(MockCredentialRepo)
		tokens := &fakeTokens{}
		svc, _ := newTestCredentialService(credRepo, new(MockExamRepo), new(MockUserRepo), tokens)

		cred := &entity.Credential{ID: 8, Username: "ana", Password: "plain", TestType: entity.TestTypeTurnover}
		credRepo.On("FindFirst", mock.Anything, mock.Anything).Return(cred, nil).Once()

		_, err := svc.Login(context.Background(), LoginInput{Identifier: "ana", Password: "plain", TestType: entity.TestTypeTurnover})

		assert.True(t, apperrors.Is(err, apperrors.KindValidation))
		assert.Empty(t, tokens.issued)
	})

	t.Run("exam_id of another test type is rejected", func(t *testing.T) {
		credRepo := new(MockCredentialRepo)
		examRepo := new(MockExamRepo)
		tokens := &fakeTokens{}
		svc, logger := newTestCredentialService(credRepo, examRepo, new(MockUserRepo), tokens)

		cred := &entity.Credential{ID: 8, Username: "ana", Password: "plain", TestType: entity.TestTypeTurnover}
		credRepo.On("FindFirst", mock.Anything, mock.Anything).Return(cred, nil).Once()
		examRepo.On("GetByID", mock.Anything, uint(77)).
			Return(&entity.Exam{ID: 77, TestType: entity.TestTypeReliability}, nil)

		_, err := svc.Login(context.Background(), LoginInput{
			Identifier: "ana", Password: "plain", TestType: entity.TestTypeTurnover, ExamID: uintPtr(77),
		})

		assert.True(t, apperrors.Is(err, apperrors.KindRestricted))
		assert.Empty(t, tokens.issued)
		entries := logger.Entries()
		assert.Equal(t, "login_exam_type_mismatch", entries[len(entries)-1].Event)
	})

	t.Run("exam_id of the same type binds the token", func(t *testing.T) {
		credRepo := new(MockCredentialRepo)
		examRepo := new(MockExamRepo)
		tokens := &fakeTokens{}
		svc, _ := newTestCredentialService(credRepo, examRepo, new(MockUserRepo), tokens)

		cred := &entity.Credential{ID: 8, Username: "ana", Password: "plain", TestType: entity.TestTypeTurnover}
		credRepo.On("FindFirst", mock.Anything, mock.Anything).Return(cred, nil).Once()
		examRepo.On("GetByID", mock.Anything, uint(12)).
			Return(&entity.Exam{ID: 12, TestType: entity.TestTypeTurnover}, nil)

		_, err := svc.Login(context.Background(), LoginInput{
			Identifier: "ana", Password: "plain", TestType: entity.TestTypeTurnover, ExamID: uintPtr(12),
		})

		require.NoError(t, err)
		require.Len(t, tokens.issued, 1)
		assert.Equal(t, uint(12), tokens.issued[0].ExamID)
	})

	t.Run("invalid input", func(t *testing.T) {
		svc, _ := newTestCredentialService(new(MockCredentialRepo), new(MockExamRepo), new(MockUserRepo), &fakeTokens{})

		_, err := svc.Login(context.Background(), LoginInput{Identifier: "ana", Password: "x", TestType: "unknown"})

		assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	})
}

func TestMarkUsed_SecondUseIsAlreadyCompleted(t *testing.T) {
	credRepo := new(MockCredentialRepo)
	svc, _ := newTestCredentialService(credRepo, new(MockExamRepo), new(MockUserRepo), &fakeTokens{})

	credRepo.On("MarkUsed", mock.Anything, uint(5), mock.Anything).Return(nil).Once()
	credRepo.On("MarkUsed", mock.Anything, uint(5), mock.Anything).
		Return(fmt.Errorf("credential 5: %w", apperrors.ErrConflict)).Once()

	require.NoError(t, svc.MarkUsed(context.Background(), 5))
	err := svc.MarkUsed(context.Background(), 5)

	assert.True(t, apperrors.Is(err, apperrors.KindAlreadyCompleted))
}

func TestValidate(t *testing.T) {
	credRepo := new(MockCredentialRepo)
	examRepo := new(MockExamRepo)
	svc, _ := newTestCredentialService(credRepo, examRepo, new(MockUserRepo), &fakeTokens{})
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	cred := &entity.Credential{ID: 1, Username: "ana", UserEmail: "ana@example.com", Password: "pw",
		TestType: entity.TestTypeTurnover, ExpiresAt: timePtr(now.Add(-time.Minute))}
	credRepo.On("FindFirst", mock.Anything, repository.CredentialCriteria{
		UsernameOrEmail: "ana", UnusedOnly: true, MostRecentFirst: true,
	}).Return(cred, nil)

	ok, err := svc.Validate(context.Background(), "ana", "pw", true)
	require.NoError(t, err)
	assert.True(t, ok.Valid)
	assert.True(t, ok.IsExpired)
	assert.Equal(t, "ana@example.com", ok.UserEmail)

	bad, err := svc.Validate(context.Background(), "ana", "wrong", true)
	require.NoError(t, err)
	assert.False(t, bad.Valid)
}
